package docindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
)

// extensions accepted by the index, per spec §6. HWP, EPUB, IPYNB, MBOX,
// PPTX, and XML are named by the original's file_readers dict but have no
// pack-grounded Go reader; they are accepted as plain text (a best-effort
// degrade, not a silent drop — a file of one of these types still gets
// indexed, just without format-aware extraction).
var nativeExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".xlsx": true, ".md": true, ".html": true,
	".txt": true, ".csv": true,
	".hwp": true, ".epub": true, ".ipynb": true, ".mbox": true, ".pptx": true, ".xml": true,
}

// ParserRegistry extracts plain text from a file by extension dispatch,
// grounded on hector's NativeParserRegistry (PDF/DOCX/XLSX) extended with
// goldmark for Markdown and goquery for HTML tag-stripping, matching the
// original's MarkdownReader/HTMLTagReader roles.
type ParserRegistry struct{}

func NewParserRegistry() *ParserRegistry { return &ParserRegistry{} }

func (p *ParserRegistry) Supports(filePath string) bool {
	return nativeExtensions[strings.ToLower(filepath.Ext(filePath))]
}

// Parse extracts plain text from filePath for chunking/embedding.
func (p *ParserRegistry) Parse(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDocx(filePath)
	case ".xlsx":
		return parseExcel(filePath)
	case ".md":
		return parseMarkdown(filePath)
	case ".html":
		return parseHTML(filePath)
	default:
		// .txt, .csv, and the best-effort fallback extensions.
		raw, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", filePath, err)
		}
		return string(raw), nil
	}
}

func parsePDF(filePath string) (string, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := pdf.NewReader(f, fileInfo.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF %s: %w", filePath, err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func parseDocx(filePath string) (string, error) {
	doc, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to parse docx %s: %w", filePath, err)
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil
}

func parseExcel(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to parse xlsx %s: %w", filePath, err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		var sheetText strings.Builder
		for _, row := range rows {
			sheetText.WriteString(strings.Join(row, "\t"))
			sheetText.WriteString("\n")
		}
		parts = append(parts, sheetText.String())
	}
	return strings.Join(parts, "\n\n"), nil
}

func parseMarkdown(filePath string) (string, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := goldmark.Convert(raw, &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown %s: %w", filePath, err)
	}
	return stripTags(buf.String())
}

func parseHTML(filePath string) (string, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return stripTags(string(raw))
}

// stripTags reduces rendered HTML to plain text, grounded on the original's
// HTMLTagReader (BeautifulSoup get_text), using goquery in its place.
func stripTags(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return strings.TrimSpace(doc.Text()), nil
}
