package docindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/philippgille/chromem-go"
)

const (
	chunkSize    = 1000 // runes per chunk, grounded on llama_index's default SentenceSplitter chunk_size
	chunkOverlap = 200
)

// indexedFilesName mirrors llamaindex.py's on-disk record of which source
// files have already been folded into the persisted index, so re-running
// ingestion over a directory only embeds what's new.
const indexedFilesName = "indexed_files.txt"

// IngestDir walks dir and ingests every file whose extension docindex
// supports and that is not already recorded in the indexed-files record,
// implementing llamaindex.py's update_index_with_new_files. Ingestion for a
// single master is serialized: callers from concurrent agent turns for the
// same master will block on each other, matching spec §5's single-writer
// requirement for per-master index state.
func (idx *Index) IngestDir(ctx context.Context, dir string) (int, error) {
	idx.ingestMu.Lock()
	defer idx.ingestMu.Unlock()

	already, err := idx.loadIndexedFiles()
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read document directory %s: %w", dir, err)
	}

	col, err := idx.getCollection(ctx)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if already[name] {
			continue
		}
		if !idx.parsers.Supports(name) {
			continue
		}

		path := filepath.Join(dir, name)
		text, err := idx.parsers.Parse(path)
		if err != nil {
			return ingested, fmt.Errorf("failed to parse document %s: %w", name, err)
		}
		if strings.TrimSpace(text) == "" {
			already[name] = true
			continue
		}

		if err := idx.upsertChunks(ctx, col, name, text); err != nil {
			return ingested, fmt.Errorf("failed to index document %s: %w", name, err)
		}

		already[name] = true
		ingested++
	}

	if ingested > 0 {
		if err := idx.persist(); err != nil {
			return ingested, fmt.Errorf("failed to persist document index for %s: %w", idx.master, err)
		}
	}
	if err := idx.saveIndexedFiles(already); err != nil {
		return ingested, err
	}
	return ingested, nil
}

func (idx *Index) upsertChunks(ctx context.Context, col *chromem.Collection, sourceFile, text string) error {
	chunks := splitChunks(text, chunkSize, chunkOverlap)
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := idx.embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d of %s: %w", i, sourceFile, err)
		}
		docs = append(docs, chromem.Document{
			ID:        fmt.Sprintf("%s#%d", sourceFile, i),
			Content:   chunk,
			Embedding: vector,
			Metadata:  map[string]string{"source": sourceFile},
		})
	}
	if len(docs) == 0 {
		return nil
	}
	return col.AddDocuments(ctx, docs, 1)
}

// splitChunks breaks text into overlapping rune windows, grounded on llama_index's
// SentenceSplitter defaults (chunk_size/chunk_overlap in tokens, approximated
// here in runes since docindex has no tokenizer dependency of its own).
func splitChunks(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	step := size - overlap
	if step <= 0 {
		step = size
	}
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func (idx *Index) indexedFilesPath() string {
	return filepath.Join(idx.baseDir, idx.master, indexedFilesName)
}

func (idx *Index) loadIndexedFiles() (map[string]bool, error) {
	raw, err := os.ReadFile(idx.indexedFilesPath())
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read indexed-files record for %s: %w", idx.master, err)
	}

	files := map[string]bool{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files[line] = true
		}
	}
	return files, nil
}

func (idx *Index) saveIndexedFiles(files map[string]bool) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	tmp := idx.indexedFilesPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(names, "\n")), 0o644); err != nil {
		return fmt.Errorf("failed to write indexed-files record for %s: %w", idx.master, err)
	}
	return os.Rename(tmp, idx.indexedFilesPath())
}
