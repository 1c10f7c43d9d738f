// Package vecmemory implements the fuzzy (vector) keyword memory named in
// spec §4.3's Memory agent variant, replacing the original's FaissTool.
// Grounded on iagents/tool.py's FaissTool (TSV-backed, 256-dim embeddings,
// cosine similarity via normalized inner product, top-k nearest text spans)
// with faiss.IndexFlatIP replaced by chromem-go's in-memory collection
// search (pkg/vector/chromem.go's ChromemProvider pattern), since chromem-go
// already performs cosine similarity over pre-computed embeddings.
package vecmemory

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
)

// Dimensions matches FaissTool's IndexFlatIP(256): the original truncates or
// requests embeddings at this width so distinct memory rows stay comparable.
const Dimensions = 256

// Embedder is the capability vecmemory needs from a backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Memory is one master's fuzzy keyword memory, loaded from a TSV file of
// (embedding, text) pairs.
type Memory struct {
	master   string
	path     string
	embedder Embedder
	db       *chromem.DB
	exists   bool
}

// Open loads the memory file at path, mirroring FaissTool's constructor:
// when no file exists yet, Memory stays empty and Query always returns no
// results (the original's self.exist_memory = False branch).
func Open(path, master string, embedder Embedder) (*Memory, error) {
	m := &Memory{master: master, path: path, embedder: embedder, db: chromem.NewDB()}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return m, nil
	}

	rows, err := readTSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fuzzy memory file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return m, nil
	}

	ctx := context.Background()
	col, err := m.db.GetOrCreateCollection("memory", nil, identityEmbed)
	if err != nil {
		return nil, err
	}

	docs := make([]chromem.Document, 0, len(rows))
	for i, row := range rows {
		docs = append(docs, chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   row.text,
			Embedding: normalize(row.emb),
		})
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("failed to load fuzzy memory rows: %w", err)
	}

	m.exists = true
	return m, nil
}

func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vecmemory collections use pre-computed embeddings; embedding function should not be invoked")
}

// Query embeds text and returns the topk nearest (similarity, text) pairs,
// mirroring FaissTool.query's (ret_dis, ret_indices, ret_text) contract
// minus the index slice, which callers here have no use for.
func (m *Memory) Query(ctx context.Context, text string, topk int) ([]float32, []string, error) {
	if topk < 1 {
		topk = 1
	}
	if !m.exists {
		return nil, nil, nil
	}

	col, err := m.db.GetOrCreateCollection("memory", nil, identityEmbed)
	if err != nil {
		return nil, nil, err
	}

	if text == "" {
		text = "None"
	}
	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed fuzzy memory query: %w", err)
	}
	vector = normalize(vector)

	n := topk
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fuzzy memory search failed: %w", err)
	}

	dis := make([]float32, len(results))
	texts := make([]string, len(results))
	for i, r := range results {
		dis[i] = r.Similarity
		texts[i] = r.Content
	}
	return dis, texts, nil
}

type memoryRow struct {
	emb  []float32
	text string
}

// readTSV parses the memory file format written by the original's pandas
// pipeline: a header line followed by tab-separated "emb\ttext" rows, where
// emb is a bracketed comma-separated float list, e.g. "[0.1,0.2,...]".
func readTSV(path string) ([]memoryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []memoryRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue // header
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		emb, err := parseEmbedding(parts[0])
		if err != nil {
			return nil, err
		}
		rows = append(rows, memoryRow{emb: emb, text: parts[1]})
	}
	return rows, scanner.Err()
}

func parseEmbedding(field string) ([]float32, error) {
	field = strings.TrimSpace(field)
	field = strings.TrimPrefix(field, "[")
	field = strings.TrimSuffix(field, "]")
	if field == "" {
		return nil, nil
	}
	parts := strings.Split(field, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid embedding value %q: %w", p, err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

// normalize L2-normalizes v, matching the original's
// emb_memory /= np.linalg.norm(emb_memory, axis=1) so inner product search
// behaves as cosine similarity.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
