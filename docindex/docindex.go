// Package docindex implements the Document Index named in spec §6 and
// retrieval family 6 of Context Retrieval (C3): per-master, incremental,
// persisted document retrieval. Grounded on iagents/llamaindex.py's
// LlamaIndexer (per-user directory, persisted index, indexed-files record,
// incremental update_index_with_new_files), with llama_index's pluggable
// file readers replaced by hector's native PDF/DOCX/XLSX parsers
// (pkg/rag/native_parsers.go) plus goldmark (Markdown) and goquery (HTML),
// and the vector store itself replaced by chromem-go (pkg/vector/chromem.go)
// in place of llama_index's VectorStoreIndex.
package docindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Embedder is the capability docindex needs from a backend: turning text
// into a vector. Satisfied by llms.Backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is one master's persisted document index. Ingestion is serialized
// per master (spec §5); queries do not block each other or ingestion,
// since chromem-go's collection reads are safe for concurrent use while a
// single mutex here only guards the indexed-files record and the upsert
// sequence, not read-side Query calls.
type Index struct {
	master      string
	baseDir     string
	db          *chromem.DB
	collection  string
	embedder    Embedder
	parsers     *ParserRegistry
	ingestMu    sync.Mutex
}

// Open opens or creates the persisted index for master under baseDir
// (one directory per master, per spec §6).
func Open(baseDir, master string, embedder Embedder) (*Index, error) {
	dir := filepath.Join(baseDir, master, "storage")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory for %s: %w", master, err)
	}

	dbPath := filepath.Join(dir, "vectors.gob.gz")
	db := chromem.NewDB()
	if _, statErr := os.Stat(dbPath); statErr == nil {
		// dbPath is the single file persist() exports to; load it back.
		if err := db.Import(dbPath, ""); err != nil {
			db = chromem.NewDB()
		}
	}

	return &Index{
		master:     master,
		baseDir:    baseDir,
		db:         db,
		collection: "docs",
		embedder:   embedder,
		parsers:    NewParserRegistry(),
	}, nil
}

func (idx *Index) dbPath() string {
	return filepath.Join(idx.baseDir, idx.master, "storage", "vectors.gob.gz")
}

func (idx *Index) persist() error {
	return idx.db.Export(idx.dbPath(), true, "")
}

func (idx *Index) getCollection(ctx context.Context) (*chromem.Collection, error) {
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("docindex collections use pre-computed embeddings; embedding function should not be invoked")
	}
	return idx.db.GetOrCreateCollection(idx.collection, nil, identityEmbed)
}

// Query implements retrieval family 6: a natural-language query returns a
// concatenated text passage drawn from master's indexed documents.
func (idx *Index) Query(ctx context.Context, queryText string, topK int) (string, error) {
	if topK <= 0 {
		topK = 5
	}

	vector, err := idx.embedder.Embed(ctx, queryText)
	if err != nil {
		return "", fmt.Errorf("failed to embed document query: %w", err)
	}

	col, err := idx.getCollection(ctx)
	if err != nil {
		return "", err
	}

	n := topK
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return "", nil
	}

	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return "", fmt.Errorf("document index search failed: %w", err)
	}

	passage := ""
	for i, r := range results {
		if i > 0 {
			passage += "\n\n"
		}
		passage += r.Content
	}
	return passage, nil
}
