package docindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a deterministic low-dimensional vector derived from
// text length, enough to exercise ranking without a real model.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text) % 97), 1, 0}, nil
}

func TestIngestDir_SkipsAlreadyIndexedFiles(t *testing.T) {
	base := t.TempDir()
	docsDir := filepath.Join(base, "docs")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "a.txt"), []byte("hello world"), 0o644))

	idx, err := Open(base, "Alice", fakeEmbedder{})
	require.NoError(t, err)

	n, err := idx.IngestDir(context.Background(), docsDir)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = idx.IngestDir(context.Background(), docsDir)
	require.NoError(t, err)
	require.Equal(t, 0, n, "second pass over the same directory should ingest nothing new")
}

func TestIngestDir_SkipsUnsupportedExtensions(t *testing.T) {
	base := t.TempDir()
	docsDir := filepath.Join(base, "docs")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "a.exe"), []byte("binary"), 0o644))

	idx, err := Open(base, "Bob", fakeEmbedder{})
	require.NoError(t, err)

	n, err := idx.IngestDir(context.Background(), docsDir)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestQuery_ReturnsIngestedPassage(t *testing.T) {
	base := t.TempDir()
	docsDir := filepath.Join(base, "docs")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "notes.txt"), []byte("the launch window opens in March"), 0o644))

	idx, err := Open(base, "Carol", fakeEmbedder{})
	require.NoError(t, err)

	n, err := idx.IngestDir(context.Background(), docsDir)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	passage, err := idx.Query(context.Background(), "when does the launch window open", 3)
	require.NoError(t, err)
	require.Contains(t, passage, "launch window")
}

func TestSplitChunks_OverlapsWindows(t *testing.T) {
	chunks := splitChunks("abcdefghij", 4, 2)
	require.Greater(t, len(chunks), 1)
	require.LessOrEqual(t, len([]rune(chunks[0])), 4)
}
