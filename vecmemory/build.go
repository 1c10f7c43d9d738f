package vecmemory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// BuildTSV embeds each text span and writes the memory file format Open
// reads, for offline or first-run memory generation (the original's
// "TODO: general memory generation script").
func BuildTSV(ctx context.Context, path string, embedder Embedder, texts []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create fuzzy memory file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintln(w, "emb\ttext"); err != nil {
		return err
	}

	for _, text := range texts {
		vector, err := embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed memory text: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", formatEmbedding(vector), strings.ReplaceAll(text, "\n", " ")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func formatEmbedding(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
