package vecmemory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, Dimensions)
	for i, r := range text {
		v[i%Dimensions] += float32(r)
	}
	if len(text) == 0 {
		v[0] = 1
	}
	return v, nil
}

func TestOpen_NoFileYieldsEmptyResults(t *testing.T) {
	m, err := Open(filepath.Join(t.TempDir(), "missing.tsv"), "Alice", stubEmbedder{})
	require.NoError(t, err)

	dis, texts, err := m.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Empty(t, dis)
	require.Empty(t, texts)
}

func TestBuildAndQuery_FindsClosestMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Alice.tsv")
	ctx := context.Background()

	require.NoError(t, BuildTSV(ctx, path, stubEmbedder{}, []string{
		"the launch window opens in March",
		"bring an umbrella, it may rain",
	}))

	m, err := Open(path, "Alice", stubEmbedder{})
	require.NoError(t, err)

	dis, texts, err := m.Query(ctx, "the launch window opens in March", 1)
	require.NoError(t, err)
	require.Len(t, texts, 1)
	require.Len(t, dis, 1)
	require.Equal(t, "the launch window opens in March", texts[0])
}
