package mode

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iagents/core/agent"
	"github.com/iagents/core/config"
	"github.com/iagents/core/prompt"
	"github.com/iagents/core/store"
)

type fakeBackend struct {
	responses []string
	i         int
	calls     []string
}

func (f *fakeBackend) Query(ctx context.Context, p string) (string, error) {
	f.calls = append(f.calls, p)
	if f.i >= len(f.responses) {
		return "", nil
	}
	r := f.responses[f.i]
	f.i++
	return r, nil
}
func (f *fakeBackend) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (f *fakeBackend) ModelName() string                                        { return "fake" }
func (f *fakeBackend) MaxCompletionTokens() int                                 { return 512 }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := &config.StoreConfig{Dialect: "sqlite", Database: ":memory:", PoolSize: 5}
	cfg.SetDefaults()
	s, err := store.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testAssembler(t *testing.T) *prompt.Assembler {
	t.Helper()
	a, err := prompt.Load(filepath.Join("..", "prompts"))
	require.NoError(t, err)
	return a
}

func baseConfig(modeName string) *config.Config {
	cfg := &config.Config{}
	cfg.Mode.Mode = modeName
	cfg.SetDefaults()
	return cfg
}

func TestBuildAgents_BaseModeUsesThinkVariantWithoutMemoryWiring(t *testing.T) {
	f := New(baseConfig("Base"), &fakeBackend{}, testStore(t), testAssembler(t), nil, nil, nil, nil)
	instructor, assistant := f.BuildAgents("Alice", "Bob", "find a plumber")

	require.Equal(t, agent.Think, instructor.Variant)
	require.Equal(t, agent.Think, assistant.Variant)
	require.Nil(t, instructor.DocIndex)
	require.Nil(t, instructor.VecMemory)
}

func TestBuildAgents_RAGModeUsesMemoryVariant(t *testing.T) {
	f := New(baseConfig("RAG"), &fakeBackend{}, testStore(t), testAssembler(t), nil, nil, nil, nil)
	instructor, assistant := f.BuildAgents("Alice", "Bob", "find a plumber")

	require.Equal(t, agent.Memory, instructor.Variant)
	require.Equal(t, agent.Memory, assistant.Variant)
}

func TestRewriteTask_NoOpWhenDisabled(t *testing.T) {
	cfg := baseConfig("Base")
	cfg.Agent.RewritePrompt = false
	backend := &fakeBackend{responses: []string{"should never be called"}}
	f := New(cfg, backend, testStore(t), testAssembler(t), nil, nil, nil, nil)

	out, err := f.RewriteTask(context.Background(), "Alice", "Bob", "ask Bob where the keys are")
	require.NoError(t, err)
	require.Equal(t, "ask Bob where the keys are", out)
	require.Empty(t, backend.calls)
}

func TestRewriteTask_RewritesWhenEnabled(t *testing.T) {
	cfg := baseConfig("Base")
	cfg.Agent.RewritePrompt = true
	backend := &fakeBackend{responses: []string{"Where did you leave the keys?"}}
	f := New(cfg, backend, testStore(t), testAssembler(t), nil, nil, nil, nil)

	out, err := f.RewriteTask(context.Background(), "Alice", "Bob", "ask Bob where the keys are")
	require.NoError(t, err)
	require.Equal(t, "Where did you leave the keys?", out)
	require.Len(t, backend.calls, 1)
	require.Contains(t, backend.calls[0], "Alice")
}

func TestBuildCommunication_BuildsForAgentPair(t *testing.T) {
	cfg := baseConfig("Base")
	f := New(cfg, &fakeBackend{}, testStore(t), testAssembler(t), nil, nil, nil, nil)
	instructor, assistant := f.BuildAgents("Alice", "Bob", "task")

	comm, err := f.BuildCommunication(instructor, assistant, false, false)
	require.NoError(t, err)
	require.NotNil(t, comm)
}
