package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iagents/core/config"
	"github.com/iagents/core/prompt"
	"github.com/iagents/core/store"
)

type fakeBackend struct {
	responses []string
	calls     []string
	i         int
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

func TestVanillaAgent_QueryUsesDirectRetrieval(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.InsertChat(context.Background(), "Alice", "Bob", "hi bob", ""))

	backend := &fakeBackend{responses: []string{"hello Bob's agent"}}
	a := New("Alice", Instructor, Vanilla, "find a restaurant", backend, s, testAssembler(t), nil, nil)

	out, err := a.Query(context.Background(), "Bob", nil)
	require.NoError(t, err)
	require.Equal(t, "hello Bob's agent", out)
	require.Len(t, backend.calls, 1)
	require.Contains(t, backend.calls[0], "hi bob")
}

func TestThinkAgent_ProgressesPlanStatusAcrossTurns(t *testing.T) {
	s := testStore(t)
	backend := &fakeBackend{responses: []string{
		"1. find [cuisine]",     // INIT
		"1. find [cuisine]",     // MARK (bracket-annotated), same turn as INIT
		"utterance 1",           // generation after INIT+MARK
		`{"cuisine": "italian"}`, // UPDATE
		"utterance 2",           // generation after UPDATE
	}}
	a := New("Alice", Instructor, Think, "find a restaurant", backend, s, testAssembler(t), nil, map[string]struct{}{})

	// The first turn runs INIT and MARK back-to-back, reaching UPDATING
	// already by turn 2 (spec scenario S1 requires the UPDATE/merge step
	// to be reachable within two turns).
	require.Equal(t, Draft, a.planStatus)
	_, err := a.Query(context.Background(), "Bob", nil)
	require.NoError(t, err)
	require.Equal(t, Updating, a.planStatus)
	require.Contains(t, a.Facts.UnknownFacts(), "cuisine")

	_, err = a.Query(context.Background(), "Bob", nil)
	require.NoError(t, err)
	require.Equal(t, Updating, a.planStatus)
	require.NotContains(t, a.Facts.UnknownFacts(), "cuisine")
	require.Equal(t, "italian", a.Facts.KnownFacts()["cuisine"])
}

func TestChooseEscalationTarget_AcceptsFriendCaseInsensitive(t *testing.T) {
	s := testStore(t)
	backend := &fakeBackend{responses: []string{"carol"}}
	a := New("Alice", Instructor, Vanilla, "task", backend, s, testAssembler(t), nil, nil)

	target, err := a.ChooseEscalationTarget(context.Background(), "Bob", []string{"Carol", "Dave"})
	require.NoError(t, err)
	require.Equal(t, "Carol", target)
}

func TestChooseEscalationTarget_NoneWhenNotAFriend(t *testing.T) {
	s := testStore(t)
	backend := &fakeBackend{responses: []string{"Eve"}}
	a := New("Alice", Instructor, Vanilla, "task", backend, s, testAssembler(t), nil, nil)

	target, err := a.ChooseEscalationTarget(context.Background(), "Bob", []string{"Carol", "Dave"})
	require.NoError(t, err)
	require.Equal(t, "", target)
}

func TestConclude_ReturnsBackendResponse(t *testing.T) {
	s := testStore(t)
	backend := &fakeBackend{responses: []string{"the task is resolved"}}
	a := New("Alice", Instructor, Vanilla, "task", backend, s, testAssembler(t), nil, nil)

	out, err := a.Conclude(context.Background(), "task", []string{"from Alice's Agent to Bob's Agent: hi"})
	require.NoError(t, err)
	require.Equal(t, "the task is resolved", out)
}

func TestMemoryAgent_KeywordWindowedRetrieval(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertChat(ctx, "Alice", "Bob", "let's meet for sushi tonight", ""))
	require.NoError(t, s.InsertChat(ctx, "Alice", "Carol", "sushi places downtown are great", ""))

	backend := &fakeBackend{responses: []string{
		`{"keyword": "sushi", "window": 1, "limit": 10}`, // current-pair sql_react
		`{"keyword": "sushi", "window": 1, "limit": 10}`, // cross-contact sql_react
		"plan draft",                                     // Memory also composes Think's INIT step
		"plan draft marked",                              // ...and MARK, same turn
		"utterance",
	}}
	a := New("Alice", Instructor, Memory, "find sushi", backend, s, testAssembler(t), nil, map[string]struct{}{})

	out, err := a.Query(ctx, "Bob", nil)
	require.NoError(t, err)
	require.Equal(t, "utterance", out)
	require.Contains(t, a.currentMemo.result, "sushi")
}
