package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
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
}

func (f *fakeBackend) Query(ctx context.Context, p string) (string, error) {
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

func TestVanillaCommunication_RunsBoundedRoundsAndConcludes(t *testing.T) {
	s := testStore(t)
	task := "plan a birthday dinner"

	instructorBackend := &fakeBackend{responses: []string{"where should we go?", "the conclusion: a dinner was planned"}}
	assistantBackend := &fakeBackend{responses: []string{"how about sushi?"}}

	instructor := agent.New("Alice", agent.Instructor, agent.Vanilla, task, instructorBackend, s, testAssembler(t), nil, nil)
	assistant := agent.New("Bob", agent.Assistant, agent.Vanilla, task, assistantBackend, s, testAssembler(t), nil, nil)

	comm, err := New(instructor, assistant, 1, s, nil)
	require.NoError(t, err)

	conclusion, err := comm.Communicate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "the conclusion: a dinner was planned", conclusion)

	require.Len(t, comm.history, 3) // broadcast + instructor turn + assistant turn
	require.Contains(t, comm.history[0], "Trigger Agents Communication")
	require.Contains(t, comm.history[1], "from Alice's Agent to Bob's Agent: where should we go?")
	require.Contains(t, comm.history[2], "from Bob's Agent to Alice's Agent: how about sushi?")
}

func TestNew_RejectsMismatchedTasks(t *testing.T) {
	s := testStore(t)
	instructor := agent.New("Alice", agent.Instructor, agent.Vanilla, "task A", &fakeBackend{}, s, testAssembler(t), nil, nil)
	assistant := agent.New("Bob", agent.Assistant, agent.Vanilla, "task B", &fakeBackend{}, s, testAssembler(t), nil, nil)

	_, err := New(instructor, assistant, 1, s, nil)
	require.Error(t, err)
}

func TestOfflineCommunication_NeverWritesChatStore(t *testing.T) {
	s := testStore(t)
	task := "find a plumber"

	instructor := agent.New("Alice", agent.Instructor, agent.Vanilla, task,
		&fakeBackend{responses: []string{"any leads?", "resolved"}}, s, testAssembler(t), nil, nil)
	assistant := agent.New("Bob", agent.Assistant, agent.Vanilla, task,
		&fakeBackend{responses: []string{"try Joe's"}}, s, testAssembler(t), nil, nil)

	comm, err := New(instructor, assistant, 1, s, nil, WithOffline(true))
	require.NoError(t, err)

	_, err = comm.Communicate(context.Background())
	require.NoError(t, err)

	rows, err := s.CurrentPairHistory(context.Background(), "Alice's Agent", "Bob's Agent", 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestMultiPartyCommunication_NoFriendsFallsBackToNoneAndStillRunsRoundZero(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	task := "organize a surprise party"

	// Neither Alice nor Bob has any seeded friendship row, so
	// ChooseEscalationTarget must reject any backend answer and fall back
	// to "None" for both escalators, with no nested Communicate() call
	// (and so no extra backend queries consumed for a nested exchange).
	// Round 0 still runs its own instructor/assistant exchange in addition
	// to escalation (spec invariant #1, scenario S5): with max_rounds=1,
	// the outer history holds 5 entries (broadcast + 2 escalation
	// summaries + 2 round-0 utterances).
	instructor := agent.New("Alice", agent.Instructor, agent.Vanilla, task,
		&fakeBackend{responses: []string{"carol", "let's ask around", "final answer: party planned"}}, s, testAssembler(t), nil, nil)
	assistant := agent.New("Bob", agent.Assistant, agent.Vanilla, task,
		&fakeBackend{responses: []string{"dave", "sounds good"}}, s, testAssembler(t), nil, nil)

	comm, err := New(instructor, assistant, 1, s, nil, WithMultiParty(true))
	require.NoError(t, err)

	conclusion, err := comm.Communicate(ctx)
	require.NoError(t, err)
	require.Equal(t, "final answer: party planned", conclusion)

	require.Len(t, comm.history, 5) // broadcast + 2 escalation summaries + 2 round-0 utterances
	joined := strings.Join(comm.history, "\n")
	require.Equal(t, 2, strings.Count(joined, "Discussion with None's Agents: None"))
	require.Contains(t, comm.history[3], "from Alice's Agent to Bob's Agent: let's ask around")
	require.Contains(t, comm.history[4], "from Bob's Agent to Alice's Agent: sounds good")
}

func TestWithPrependedHistory_SeedsDialogueBeforeRound0(t *testing.T) {
	s := testStore(t)
	task := "resolve a billing dispute"
	instructor := agent.New("Alice", agent.Instructor, agent.Vanilla, task, &fakeBackend{responses: []string{"turn", "done"}}, s, testAssembler(t), nil, nil)
	assistant := agent.New("Bob", agent.Assistant, agent.Vanilla, task, &fakeBackend{responses: []string{"ack"}}, s, testAssembler(t), nil, nil)

	seed := []string{"from Alice's Agent to Bob's Agent: earlier prior-batch line"}
	comm, err := New(instructor, assistant, 1, s, nil, WithPrependedHistory(seed))
	require.NoError(t, err)
	require.Equal(t, seed[0], comm.history[0])

	_, err = comm.Communicate(context.Background())
	require.NoError(t, err)
	require.Contains(t, comm.history[0], "earlier prior-batch line")
}
