// Package agent implements the three composable Agent variants (C5):
// Vanilla, Think, and Memory, each adding to the previous. Grounded on
// iagents/agent.py's Agent/ThinkAgent/MemoryAgent class hierarchy, recast
// as Go composition (a single Agent type parameterized by Variant) rather
// than subclassing, the way the teacher composes reasoning strategies
// around one Agent struct (pkg/agent/agent.go) instead of one struct per
// strategy.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/iagents/core/docindex"
	"github.com/iagents/core/eventlog"
	"github.com/iagents/core/facts"
	"github.com/iagents/core/jsonfmt"
	"github.com/iagents/core/llms"
	"github.com/iagents/core/prompt"
	"github.com/iagents/core/store"
	"github.com/iagents/core/vecmemory"
)

// Role distinguishes the task-initiating agent from the receiving one
// (spec §3 "Agent: ... role flag (instructor|assistant)").
type Role int

const (
	Instructor Role = iota
	Assistant
)

func (r Role) String() string {
	if r == Instructor {
		return "instructor"
	}
	return "assistant"
}

// Error wraps a retrieval or plan-update failure, following the same typed-
// error idiom as store.Error and orchestrator.Error.
type Error struct {
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[agent:%s] %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[agent:%s] %s", e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Variant selects which behaviors an Agent composes, each one a strict
// refinement of the previous (spec §4.5).
type Variant int

const (
	Vanilla Variant = iota
	Think
	Memory
)

// PlanStatus tracks the Plan (InfoNav) state machine (spec §3).
type PlanStatus int

const (
	Draft PlanStatus = iota
	Marked
	Updating
)

// memo is a Retrieval Memo: the last query parameters and last rendered
// result for one retrieval channel, fed back to the LLM next turn so
// parameters evolve (spec §3 "Retrieval Memo").
type memo struct {
	params string
	result string
}

// Agent is one Master's personal agent for the lifetime of one
// Communication (or nested sub-Communication).
type Agent struct {
	Master  string
	Role    Role
	Variant Variant
	Task    string

	Backend     llms.Backend
	Store       *store.Store
	Assembler   *prompt.Assembler
	Reformatter *jsonfmt.Reformatter
	Log         *eventlog.Log
	Facts       *facts.Registry
	Stopwords   map[string]struct{}

	// DocIndex and VecMemory are nil unless the Memory variant has them
	// enabled (RAG mode / fuzzy memory configured), per spec §4.7.
	DocIndex  *docindex.Index
	VecMemory *vecmemory.Memory

	// ProfilePrompt is the optional segment-zero agent profile prompt
	// (users.system_prompt column), §11 supplemented feature.
	ProfilePrompt string

	plan       string
	planStatus PlanStatus

	currentMemo memo // "current-pair" channel
	crossMemo   memo // "cross-contact" channel
	faissMemo   memo // fuzzy-memory channel (Memory variant only)
}

// New constructs an Agent. Facts and the Memo/Plan state all start
// empty/DRAFT: callers build a fresh Agent per Communication, or per nested
// sub-Communication (spec §4.6 "independent: own Plan, own Registry, own
// History").
func New(master string, role Role, variant Variant, task string, backend llms.Backend, st *store.Store, assembler *prompt.Assembler, log *eventlog.Log, stopwords map[string]struct{}) *Agent {
	a := &Agent{
		Master:      master,
		Role:        role,
		Variant:     variant,
		Task:        task,
		Backend:     backend,
		Store:       st,
		Assembler:   assembler,
		Log:         log,
		Facts:       facts.New(),
		Stopwords:   stopwords,
		planStatus:  Draft,
		currentMemo: memo{params: "None", result: "None"},
		crossMemo:   memo{params: "None", result: "None"},
		faissMemo:   memo{params: "None", result: "None"},
	}
	a.Reformatter = jsonfmt.New(a.queryFunc(), assembler.Render, a.recordEvent, 5)
	return a
}

func (a *Agent) queryFunc() jsonfmt.Querier {
	return func(ctx context.Context, prompt string) (string, error) {
		return a.Backend.Query(ctx, prompt)
	}
}

func (a *Agent) recordEvent(instruction, query, response string) {
	if a.Log != nil {
		a.Log.Record(instruction, query, response)
	}
}

// PlanText returns the current Plan text, used by the orchestrator to
// build the consensus-conclusion prompt from both agents' final Plans.
func (a *Agent) PlanText() string {
	return a.plan
}

// CloneForMaster returns a fresh Agent sharing this Agent's configuration
// (backend, store, assembler, log, stopwords, variant, memory/doc-index
// wiring) but starting from an empty Plan/Fact Registry/Memo state under a
// new master name. Used to build the nested Communication's two agents
// during Multi-Party escalation (spec §4.6): each sub-Communication is
// independent, with its own Plan, Registry, and History, even when it
// reuses the escalating agent's own master.
func (a *Agent) CloneForMaster(master string) *Agent {
	clone := New(master, a.Role, a.Variant, a.Task, a.Backend, a.Store, a.Assembler, a.Log, a.Stopwords)
	clone.DocIndex = a.DocIndex
	clone.VecMemory = a.VecMemory
	clone.ProfilePrompt = a.ProfilePrompt
	return clone
}

// Query implements one agent turn: retrieve context, advance the Plan (for
// Think/Memory), assemble the prompt, and call the backend once to emit
// the next utterance (spec §4.5).
func (a *Agent) Query(ctx context.Context, contact string, dialogue []string) (string, error) {
	current, cross, err := a.retrieveContext(ctx, contact, dialogue)
	if err != nil {
		return "", err
	}

	params := prompt.Params{
		Master:             a.Master,
		Contact:            contact,
		Task:               a.Task,
		CurrentChatHistory: current,
		OtherChatHistory:   cross,
		AgentChatHistory:   dialogue,
		AgentProfilePrompt: a.ProfilePrompt,
	}

	var promptText string
	if a.Variant >= Think {
		if err := a.advancePlan(ctx, contact, dialogue); err != nil {
			return "", err
		}
		params.Plan = a.plan
		params.KnownFacts = a.Facts.RenderKnown()
		params.UnknownFacts = a.Facts.RenderUnknown()
		promptText = a.Assembler.AssembleWithPlan(params)
	} else {
		promptText = a.Assembler.Assemble(params)
	}

	response, err := a.Backend.Query(ctx, promptText)
	if err != nil {
		return "", fmt.Errorf("agent %s query failed: %w", a.Master, err)
	}
	a.recordEvent(fmt.Sprintf("[Query to generate message from %s to %s]", a.Master, contact), promptText, response)
	return response, nil
}

// Conclude asks the agent for a non-consensus conclusion (spec §4.6).
func (a *Agent) Conclude(ctx context.Context, task string, dialogue []string) (string, error) {
	text, err := a.Assembler.Render("conclusion", map[string]string{
		"task":              task,
		"agent_communication": strings.Join(dialogue, "\n"),
	})
	if err != nil {
		return "", err
	}
	response, err := a.Backend.Query(ctx, text)
	if err != nil {
		return "", err
	}
	a.recordEvent("[Conclusion]", text, response)
	return response, nil
}

// ConcludeConsensus asks the agent for a consensus conclusion, reconciling
// both agents' final Plans (spec §4.6).
func (a *Agent) ConcludeConsensus(ctx context.Context, task string, dialogue []string, instructorPlan, assistantPlan string) (string, error) {
	text, err := a.Assembler.Render("consensus_conclusion", map[string]string{
		"task":                task,
		"agent_communication": strings.Join(dialogue, "\n"),
		"instructor_plan":     instructorPlan,
		"assistant_plan":      assistantPlan,
	})
	if err != nil {
		return "", err
	}
	response, err := a.Backend.Query(ctx, text)
	if err != nil {
		return "", err
	}
	a.recordEvent("[Consensus conclusion]", text, response)
	return response, nil
}

// ChooseEscalationTarget implements the Multi-Party escalation's friend
// selection query (spec §4.6): picks a third-party contact from friends,
// excluding contact and self, or "" ("None") if none chosen / not a friend.
func (a *Agent) ChooseEscalationTarget(ctx context.Context, contact string, friends []string) (string, error) {
	text, err := a.Assembler.Render("raise_new_communication", map[string]string{
		"friend_list": strings.Join(friends, ", "),
		"contact":     contact,
	})
	if err != nil {
		return "", err
	}
	response, err := a.Backend.Query(ctx, text)
	if err != nil {
		return "", err
	}
	a.recordEvent("[Multi-Party escalation target]", text, response)

	choice := strings.TrimSpace(response)
	for _, f := range friends {
		if strings.EqualFold(f, choice) && !strings.EqualFold(f, contact) {
			return f, nil
		}
	}
	return "", nil
}
