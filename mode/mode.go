// Package mode implements the Mode Factory (C7): given a configured
// backend, store, and prompt assembler, build the pair of Agents and the
// Communication appropriate to the configured mode ("Base" -> Think agents
// with direct SQL retrieval, "RAG" -> Memory agents with keyword-windowed
// retrieval plus the document index and fuzzy vector memory), and
// optionally rewrite the raw task text into natural first-person phrasing
// before either agent sees it.
//
// Grounded on iagents/mode.py's Mode class, recast the way the teacher's
// component.ComponentManager turns one global config into the concrete
// collaborators a run needs, narrowed to the two collaborators this engine
// actually has (an LLM backend and a relational store) since tool/plugin/
// multi-provider registries are out of scope (spec Non-goals).
package mode

import (
	"context"
	"fmt"
	"strings"

	"github.com/iagents/core/agent"
	"github.com/iagents/core/config"
	"github.com/iagents/core/docindex"
	"github.com/iagents/core/eventlog"
	"github.com/iagents/core/llms"
	"github.com/iagents/core/orchestrator"
	"github.com/iagents/core/prompt"
	"github.com/iagents/core/store"
	"github.com/iagents/core/vecmemory"
)

// Factory builds the Agent pair and Communication for one configured mode.
type Factory struct {
	cfg       *config.Config
	backend   llms.Backend
	store     *store.Store
	assembler *prompt.Assembler
	log       *eventlog.Log
	stopwords map[string]struct{}

	// docIndexes and vecMemories are keyed by master name and wired in only
	// under RAG mode (spec §4.7); both are nil/absent under Base. Each
	// master's document/vector index is its own (iagents/agent.py:346-354
	// keys FaissTool/LlamaIndexer by self.master), never shared between the
	// instructor and assistant.
	docIndexes  map[string]*docindex.Index
	vecMemories map[string]*vecmemory.Memory
}

// New constructs a Factory. docIndexes/vecMemories may be nil or missing
// entries for a given master; they are consulted only when
// cfg.Mode.Mode == "RAG", and a missing entry simply leaves that agent's
// DocIndex/VecMemory nil.
func New(cfg *config.Config, backend llms.Backend, st *store.Store, assembler *prompt.Assembler, log *eventlog.Log, stopwords map[string]struct{}, docIndexes map[string]*docindex.Index, vecMemories map[string]*vecmemory.Memory) *Factory {
	return &Factory{
		cfg:         cfg,
		backend:     backend,
		store:       st,
		assembler:   assembler,
		log:         log,
		stopwords:   stopwords,
		docIndexes:  docIndexes,
		vecMemories: vecMemories,
	}
}

func (f *Factory) variant() agent.Variant {
	switch f.cfg.Mode.Mode {
	case "RAG":
		return agent.Memory
	default: // "Base"
		return agent.Think
	}
}

// RewriteTask rewrites the raw, third-person task text into a natural
// first-person task posed from sender to receiver, when the agent config's
// rewrite_prompt flag is enabled (spec §4.7 "Task rewrite"). Returns the
// original task unchanged when the flag is off.
func (f *Factory) RewriteTask(ctx context.Context, sender, receiver, task string) (string, error) {
	if !f.cfg.Agent.RewritePrompt {
		return task, nil
	}

	text, err := f.assembler.Render("rewrite_task", map[string]string{
		"master":  sender,
		"contact": receiver,
		"task":    task,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render rewrite_task template: %w", err)
	}

	rewritten, err := f.backend.Query(ctx, text)
	if err != nil {
		return "", fmt.Errorf("task rewrite query failed: %w", err)
	}
	rewritten = strings.TrimSpace(rewritten)
	if f.log != nil {
		f.log.LLMCall("[rewrite task]", text, rewritten)
	}
	if rewritten == "" {
		return task, nil
	}
	return rewritten, nil
}

// BuildAgents constructs the instructor/assistant pair for task, wiring each
// agent's own document index and vector memory (keyed by its master, never
// the other side's) only under RAG mode.
func (f *Factory) BuildAgents(sender, receiver, task string) (instructor, assistant *agent.Agent) {
	variant := f.variant()

	instructor = agent.New(sender, agent.Instructor, variant, task, f.backend, f.store, f.assembler, f.log, f.stopwords)
	assistant = agent.New(receiver, agent.Assistant, variant, task, f.backend, f.store, f.assembler, f.log, f.stopwords)

	if variant == agent.Memory {
		instructor.DocIndex = f.docIndexes[sender]
		instructor.VecMemory = f.vecMemories[sender]
		assistant.DocIndex = f.docIndexes[receiver]
		assistant.VecMemory = f.vecMemories[receiver]
	}
	return instructor, assistant
}

// BuildCommunication constructs the Communication for instructor/assistant
// under this Factory's mode: consensus conclusion always enabled (spec
// §4.7, matching Mode.get_communication's is_consensus_conclusion=True for
// both Base and RAG), offline/online and Multi-Party left to the caller.
func (f *Factory) BuildCommunication(instructor, assistant *agent.Agent, offline, multiParty bool) (*orchestrator.Communication, error) {
	return orchestrator.New(instructor, assistant, f.cfg.Agent.MaxCommunicationTurns, f.store, f.log,
		orchestrator.WithConsensus(true),
		orchestrator.WithOffline(offline),
		orchestrator.WithMultiParty(multiParty),
	)
}
