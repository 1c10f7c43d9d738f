// Package orchestrator implements the Communication Orchestrator (C6): the
// state machine driving one bounded dialogue between an instructor Agent
// and an assistant Agent. Grounded on iagents/communication.py's
// BaseCommunication/VanillaCommunication/MultiPartyCommunication/
// OfflineCommunication class hierarchy, recast as one configurable
// Communication type (functional options) rather than a subclass per mode,
// the way the teacher's team package configures one Team type instead of
// one struct per workflow shape (team/team.go).
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iagents/core/agent"
	"github.com/iagents/core/eventlog"
	"github.com/iagents/core/store"
)

// Error reports a failure of the communication state machine.
type Error struct {
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orchestrator: %s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("orchestrator: %s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Communication holds one bounded dialogue session (spec §3 "Communication").
type Communication struct {
	ID         string
	instructor *agent.Agent
	assistant  *agent.Agent
	maxRounds  int
	consensus  bool
	multiParty bool
	offline    bool

	store *store.Store
	log   *eventlog.Log

	task    string
	history []string // Dialogue History, spec §3
}

// Option configures a Communication at construction.
type Option func(*Communication)

// WithConsensus toggles the consensus conclusion (spec §4.6).
func WithConsensus(on bool) Option { return func(c *Communication) { c.consensus = on } }

// WithMultiParty toggles Multi-Party escalation at round 0 (spec §4.6).
func WithMultiParty(on bool) Option { return func(c *Communication) { c.multiParty = on } }

// WithOffline makes the Communication write only to the event log, never to
// the chat store (spec §4.6 "Offline mode").
func WithOffline(on bool) Option { return func(c *Communication) { c.offline = on } }

// WithPrependedHistory seeds the Dialogue History before round 0 runs,
// resolving spec §9's OfflineLoadMultiPartyCommunication open question
// (SPEC_FULL §11): a caller restoring a partially-run batch evaluation can
// hand the prior utterances back in.
func WithPrependedHistory(msgs []string) Option {
	return func(c *Communication) { c.history = append(c.history, msgs...) }
}

// New constructs a Communication. instructor and assistant must share the
// same Task text (spec §3's BaseCommunication assertion).
func New(instructor, assistant *agent.Agent, maxRounds int, st *store.Store, log *eventlog.Log, opts ...Option) (*Communication, error) {
	if instructor.Task != assistant.Task {
		return nil, &Error{Stage: "init", Message: "instructor and assistant tasks must match"}
	}

	c := &Communication{
		ID:         uuid.NewString(),
		instructor: instructor,
		assistant:  assistant,
		maxRounds:  maxRounds,
		store:      st,
		log:        log,
		task:       instructor.Task,
		history:    []string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Communication) note(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Note(fmt.Sprintf(format, args...))
	}
}

// sendMessage records one utterance: to the chat store when online, to the
// event log only when offline (spec §4.6 "Offline mode").
func (c *Communication) sendMessage(ctx context.Context, senderMaster, receiverMaster, message string) error {
	sender := senderMaster + "'s Agent"
	receiver := receiverMaster + "'s Agent"

	if c.offline {
		c.note("from %s to %s: %s", sender, receiver, message)
		return nil
	}
	if err := c.store.InsertChat(ctx, sender, receiver, message, ""); err != nil {
		return &Error{Stage: "send_message", Message: fmt.Sprintf("from %s to %s", sender, receiver), Err: err}
	}
	return nil
}

func formatUtterance(senderMaster, receiverMaster, message string) string {
	return fmt.Sprintf("from %s's Agent to %s's Agent: %s", senderMaster, receiverMaster, message)
}

// Communicate runs the bounded state machine INIT -> BROADCAST_TASK ->
// (ROUND* -> CONCLUDE) -> TERMINAL and returns the conclusion text.
func (c *Communication) Communicate(ctx context.Context) (string, error) {
	c.note("[Communication %s started]", c.ID)

	for round := 0; round < c.maxRounds; round++ {
		c.note("[Comm Round: %d]", round)

		if round == 0 {
			if err := c.broadcastTask(ctx); err != nil {
				return "", err
			}
			if c.multiParty {
				if err := c.runEscalationRound(ctx); err != nil {
					return "", err
				}
			}
		}

		if err := c.runRound(ctx); err != nil {
			return "", err
		}
	}

	conclusion, err := c.conclude(ctx)
	if err != nil {
		return "", err
	}
	c.note("[conclusion]:\n%s", conclusion)
	return conclusion, nil
}

// broadcastTask appends the synthetic task-announcement utterance, the
// only message where sender == receiver is allowed (spec §4.6).
func (c *Communication) broadcastTask(ctx context.Context) error {
	message := "[Trigger Agents Communication for Task Solving, Task Prompt]: " + c.task
	c.history = append(c.history, formatUtterance(c.instructor.Master, c.assistant.Master, message))
	return c.sendMessage(ctx, c.instructor.Master, c.assistant.Master, message)
}

// runRound is one ROUND: instructor utterance, then assistant utterance,
// each fully appended before the other agent's next turn begins (spec §4.6
// "Turn-taking").
func (c *Communication) runRound(ctx context.Context) error {
	instructorResponse, err := c.instructor.Query(ctx, c.assistant.Master, c.history)
	if err != nil {
		return &Error{Stage: "round", Message: "instructor query failed", Err: err}
	}
	c.history = append(c.history, formatUtterance(c.instructor.Master, c.assistant.Master, instructorResponse))
	if err := c.sendMessage(ctx, c.instructor.Master, c.assistant.Master, instructorResponse); err != nil {
		return err
	}

	assistantResponse, err := c.assistant.Query(ctx, c.instructor.Master, c.history)
	if err != nil {
		return &Error{Stage: "round", Message: "assistant query failed", Err: err}
	}
	c.history = append(c.history, formatUtterance(c.assistant.Master, c.instructor.Master, assistantResponse))
	return c.sendMessage(ctx, c.assistant.Master, c.instructor.Master, assistantResponse)
}

// conclude asks for the Communication's conclusion, via the consensus
// template when enabled (spec §4.6 "Conclusion").
func (c *Communication) conclude(ctx context.Context) (string, error) {
	if c.consensus {
		conclusion, err := c.instructor.ConcludeConsensus(ctx, c.task, c.history, c.instructor.PlanText(), c.assistant.PlanText())
		if err != nil {
			return "unable to conclude", &Error{Stage: "conclude", Message: "consensus conclusion failed", Err: err}
		}
		return conclusion, nil
	}
	conclusion, err := c.instructor.Conclude(ctx, c.task, c.history)
	if err != nil {
		return "unable to conclude", &Error{Stage: "conclude", Message: "conclusion failed", Err: err}
	}
	return conclusion, nil
}
