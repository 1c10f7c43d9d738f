// Package llms implements the LLM Backend Adapter (C8): a uniform
// query(prompt) -> text contract over multiple hosted chat models and one
// local model, sharing retry/backoff and completion-budget computation.
// Grounded on hector's llms package (registry.go, anthropic.go, openai.go,
// ollama.go), narrowed to the single-shot text contract the engine needs —
// no tool-calling, no streaming (both out of scope).
package llms

import (
	"context"
	"fmt"
)

// Backend is the capability interface every adapter implements. It is the
// only thing the rest of the engine depends on; adapter selection is purely
// by config string key via the Registry.
type Backend interface {
	// Query sends prompt to the model and returns its text completion.
	Query(ctx context.Context, prompt string) (string, error)

	// Embed returns a vector embedding for text, used by docindex and
	// vecmemory. Not every provider needs distinct embedding infrastructure;
	// ollama and openai expose real embedding endpoints, anthropic does not
	// and returns an error (callers must pick an embedding-capable backend
	// for those components).
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the configured model name, used in event log rows.
	ModelName() string

	// MaxCompletionTokens returns the per-model completion ceiling.
	MaxCompletionTokens() int
}

// Error wraps a backend failure with enough context to route it to the
// caller's error policy (spec §7: transient backend failure -> FATAL_BACKEND
// after retries exhausted).
type Error struct {
	Provider  string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Provider, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Provider, e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider, op, msg string, err error) *Error {
	return &Error{Provider: provider, Operation: op, Message: msg, Err: err}
}
