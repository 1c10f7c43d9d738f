package jsonfmt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReform_AlreadyValidSkipsQuery(t *testing.T) {
	called := false
	r := New(
		func(ctx context.Context, prompt string) (string, error) {
			called = true
			return "", nil
		},
		func(name string, vars map[string]string) (string, error) { return "", nil },
		nil,
		5,
	)

	schema := map[string]interface{}{"keyword": "ring", "window": float64(3), "limit": float64(10)}
	out := r.Reform(context.Background(), `{"keyword":"ring","window":3,"limit":10}`, schema)

	assert.False(t, called)
	assert.JSONEq(t, `{"keyword":"ring","window":3,"limit":10}`, out)
}

func TestReform_StripsCodeFencesAndMissingQuotes(t *testing.T) {
	// Simulates S2: the input is fenced JSON with unquoted keys and values.
	// Either json-repair fixes it structurally, or the first reformat retry
	// takes the stub backend's well-formed reply.
	r := New(
		func(ctx context.Context, prompt string) (string, error) {
			return `{"keyword": "ring", "window": 3, "limit": 10}`, nil
		},
		func(name string, vars map[string]string) (string, error) { return "reformat: " + vars["text"], nil },
		nil,
		5,
	)

	schema := map[string]interface{}{"keyword": "x", "window": float64(0), "limit": float64(0)}
	out := r.Reform(context.Background(), "```json\n{keyword: ring, window: 3, limit: 10}\n```", schema)

	assert.JSONEq(t, `{"keyword":"ring","window":3,"limit":10}`, out)
}

func TestReform_ExhaustionDegradesToSchema(t *testing.T) {
	r := New(
		func(ctx context.Context, prompt string) (string, error) { return "still not json", nil },
		func(name string, vars map[string]string) (string, error) { return "x", nil },
		nil,
		2,
	)

	schema := map[string]interface{}{"a": "b"}
	out := r.Reform(context.Background(), "garbage", schema)
	assert.JSONEq(t, `{"a":"b"}`, out)
}

func TestReformFree_EmptyInputReturnsEmptyObject(t *testing.T) {
	r := New(nil, nil, nil, 5)
	out := r.ReformFree(context.Background(), "")
	require.Equal(t, "{}", out)
}
