package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iagents/core/jsonfmt"
)

func TestSetUnknownFromPlan_ExtractsBracketTokens(t *testing.T) {
	r := New()
	r.SetUnknownFromPlan("Find [book_title] and [year] to answer the question.")

	assert.ElementsMatch(t, []string{"book_title", "year"}, r.UnknownFacts())
	assert.True(t, r.Invariant())
}

func TestMergeUpdates_ResolvesSlotAndMaintainsInvariant(t *testing.T) {
	r := New()
	r.SetUnknownFromPlan("Step 1: learn [book_title].")

	reformatter := jsonfmt.New(
		func(ctx context.Context, prompt string) (string, error) { return "{}", nil },
		func(name string, vars map[string]string) (string, error) { return "", nil },
		nil,
		5,
	)

	updated := r.MergeUpdates(context.Background(), reformatter, "Step 1: learn [book_title].", `{"book_title": "Dune"}`)

	require.Contains(t, updated, "[book_title](Solved, which is Dune)")
	assert.Empty(t, r.UnknownFacts())
	assert.Equal(t, "Dune", r.KnownFacts()["book_title"])
	assert.True(t, r.Invariant())
}

func TestMergeUpdates_TentativeUnknownValueStaysUnknown(t *testing.T) {
	r := New()
	r.SetUnknownFromPlan("Step 1: learn [year].")

	reformatter := jsonfmt.New(nil, nil, nil, 5)
	updated := r.MergeUpdates(context.Background(), reformatter, "Step 1: learn [year].", `{"year": "still unknown"}`)

	require.Contains(t, updated, "[year](Solved, which is still unknown)")
	assert.Contains(t, r.UnknownFacts(), "year")
	assert.True(t, r.Invariant())
}

func TestMergeUpdates_NoJSONKeepsPlanUnchanged(t *testing.T) {
	r := New()
	r.SetUnknownFromPlan("Step 1: learn [year].")

	reformatter := jsonfmt.New(
		func(ctx context.Context, prompt string) (string, error) { return "not json at all", nil },
		func(name string, vars map[string]string) (string, error) { return "x", nil },
		nil,
		1,
	)

	original := "Step 1: learn [year]."
	updated := r.MergeUpdates(context.Background(), reformatter, original, "also not json")

	assert.Equal(t, original, updated)
	assert.Contains(t, r.UnknownFacts(), "year")
}
