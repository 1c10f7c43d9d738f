package llms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionBudget_ClampsToCeiling(t *testing.T) {
	budget := completionBudget("gpt-4o", "a short prompt", 50)
	assert.Equal(t, 50, budget)
}

func TestCompletionBudget_UnknownModelUsesDefaultWindow(t *testing.T) {
	budget := completionBudget("some-unlisted-model", "hi", 100000)
	assert.Less(t, budget, defaultContextWindow)
	assert.Greater(t, budget, 0)
}

func TestCountTokens_NonEmpty(t *testing.T) {
	n := countTokens("the quick brown fox")
	require.Greater(t, n, 0)
}
