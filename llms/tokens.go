package llms

import (
	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the fixed per-message token tax chat APIs
// charge on top of raw content (role wrapper, separators).
const perMessageOverhead = 4

// contextWindows gives the known context window per model; models absent
// here fall back to a conservative default, matching the teacher's
// EstimateTokens fallback philosophy but with a real tokenizer instead of a
// char/4 guess.
var contextWindows = map[string]int{
	"gpt-4o":             128000,
	"gpt-4o-mini":        128000,
	"gpt-4-turbo":        128000,
	"claude-3-5-sonnet":  200000,
	"claude-3-opus":      200000,
	"llama3":             8192,
	"llama3.1":            131072,
	"mistral":            32768,
}

const defaultContextWindow = 8192

// countTokens tokenizes text with the cl100k_base encoding tiktoken-go
// ships, which is an accurate-enough approximation for non-OpenAI models
// too (the budget only needs to be conservative, not exact).
func countTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Degrade to the teacher's rough estimator rather than fail the call.
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// completionBudget computes the completion budget per spec §4.8: context
// window minus tokenized prompt length minus per-message overhead, clamped
// to ceiling (the per-model/config max_tokens).
func completionBudget(model string, prompt string, ceiling int) int {
	window, ok := contextWindows[model]
	if !ok {
		window = defaultContextWindow
	}

	budget := window - countTokens(prompt) - perMessageOverhead
	if budget < 0 {
		budget = 0
	}
	if ceiling > 0 && budget > ceiling {
		budget = ceiling
	}
	return budget
}
