package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iagents/core/config"
)

// AnthropicBackend implements Backend against the Anthropic Messages API.
// Grounded on hector's AnthropicProvider; the retry-strategy classification
// (getRetryStrategy/NoRetry/ConservativeRetry/SmartRetry) is carried over
// conceptually but now executed through backoff/v5 in retry.go rather than
// the teacher's hand-rolled sleep loop. Anthropic has no public embeddings
// endpoint, so Embed reports that explicitly rather than faking a vector.
type AnthropicBackend struct {
	cfg    *config.BackendConfig
	client *http.Client
}

func NewAnthropicBackend(cfg *config.BackendConfig) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for anthropic backend")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	cfg.BaseURL = baseURL
	return &AnthropicBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}, nil
}

func (b *AnthropicBackend) ModelName() string       { return b.cfg.Model }
func (b *AnthropicBackend) MaxCompletionTokens() int { return b.cfg.MaxTokens }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (b *AnthropicBackend) Query(ctx context.Context, prompt string) (string, error) {
	budget := completionBudget(b.cfg.Model, prompt, b.cfg.MaxTokens)

	req := anthropicRequest{
		Model:       b.cfg.Model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   budget,
		Temperature: b.cfg.Temperature,
	}

	result, err := withRetry(ctx, 10, func() (string, error) {
		return b.attempt(req)
	})
	if err != nil {
		return "", newError("anthropic", "query", "messages request failed", err)
	}
	return result, nil
}

func (b *AnthropicBackend) attempt(req anthropicRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, b.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    fmt.Sprintf("anthropic request failed with status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var chatResp anthropicResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("anthropic api error: %s", chatResp.Error.Message)
	}

	var text string
	for _, c := range chatResp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	return text, nil
}

func (b *AnthropicBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, newError("anthropic", "embed", "anthropic has no embeddings endpoint; configure an openai or ollama backend for embedding-dependent components", nil)
}
