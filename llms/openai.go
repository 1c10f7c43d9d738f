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

// OpenAIBackend implements Backend against the OpenAI-compatible chat and
// embeddings endpoints. Grounded on hector's OpenAIProvider, narrowed to the
// single-shot query(prompt)->text contract (no tool-calling, no streaming).
type OpenAIBackend struct {
	cfg    *config.BackendConfig
	client *http.Client
}

func NewOpenAIBackend(cfg *config.BackendConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for openai backend")
	}
	return &OpenAIBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}, nil
}

func (b *OpenAIBackend) ModelName() string       { return b.cfg.Model }
func (b *OpenAIBackend) MaxCompletionTokens() int { return b.cfg.MaxTokens }

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (b *OpenAIBackend) Query(ctx context.Context, prompt string) (string, error) {
	budget := completionBudget(b.cfg.Model, prompt, b.cfg.MaxTokens)

	req := openAIChatRequest{
		Model:       b.cfg.Model,
		Messages:    []openAIChatMessage{{Role: "user", Content: prompt}},
		Temperature: b.cfg.Temperature,
		MaxTokens:   budget,
	}

	result, err := withRetry(ctx, 10, func() (string, error) {
		return b.attempt(req)
	})
	if err != nil {
		return "", newError("openai", "query", "chat completion failed", err)
	}
	return result, nil
}

func (b *OpenAIBackend) attempt(req openAIChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, b.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

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
			Message:    fmt.Sprintf("openai request failed with status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode openai response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("openai api error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (b *OpenAIBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	model := b.cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	req := openAIEmbeddingRequest{Model: model, Input: text}
	result, err := withRetry(ctx, 10, func() ([]float32, error) {
		return b.embedAttempt(req)
	})
	if err != nil {
		return nil, newError("openai", "embed", "embedding request failed", err)
	}
	return result, nil
}

func (b *OpenAIBackend) embedAttempt(req openAIEmbeddingRequest) ([]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, b.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    fmt.Sprintf("openai embeddings request failed with status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var embResp openAIEmbeddingResponse
	if err := json.Unmarshal(raw, &embResp); err != nil {
		return nil, fmt.Errorf("failed to decode openai embedding response: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding data")
	}
	return embResp.Data[0].Embedding, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	d, err := time.ParseDuration(header + "s")
	if err != nil {
		return 0
	}
	return d
}
