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

// OllamaBackend implements Backend against a local Ollama server. Grounded
// on hector's OllamaProvider; Ollama has no rate-limit headers so only
// ConservativeRetry classes of failure (connection refused while the model
// loads, 5xx) are retried.
type OllamaBackend struct {
	cfg    *config.BackendConfig
	client *http.Client
}

func NewOllamaBackend(cfg *config.BackendConfig) (*OllamaBackend, error) {
	host := cfg.OllamaHost
	if host == "" {
		host = "http://localhost:11434"
	}
	cfg.OllamaHost = host
	return &OllamaBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}, nil
}

func (b *OllamaBackend) ModelName() string {
	if b.cfg.OllamaModelName != "" {
		return b.cfg.OllamaModelName
	}
	return b.cfg.Model
}

func (b *OllamaBackend) MaxCompletionTokens() int { return b.cfg.MaxTokens }

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (b *OllamaBackend) Query(ctx context.Context, prompt string) (string, error) {
	budget := completionBudget(b.ModelName(), prompt, b.cfg.MaxTokens)

	req := ollamaGenerateRequest{
		Model:  b.ModelName(),
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": b.cfg.Temperature,
			"num_predict": budget,
		},
	}

	result, err := withRetry(ctx, 10, func() (string, error) {
		return b.attempt(req)
	})
	if err != nil {
		return "", newError("ollama", "query", "generate request failed", err)
	}
	return result, nil
}

func (b *OllamaBackend) attempt(req ollamaGenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, b.cfg.OllamaHost+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("ollama request failed with status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", genResp.Error)
	}
	return genResp.Response, nil
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (b *OllamaBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	model := b.cfg.EmbeddingModel
	if model == "" {
		model = b.ModelName()
	}

	req := ollamaEmbedRequest{Model: model, Input: text}
	result, err := withRetry(ctx, 10, func() ([]float32, error) {
		return b.embedAttempt(req)
	})
	if err != nil {
		return nil, newError("ollama", "embed", "embed request failed", err)
	}
	return result, nil
}

func (b *OllamaBackend) embedAttempt(req ollamaEmbedRequest) ([]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, b.cfg.OllamaHost+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("ollama embed request failed with status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var embResp ollamaEmbedResponse
	if err := json.Unmarshal(raw, &embResp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama embed response: %w", err)
	}
	if len(embResp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}
	return embResp.Embeddings[0], nil
}
