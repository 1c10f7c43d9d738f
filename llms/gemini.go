package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iagents/core/config"
)

// GeminiBackend implements Backend against the Gemini generateContent and
// embedContent REST endpoints. Grounded on hector's GeminiProvider
// (pkg/llms/gemini.go) and original_source/backend/gemini.py's two-model
// config (gemini-1.0-pro-latest / gemini-1.5-pro-latest); narrowed to the
// single-shot query(prompt)->text contract (no tool-calling, no streaming)
// the way openai.go narrows hector's OpenAIProvider. Unlike hector, which
// imports google.golang.org/genai, Gemini's REST surface is plain JSON over
// net/http with the API key carried in the URL, so this adapter needs no SDK
// dependency, same as openai.go/anthropic.go/ollama.go.
type GeminiBackend struct {
	cfg    *config.BackendConfig
	client *http.Client
}

func NewGeminiBackend(cfg *config.BackendConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for gemini backend")
	}
	return &GeminiBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}, nil
}

func (b *GeminiBackend) ModelName() string       { return b.cfg.Model }
func (b *GeminiBackend) MaxCompletionTokens() int { return b.cfg.MaxTokens }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiGenerateResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (b *GeminiBackend) Query(ctx context.Context, prompt string) (string, error) {
	budget := completionBudget(b.cfg.Model, prompt, b.cfg.MaxTokens)

	req := geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     b.cfg.Temperature,
			MaxOutputTokens: budget,
		},
	}

	result, err := withRetry(ctx, 10, func() (string, error) {
		return b.attempt(req)
	})
	if err != nil {
		return "", newError("gemini", "query", "generateContent request failed", err)
	}
	return result, nil
}

func (b *GeminiBackend) endpoint(method string) string {
	baseURL := b.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", baseURL, b.cfg.Model, method, url.QueryEscape(b.cfg.APIKey))
}

func (b *GeminiBackend) attempt(req geminiGenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, b.endpoint("generateContent"), bytes.NewReader(body))
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
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    fmt.Sprintf("gemini request failed with status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var genResp geminiGenerateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("gemini api error: %s", genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text string
	for _, p := range genResp.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (b *GeminiBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	model := b.cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-004"
	}

	req := geminiEmbedRequest{
		Model:   "models/" + model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}

	result, err := withRetry(ctx, 10, func() ([]float32, error) {
		return b.embedAttempt(model, req)
	})
	if err != nil {
		return nil, newError("gemini", "embed", "embedContent request failed", err)
	}
	return result, nil
}

func (b *GeminiBackend) embedAttempt(model string, req geminiEmbedRequest) ([]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	baseURL := b.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s", baseURL, model, url.QueryEscape(b.cfg.APIKey))

	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
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
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    fmt.Sprintf("gemini embed request failed with status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var embResp geminiEmbedResponse
	if err := json.Unmarshal(raw, &embResp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini embed response: %w", err)
	}
	if len(embResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embedding values")
	}
	return embResp.Embedding.Values, nil
}
