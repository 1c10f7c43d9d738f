package llms

import (
	"fmt"

	"github.com/iagents/core/config"
	"github.com/iagents/core/registry"
)

// Registry manages Backend instances keyed by the string named in
// config.BackendConfig.Provider. Grounded on hector's LLMRegistry, narrowed
// to the single query/embed contract.
type Registry struct {
	*registry.BaseRegistry[Backend]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Backend]()}
}

// CreateFromConfig builds and registers the one Backend named by cfg, the
// way CreateLLMFromConfig does for hector's multi-provider registry.
func (r *Registry) CreateFromConfig(name string, cfg *config.BackendConfig) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend config cannot be nil")
	}

	var backend Backend
	var err error

	switch cfg.Provider {
	case "openai":
		backend, err = NewOpenAIBackend(cfg)
	case "anthropic":
		backend, err = NewAnthropicBackend(cfg)
	case "ollama":
		backend, err = NewOllamaBackend(cfg)
	case "gemini":
		backend, err = NewGeminiBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create backend %q: %w", cfg.Provider, err)
	}

	if err := r.Register(name, backend); err != nil {
		return nil, fmt.Errorf("failed to register backend %q: %w", name, err)
	}
	return backend, nil
}

func (r *Registry) Get(name string) (Backend, error) {
	backend, exists := r.BaseRegistry.Get(name)
	if !exists {
		return nil, fmt.Errorf("backend %q not registered", name)
	}
	return backend, nil
}
