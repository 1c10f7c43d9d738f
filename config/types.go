// Package config provides configuration types and utilities for the agent
// communication engine. This file contains all configuration section types.
package config

import (
	"fmt"
)

// ============================================================================
// WEBSITE SECTION (host/port for the out-of-scope HTTP surface; kept so a
// single config file can still describe the whole deployment, mirroring how
// the original global.yaml carries sections the core engine does not itself
// serve)
// ============================================================================

// WebsiteConfig describes the HTTP surface. The core engine never binds a
// listener itself; this section exists only so a single config.yaml can
// describe a full deployment, matching the original global.yaml layout.
type WebsiteConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	FlaskSecret string `yaml:"flask_secret"`
}

func (c *WebsiteConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

func (c *WebsiteConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	return nil
}

// ============================================================================
// MYSQL SECTION — relational chat store connection (§6)
// ============================================================================

// StoreConfig configures the relational chat store. Despite the name
// (preserved from the original's "mysql" section for config compatibility),
// Dialect selects among mysql/postgres/sqlite.
type StoreConfig struct {
	Dialect  string `yaml:"dialect"` // "mysql", "postgres", "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// PoolSize is the bounded connection pool size (§5, default 20).
	PoolSize int `yaml:"pool_size"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Dialect == "" {
		c.Dialect = "mysql"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 20
	}
	if c.Port == 0 {
		switch c.Dialect {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}
}

func (c *StoreConfig) Validate() error {
	switch c.Dialect {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported store dialect: %s", c.Dialect)
	}
	if c.Dialect != "sqlite" && c.Database == "" {
		return fmt.Errorf("database name is required for dialect %s", c.Dialect)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}
	return nil
}

// ============================================================================
// BACKEND SECTION — LLM provider selection (C8)
// ============================================================================

// BackendConfig describes the single configured LLM/embedder provider.
type BackendConfig struct {
	Provider        string  `yaml:"provider"` // selects which LLMProvider to build: "openai", "anthropic", "ollama", "gemini"
	Model           string  `yaml:"model"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	OllamaModelName string  `yaml:"ollama_model_name"`
	OllamaHost      string  `yaml:"ollama_host"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	Timeout         int     `yaml:"timeout"`
}

func (c *BackendConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.Provider == "ollama" && c.OllamaHost == "" {
		c.OllamaHost = "http://localhost:11434"
	}
	if c.Provider == "openai" && c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Provider == "gemini" && c.BaseURL == "" {
		c.BaseURL = "https://generativelanguage.googleapis.com"
	}
}

func (c *BackendConfig) Validate() error {
	switch c.Provider {
	case "openai", "anthropic", "ollama", "gemini":
	default:
		return fmt.Errorf("unsupported backend provider: %s", c.Provider)
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %s", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// ============================================================================
// AGENT SECTION — retry bounds, rounds, stopwords, document index flag (§6)
// ============================================================================

// AgentConfig holds the tunables named by spec §6's `agent` section
// (including the document-store toggle kept as `use_llamaindex` for config
// compatibility with the original), plus the stopwords path resolved in
// SPEC_FULL §11.
type AgentConfig struct {
	MaxQueryRetryTimes    int    `yaml:"max_query_retry_times"`
	MaxToolRetryTimes     int    `yaml:"max_tool_retry_times"`
	MaxCommunicationTurns int    `yaml:"max_communication_turns"`
	UseLlamaIndex         bool   `yaml:"use_llamaindex"`
	RewritePrompt         bool   `yaml:"rewrite_prompt"`
	StopwordsPath         string `yaml:"stopwords_path"`
}

func (c *AgentConfig) SetDefaults() {
	if c.MaxQueryRetryTimes == 0 {
		c.MaxQueryRetryTimes = 10
	}
	if c.MaxToolRetryTimes == 0 {
		c.MaxToolRetryTimes = 5
	}
	if c.MaxCommunicationTurns == 0 {
		c.MaxCommunicationTurns = 4
	}
}

func (c *AgentConfig) Validate() error {
	if c.MaxQueryRetryTimes <= 0 {
		return fmt.Errorf("max_query_retry_times must be positive")
	}
	if c.MaxToolRetryTimes <= 0 {
		return fmt.Errorf("max_tool_retry_times must be positive")
	}
	if c.MaxCommunicationTurns < 1 || c.MaxCommunicationTurns > 6 {
		return fmt.Errorf("max_communication_turns must be between 1 and 6")
	}
	return nil
}

// ============================================================================
// MODE SECTION — Mode Factory selection (C7)
// ============================================================================

type ModeConfig struct {
	Mode string `yaml:"mode"` // "Base" or "RAG"
}

func (c *ModeConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "Base"
	}
}

func (c *ModeConfig) Validate() error {
	switch c.Mode {
	case "Base", "RAG":
	default:
		return fmt.Errorf("unsupported mode: %s (supported: Base, RAG)", c.Mode)
	}
	return nil
}

// ============================================================================
// LOGGING SECTION
// ============================================================================

type LoggingConfig struct {
	LogName string `yaml:"logname"`
	Level   string `yaml:"level"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.LogName == "" {
		c.LogName = "iagents"
	}
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
	return nil
}
