// Package config provides configuration types and utilities for the agent
// communication engine. This file contains the main unified configuration
// entry point, mirroring spec §6's YAML document sections.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration: one YAML document with the
// sections named in spec §6 (website, mysql, backend, agent, mode, logging).
type Config struct {
	Website Website `yaml:"website"`
	MySQL   StoreConfig `yaml:"mysql"`
	Backend BackendConfig `yaml:"backend"`
	Agent   AgentConfig `yaml:"agent"`
	Mode    ModeConfig `yaml:"mode"`
	Logging LoggingConfig `yaml:"logging"`
}

// Website is a type alias kept distinct from WebsiteConfig's yaml tag name
// collision risk; see WebsiteConfig in types.go.
type Website = WebsiteConfig

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Website.SetDefaults()
	c.MySQL.SetDefaults()
	c.Backend.SetDefaults()
	c.Agent.SetDefaults()
	c.Mode.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Website.Validate(); err != nil {
		return fmt.Errorf("website config: %w", err)
	}
	if err := c.MySQL.Validate(); err != nil {
		return fmt.Errorf("mysql (store) config: %w", err)
	}
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	if err := c.Mode.Validate(); err != nil {
		return fmt.Errorf("mode config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Load reads, env-expands, parses, defaults, and validates a config file.
// A missing or schema-incompatible config file is a fatal startup condition
// per spec §7.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load .env files: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s as YAML: %w", path, err)
	}
	expanded := ExpandEnvVarsInData(generic)

	expandedRaw, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal expanded config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expandedRaw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
