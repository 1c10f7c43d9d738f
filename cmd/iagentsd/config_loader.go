package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iagents/core/config"
	"github.com/iagents/core/eventlog"
	"github.com/iagents/core/llms"
	"github.com/iagents/core/prompt"
	"github.com/iagents/core/store"
)

// runtime bundles the collaborators every subcommand needs, built once from
// one config.yaml (spec §6).
type runtime struct {
	cfg       *config.Config
	backend   llms.Backend
	store     *store.Store
	assembler *prompt.Assembler
	log       *eventlog.Log
	stopwords map[string]struct{}
}

func buildRuntime(configPath, promptsDir string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logPath := fmt.Sprintf("%s_%s.csv", cfg.Logging.LogName, time.Now().Format("20060102_150405"))
	eventLog, err := eventlog.Open(logPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	st, err := store.Open(&cfg.MySQL, eventLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	registry := llms.NewRegistry()
	backend, err := registry.CreateFromConfig("default", &cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	assembler, err := prompt.Load(promptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	stopwords, err := loadStopwords(cfg.Agent.StopwordsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load stopwords: %w", err)
	}

	return &runtime{cfg: cfg, backend: backend, store: st, assembler: assembler, log: eventLog, stopwords: stopwords}, nil
}

func (r *runtime) Close() {
	r.store.Close()
	r.log.Close()
}

// loadStopwords reads one word per line. An empty path yields an empty set
// (no filtering), so a deployment can opt out of the stopword file entirely
// (spec §9 open question, resolved in SPEC_FULL §11 via config.AgentConfig.
// StopwordsPath).
func loadStopwords(path string) (map[string]struct{}, error) {
	set := map[string]struct{}{}
	if path == "" {
		return set, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" {
			continue
		}
		set[word] = struct{}{}
	}
	return set, scanner.Err()
}
