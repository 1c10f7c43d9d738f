package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/iagents/core/config"
	"github.com/iagents/core/docindex"
	"github.com/iagents/core/llms"
	"github.com/iagents/core/mode"
	"github.com/iagents/core/vecmemory"
)

// CommunicateCmd runs one bounded Communication between two masters over a
// task, the core end-to-end operation (spec §4.6).
type CommunicateCmd struct {
	Config     string `required:"" help:"Path to config.yaml."`
	Prompts    string `default:"prompts" help:"Path to the prompt template directory."`
	Sender     string `required:"" help:"Instructor master's name."`
	Receiver   string `required:"" help:"Assistant master's name."`
	Task       string `required:"" help:"Task text."`
	Offline    bool   `help:"Run offline: log utterances instead of writing the chat store."`
	MultiParty bool   `help:"Enable Multi-Party escalation at round 0."`
	DocsRoot   string `default:"./data/docindex" help:"Base directory for per-master document indexes (RAG mode)."`
	VecMemory  string `help:"Directory of per-master fuzzy-memory TSV files, one <master>.tsv each (RAG mode)."`
}

func (c *CommunicateCmd) Run(cli *CLI) error {
	ctx := context.Background()

	rt, err := buildRuntime(c.Config, c.Prompts)
	if err != nil {
		return err
	}
	defer rt.Close()

	docIndexes := map[string]*docindex.Index{}
	vecMemories := map[string]*vecmemory.Memory{}
	if rt.cfg.Mode.Mode == "RAG" {
		for _, master := range []string{c.Sender, c.Receiver} {
			if rt.cfg.Agent.UseLlamaIndex {
				idx, err := docindex.Open(c.DocsRoot, master, rt.backend)
				if err != nil {
					return fmt.Errorf("failed to open document index for %s: %w", master, err)
				}
				docIndexes[master] = idx
			}
			if c.VecMemory != "" {
				mem, err := vecmemory.Open(filepath.Join(c.VecMemory, master+".tsv"), master, rt.backend)
				if err != nil {
					return fmt.Errorf("failed to open fuzzy memory for %s: %w", master, err)
				}
				vecMemories[master] = mem
			}
		}
	}

	factory := mode.New(rt.cfg, rt.backend, rt.store, rt.assembler, rt.log, rt.stopwords, docIndexes, vecMemories)

	task, err := factory.RewriteTask(ctx, c.Sender, c.Receiver, c.Task)
	if err != nil {
		return fmt.Errorf("failed to rewrite task: %w", err)
	}

	instructor, assistant := factory.BuildAgents(c.Sender, c.Receiver, task)
	comm, err := factory.BuildCommunication(instructor, assistant, c.Offline, c.MultiParty)
	if err != nil {
		return fmt.Errorf("failed to build communication: %w", err)
	}

	conclusion, err := comm.Communicate(ctx)
	if err != nil {
		return fmt.Errorf("communication failed: %w", err)
	}

	fmt.Println(conclusion)
	return nil
}

// IngestCmd indexes a directory of documents into one master's document
// index (spec §4.7, the RAG-mode document store backing retrieval family
// 6).
type IngestCmd struct {
	Config   string `required:"" help:"Path to config.yaml."`
	Master   string `required:"" help:"Master whose document index receives these files."`
	Dir      string `required:"" type:"path" help:"Directory of documents to ingest."`
	DocsRoot string `default:"./data/docindex" help:"Base directory for per-master document indexes."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry := llms.NewRegistry()
	backend, err := registry.CreateFromConfig("default", &cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}

	idx, err := docindex.Open(c.DocsRoot, c.Master, backend)
	if err != nil {
		return fmt.Errorf("failed to open document index: %w", err)
	}

	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return err
	}

	n, err := idx.IngestDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("ingested %d new file(s) into %s's document index\n", n, c.Master)
	return nil
}

// ValidateCmd checks that a config file parses and passes validation,
// without starting any Communication.
type ValidateCmd struct {
	Config string `required:"" help:"Path to config.yaml."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	if _, err := config.Load(c.Config); err != nil {
		return err
	}
	fmt.Println("config OK")
	return nil
}
