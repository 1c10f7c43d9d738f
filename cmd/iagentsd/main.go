// Command iagentsd runs one personal-agent-to-personal-agent Communication
// or offline document-index ingestion, driven by the config.yaml described
// in spec §6.
//
// Usage:
//
//	iagentsd communicate --config config.yaml --sender Alice --receiver Bob --task "..."
//	iagentsd ingest --config config.yaml --master Alice --dir ./alice-docs
//	iagentsd validate --config config.yaml
//
// Grounded on hector's cmd/hector/main.go: one kong CLI struct, one Run
// method per subcommand, logger initialized from CLI flags before config
// loading.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Communicate CommunicateCmd `cmd:"" help:"Run one bounded Communication between two agents."`
	Ingest      IngestCmd      `cmd:"" help:"Ingest a directory of documents into a master's document index."`
	Validate    ValidateCmd    `cmd:"" help:"Validate a configuration file."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("iagentsd"),
		kong.Description("Personal-agent-to-personal-agent communication engine"),
		kong.UsageOnError(),
	)

	level, err := parseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level: %s", s)
	}
}
