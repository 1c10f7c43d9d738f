// Package eventlog implements the Structured Event Log (C9): an append-only
// CSV audit trail of every LLM call, SQL execution, and state transition.
// Grounded on iagents/util.py's iAgentsLogger, generalized to a type that
// can be injected rather than addressed through class-level globals.
package eventlog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Header is the CSV header mandated by spec §6.
var Header = []string{"timestamp", "instruction", "query", "response"}

// Log is an append-only CSV writer plus an optional console logger. One Log
// is created per process start (spec §6: "one file per process start").
type Log struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	console *slog.Logger
	nowFn  func() time.Time
}

// Open creates (or appends to) the CSV file at path, writing the header if
// the file is new. console may be nil to disable mirrored plain-text logs.
func Open(path string, console *slog.Logger) (*Log, error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write event log header: %w", err)
		}
		w.Flush()
	}

	return &Log{file: f, writer: w, console: console, nowFn: time.Now}, nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Flush()
	return l.file.Close()
}

// Record appends one row. instruction/query/response default to "None" when
// empty, matching the original logger's row-padding behavior so an
// offline-mode transition or a parameter-free event still produces a
// complete row.
func (l *Log) Record(instruction, query, response string) {
	if instruction == "" {
		instruction = "None"
	}
	if query == "" {
		query = "None"
	}
	if response == "" {
		response = "None"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.nowFn().Format("2006-01-02 15:04:05")
	if err := l.writer.Write([]string{ts, instruction, query, response}); err != nil {
		if l.console != nil {
			l.console.Error("failed to write event log row", "error", err)
		}
		return
	}
	l.writer.Flush()

	if l.console != nil {
		l.console.Debug(instruction, "query", query, "response", response)
	}
}

// Note logs an instruction-only event (no LLM call/response pair), e.g. a
// Plan status transition or a Communication state change.
func (l *Log) Note(instruction string) {
	l.Record(instruction, "", "")
}

// LLMCall logs one prompt/response pair under a labeled instruction.
func (l *Log) LLMCall(instruction, prompt, response string) {
	l.Record(instruction, prompt, response)
}

// SQLCall logs one SQL statement/result pair under a labeled instruction.
func (l *Log) SQLCall(instruction, statement string, results []string) {
	joined := ""
	for i, r := range results {
		if i > 0 {
			joined += "\n"
		}
		joined += r
	}
	l.Record(instruction, statement, joined)
}
