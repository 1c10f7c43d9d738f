// Package store implements the relational Chat Store named as an external
// interface in spec §6 and the retrieval query families of Context
// Retrieval (C3) that run directly against it. Grounded on iagents/sql.py
// (connection pooling, ping-and-retry) and iagents/tool.py's SqlTool (the
// five SQL query shapes), generalized from MySQL-only to the three
// dialects hector's SQLTaskService supports via database/sql.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iagents/core/config"
	"github.com/iagents/core/eventlog"
)

// Store wraps a bounded connection pool (spec §5 default size 20) over one
// of the three supported dialects.
type Store struct {
	db      *sql.DB
	dialect string
	log     *eventlog.Log
}

// Error wraps a store failure, following the teacher's typed-error idiom.
type Error struct {
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[store:%s] %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[store:%s] %s", e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Open opens the pooled connection and ensures the schema exists. A missing
// or schema-incompatible store is a fatal startup condition (spec §7).
func Open(cfg *config.StoreConfig, log *eventlog.Log) (*Store, error) {
	driverName := cfg.Dialect
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn(cfg))
	if err != nil {
		return nil, &Error{Operation: "open", Message: "failed to open database", Err: err}
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &Error{Operation: "open", Message: "failed to ping database", Err: err}
	}

	s := &Store{db: db, dialect: cfg.Dialect, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func dsn(cfg *config.StoreConfig) string {
	switch cfg.Dialect {
	case "sqlite":
		if cfg.Database == "" {
			return "file::memory:?cache=shared"
		}
		return cfg.Database
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
	default: // mysql
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	}
}

// placeholder returns the positional placeholder for this dialect at 1-based
// index n: postgres uses $n, mysql/sqlite use ?.
func (s *Store) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// likeOp returns the case-insensitive substring-match operator for this
// dialect: MySQL and SQLite's LIKE is already case-insensitive by default
// collation, but Postgres's LIKE is case-sensitive and needs ILIKE (spec
// §4.3 families 3/4 require case-insensitive matching regardless of store
// dialect).
func (s *Store) likeOp() string {
	if s.dialect == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

// execWithReconnect runs fn once, and on failure pings and retries exactly
// once — spec §7 "Chat-store connection failure: one reconnect attempt per
// pooled handle; re-execute; then surface to caller".
func (s *Store) execWithReconnect(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if pingErr := s.db.PingContext(ctx); pingErr != nil {
		return &Error{Operation: op, Message: "connection unavailable after reconnect attempt", Err: err}
	}
	if err := fn(); err != nil {
		return &Error{Operation: op, Message: "query failed after reconnect", Err: err}
	}
	return nil
}

func (s *Store) logSQL(instruction, sqlCommand string, params []interface{}, rowCount int) {
	if s.log == nil {
		return
	}
	s.log.SQLCall(instruction, fmt.Sprintf("SQL COMMAND:\n%s\nPARAMS:\n%v\n", sqlCommand, params),
		[]string{fmt.Sprintf("%d rows", rowCount)})
}
