// Package db stores try-on job history in SQLite so that jobs which outlive
// a client-side deadline can be inspected and resumed later.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"
)

// ConnectionConfig holds configuration for SQLite connections.
type ConnectionConfig struct {
	// Path is the database file path
	Path string
	// BusyTimeout is how long to wait for locks
	BusyTimeout time.Duration
	// MaxOpenConns limits concurrent connections (1 serialises all writes)
	MaxOpenConns int
	// ConnMaxLifetime limits how long a connection can be reused (0 = no limit)
	ConnMaxLifetime time.Duration
}

// DefaultConnectionConfig returns defaults for a single-writer history file.
func DefaultConnectionConfig(path string) ConnectionConfig {
	return ConnectionConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
	}
}

// dsn builds a modernc DSN that applies the pragmas on every new connection,
// so a connection recycled by the pool keeps foreign keys and WAL.
func (c ConnectionConfig) dsn() string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	return c.Path + "?" + q.Encode()
}

// NewSQLiteConnection opens a SQLite database in WAL mode with foreign keys on.
//
// Example:
//
//	conn, err := NewSQLiteConnection(DefaultConnectionConfig("history.db"))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
func NewSQLiteConnection(config ConnectionConfig) (*sql.DB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 1
	}

	conn, err := sql.Open("sqlite", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxOpenConns)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// journal_mode silently stays "delete" on filesystems without WAL support.
	var journalMode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		conn.Close()
		return nil, fmt.Errorf("WAL mode not enabled, got: %s", journalMode)
	}

	return conn, nil
}
