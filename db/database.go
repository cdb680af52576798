package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Database owns the history connection.
//
// This organism composes:
//   - SQLite connection with WAL mode (connection.go)
//   - Embedded migrations (migrate.go)
//   - Retention pruning (cleanup.go)
//
// Usage:
//
//	database, err := Open("history.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	repo := NewJobRepository(database, endpointID)
type Database struct {
	db   *sql.DB
	path string
	// mu guards db: batch jobs record history from several goroutines while
	// Close may run on shutdown. Prune holds it exclusively.
	mu sync.RWMutex
}

// Open creates the file and its parent directory if needed, applies pending
// migrations on a separate connection, and opens the connection used for
// reads and writes.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConnectionConfig(path))
}

// OpenWithConfig is Open with custom connection settings.
func OpenWithConfig(config ConnectionConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	if err := MigrateUp(config.Path); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	conn, err := NewSQLiteConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	return &Database{db: conn, path: config.Path}, nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection. It is safe to call more than once.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.db = nil
	return nil
}

// Ping verifies the connection is alive.
func (d *Database) Ping() error {
	conn, err := d.conn()
	if err != nil {
		return err
	}
	return conn.Ping()
}

func (d *Database) conn() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, fmt.Errorf("database connection is closed")
	}
	return d.db, nil
}
