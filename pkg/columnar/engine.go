// Package columnar wraps an embedded DuckDB instance used as the staging
// and bulk-load engine for a single build: source files land here first,
// get normalised and validated, and are then copied into the build's
// Postgres schema (or queried directly for export).
package columnar

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" database/sql driver
)

// Engine is a scoped DuckDB database file, one per build. Callers must call
// Close when the build finishes (success or failure) to release the file
// and its connection pool.
type Engine struct {
	db   *sql.DB
	path string
}

// Config controls where and how large the staging engine may grow.
type Config struct {
	// TempDir is the directory DuckDB database files are created in.
	// Empty uses the OS default temp directory.
	TempDir string
	// MemoryLimitMB caps DuckDB's working set; 0 means unlimited.
	MemoryLimitMB int
}

// Open creates a fresh on-disk DuckDB database scoped to one build. The
// file is removed on Close.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	f, err := os.CreateTemp(cfg.TempDir, "cubebuilder-*.duckdb")
	if err != nil {
		return nil, fmt.Errorf("columnar: create staging file: %w", err)
	}
	path := f.Name()
	f.Close()
	os.Remove(path) // DuckDB creates the file itself on first open

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("columnar: open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("columnar: ping duckdb: %w", err)
	}

	e := &Engine{db: db, path: path}
	if cfg.MemoryLimitMB > 0 {
		if err := e.Exec(ctx, fmt.Sprintf("SET memory_limit = '%dMB'", cfg.MemoryLimitMB)); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Close releases the connection pool and deletes the backing file.
func (e *Engine) Close() error {
	err := e.db.Close()
	os.Remove(e.path)
	os.Remove(e.path + ".wal")
	return err
}

// Exec runs a statement with no result rows, e.g. DDL or COPY.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("columnar: exec: %w", err)
	}
	return nil
}

// Query runs a statement and returns the driver rows for the caller to scan
// and close.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("columnar: query: %w", err)
	}
	return rows, nil
}

// QueryRow runs a statement expected to return at most one row.
func (e *Engine) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return e.db.QueryRowContext(ctx, query, args...)
}

// CountRows returns the row count of table, used for non-fatal sampling
// thresholds and pagination totals.
func (e *Engine) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := e.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("columnar: count %s: %w", table, err)
	}
	return n, nil
}
