package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

// RevisionSchema scopes one build's connection to its dedicated per-revision
// schema. It mirrors the teacher's TenantScope acquire/release discipline
// (§5's "scoped acquisition" design note: create, use, guarantee cleanup on
// all paths) but scopes to a schema name instead of an RLS tenant id.
type RevisionSchema struct {
	Conn   *pgxpool.Conn
	Name   string
	closed bool
}

// SchemaName returns the deterministic per-revision schema name.
func SchemaName(revisionID string) string {
	return "rev_" + sqlutil.Sanitise(revisionID)
}

// OpenRevisionSchema acquires a pool connection, creates the schema if it
// does not already exist, and sets search_path so unqualified names in the
// rest of a build resolve to it.
func (db *DB) OpenRevisionSchema(ctx context.Context, revisionID string) (*RevisionSchema, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	name := SchemaName(revisionID)
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", sqlutil.QuoteIdent(name))); err != nil {
		conn.Release()
		return nil, fmt.Errorf("create schema %s: %w", name, err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", sqlutil.QuoteIdent(name))); err != nil {
		conn.Release()
		return nil, fmt.Errorf("set search_path: %w", err)
	}

	return &RevisionSchema{Conn: conn, Name: name}, nil
}

// EnsureTables creates the fixed table set every per-revision schema needs
// before any dimension/measure/fact table is promoted into it: metadata
// (build provenance and view-defining SQL), and filter_table (the UI filter
// index pkg/viewbuilder populates). fact_table, measure, all_notes and
// every {column}_lookup table are created by pkg/pgstage as each staging
// table is promoted, since their column sets vary per dataset.
func (s *RevisionSchema) EnsureTables(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS filter_table (
			reference         TEXT NOT NULL,
			language          TEXT NOT NULL,
			fact_table_column TEXT NOT NULL,
			dimension_name    TEXT NOT NULL,
			description       TEXT NOT NULL,
			hierarchy         TEXT,
			PRIMARY KEY (reference, language, fact_table_column)
		);`
	if _, err := s.Conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure revision schema tables: %w", err)
	}
	return nil
}

// Drop removes the schema and everything in it. Used on cancellation and on
// failed builds when Config.Build.CleanupSchemaOnFailure is set.
func (s *RevisionSchema) Drop(ctx context.Context) error {
	_, err := s.Conn.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", sqlutil.QuoteIdent(s.Name)))
	return err
}

// Close resets search_path and releases the connection to the pool. It MUST
// be called via defer on every code path that opened the schema, including
// panics — callers use `defer schema.Close(ctx)` immediately after open.
func (s *RevisionSchema) Close(ctx context.Context) {
	if s.closed || s.Conn == nil {
		return
	}
	s.closed = true
	_, _ = s.Conn.Exec(ctx, "RESET search_path")
	s.Conn.Release()
}
