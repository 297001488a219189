// Package pgstage promotes tables assembled in the per-build DuckDB staging
// engine (pkg/columnar) into the per-revision Postgres schema that
// downstream components (filter index, views, output) read from.
package pgstage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

const stage = "pgstage"

// Promoter copies a finished staging table, column-for-column, into a
// Postgres table via COPY.
type Promoter struct {
	conn *pgxpool.Conn
}

// New creates a Promoter writing through conn, already scoped to the
// target revision schema (see database.OpenRevisionSchema).
func New(conn *pgxpool.Conn) *Promoter {
	return &Promoter{conn: conn}
}

// PromoteTable describes duckTable, creates a same-named (or renamed, via
// pgTable) all-TEXT Postgres table, and bulk-copies every row across.
func (p *Promoter) PromoteTable(ctx context.Context, engine *columnar.Engine, duckTable, pgTable string) (int64, error) {
	cols, err := describeColumns(ctx, engine, duckTable)
	if err != nil {
		return 0, apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}
	if len(cols) == 0 {
		return 0, apperrors.Newf(apperrors.CubeCreationFailed, stage, "staging table %q has no columns", duckTable)
	}

	if err := p.createTable(ctx, pgTable, cols); err != nil {
		return 0, apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}

	rows, err := engine.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", sqlutil.QuoteIdentList(cols), duckTable))
	if err != nil {
		return 0, apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}
	defer rows.Close()

	var batch [][]any
	var total int64
	const flushSize = 5000
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := p.conn.CopyFrom(ctx, pgx.Identifier{pgTable}, cols, pgx.CopyFromRows(batch)); err != nil {
			return err
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return 0, apperrors.New(apperrors.CubeCreationFailed, stage, err)
		}
		rowCopy := make([]any, len(cols))
		copy(rowCopy, dest)
		batch = append(batch, rowCopy)
		if len(batch) >= flushSize {
			if err := flush(); err != nil {
				return 0, apperrors.New(apperrors.CubeCreationFailed, stage, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}
	if err := flush(); err != nil {
		return 0, apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}
	return total, nil
}

func (p *Promoter) createTable(ctx context.Context, table string, cols []string) error {
	if _, err := p.conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", sqlutil.QuoteIdent(table))); err != nil {
		return err
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = sqlutil.QuoteIdent(c) + " TEXT"
	}
	query := fmt.Sprintf("CREATE TABLE %s (%s)", sqlutil.QuoteIdent(table), strings.Join(defs, ", "))
	_, err := p.conn.Exec(ctx, query)
	return err
}

// describeColumns returns a DuckDB table's column names in declaration order.
func describeColumns(ctx context.Context, engine *columnar.Engine, table string) ([]string, error) {
	rows, err := engine.Query(ctx, fmt.Sprintf("DESCRIBE %s", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, colType, null, key, def, extra any
		if err := rows.Scan(&name, &colType, &null, &key, &def, &extra); err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%v", name))
	}
	return cols, rows.Err()
}
