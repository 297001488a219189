// Package output implements the output service (C12): a cursor-backed
// streaming read over a revision's default_view_L/raw_view_L with
// optional sort-by and filter-by predicates resolved against filter_table,
// emitted as CSV, newline-delimited-friendly JSON, Parquet, or a
// multi-sheet workbook. It also exposes paginated previews and the
// Postgres-side dimension pivot.
package output

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/config"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

const stage = "output"

// SortDirection is the ordering direction of one SortField.
type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

// SortField is one column of a caller-requested ORDER BY, overriding the
// view's own default ordering.
type SortField struct {
	Column    string
	Direction SortDirection
}

// Filter is one equality predicate on a dimension column, expressed as the
// reference (lookup code) the caller picked from filter_table rather than
// the view's displayed description.
type Filter struct {
	Column    string
	Reference string
}

// Query describes one read over a revision's view.
type Query struct {
	View     string // e.g. "default_view_en" or "raw_view_en"
	Language string
	Sort     []SortField
	Filters  []Filter
}

// Exporter streams and paginates reads over one revision's Postgres schema.
// conn must already be scoped to that schema (see database.OpenRevisionSchema).
type Exporter struct {
	conn *pgxpool.Conn
	cfg  config.OutputConfig
}

// New creates an Exporter reading through conn with cfg's row limits.
func New(conn *pgxpool.Conn, cfg config.OutputConfig) *Exporter {
	return &Exporter{conn: conn, cfg: cfg}
}

// buildQuery resolves q's filters against filter_table and renders the
// SELECT this package streams or paginates from.
func (e *Exporter) buildQuery(ctx context.Context, q Query) (string, []any, error) {
	where, args, err := e.resolveFilters(ctx, q)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", sqlutil.QuoteIdent(q.View))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if len(q.Sort) > 0 {
		clauses := make([]string, len(q.Sort))
		for i, s := range q.Sort {
			dir := s.Direction
			if dir == "" {
				dir = Ascending
			}
			clauses[i] = fmt.Sprintf("%s %s", sqlutil.QuoteIdent(s.Column), dir)
		}
		query += " ORDER BY " + strings.Join(clauses, ", ")
	}
	return query, args, nil
}

// resolveFilters turns each Filter's reference into the description
// filter_table records for that (column, language, reference), since the
// view always projects a lookup-backed dimension's description (via
// COALESCE), never its raw code. A column with no filter_table row (a Raw
// dimension) is filtered by its reference value directly, matching what
// the view projects for it verbatim.
func (e *Exporter) resolveFilters(ctx context.Context, q Query) ([]string, []any, error) {
	var clauses []string
	var args []any

	for _, f := range q.Filters {
		var description string
		err := e.conn.QueryRow(ctx,
			`SELECT description FROM filter_table WHERE fact_table_column = $1 AND language = $2 AND reference = $3`,
			f.Column, q.Language, f.Reference,
		).Scan(&description)

		value := f.Reference
		if err == nil {
			value = description
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("resolve filter %q: %w", f.Column, err))
		}

		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", sqlutil.QuoteIdent(f.Column), len(args)))
	}
	return clauses, args, nil
}
