package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

// PivotRow is one row of a Pivot result: the y-dimension's value, plus one
// entry per distinct x-dimension value observed, each an aggregated list
// of data_value strings.
type PivotRow struct {
	Y      string
	Values map[string][]string
}

// Pivot renders `SELECT y_dim, array_agg(data_value) FILTER (WHERE x_dim =
// xi) AS xi` for every distinct value xi of x observed in q.View, after
// applying q's filters (single-value predicates on dimensions other than
// x/y). The distinct x values are discovered first since Postgres needs
// each one named as its own FILTER clause/column.
func (e *Exporter) Pivot(ctx context.Context, q Query, xCol, yCol string) ([]PivotRow, error) {
	baseQuery, args, err := e.buildQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("SELECT * FROM (%s) AS pivot_base", baseQuery)

	xValues, err := e.distinctValues(ctx, base, args, xCol)
	if err != nil {
		return nil, err
	}
	if len(xValues) == 0 {
		return nil, nil
	}

	selects := make([]string, 0, len(xValues)+1)
	selects = append(selects, fmt.Sprintf("%s AS y_dim", sqlutil.QuoteIdent(yCol)))
	for i, x := range xValues {
		selects = append(selects, fmt.Sprintf(
			"COALESCE(ARRAY_AGG(%s) FILTER (WHERE %s = %s), ARRAY[]::text[]) AS x%d",
			sqlutil.QuoteIdent("data_value"), sqlutil.QuoteIdent(xCol), sqlutil.QuoteLiteral(x), i,
		))
	}

	query := fmt.Sprintf("SELECT %s FROM (%s) AS base GROUP BY %s",
		strings.Join(selects, ", "), base, sqlutil.QuoteIdent(yCol))

	rows, err := e.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("run pivot query: %w", err))
	}
	defer rows.Close()

	var out []PivotRow
	for rows.Next() {
		scanArgs := make([]any, len(xValues)+1)
		var y string
		scanArgs[0] = &y
		cells := make([][]string, len(xValues))
		for i := range xValues {
			scanArgs[i+1] = &cells[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("scan pivot row: %w", err))
		}

		values := make(map[string][]string, len(xValues))
		for i, x := range xValues {
			values[x] = cells[i]
		}
		out = append(out, PivotRow{Y: y, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("iterate pivot rows: %w", err))
	}
	return out, nil
}

func (e *Exporter) distinctValues(ctx context.Context, base string, args []any, column string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM (%s) AS distinct_base ORDER BY 1", sqlutil.QuoteIdent(column), base)
	rows, err := e.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("list distinct %q values: %w", column, err))
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("scan distinct value: %w", err))
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
