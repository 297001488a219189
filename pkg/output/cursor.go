package output

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
)

// rowBatch is one FETCH's worth of rows: column names in view order, plus
// each row's values rendered as text. Every column a caller streams from is
// TEXT in Postgres (pkg/pgstage promotes everything as TEXT), so no
// per-type formatting branch is needed here.
type rowBatch struct {
	columns []string
	rows    [][]string
}

// streamRows opens a server-side cursor for query/args and invokes fn with
// every non-empty FETCH, in order, until the cursor is exhausted. A real
// SQL cursor keeps memory bounded regardless of export size, unlike
// OFFSET/LIMIT paging over the whole result.
func (e *Exporter) streamRows(ctx context.Context, query string, args []any, fn func(rowBatch) error) error {
	batchSize := e.cfg.StreamBatchSize
	if batchSize <= 0 {
		batchSize = 10000
	}

	tx, err := e.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("begin cursor transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DECLARE output_cursor NO SCROLL CURSOR FOR %s", query), args...); err != nil {
		return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("declare cursor: %w", err))
	}

	var columns []string
	for {
		rows, err := tx.Query(ctx, fmt.Sprintf("FETCH %d FROM output_cursor", batchSize))
		if err != nil {
			return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("fetch cursor: %w", err))
		}

		if columns == nil {
			for _, fd := range rows.FieldDescriptions() {
				columns = append(columns, string(fd.Name))
			}
		}

		batch, err := collectBatch(rows)
		if err != nil {
			return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("iterate fetched rows: %w", err))
		}
		if len(batch) == 0 {
			break
		}
		if err := fn(rowBatch{columns: columns, rows: batch}); err != nil {
			return err
		}
		if len(batch) < batchSize {
			break
		}
	}

	if _, err := tx.Exec(ctx, "CLOSE output_cursor"); err != nil {
		return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("close cursor: %w", err))
	}
	return tx.Commit(ctx)
}

func collectBatch(rows pgx.Rows) ([][]string, error) {
	defer rows.Close()

	var batch [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = toText(v)
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

func toText(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
