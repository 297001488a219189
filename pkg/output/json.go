package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
)

// StreamJSON writes q's result set to w as a JSON array of objects, one
// object per row keyed by column name, streamed batch by batch.
func (e *Exporter) StreamJSON(ctx context.Context, w io.Writer, q Query) error {
	query, args, err := e.buildQuery(ctx, q)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, "["); err != nil {
		return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write json array open: %w", err))
	}

	enc := json.NewEncoder(w)
	first := true
	err = e.streamRows(ctx, query, args, func(batch rowBatch) error {
		for _, row := range batch.rows {
			if !first {
				if _, err := io.WriteString(w, ","); err != nil {
					return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write json separator: %w", err))
				}
			}
			first = false

			obj := make(map[string]string, len(batch.columns))
			for i, col := range batch.columns {
				obj[col] = row[i]
			}
			if err := enc.Encode(obj); err != nil {
				return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("encode json row: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write json array close: %w", err))
	}
	return nil
}
