package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
)

// StreamCSV writes q's result set to w as RFC 4180 CSV, header row first,
// streamed batch by batch through a server-side cursor.
func (e *Exporter) StreamCSV(ctx context.Context, w io.Writer, q Query) error {
	query, args, err := e.buildQuery(ctx, q)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	headerWritten := false

	err = e.streamRows(ctx, query, args, func(batch rowBatch) error {
		if !headerWritten {
			if err := cw.Write(batch.columns); err != nil {
				return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write csv header: %w", err))
			}
			headerWritten = true
		}
		for _, row := range batch.rows {
			if err := cw.Write(row); err != nil {
				return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write csv row: %w", err))
			}
		}
		cw.Flush()
		return cw.Error()
	})
	return err
}
