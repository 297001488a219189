package output

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
)

// Page is one paginated preview result.
type Page struct {
	Columns    []string
	Data       [][]string
	TotalLines int64
	EndRecord  int
}

// Preview returns one page of q's result set, with TotalLines computed by
// wrapping the base query in a COUNT(*). An empty result set returns a
// valid, empty Page rather than an error.
func (e *Exporter) Preview(ctx context.Context, q Query, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = e.cfg.PreviewPageSize
	}
	if pageSize <= 0 {
		pageSize = 500
	}
	if page < 1 {
		page = 1
	}

	query, args, err := e.buildQuery(ctx, q)
	if err != nil {
		return Page{}, err
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS counted", query)
	if err := e.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return Page{}, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("count preview rows: %w", err))
	}
	if total == 0 {
		return Page{TotalLines: 0, Data: [][]string{}, EndRecord: 0}, nil
	}

	offset := (page - 1) * pageSize
	pagedQuery := fmt.Sprintf("SELECT * FROM (%s) AS paged LIMIT %d OFFSET %d", query, pageSize, offset)

	rows, err := e.conn.Query(ctx, pagedQuery, args...)
	if err != nil {
		return Page{}, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("query preview page: %w", err))
	}
	defer rows.Close()

	var columns []string
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, string(fd.Name))
	}

	data := make([][]string, 0, pageSize)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return Page{}, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("scan preview row: %w", err))
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = toText(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return Page{}, apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("iterate preview rows: %w", err))
	}

	return Page{
		Columns:    columns,
		Data:       data,
		TotalLines: total,
		EndRecord:  offset + len(data),
	}, nil
}
