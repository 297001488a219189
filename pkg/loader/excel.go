package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

// loadExcel reads the first worksheet of an .xlsx file and stages it as a
// table of text columns, matching the all-varchar staging used for CSV
// (JSON and Parquet keep the types their DuckDB readers produce; type
// coercion happens downstream once a column's role is known).
func (l *Loader) loadExcel(ctx context.Context, path, table string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return apperrors.Newf(apperrors.FailedToLoadData, stage, "workbook has no worksheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	if len(rows) == 0 {
		return apperrors.Newf(apperrors.FailedToLoadData, stage, "worksheet %q is empty", sheets[0])
	}

	header := rows[0]
	colDefs := make([]string, len(header))
	for i, name := range header {
		colDefs[i] = fmt.Sprintf("%s VARCHAR", sqlutil.QuoteIdent(name))
	}
	if err := l.engine.Exec(ctx, fmt.Sprintf(`CREATE OR REPLACE TABLE %s (%s)`, table, strings.Join(colDefs, ", "))); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}

	placeholders := make([]string, len(header))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, table, strings.Join(placeholders, ", "))

	for _, row := range rows[1:] {
		values := make([]any, len(header))
		for i := range header {
			if i < len(row) {
				values[i] = row[i]
			} else {
				values[i] = nil
			}
		}
		if err := l.engine.Exec(ctx, insert, values...); err != nil {
			return apperrors.New(apperrors.FailedToLoadData, stage, err)
		}
	}
	return nil
}
