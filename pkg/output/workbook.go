package output

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
)

// StreamWorkbook writes q's result set to w as a multi-sheet workbook,
// starting a fresh sheet every time the current one reaches
// Config.Output.ExcelRowLimit rows (excelize.SetSheetRow, following the
// row-at-a-time write pattern the pack's XlsxSummaryReporter uses).
func (e *Exporter) StreamWorkbook(ctx context.Context, w io.Writer, q Query) error {
	query, args, err := e.buildQuery(ctx, q)
	if err != nil {
		return err
	}

	rowLimit := e.cfg.ExcelRowLimit
	if rowLimit <= 0 {
		rowLimit = 1048500
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetIndex := 1
	sheetName := fmt.Sprintf("Sheet%d", sheetIndex)
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("rename default sheet: %w", err))
	}

	rowInSheet := 0
	headerWritten := false

	writeRow := func(cells []string, rowNum int) error {
		addr, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("compute cell address: %w", err))
		}
		values := make([]any, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		if err := f.SetSheetRow(sheetName, addr, &values); err != nil {
			return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write workbook row: %w", err))
		}
		return nil
	}

	err = e.streamRows(ctx, query, args, func(batch rowBatch) error {
		if !headerWritten {
			if err := writeRow(batch.columns, 1); err != nil {
				return err
			}
			rowInSheet = 1
			headerWritten = true
		}
		for _, row := range batch.rows {
			if rowInSheet >= rowLimit {
				sheetIndex++
				sheetName = fmt.Sprintf("Sheet%d", sheetIndex)
				if _, err := f.NewSheet(sheetName); err != nil {
					return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("create sheet %q: %w", sheetName, err))
				}
				if err := writeRow(batch.columns, 1); err != nil {
					return err
				}
				rowInSheet = 1
			}
			rowInSheet++
			if err := writeRow(row, rowInSheet); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write workbook: %w", err))
	}
	return nil
}
