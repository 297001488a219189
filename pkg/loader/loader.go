// Package loader implements the file-loading stage of the build pipeline:
// given a DataTable record and the path of the file on local disk, it stages
// the file's rows into a DuckDB table for the rest of the pipeline to consume.
package loader

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

const stage = "load"

// Loader stages uploaded data-table files into the build's columnar engine.
type Loader struct {
	engine *columnar.Engine
}

// New creates a Loader writing staging tables into engine.
func New(engine *columnar.Engine) *Loader {
	return &Loader{engine: engine}
}

// Load reads the file at sourcePath, whose type is given by dt.FileType,
// and creates or replaces a staging
// table named stagingTable containing its rows, in UTF-8, with column
// names taken from the source header row.
func (l *Loader) Load(ctx context.Context, dt *models.DataTable, sourcePath, stagingTable string) error {
	switch dt.FileType {
	case models.FileTypeCSV, models.FileTypeCSVGzip:
		return l.loadCSV(ctx, sourcePath, stagingTable)
	case models.FileTypeJSON, models.FileTypeJSONGzip:
		return l.loadJSON(ctx, sourcePath, stagingTable)
	case models.FileTypeParquet:
		return l.loadParquet(ctx, sourcePath, stagingTable)
	case models.FileTypeSpreadsheet:
		return l.loadExcel(ctx, sourcePath, stagingTable)
	default:
		return apperrors.Newf(apperrors.UnknownFileType, stage, "unsupported file type %q for %q", dt.FileType, dt.Filename)
	}
}

func (l *Loader) loadCSV(ctx context.Context, path, table string) error {
	query := fmt.Sprintf(
		`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(?, header=true, all_varchar=true, encoding='utf-8')`,
		table,
	)
	if err := l.engine.Exec(ctx, query, path); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

func (l *Loader) loadJSON(ctx context.Context, path, table string) error {
	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_json_auto(?)`, table)
	if err := l.engine.Exec(ctx, query, path); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

func (l *Loader) loadParquet(ctx context.Context, path, table string) error {
	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(?)`, table)
	if err := l.engine.Exec(ctx, query, path); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

// loadExcel is implemented in excel.go: it needs excelize to read rows,
// then INSERTs them through the engine since DuckDB has no native xlsx
// reader.
