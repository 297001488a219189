package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

// ApplyColumnMapping renames a fact data table's staged columns from their
// source header names to the FactTableColumn names the rest of the pipeline
// expects, per DataTable.ColumnDescriptions. Columns absent from the mapping
// are kept under their source name. This only applies to fact data tables;
// lookup and reference-data files are consumed under their own source
// column names and never pass a mapping here.
func (l *Loader) ApplyColumnMapping(ctx context.Context, table string, columnDescriptions map[string]string) error {
	if len(columnDescriptions) == 0 {
		return nil
	}

	sourceColumns, err := l.describeColumns(ctx, table)
	if err != nil {
		return err
	}

	selects := make([]string, 0, len(sourceColumns))
	for _, src := range sourceColumns {
		target := src
		if mapped, ok := columnDescriptions[src]; ok && mapped != "" {
			target = mapped
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", sqlutil.QuoteIdent(src), sqlutil.QuoteIdent(target)))
	}

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT %s FROM %s`,
		table, strings.Join(selects, ", "), table)
	if err := l.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

func (l *Loader) describeColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := l.engine.Query(ctx, fmt.Sprintf("DESCRIBE %s", table))
	if err != nil {
		return nil, apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name, colType, null, key, defaultVal, extra any
		if err := rows.Scan(&name, &colType, &null, &key, &defaultVal, &extra); err != nil {
			return nil, apperrors.New(apperrors.FailedToLoadData, stage, err)
		}
		columns = append(columns, fmt.Sprintf("%v", name))
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return columns, nil
}
