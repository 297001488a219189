// Package measure implements the measure builder (C7): it materialises a
// dataset's in-memory measure table into the build's columnar engine and
// derives the per-row SQL formatting expression the view builder applies
// to the raw data value.
package measure

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

const stage = "measure"

// Canonical columns of the measure lookup table this package builds.
const (
	ColReference  = "reference"
	ColLanguage   = "language"
	ColDescription = "description"
	ColNotes      = "notes"
	ColSortOrder  = "sort_order"
	ColFormat     = "format"
	ColDecimals   = "decimals"
	ColMeasureType = "measure_type"
	ColHierarchy  = "hierarchy"
)

// Builder materialises a Measure's rows into a lookup table.
type Builder struct {
	engine *columnar.Engine
}

// New creates a Builder writing into engine.
func New(engine *columnar.Engine) *Builder {
	return &Builder{engine: engine}
}

// Build writes measure.MeasureTable into measureTable with the canonical
// column set.
func (b *Builder) Build(ctx context.Context, measureTable string, measure *models.Measure) error {
	if len(measure.MeasureTable) == 0 {
		return apperrors.New(apperrors.MeasureNonMatched, stage, fmt.Errorf("measure %q has no measure table rows", measure.FactTableColumn))
	}

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s (
		%s VARCHAR, %s VARCHAR, %s VARCHAR, %s VARCHAR,
		%s INTEGER, %s VARCHAR, %s INTEGER, %s VARCHAR, %s VARCHAR
	)`, measureTable,
		ColReference, ColLanguage, ColDescription, ColNotes,
		ColSortOrder, ColFormat, ColDecimals, ColMeasureType, ColHierarchy)
	if err := b.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, measureTable)
	for _, row := range measure.MeasureTable {
		if err := b.engine.Exec(ctx, insert,
			row.Reference, row.Language, row.Description, row.Notes,
			row.SortOrder, string(row.Format), row.Decimals, row.MeasureType, row.Hierarchy,
		); err != nil {
			return apperrors.New(apperrors.FailedToLoadData, stage, err)
		}
	}
	return nil
}

// CheckNonMatchingReferences counts fact rows whose measure reference does
// not appear in the measure table, returning MeasureNonMatchedRows if any
// are found.
func (b *Builder) CheckNonMatchingReferences(ctx context.Context, engine *columnar.Engine, factTable, measureColumn, measureTable string) error {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s f WHERE f.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s m WHERE m.%s = f.%s)`,
		factTable, sqlutil.QuoteIdent(measureColumn), measureTable, ColReference, sqlutil.QuoteIdent(measureColumn),
	)
	var n int64
	if err := engine.QueryRow(ctx, query).Scan(&n); err != nil {
		return apperrors.New(apperrors.MeasureNonMatched, stage, err)
	}
	if n > 0 {
		return apperrors.Newf(apperrors.MeasureNonMatched, stage, "%d fact row(s) reference a measure value not in the measure table", n)
	}
	return nil
}

// FormatExpression returns a SQL expression formatting the raw numeric
// column valueColumn according to format/decimals, to be projected
// alongside the unformatted value in a view.
func FormatExpression(valueColumn string, format models.MeasureFormat, decimals *int) string {
	col := sqlutil.QuoteIdent(valueColumn)
	switch format {
	case models.FormatInteger, models.FormatLong:
		return fmt.Sprintf("CAST(ROUND(%s) AS BIGINT)::VARCHAR", col)
	case models.FormatPercentage:
		places := decimalsOrDefault(decimals, 1)
		return fmt.Sprintf("ROUND(%s, %d)::VARCHAR || '%%'", col, places)
	case models.FormatDecimal, models.FormatFloat:
		places := decimalsOrDefault(decimals, 2)
		return fmt.Sprintf("ROUND(%s, %d)::VARCHAR", col, places)
	case models.FormatString, models.FormatText:
		return col
	case models.FormatDate:
		return fmt.Sprintf("STRFTIME(CAST(%s AS DATE), '%%Y-%%m-%%d')", col)
	case models.FormatDateTime:
		return fmt.Sprintf("STRFTIME(CAST(%s AS TIMESTAMP), '%%Y-%%m-%%d %%H:%%M:%%S')", col)
	case models.FormatTime:
		return fmt.Sprintf("STRFTIME(CAST(%s AS TIME), '%%H:%%M:%%S')", col)
	default:
		return col
	}
}

func decimalsOrDefault(decimals *int, def int) int {
	if decimals == nil {
		return def
	}
	return *decimals
}

// FormattedValueColumn is the name the formatted data value is added under
// before a fact table is promoted to Postgres; default_view_* projects it,
// raw_view_* projects the measure's declared data-value column instead.
const FormattedValueColumn = "formatted_value"

// AddFormattedValueColumn appends FormattedValueColumn to factTable and
// fills it per row according to each measure reference's declared format,
// falling back to the raw value for a reference with no measure-table row.
func (b *Builder) AddFormattedValueColumn(ctx context.Context, factTable, measureColumn, valueColumn string, rows []models.MeasureRow) error {
	alter := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s VARCHAR`, factTable, sqlutil.QuoteIdent(FormattedValueColumn))
	if err := b.engine.Exec(ctx, alter); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}

	update := fmt.Sprintf(`UPDATE %s SET %s = %s`, factTable, sqlutil.QuoteIdent(FormattedValueColumn),
		caseExpression(measureColumn, valueColumn, rows))
	if err := b.engine.Exec(ctx, update); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

// caseExpression builds a CASE over distinct measure references, each
// branch applying that reference's own FormatExpression; references with
// no measure-table row for any language fall through to the raw value.
func caseExpression(measureColumn, valueColumn string, rows []models.MeasureRow) string {
	seen := make(map[string]bool, len(rows))
	var sb strings.Builder
	sb.WriteString("CASE ")
	sb.WriteString(sqlutil.QuoteIdent(measureColumn))
	for _, row := range rows {
		if seen[row.Reference] {
			continue
		}
		seen[row.Reference] = true
		sb.WriteString(fmt.Sprintf(" WHEN %s THEN %s", sqlutil.QuoteLiteral(row.Reference), FormatExpression(valueColumn, row.Format, row.Decimals)))
	}
	sb.WriteString(fmt.Sprintf(" ELSE %s END", sqlutil.QuoteIdent(valueColumn)))
	return sb.String()
}

