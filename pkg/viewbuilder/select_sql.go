package viewbuilder

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/lookupdim"
	"github.com/ekaya-inc/cubebuilder/pkg/measure"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/notecodes"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

// selectSpec carries everything buildSelectSQL needs to render one
// default_view_L/raw_view_L query for one language.
type selectSpec struct {
	dataset *models.Dataset
	plans   []DimensionPlan
	language string

	measureColumn string
	hasMeasure    bool
	valueColumn   string
	formatted     bool

	noteColumn string
	hasNotes   bool
}

// buildSelectSQL renders the projection described in §"View builder":
// measure-formatted (or raw) data value, measure description, every
// dimension resolved through its lookup (or projected raw), and the
// note-code string, ordered by measure sort/reference, then each
// lookup-backed dimension's sort_order, then date-period end (folded into the same
// ordinal since pkg/datedim.WriteTable stores period end as sort_order).
func buildSelectSQL(spec selectSpec) string {
	var selects []string
	var joins []string
	var order []string

	if spec.hasMeasure {
		valueExpr := sqlutil.QuoteQualified("f", spec.valueColumn)
		if spec.formatted {
			valueExpr = sqlutil.QuoteQualified("f", measure.FormattedValueColumn)
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", valueExpr, sqlutil.QuoteIdent("data_value")))
		selects = append(selects, fmt.Sprintf("%s AS %s", sqlutil.QuoteQualified("m", measure.ColDescription), sqlutil.QuoteIdent("measure_description")))

		joins = append(joins, fmt.Sprintf(
			"LEFT JOIN %s m ON m.%s = f.%s AND m.%s = %s",
			sqlutil.QuoteIdent(MeasureTable), sqlutil.QuoteIdent(measure.ColReference), sqlutil.QuoteIdent(spec.measureColumn),
			sqlutil.QuoteIdent(measure.ColLanguage), sqlutil.QuoteLiteral(spec.language),
		))
		order = append(order, fmt.Sprintf(`m.%s NULLS LAST`, sqlutil.QuoteIdent(measure.ColSortOrder)), fmt.Sprintf(`m.%s`, sqlutil.QuoteIdent(measure.ColReference)))
	} else {
		selects = append(selects, fmt.Sprintf("%s AS %s", sqlutil.QuoteQualified("f", spec.valueColumn), sqlutil.QuoteIdent("data_value")))
	}

	for i, plan := range spec.plans {
		col := plan.Dimension.FactTableColumn
		alias := fmt.Sprintf("l%d", i)
		if plan.LookupTable == "" {
			selects = append(selects, fmt.Sprintf("%s AS %s", sqlutil.QuoteQualified("f", col), sqlutil.QuoteIdent(col)))
			continue
		}
		selects = append(selects, fmt.Sprintf(
			"COALESCE(%s, %s) AS %s",
			sqlutil.QuoteQualified(alias, lookupdim.ColDescription), sqlutil.QuoteQualified("f", col), sqlutil.QuoteIdent(col),
		))
		joins = append(joins, fmt.Sprintf(
			"LEFT JOIN %s %s ON %s = %s AND %s = %s",
			sqlutil.QuoteIdent(plan.LookupTable), alias,
			sqlutil.QuoteQualified(alias, lookupdim.ColCode), sqlutil.QuoteQualified("f", col),
			sqlutil.QuoteQualified(alias, lookupdim.ColLanguage), sqlutil.QuoteLiteral(spec.language),
		))
		order = append(order, fmt.Sprintf(`%s NULLS LAST`, sqlutil.QuoteQualified(alias, lookupdim.ColSortOrder)))
	}

	if spec.hasNotes {
		selects = append(selects, fmt.Sprintf("%s AS %s", allNotesExpression(spec.noteColumn, spec.language), sqlutil.QuoteIdent(notecodes.AllNotesColumn)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s f %s",
		strings.Join(selects, ", "), sqlutil.QuoteIdent("fact_table"), strings.Join(joins, " "))
	if len(order) > 0 {
		query += " ORDER BY " + strings.Join(order, ", ")
	}
	return query
}

// allNotesExpression renders the Postgres equivalent of
// pkg/notecodes.AllNotesExpression: splits a row's comma-separated note
// codes and joins their descriptions for one language.
func allNotesExpression(noteColumn, language string) string {
	return fmt.Sprintf(`(
		SELECT STRING_AGG(n.description, ', ' ORDER BY n.description)
		FROM UNNEST(STRING_TO_ARRAY(%s, ',')) AS code
		JOIN %s n ON n.code = TRIM(code) AND n.language = %s
	)`, sqlutil.QuoteQualified("f", noteColumn), sqlutil.QuoteIdent(NotesTable), sqlutil.QuoteLiteral(language))
}
