package viewbuilder

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

// BuildFilterIndex populates filter_table with one row per
// (dimension_name, reference, language) for every lookup-backed dimension,
// the source of truth for UI filter trees. A dimension projected raw (no
// lookup table) contributes no filter rows: its values come straight from
// the fact table with no separate code/description pair to index.
func (b *Builder) BuildFilterIndex(ctx context.Context, plans []DimensionPlan) error {
	if _, err := b.conn.Exec(ctx, `DELETE FROM filter_table`); err != nil {
		return apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}

	for _, plan := range plans {
		if plan.LookupTable == "" {
			continue
		}
		query := fmt.Sprintf(`
			INSERT INTO filter_table (reference, language, fact_table_column, dimension_name, description, hierarchy)
			SELECT code, language, %s, %s, description, hierarchy
			FROM %s
			ON CONFLICT (reference, language, fact_table_column) DO UPDATE SET
				description = EXCLUDED.description, hierarchy = EXCLUDED.hierarchy`,
			sqlutil.QuoteLiteral(plan.Dimension.FactTableColumn),
			sqlutil.QuoteLiteral(plan.Dimension.FactTableColumn),
			sqlutil.QuoteIdent(plan.LookupTable),
		)
		if _, err := b.conn.Exec(ctx, query); err != nil {
			return apperrors.New(apperrors.CubeCreationFailed, stage, err)
		}
	}
	return nil
}
