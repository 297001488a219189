// Package viewbuilder implements the view builder (C10): once the fact
// table, lookups, measure and note-code tables have been promoted into a
// revision's Postgres schema, it emits the per-language default_view_*/
// raw_view_* views, the filter index, and the metadata rows that record
// each view's defining SQL.
package viewbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

const stage = "view_builder"

// MeasureTable and NotesTable are the fixed table names the revision
// controller promotes the measure and note-code vocabulary lookups under
// (the latter matching pkg/notecodes.Table so the promoted copy joins
// exactly like its DuckDB original).
const (
	MeasureTable = "measure"
	NotesTable   = "note_codes"
)

// dimensionKinds backed by a {code, language, description, ...} lookup this
// package can join against. Raw, Numeric, Text and Symbol dimensions have
// none; DatePeriod's lookup is written by pkg/datedim.WriteTable in the same
// canonical shape.
var lookupKinds = map[models.DimensionType]bool{
	models.DimensionLookupTable:   true,
	models.DimensionReferenceData: true,
	models.DimensionDatePeriod:    true,
}

// DimensionPlan is one fact column's view-projection strategy.
type DimensionPlan struct {
	Dimension   models.Dimension
	LookupTable string // empty when the dimension projects its raw value
}

// PlanDimensions decides, for every dataset dimension, whether its
// description is resolved through a lookup join or projected raw.
// rawOverride marks dimensions the validator downgraded to raw for this
// build (DimensionNonMatchedRows), even if their declared type has a
// lookup table.
func PlanDimensions(dataset *models.Dataset, sanitise func(string) string, rawOverride map[uuid.UUID]bool) []DimensionPlan {
	plans := make([]DimensionPlan, 0, len(dataset.Dimensions))
	for _, dim := range dataset.Dimensions {
		plan := DimensionPlan{Dimension: dim}
		if lookupKinds[dim.Type] && !rawOverride[dim.ID] {
			plan.LookupTable = dim.SanitisedLookupName(sanitise)
		}
		plans = append(plans, plan)
	}
	return plans
}

// Builder creates views and the filter index in a revision's Postgres
// schema.
type Builder struct {
	conn *pgxpool.Conn
}

// New creates a Builder writing through conn, already scoped to the target
// revision schema (see database.OpenRevisionSchema).
func New(conn *pgxpool.Conn) *Builder {
	return &Builder{conn: conn}
}

// BuildViews creates default_view_L and raw_view_L for every language,
// recording each view's SQL into the metadata table.
func (b *Builder) BuildViews(ctx context.Context, dataset *models.Dataset, plans []DimensionPlan, languages []string) error {
	measureCol, hasMeasure := dataset.ColumnByRole(models.RoleMeasure)
	valueCol, hasValue := dataset.ColumnByRole(models.RoleDataValues)
	if !hasValue {
		return apperrors.New(apperrors.NoDataValueColumn, stage, fmt.Errorf("dataset has no DataValues column"))
	}
	noteCol, hasNotes := dataset.ColumnByRole(models.RoleNoteCodes)

	for _, lang := range languages {
		defaultSQL := buildSelectSQL(selectSpec{
			dataset: dataset, plans: plans, language: lang,
			measureColumn: measureCol.Name, hasMeasure: hasMeasure,
			valueColumn: valueCol.Name, formatted: true,
			noteColumn: noteCol.Name, hasNotes: hasNotes,
		})
		rawSQL := buildSelectSQL(selectSpec{
			dataset: dataset, plans: plans, language: lang,
			measureColumn: measureCol.Name, hasMeasure: hasMeasure,
			valueColumn: valueCol.Name, formatted: false,
			noteColumn: noteCol.Name, hasNotes: hasNotes,
		})

		defaultName := "default_view_" + lang
		rawName := "raw_view_" + lang
		if err := b.createView(ctx, defaultName, defaultSQL); err != nil {
			return err
		}
		if err := b.createView(ctx, rawName, rawSQL); err != nil {
			return err
		}
		if err := b.writeMetadata(ctx, defaultName, defaultSQL); err != nil {
			return err
		}
		if err := b.writeMetadata(ctx, rawName, rawSQL); err != nil {
			return err
		}
	}
	return nil
}

// MaterializeViews creates the materialised sibling of every base view
// already written. Failure here marks the build failed without rolling
// back the base (already queryable) views.
func (b *Builder) MaterializeViews(ctx context.Context, languages []string) error {
	for _, lang := range languages {
		for _, prefix := range []string{"default_view_", "raw_view_"} {
			view := prefix + lang
			matView := strings.Replace(prefix, "view_", "mat_view_", 1) + lang
			query := fmt.Sprintf(`CREATE MATERIALIZED VIEW IF NOT EXISTS %s AS SELECT * FROM %s`,
				sqlutil.QuoteIdent(matView), sqlutil.QuoteIdent(view))
			if _, err := b.conn.Exec(ctx, query); err != nil {
				return apperrors.New(apperrors.CubeCreationFailed, stage, err)
			}
		}
	}
	return nil
}

func (b *Builder) createView(ctx context.Context, name, selectSQL string) error {
	query := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS %s`, sqlutil.QuoteIdent(name), selectSQL)
	if _, err := b.conn.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}
	return nil
}

func (b *Builder) writeMetadata(ctx context.Context, key, value string) error {
	query := `INSERT INTO metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := b.conn.Exec(ctx, query, key, value); err != nil {
		return apperrors.New(apperrors.CubeCreationFailed, stage, err)
	}
	return nil
}
