// Package lookupdim implements the lookup-dimension builder (C5): it turns
// a staged lookup file (long-form: one row per code per language, or
// wide-form: one row per code with a description column per language)
// into the canonical `{column}_lookup` table every other component reads
// from.
package lookupdim

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

const stage = "lookup_dimension"

// Columns of the canonical lookup table this package builds.
const (
	ColCode        = "code"
	ColLanguage    = "language"
	ColDescription = "description"
	ColSortOrder   = "sort_order"
	ColHierarchy   = "hierarchy"
	ColNotes       = "notes"
)

// Builder materialises a canonical lookup table from a staged file.
type Builder struct {
	engine *columnar.Engine
}

// New creates a Builder writing into engine.
func New(engine *columnar.Engine) *Builder {
	return &Builder{engine: engine}
}

// Build reads stagingTable (already loaded by pkg/loader) according to
// extractor and writes lookupTable with the canonical column set.
func (b *Builder) Build(ctx context.Context, stagingTable, lookupTable string, extractor *models.LookupTableExtractor) error {
	joinColumn, err := b.inferJoinColumn(ctx, stagingTable, extractor)
	if err != nil {
		return err
	}

	if extractor.IsWideForm {
		return b.buildWideForm(ctx, stagingTable, lookupTable, joinColumn, extractor)
	}
	return b.buildLongForm(ctx, stagingTable, lookupTable, joinColumn, extractor)
}

// inferJoinColumn returns the staging column identifying each code: the
// extractor's first description column's source is never it, so the join
// column is whichever remaining column looks like the code/identifier
// column. Dimension.JoinColumn (resolved by the caller) always wins; this
// is only consulted when a dimension does not set one explicitly.
func (b *Builder) inferJoinColumn(ctx context.Context, stagingTable string, extractor *models.LookupTableExtractor) (string, error) {
	cols, err := b.columns(ctx, stagingTable)
	if err != nil {
		return "", err
	}
	descriptionNames := make(map[string]bool, len(extractor.DescriptionColumns))
	for _, dc := range extractor.DescriptionColumns {
		descriptionNames[dc.Name] = true
	}

	candidates := make([]string, 0, 1)
	for _, c := range cols {
		if descriptionNames[c] || c == extractor.LanguageColumn || c == extractor.SortColumn ||
			c == extractor.HierarchyColumn || contains(extractor.NotesColumns, c) {
			continue
		}
		candidates = append(candidates, c)
	}

	switch len(candidates) {
	case 0:
		return "", apperrors.New(apperrors.NoJoinColumn, stage, fmt.Errorf("no candidate join column found in %q", stagingTable))
	case 1:
		return candidates[0], nil
	default:
		// First non-description column, by staging column order, is the
		// conventional identifier column.
		return candidates[0], nil
	}
}

func (b *Builder) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := b.engine.Query(ctx, fmt.Sprintf(`DESCRIBE %s`, table))
	if err != nil {
		return nil, apperrors.New(apperrors.InvalidCSV, stage, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, colType, null, key, def, extra any
		if err := rows.Scan(&name, &colType, &null, &key, &def, &extra); err != nil {
			return nil, apperrors.New(apperrors.InvalidCSV, stage, err)
		}
		cols = append(cols, fmt.Sprintf("%v", name))
	}
	return cols, rows.Err()
}

// buildLongForm handles one row per (code, language): description,
// sort order, hierarchy parent and notes are read straight off their
// named columns.
func (b *Builder) buildLongForm(ctx context.Context, staging, lookup, joinColumn string, extractor *models.LookupTableExtractor) error {
	if len(extractor.DescriptionColumns) != 1 {
		return apperrors.Newf(apperrors.InvalidCSV, stage, "long-form lookup must declare exactly one description column, got %d", len(extractor.DescriptionColumns))
	}
	descCol := extractor.DescriptionColumns[0].Name
	langCol := extractor.LanguageColumn
	if langCol == "" {
		return apperrors.New(apperrors.InvalidCSV, stage, fmt.Errorf("long-form lookup requires a language column"))
	}

	selects := []string{
		fmt.Sprintf("%s AS %s", sqlutil.QuoteIdent(joinColumn), ColCode),
		fmt.Sprintf("%s AS %s", sqlutil.QuoteIdent(langCol), ColLanguage),
		fmt.Sprintf("%s AS %s", sqlutil.QuoteIdent(descCol), ColDescription),
	}
	selects = append(selects, optionalColumn(extractor.SortColumn, ColSortOrder))
	selects = append(selects, optionalColumn(extractor.HierarchyColumn, ColHierarchy))
	selects = append(selects, notesColumn(extractor.NotesColumns))

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT %s FROM %s`, lookup, strings.Join(selects, ", "), staging)
	if err := b.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.InvalidCSV, stage, err)
	}
	return b.rejectDuplicateCodes(ctx, lookup)
}

// buildWideForm handles one row per code, with one description column per
// language (e.g. description_en, description_cy); it UNPIVOTs into the
// long canonical shape.
func (b *Builder) buildWideForm(ctx context.Context, staging, lookup, joinColumn string, extractor *models.LookupTableExtractor) error {
	if len(extractor.DescriptionColumns) == 0 {
		return apperrors.New(apperrors.InvalidCSV, stage, fmt.Errorf("wide-form lookup must declare at least one description column"))
	}

	parts := make([]string, len(extractor.DescriptionColumns))
	for i, dc := range extractor.DescriptionColumns {
		selects := []string{
			fmt.Sprintf("%s AS %s", sqlutil.QuoteIdent(joinColumn), ColCode),
			fmt.Sprintf("%s AS %s", sqlutil.QuoteLiteral(dc.Lang), ColLanguage),
			fmt.Sprintf("%s AS %s", sqlutil.QuoteIdent(dc.Name), ColDescription),
		}
		selects = append(selects, optionalColumn(extractor.SortColumn, ColSortOrder))
		selects = append(selects, optionalColumn(extractor.HierarchyColumn, ColHierarchy))
		selects = append(selects, notesColumn(extractor.NotesColumns))
		parts[i] = fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), staging)
	}

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS %s`, lookup, strings.Join(parts, " UNION ALL "))
	if err := b.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.InvalidCSV, stage, err)
	}
	return b.rejectDuplicateCodes(ctx, lookup)
}

func (b *Builder) rejectDuplicateCodes(ctx context.Context, lookup string) error {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT %s, %s FROM %s GROUP BY %s, %s HAVING COUNT(*) > 1) d`,
		ColCode, ColLanguage, lookup, ColCode, ColLanguage,
	)
	var n int64
	if err := b.engine.QueryRow(ctx, query).Scan(&n); err != nil {
		return apperrors.New(apperrors.InvalidCSV, stage, err)
	}
	if n > 0 {
		return apperrors.Newf(apperrors.InvalidCSV, stage, "%d (code, language) pair(s) are duplicated in the lookup", n)
	}
	return nil
}

func optionalColumn(source, alias string) string {
	if source == "" {
		return fmt.Sprintf("NULL AS %s", alias)
	}
	return fmt.Sprintf("%s AS %s", sqlutil.QuoteIdent(source), alias)
}

func notesColumn(sources []string) string {
	if len(sources) == 0 {
		return fmt.Sprintf("NULL AS %s", ColNotes)
	}
	quoted := make([]string, len(sources))
	for i, s := range sources {
		quoted[i] = sqlutil.QuoteIdent(s)
	}
	return fmt.Sprintf("CONCAT_WS(',', %s) AS %s", strings.Join(quoted, ", "), ColNotes)
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
