// Package refdata loads the embedded reference-data catalogue (C6): a
// fixed set of categorised code lists (ISO countries, standard geography
// hierarchies, and similar) that a dataset can attach a dimension to
// without uploading its own lookup file.
package refdata

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
)

//go:embed data/*.csv
var catalogue embed.FS

const stage = "reference_data"

// catalogueFiles maps each catalogue table name to its embedded CSV.
var catalogueFiles = map[string]string{
	"categories":        "data/categories.csv",
	"category_key":       "data/category_key.csv",
	"category_info":      "data/category_info.csv",
	"category_key_info":  "data/category_key_info.csv",
	"reference_data":     "data/reference_data.csv",
	"reference_data_info": "data/reference_data_info.csv",
	"hierarchy":           "data/hierarchy.csv",
}

// Builder materialises a filtered slice of the embedded catalogue into the
// canonical lookup shape consumed by the validator and view builder.
type Builder struct {
	engine *columnar.Engine
	loaded bool
}

// New creates a Builder writing into engine.
func New(engine *columnar.Engine) *Builder {
	return &Builder{engine: engine}
}

// ensureCatalogue loads every embedded CSV into the engine once per build,
// under its own table name, so Build can filter with plain SQL.
func (b *Builder) ensureCatalogue(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	for table, path := range catalogueFiles {
		data, err := catalogue.ReadFile(path)
		if err != nil {
			return apperrors.New(apperrors.FailedToLoadData, stage, err)
		}
		tmp, cleanup, err := writeTempCSV(data)
		if err != nil {
			return apperrors.New(apperrors.FailedToLoadData, stage, err)
		}
		err = b.engine.Exec(ctx, fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(?, header=true)`, table), tmp)
		cleanup()
		if err != nil {
			return apperrors.New(apperrors.FailedToLoadData, stage, err)
		}
	}
	b.loaded = true
	return nil
}

// Build filters the embedded catalogue down to the given categories and
// writes lookupTable with the canonical (code, language, description,
// sort_order, hierarchy, notes) shape, pruning any hierarchy parent that falls outside
// the selected categories.
func (b *Builder) Build(ctx context.Context, lookupTable string, categories []string) error {
	if len(categories) == 0 {
		return apperrors.New(apperrors.FailedToLoadData, stage, fmt.Errorf("reference data extractor names no categories"))
	}
	if err := b.ensureCatalogue(ctx); err != nil {
		return err
	}

	placeholders := make([]string, len(categories))
	args := make([]any, len(categories))
	for i, c := range categories {
		placeholders[i] = "?"
		args[i] = c
	}
	inClause := strings.Join(placeholders, ", ")

	query := fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s AS
		SELECT
			rd.item_code AS code,
			rdi.language AS language,
			rdi.description AS description,
			rd.sort_order AS sort_order,
			h.parent_code AS hierarchy,
			NULL AS notes
		FROM reference_data rd
		JOIN reference_data_info rdi ON rdi.category = rd.category AND rdi.item_code = rd.item_code
		LEFT JOIN hierarchy h ON h.category = rd.category AND h.item_code = rd.item_code
			AND h.parent_code IN (SELECT item_code FROM reference_data WHERE category IN (%s))
		WHERE rd.category IN (%s)
		ORDER BY rd.category, rd.sort_order, rdi.language`,
		lookupTable, inClause, inClause,
	)

	args = append(append([]any{}, args...), args...)
	if err := b.engine.Exec(ctx, query, args...); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}

	n, err := b.engine.CountRows(ctx, lookupTable)
	if err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.FailedToLoadData, stage, "no reference data found for categories %v", categories)
	}
	return nil
}

// Categories returns the catalogue's full list of known category codes,
// used to validate a ReferenceDataExtractor at dimension-creation time.
func (b *Builder) Categories(ctx context.Context) ([]string, error) {
	if err := b.ensureCatalogue(ctx); err != nil {
		return nil, err
	}
	rows, err := b.engine.Query(ctx, `SELECT category FROM categories ORDER BY category`)
	if err != nil {
		return nil, apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, apperrors.New(apperrors.FailedToLoadData, stage, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
