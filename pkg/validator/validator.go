// Package validator implements the dimension validator (C9): after the fact
// table and every dimension/reference lookup have been built, it checks
// that every non-null fact value has a matching lookup row. A dimension
// with unmatched rows does not fail the build; it is recorded as a
// RevisionTask so the caller can treat it as Raw until an updated lookup
// is supplied.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

const stage = "dimension_validation"

// lookupKinds are the dimension types backed by a code/language lookup
// table this validator can check. Raw, Numeric, Text, Symbol and Date
// dimensions have no lookup to mismatch against.
var lookupKinds = map[models.DimensionType]bool{
	models.DimensionLookupTable:   true,
	models.DimensionReferenceData: true,
}

// Result is one dimension's referential-integrity check outcome.
type Result struct {
	Dimension      models.Dimension
	UnmatchedCount int64
	Sample         []string

	// IncompleteCodes holds the (bounded) sample of lookup codes missing a
	// non-null description for at least one configured language.
	IncompleteCodes []string
}

// Matched reports whether every non-null fact value for this dimension was
// found in its lookup table, and every lookup code has a non-null
// description for every configured language.
func (r Result) Matched() bool { return r.UnmatchedCount == 0 && len(r.IncompleteCodes) == 0 }

// Validator checks fact-table dimension columns against their lookup
// tables.
type Validator struct {
	engine     *columnar.Engine
	sampleSize int
	languages  []string
}

// New creates a Validator. sampleSize bounds how many distinct unmatched
// values/codes are returned per dimension (config
// BuildConfig.NonMatchingSampleSize). languages is the build's full set of
// supported locale codes, used to check lookup-table language coverage.
func New(engine *columnar.Engine, sampleSize int, languages []string) *Validator {
	if sampleSize <= 0 {
		sampleSize = 50
	}
	return &Validator{engine: engine, sampleSize: sampleSize, languages: languages}
}

// Validate checks every lookup-backed dimension in dataset against factTable,
// returning one Result per such dimension. sanitise must match the function
// used to build each dimension's lookup table name.
func (v *Validator) Validate(ctx context.Context, factTable string, dataset *models.Dataset, sanitise func(string) string) ([]Result, error) {
	var results []Result
	for _, dim := range dataset.Dimensions {
		if !lookupKinds[dim.Type] {
			continue
		}
		result, err := v.validateDimension(ctx, factTable, dim, sanitise)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (v *Validator) validateDimension(ctx context.Context, factTable string, dim models.Dimension, sanitise func(string) string) (Result, error) {
	lookup := dim.SanitisedLookupName(sanitise)
	col := sqlutil.QuoteIdent(dim.FactTableColumn)

	countQuery := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s f WHERE f.%s IS NOT NULL AND NOT EXISTS (
			SELECT 1 FROM %s l WHERE l.code IS NOT DISTINCT FROM f.%s
		)`, factTable, col, lookup, col,
	)
	var n int64
	if err := v.engine.QueryRow(ctx, countQuery).Scan(&n); err != nil {
		return Result{}, apperrors.New(apperrors.DimensionNonMatched, stage, err)
	}
	if n == 0 {
		incomplete, err := v.checkLanguageCoverage(ctx, lookup)
		if err != nil {
			return Result{}, err
		}
		return Result{Dimension: dim, UnmatchedCount: 0, IncompleteCodes: incomplete}, nil
	}

	sampleQuery := fmt.Sprintf(
		`SELECT DISTINCT f.%s FROM %s f WHERE f.%s IS NOT NULL AND NOT EXISTS (
			SELECT 1 FROM %s l WHERE l.code IS NOT DISTINCT FROM f.%s
		) LIMIT %d`, col, factTable, col, lookup, col, v.sampleSize,
	)
	rows, err := v.engine.Query(ctx, sampleQuery)
	if err != nil {
		return Result{}, apperrors.New(apperrors.DimensionNonMatched, stage, err)
	}
	defer rows.Close()

	var sample []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return Result{}, apperrors.New(apperrors.DimensionNonMatched, stage, err)
		}
		sample = append(sample, value)
	}
	if err := rows.Err(); err != nil {
		return Result{}, apperrors.New(apperrors.DimensionNonMatched, stage, err)
	}

	result := Result{Dimension: dim, UnmatchedCount: n, Sample: sample}

	incomplete, err := v.checkLanguageCoverage(ctx, lookup)
	if err != nil {
		return Result{}, err
	}
	result.IncompleteCodes = incomplete
	return result, nil
}

// checkLanguageCoverage returns the (bounded) sample of a lookup table's
// distinct codes that do not have a non-null description row for every
// configured language — the spec's "every lookup table covers every
// supported language in full" invariant. A Validator with no configured
// languages skips the check entirely (nothing to compare coverage against).
func (v *Validator) checkLanguageCoverage(ctx context.Context, lookup string) ([]string, error) {
	if len(v.languages) == 0 {
		return nil, nil
	}

	langList := make([]string, len(v.languages))
	for i, lang := range v.languages {
		langList[i] = sqlutil.QuoteLiteral(lang)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT code FROM %s
		WHERE code NOT IN (
			SELECT code FROM %s
			WHERE language IN (%s) AND description IS NOT NULL
			GROUP BY code
			HAVING COUNT(DISTINCT language) = %d
		)
		LIMIT %d`, lookup, lookup, strings.Join(langList, ", "), len(v.languages), v.sampleSize,
	)
	rows, err := v.engine.Query(ctx, query)
	if err != nil {
		return nil, apperrors.New(apperrors.DimensionNonMatched, stage, err)
	}
	defer rows.Close()

	var incomplete []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, apperrors.New(apperrors.DimensionNonMatched, stage, err)
		}
		incomplete = append(incomplete, code)
	}
	return incomplete, rows.Err()
}

// ApplyResults records every unmatched Result as a DimensionUpdateTask on
// task, so the affected dimensions are treated as Raw until resolved.
func ApplyResults(results []Result, task *models.RevisionTask) {
	for _, r := range results {
		if r.Matched() {
			continue
		}
		task.AddDimensionTask(models.DimensionUpdateTask{
			DimensionID:        r.Dimension.ID,
			LookupTableUpdated: false,
		})
	}
}

// Error builds the non-fatal BuildError a caller can surface (e.g. for
// logging or a validation payload) for one unmatched dimension.
func (r Result) Error(datasetID, revisionID string) *apperrors.BuildError {
	err := apperrors.Newf(apperrors.DimensionNonMatched, stage,
		"dimension %q: %d fact row(s) not found in its lookup table", r.Dimension.FactTableColumn, r.UnmatchedCount)
	err.DatasetID = datasetID
	err.RevisionID = revisionID
	err.Field = r.Dimension.FactTableColumn
	return err
}
