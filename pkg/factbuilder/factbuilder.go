// Package factbuilder implements the fact-table assembler: it folds a
// dataset's ordered revision history (one staging table per uploaded data
// table) into a single cumulative fact table, applying each data table's
// action (ReplaceAll/Add/Revise/AddRevise) in upload order.
package factbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

const stage = "assemble"

// FactTableName is the table the assembler builds into within a build's
// columnar engine.
const FactTableName = "fact_table"

// Step pairs a staged data table with the already-loaded DuckDB table name
// holding its rows.
type Step struct {
	DataTable    *models.DataTable
	StagingTable string
}

// Assembler folds staged data tables into a cumulative fact table.
type Assembler struct {
	engine *columnar.Engine
}

// New creates an Assembler writing into engine.
func New(engine *columnar.Engine) *Assembler {
	return &Assembler{engine: engine}
}

// Assemble applies steps, in order, against dataset's column set. The
// first step in a dataset's entire history must be a ReplaceAll; callers
// building a non-first revision pass the full prior history plus the new
// step(s), not just the new step(s) alone.
func (a *Assembler) Assemble(ctx context.Context, dataset *models.Dataset, steps []Step) error {
	if len(steps) == 0 {
		return apperrors.New(apperrors.NoDataTable, stage, fmt.Errorf("no data tables to assemble"))
	}
	if steps[0].DataTable.Action != models.ActionReplaceAll {
		return apperrors.New(apperrors.NoFirstRevision, stage, fmt.Errorf("first data table action must be ReplaceAll, got %s", steps[0].DataTable.Action))
	}

	grain := dataset.GrainColumns()
	if len(grain) == 0 {
		return apperrors.Newf(apperrors.FactTableCreateFailed, stage, "dataset has no grain (dimension/time) columns")
	}
	dataValueCol, ok := dataset.ColumnByRole(models.RoleDataValues)
	if !ok {
		return apperrors.New(apperrors.NoDataValueColumn, stage, fmt.Errorf("dataset has no DataValues column"))
	}

	if err := a.createFactTable(ctx, dataset); err != nil {
		return err
	}

	for _, step := range steps {
		if err := a.apply(ctx, dataset, grain, dataValueCol, step); err != nil {
			return err
		}
	}

	if err := a.checkNonNumericDataValues(ctx, dataValueCol.Name); err != nil {
		return err
	}
	return nil
}

// createFactTable builds the fact table with every column as VARCHAR,
// mirroring the loader's all-varchar staging convention: type coercion is
// an explicit, checkable step (see checkNonNumericDataValues) rather than
// something left to implicit cast errors during INSERT.
func (a *Assembler) createFactTable(ctx context.Context, dataset *models.Dataset) error {
	cols := make([]string, 0, len(dataset.Columns))
	for _, c := range dataset.Columns {
		cols = append(cols, fmt.Sprintf("%s VARCHAR", sqlutil.QuoteIdent(c.Name)))
	}
	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s (%s)`, FactTableName, strings.Join(cols, ", "))
	if err := a.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FactTableCreateFailed, stage, err)
	}
	return nil
}

func (a *Assembler) apply(ctx context.Context, dataset *models.Dataset, grain []models.FactTableColumn, dataValueCol models.FactTableColumn, step Step) error {
	if err := a.checkIncompleteGrain(ctx, grain, step); err != nil {
		return err
	}

	switch step.DataTable.Action {
	case models.ActionReplaceAll:
		return a.replaceAll(ctx, dataset, step)
	case models.ActionAdd:
		return a.add(ctx, dataset, grain, step)
	case models.ActionRevise:
		return a.revise(ctx, dataset, grain, dataValueCol, step)
	case models.ActionAddRevise:
		return a.addRevise(ctx, dataset, grain, dataValueCol, step)
	default:
		return apperrors.Newf(apperrors.FactTableCreateFailed, stage, "unknown action %q", step.DataTable.Action)
	}
}

// checkIncompleteGrain fails fast if any staged row is missing a value for
// one of the grain (identifying) columns — such a row can never be matched
// or deduplicated against the fact table.
func (a *Assembler) checkIncompleteGrain(ctx context.Context, grain []models.FactTableColumn, step Step) error {
	conds := make([]string, len(grain))
	for i, c := range grain {
		conds[i] = fmt.Sprintf("%s IS NULL", sqlutil.QuoteIdent(c.Name))
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, step.StagingTable, strings.Join(conds, " OR "))
	var n int64
	if err := a.engine.QueryRow(ctx, query).Scan(&n); err != nil {
		return apperrors.New(apperrors.IncompleteFact, stage, err)
	}
	if n > 0 {
		return apperrors.Newf(apperrors.IncompleteFact, stage, "%d row(s) in %q missing a value for a grain column", n, step.DataTable.Filename)
	}
	return nil
}

func (a *Assembler) replaceAll(ctx context.Context, dataset *models.Dataset, step Step) error {
	cols := columnList(dataset)
	query := fmt.Sprintf(`DELETE FROM %s; INSERT INTO %s SELECT %s FROM %s`, FactTableName, FactTableName, cols, step.StagingTable)
	if err := a.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

func (a *Assembler) add(ctx context.Context, dataset *models.Dataset, grain []models.FactTableColumn, step Step) error {
	dupes, err := a.countGrainMatches(ctx, grain, step.StagingTable)
	if err != nil {
		return err
	}
	if dupes > 0 {
		return apperrors.Newf(apperrors.DuplicateFact, stage, "%d row(s) in %q already exist in the fact table", dupes, step.DataTable.Filename)
	}

	cols := columnList(dataset)
	query := fmt.Sprintf(`INSERT INTO %s SELECT %s FROM %s`, FactTableName, cols, step.StagingTable)
	if err := a.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

func (a *Assembler) revise(ctx context.Context, dataset *models.Dataset, grain []models.FactTableColumn, dataValueCol models.FactTableColumn, step Step) error {
	missing, err := a.countGrainMisses(ctx, grain, step.StagingTable)
	if err != nil {
		return err
	}
	if missing > 0 {
		return apperrors.Newf(apperrors.IncompleteFact, stage, "%d row(s) in %q revise facts that do not exist", missing, step.DataTable.Filename)
	}
	return a.updateMatching(ctx, dataset, grain, dataValueCol, step)
}

func (a *Assembler) addRevise(ctx context.Context, dataset *models.Dataset, grain []models.FactTableColumn, dataValueCol models.FactTableColumn, step Step) error {
	if err := a.updateMatching(ctx, dataset, grain, dataValueCol, step); err != nil {
		return err
	}

	joinCond := joinCondition("f", "s", grain)
	query := fmt.Sprintf(
		`INSERT INTO %s SELECT %s FROM %s s WHERE NOT EXISTS (SELECT 1 FROM %s f WHERE %s)`,
		FactTableName, prefixedColumnList("s", dataset), step.StagingTable, FactTableName, joinCond,
	)
	if err := a.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

// updateMatching overwrites the data-value and note-codes columns of every
// fact row matched by grain, from the corresponding staging row.
func (a *Assembler) updateMatching(ctx context.Context, dataset *models.Dataset, grain []models.FactTableColumn, dataValueCol models.FactTableColumn, step Step) error {
	setClauses := []string{fmt.Sprintf("%s = s.%s", sqlutil.QuoteIdent(dataValueCol.Name), sqlutil.QuoteIdent(dataValueCol.Name))}
	if noteCol, ok := dataset.ColumnByRole(models.RoleNoteCodes); ok {
		setClauses = append(setClauses, fmt.Sprintf("%s = s.%s", sqlutil.QuoteIdent(noteCol.Name), sqlutil.QuoteIdent(noteCol.Name)))
	}

	joinCond := joinCondition("f", "s", grain)
	query := fmt.Sprintf(
		`UPDATE %s f SET %s FROM %s s WHERE %s`,
		FactTableName, strings.Join(setClauses, ", "), step.StagingTable, joinCond,
	)
	if err := a.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return nil
}

func (a *Assembler) countGrainMatches(ctx context.Context, grain []models.FactTableColumn, stagingTable string) (int64, error) {
	joinCond := joinCondition("f", "s", grain)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s s WHERE EXISTS (SELECT 1 FROM %s f WHERE %s)`, stagingTable, FactTableName, joinCond)
	var n int64
	if err := a.engine.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return n, nil
}

func (a *Assembler) countGrainMisses(ctx context.Context, grain []models.FactTableColumn, stagingTable string) (int64, error) {
	joinCond := joinCondition("f", "s", grain)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s s WHERE NOT EXISTS (SELECT 1 FROM %s f WHERE %s)`, stagingTable, FactTableName, joinCond)
	var n int64
	if err := a.engine.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, apperrors.New(apperrors.FailedToLoadData, stage, err)
	}
	return n, nil
}

// checkNonNumericDataValues rejects a data value column that, after all
// steps have been applied, contains a value that cannot be cast to DOUBLE.
func (a *Assembler) checkNonNumericDataValues(ctx context.Context, dataValueColumn string) error {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND TRY_CAST(%s AS DOUBLE) IS NULL`,
		FactTableName, sqlutil.QuoteIdent(dataValueColumn), sqlutil.QuoteIdent(dataValueColumn),
	)
	var n int64
	if err := a.engine.QueryRow(ctx, query).Scan(&n); err != nil {
		return apperrors.New(apperrors.NonNumericDataValue, stage, err)
	}
	if n > 0 {
		return apperrors.Newf(apperrors.NonNumericDataValue, stage, "%d data value(s) are not numeric", n)
	}
	return nil
}

func joinCondition(leftAlias, rightAlias string, grain []models.FactTableColumn) string {
	conds := make([]string, len(grain))
	for i, c := range grain {
		col := sqlutil.QuoteIdent(c.Name)
		conds[i] = fmt.Sprintf("%s.%s IS NOT DISTINCT FROM %s.%s", leftAlias, col, rightAlias, col)
	}
	return strings.Join(conds, " AND ")
}

func columnList(dataset *models.Dataset) string {
	names := make([]string, len(dataset.Columns))
	for i, c := range dataset.Columns {
		names[i] = sqlutil.QuoteIdent(c.Name)
	}
	return strings.Join(names, ", ")
}

func prefixedColumnList(alias string, dataset *models.Dataset) string {
	names := make([]string, len(dataset.Columns))
	for i, c := range dataset.Columns {
		names[i] = fmt.Sprintf("%s.%s", alias, sqlutil.QuoteIdent(c.Name))
	}
	return strings.Join(names, ", ")
}
