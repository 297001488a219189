// Package revision implements the revision controller: the orchestrator
// that drives a dataset revision through the cube_state state machine
// (absent -> building -> awaiting_materialisation -> complete/failed),
// calling each build-pipeline component in turn and promoting their
// DuckDB staging output into the revision's dedicated Postgres schema.
package revision

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/config"
	"github.com/ekaya-inc/cubebuilder/pkg/database"
	"github.com/ekaya-inc/cubebuilder/pkg/datedim"
	"github.com/ekaya-inc/cubebuilder/pkg/factbuilder"
	"github.com/ekaya-inc/cubebuilder/pkg/filestore"
	"github.com/ekaya-inc/cubebuilder/pkg/logging"
	"github.com/ekaya-inc/cubebuilder/pkg/lookupdim"
	"github.com/ekaya-inc/cubebuilder/pkg/loader"
	"github.com/ekaya-inc/cubebuilder/pkg/measure"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/notecodes"
	"github.com/ekaya-inc/cubebuilder/pkg/pgstage"
	"github.com/ekaya-inc/cubebuilder/pkg/refdata"
	"github.com/ekaya-inc/cubebuilder/pkg/repositories"
	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
	"github.com/ekaya-inc/cubebuilder/pkg/validator"
	"github.com/ekaya-inc/cubebuilder/pkg/viewbuilder"
)

const stage = "revision_controller"

// Repositories bundles the control-plane data access a build reads and
// writes through.
type Repositories struct {
	Datasets   repositories.DatasetRepository
	Revisions  repositories.RevisionRepository
	DataTables repositories.DataTableRepository
}

// Controller drives one revision's cube build end to end.
type Controller struct {
	repos  Repositories
	store  filestore.Store
	db     *database.DB
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a Controller.
func New(repos Repositories, store filestore.Store, db *database.DB, cfg *config.Config, logger *zap.Logger) *Controller {
	return &Controller{repos: repos, store: store, db: db, cfg: cfg, logger: logger}
}

// Build runs the full pipeline for one revision: stage every historical
// data table, assemble the fact table, build every dimension/measure/
// note-code lookup, validate referential integrity, promote everything
// into the revision's Postgres schema, and build its views and filter
// index. The revision's cube_state tracks progress so a caller can poll it;
// Build itself runs synchronously to completion or failure.
func (c *Controller) Build(ctx context.Context, datasetID, revisionID uuid.UUID) error {
	buildID := uuid.New().String()
	log := logging.ForBuild(c.logger, datasetID.String(), revisionID.String(), buildID)
	log.Info("build started")

	if err := c.repos.Revisions.UpdateCubeState(ctx, revisionID, models.CubeBuilding); err != nil {
		return fmt.Errorf("mark building: %w", err)
	}

	if err := c.run(ctx, log, datasetID, revisionID); err != nil {
		log.Error("build failed", zap.String("error", logging.SanitizeError(err)))
		if updateErr := c.repos.Revisions.UpdateCubeState(ctx, revisionID, models.CubeFailed); updateErr != nil {
			log.Error("failed to mark revision failed", zap.String("error", logging.SanitizeError(updateErr)))
		}
		if c.cfg.Build.CleanupSchemaOnFailure {
			c.dropSchema(ctx, log, revisionID)
		}
		return err
	}

	log.Info("build finished")
	return nil
}

func (c *Controller) dropSchema(ctx context.Context, log *zap.Logger, revisionID uuid.UUID) {
	schema, err := c.db.OpenRevisionSchema(ctx, revisionID.String())
	if err != nil {
		log.Error("failed to open schema for cleanup", zap.String("error", logging.SanitizeError(err)))
		return
	}
	defer schema.Close(ctx)
	if err := schema.Drop(ctx); err != nil {
		log.Error("failed to drop schema after failed build", zap.String("error", logging.SanitizeError(err)))
	}
}

func (c *Controller) run(ctx context.Context, log *zap.Logger, datasetID, revisionID uuid.UUID) error {
	dataset, err := c.repos.Datasets.GetByID(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	revision, err := c.repos.Revisions.GetByID(ctx, revisionID)
	if err != nil {
		return fmt.Errorf("load revision: %w", err)
	}

	engine, err := columnar.Open(ctx, columnar.Config{TempDir: c.cfg.Columnar.TempDir, MemoryLimitMB: c.cfg.Columnar.MemoryLimitMB})
	if err != nil {
		return fmt.Errorf("open staging engine: %w", err)
	}
	defer engine.Close()

	fileLoader := loader.New(engine)

	if err := c.stageAndAssemble(ctx, log, engine, fileLoader, dataset, datasetID); err != nil {
		return err
	}

	rawOverride := map[uuid.UUID]bool{}

	if err := c.buildDateDimension(ctx, log, engine, dataset); err != nil {
		return err
	}
	if err := c.buildLookupDimensions(ctx, log, engine, fileLoader, dataset, datasetID); err != nil {
		return err
	}
	if err := c.buildReferenceDataDimensions(ctx, log, engine, dataset); err != nil {
		return err
	}
	if err := c.buildMeasure(ctx, log, engine, dataset); err != nil {
		return err
	}
	if err := c.buildNoteCodes(ctx, log, engine, dataset); err != nil {
		return err
	}

	task, err := c.validateDimensions(ctx, log, engine, dataset, rawOverride)
	if err != nil {
		return err
	}
	if task != nil {
		if err := c.repos.Revisions.UpdateTasks(ctx, revisionID, task); err != nil {
			return fmt.Errorf("persist revision tasks: %w", err)
		}
	}

	schema, err := c.db.OpenRevisionSchema(ctx, revisionID.String())
	if err != nil {
		return fmt.Errorf("open revision schema: %w", err)
	}
	defer schema.Close(ctx)
	if err := schema.EnsureTables(ctx); err != nil {
		return fmt.Errorf("ensure revision schema tables: %w", err)
	}

	if err := c.promote(ctx, log, engine, schema, dataset, rawOverride); err != nil {
		return err
	}

	if err := c.buildViews(ctx, log, schema, dataset, rawOverride); err != nil {
		return err
	}

	if err := c.stampMetadata(ctx, schema, dataset, revision, buildID); err != nil {
		return err
	}

	if c.cfg.Build.MaterializeViews {
		if err := c.repos.Revisions.UpdateCubeState(ctx, revisionID, models.CubeAwaitingMaterialization); err != nil {
			return fmt.Errorf("mark awaiting materialisation: %w", err)
		}
		vb := viewbuilder.New(schema.Conn)
		if err := vb.MaterializeViews(ctx, c.cfg.Languages); err != nil {
			return err
		}
	}

	if err := c.repos.Revisions.UpdateCubeState(ctx, revisionID, models.CubeComplete); err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	return nil
}

// stageAndAssemble spills every data table in the dataset's history to a
// temp file, loads it into its own staging table, renames its columns from
// their source header names to FactTableColumn names per
// DataTable.ColumnDescriptions, and folds the result into the fact table.
func (c *Controller) stageAndAssemble(ctx context.Context, log *zap.Logger, engine *columnar.Engine, fileLoader *loader.Loader, dataset *models.Dataset, datasetID uuid.UUID) error {
	history, err := c.repos.DataTables.ListForHistory(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("list data table history: %w", err)
	}

	steps := make([]factbuilder.Step, 0, len(history))
	for i, dt := range history {
		stagingTable := fmt.Sprintf("staging_%d", i)
		if err := c.stageDataTable(ctx, fileLoader, datasetID, dt, stagingTable); err != nil {
			return err
		}
		steps = append(steps, factbuilder.Step{DataTable: dt, StagingTable: stagingTable})
	}

	log.Info("assembling fact table", zap.Int("steps", len(steps)))
	return factbuilder.New(engine).Assemble(ctx, dataset, steps)
}

func (c *Controller) stageDataTable(ctx context.Context, fileLoader *loader.Loader, datasetID uuid.UUID, dt *models.DataTable, stagingTable string) error {
	path, cleanup, err := c.spillToTemp(ctx, datasetID, dt.Filename)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := fileLoader.Load(ctx, dt, path, stagingTable); err != nil {
		return err
	}
	return fileLoader.ApplyColumnMapping(ctx, stagingTable, dt.ColumnDescriptions)
}

// spillToTemp copies a stored object to a real file, since the loader's
// DuckDB table functions take a filesystem path, not a stream. The temp
// file keeps the stored filename's extension so DuckDB can detect a .gz
// input by its name.
func (c *Controller) spillToTemp(ctx context.Context, datasetID uuid.UUID, filename string) (path string, cleanup func(), err error) {
	rc, err := c.store.Open(ctx, filestore.Key{DatasetID: datasetID.String(), Filename: filename})
	if err != nil {
		return "", nil, fmt.Errorf("open stored file %q: %w", filename, err)
	}
	defer rc.Close()

	f, err := os.CreateTemp(c.cfg.Columnar.TempDir, "cubebuilder-stage-*"+filepath.Ext(filename))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("spill %q to temp file: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func (c *Controller) buildDateDimension(ctx context.Context, log *zap.Logger, engine *columnar.Engine, dataset *models.Dataset) error {
	for _, dim := range dataset.Dimensions {
		if dim.Type != models.DimensionDatePeriod {
			continue
		}
		if dim.Extractor == nil || dim.Extractor.Date == nil {
			return apperrors.Newf(apperrors.FactColumnMissing, stage, "dimension %q is DatePeriod but has no date extractor", dim.FactTableColumn)
		}
		builder := datedim.New(engine, c.cfg.Languages)
		periods, minDate, maxDate, err := builder.Build(ctx, factbuilder.FactTableName, dim.FactTableColumn, dim.Extractor.Date)
		if err != nil {
			return err
		}
		if dataset.Metadata == nil {
			dataset.Metadata = map[string]string{}
		}
		dataset.Metadata["start_date"] = minDate.Format("2006-01-02")
		dataset.Metadata["end_date"] = maxDate.Format("2006-01-02")

		lookupTable := dim.SanitisedLookupName(sqlutil.Sanitise)
		if err := builder.WriteTable(ctx, periods, lookupTable); err != nil {
			return err
		}
		log.Info("date dimension built", zap.String("dimension", dim.FactTableColumn), zap.Int("periods", len(periods)))
	}
	return nil
}

func (c *Controller) buildLookupDimensions(ctx context.Context, log *zap.Logger, engine *columnar.Engine, fileLoader *loader.Loader, dataset *models.Dataset, datasetID uuid.UUID) error {
	for _, dim := range dataset.Dimensions {
		if dim.Type != models.DimensionLookupTable {
			continue
		}
		if dim.LookupTable == nil {
			return apperrors.Newf(apperrors.NoJoinColumn, stage, "dimension %q is LookupTable but has no lookup file reference", dim.FactTableColumn)
		}
		if dim.Extractor == nil || dim.Extractor.LookupTable == nil {
			return apperrors.Newf(apperrors.FactColumnMissing, stage, "dimension %q is LookupTable but has no lookup_table extractor", dim.FactTableColumn)
		}

		filename := dim.LookupTable.String() + ".csv"
		path, cleanup, err := c.spillToTemp(ctx, datasetID, filename)
		if err != nil {
			return err
		}
		stagingTable := "staging_lookup_" + sqlutil.Sanitise(dim.FactTableColumn)
		loadErr := fileLoader.Load(ctx, &models.DataTable{FileType: models.FileTypeCSV, Filename: filename}, path, stagingTable)
		cleanup()
		if loadErr != nil {
			return loadErr
		}

		lookupTable := dim.SanitisedLookupName(sqlutil.Sanitise)
		if err := lookupdim.New(engine).Build(ctx, stagingTable, lookupTable, dim.Extractor.LookupTable); err != nil {
			return err
		}
		log.Info("lookup dimension built", zap.String("dimension", dim.FactTableColumn))
	}
	return nil
}

func (c *Controller) buildReferenceDataDimensions(ctx context.Context, log *zap.Logger, engine *columnar.Engine, dataset *models.Dataset) error {
	for _, dim := range dataset.Dimensions {
		if dim.Type != models.DimensionReferenceData {
			continue
		}
		if dim.Extractor == nil || dim.Extractor.ReferenceData == nil {
			return apperrors.Newf(apperrors.FactColumnMissing, stage, "dimension %q is ReferenceData but has no reference_data extractor", dim.FactTableColumn)
		}
		lookupTable := dim.SanitisedLookupName(sqlutil.Sanitise)
		if err := refdata.New(engine).Build(ctx, lookupTable, dim.Extractor.ReferenceData.Categories); err != nil {
			return err
		}
		log.Info("reference data dimension built", zap.String("dimension", dim.FactTableColumn))
	}
	return nil
}

func (c *Controller) buildMeasure(ctx context.Context, log *zap.Logger, engine *columnar.Engine, dataset *models.Dataset) error {
	if dataset.Measure == nil {
		return nil
	}
	measureCol, hasMeasure := dataset.ColumnByRole(models.RoleMeasure)
	if !hasMeasure {
		return nil
	}
	valueCol, hasValue := dataset.ColumnByRole(models.RoleDataValues)
	if !hasValue {
		return apperrors.New(apperrors.NoDataValueColumn, stage, fmt.Errorf("dataset has no DataValues column"))
	}

	builder := measure.New(engine)
	if err := builder.Build(ctx, viewbuilder.MeasureTable, dataset.Measure); err != nil {
		return err
	}
	if err := builder.CheckNonMatchingReferences(ctx, engine, factbuilder.FactTableName, measureCol.Name, viewbuilder.MeasureTable); err != nil {
		return err
	}
	if err := builder.AddFormattedValueColumn(ctx, factbuilder.FactTableName, measureCol.Name, valueCol.Name, dataset.Measure.MeasureTable); err != nil {
		return err
	}
	log.Info("measure built")
	return nil
}

func (c *Controller) buildNoteCodes(ctx context.Context, log *zap.Logger, engine *columnar.Engine, dataset *models.Dataset) error {
	noteCol, hasNotes := dataset.ColumnByRole(models.RoleNoteCodes)
	if !hasNotes {
		return nil
	}
	builder := notecodes.New(engine)
	if err := builder.EnsureVocabulary(ctx); err != nil {
		return err
	}
	if err := builder.ValidateCodes(ctx, factbuilder.FactTableName, noteCol.Name); err != nil {
		return err
	}
	log.Info("note codes validated")
	return nil
}

func (c *Controller) validateDimensions(ctx context.Context, log *zap.Logger, engine *columnar.Engine, dataset *models.Dataset, rawOverride map[uuid.UUID]bool) (*models.RevisionTask, error) {
	results, err := validator.New(engine, c.cfg.Build.NonMatchingSampleSize, c.cfg.Languages).Validate(ctx, factbuilder.FactTableName, dataset, sqlutil.Sanitise)
	if err != nil {
		return nil, err
	}

	task := &models.RevisionTask{}
	validator.ApplyResults(results, task)
	for _, r := range results {
		if !r.Matched() {
			rawOverride[r.Dimension.ID] = true
			log.Warn("dimension has unmatched rows or incomplete language coverage, downgrading to raw for this build",
				zap.String("dimension", r.Dimension.FactTableColumn),
				zap.Int64("unmatched", r.UnmatchedCount),
				zap.Int("incomplete_codes", len(r.IncompleteCodes)))
		}
	}

	if len(task.Dimensions) == 0 && task.Measure == nil {
		return nil, nil
	}
	return task, nil
}

// promote copies every finished DuckDB table into the revision's Postgres
// schema: the fact table, every lookup-backed dimension's lookup table
// (skipping dimensions the validator downgraded to raw this build), the
// measure table, and the note-code vocabulary.
func (c *Controller) promote(ctx context.Context, log *zap.Logger, engine *columnar.Engine, schema *database.RevisionSchema, dataset *models.Dataset, rawOverride map[uuid.UUID]bool) error {
	promoter := pgstage.New(schema.Conn)

	n, err := promoter.PromoteTable(ctx, engine, factbuilder.FactTableName, factbuilder.FactTableName)
	if err != nil {
		return err
	}
	log.Info("fact table promoted", zap.Int64("rows", n))

	for _, dim := range dataset.Dimensions {
		if !lookupBacked(dim.Type) || rawOverride[dim.ID] {
			continue
		}
		lookupTable := dim.SanitisedLookupName(sqlutil.Sanitise)
		if _, err := promoter.PromoteTable(ctx, engine, lookupTable, lookupTable); err != nil {
			return err
		}
	}

	if _, hasMeasure := dataset.ColumnByRole(models.RoleMeasure); hasMeasure && dataset.Measure != nil {
		if _, err := promoter.PromoteTable(ctx, engine, viewbuilder.MeasureTable, viewbuilder.MeasureTable); err != nil {
			return err
		}
	}

	if _, hasNotes := dataset.ColumnByRole(models.RoleNoteCodes); hasNotes {
		if _, err := promoter.PromoteTable(ctx, engine, notecodes.Table, viewbuilder.NotesTable); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) buildViews(ctx context.Context, log *zap.Logger, schema *database.RevisionSchema, dataset *models.Dataset, rawOverride map[uuid.UUID]bool) error {
	plans := viewbuilder.PlanDimensions(dataset, sqlutil.Sanitise, rawOverride)
	vb := viewbuilder.New(schema.Conn)
	if err := vb.BuildViews(ctx, dataset, plans, c.cfg.Languages); err != nil {
		return err
	}
	if err := vb.BuildFilterIndex(ctx, plans); err != nil {
		return err
	}
	log.Info("views and filter index built")
	return nil
}

func lookupBacked(t models.DimensionType) bool {
	return t == models.DimensionLookupTable || t == models.DimensionReferenceData || t == models.DimensionDatePeriod
}

// stampMetadata records build provenance and the dataset's own metadata
// (title/description per language, start_date/end_date set by the date
// dimension builder) alongside each view's defining SQL (already written
// by BuildViews).
func (c *Controller) stampMetadata(ctx context.Context, schema *database.RevisionSchema, dataset *models.Dataset, revision *models.Revision, buildID string) error {
	rows := map[string]string{
		"build_id":       buildID,
		"build_status":   string(models.CubeComplete),
		"revision_index": fmt.Sprintf("%d", revision.Index),
	}
	for key, value := range dataset.Metadata {
		rows[key] = value
	}
	for key, value := range rows {
		query := `INSERT INTO metadata (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
		if _, err := schema.Conn.Exec(ctx, query, key, value); err != nil {
			return fmt.Errorf("stamp metadata %q: %w", key, err)
		}
	}
	return nil
}
