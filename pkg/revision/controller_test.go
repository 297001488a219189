//go:build integration

package revision_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubebuilder/pkg/config"
	"github.com/ekaya-inc/cubebuilder/pkg/database"
	"github.com/ekaya-inc/cubebuilder/pkg/filestore"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/repositories"
	"github.com/ekaya-inc/cubebuilder/pkg/revision"
	"github.com/ekaya-inc/cubebuilder/pkg/testhelpers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Languages: []string{"en", "cy"}}
	cfg.Columnar.TempDir = t.TempDir()
	cfg.Build.NonMatchingSampleSize = 50
	cfg.Build.MaterializeViews = false
	cfg.Build.CleanupSchemaOnFailure = false
	return cfg
}

func TestController_Build_RawDatasetReachesComplete(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")

	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	datasets := repositories.NewDatasetRepository(db.Pool)
	revisions := repositories.NewRevisionRepository(db.Pool)
	dataTables := repositories.NewDataTableRepository(db.Pool)
	ctx := context.Background()

	dataset := &models.Dataset{
		GroupID: uuid.New(),
		Columns: []models.FactTableColumn{
			{Name: "country", DataType: models.DataTypeText, Index: 0, Role: models.RoleDimension},
			{Name: "year", DataType: models.DataTypeBigInt, Index: 1, Role: models.RoleTime},
			{Name: "value", DataType: models.DataTypeDouble, Index: 2, Role: models.RoleDataValues},
		},
		Dimensions: []models.Dimension{
			{FactTableColumn: "country", Type: models.DimensionRaw},
			{FactTableColumn: "year", Type: models.DimensionRaw},
		},
		Metadata: map[string]string{"title.en": "Test dataset"},
	}
	require.NoError(t, datasets.Create(ctx, dataset))

	rev := &models.Revision{DatasetID: dataset.ID, Index: 1, CubeState: models.CubeAbsent}
	require.NoError(t, revisions.Create(ctx, rev))

	dt := &models.DataTable{
		RevisionID: rev.ID,
		FileType:   models.FileTypeCSV,
		Filename:   "facts.csv",
		Action:     models.ActionReplaceAll,
		ColumnDescriptions: map[string]string{
			"Country": "country",
			"Year":    "year",
			"Value":   "value",
		},
	}
	require.NoError(t, dataTables.Create(ctx, dt))

	csv := "Country,Year,Value\nWales,2021,10.5\nEngland,2021,20.25\n"
	require.NoError(t, store.Save(ctx, filestore.Key{DatasetID: dataset.ID.String(), Filename: dt.Filename}, strings.NewReader(csv)))

	controllerDB := &database.DB{Pool: db.Pool}
	ctrl := revision.New(revision.Repositories{
		Datasets:   datasets,
		Revisions:  revisions,
		DataTables: dataTables,
	}, store, controllerDB, testConfig(t), zap.NewNop())

	err = ctrl.Build(ctx, dataset.ID, rev.ID)
	require.NoError(t, err)

	fetched, err := revisions.GetByID(ctx, rev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CubeComplete, fetched.CubeState)

	schemaName := database.SchemaName(rev.ID.String())
	var rowCount int
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM "+schemaName+".fact_table").Scan(&rowCount))
	assert.Equal(t, 2, rowCount)

	var viewCount int
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM "+schemaName+".default_view_en").Scan(&viewCount))
	assert.Equal(t, 2, viewCount)

	var title string
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT value FROM "+schemaName+".metadata WHERE key = 'title.en'").Scan(&title))
	assert.Equal(t, "Test dataset", title)
}
