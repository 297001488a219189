//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/testhelpers"
)

func createTestDataset(t *testing.T, db *testhelpers.TestDB) uuid.UUID {
	t.Helper()
	repo := NewDatasetRepository(db.Pool)
	ds := &models.Dataset{GroupID: uuid.New()}
	require.NoError(t, repo.Create(context.Background(), ds))
	return ds.ID
}

func TestRevisionRepository_CreateAndGetDraft(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")
	datasetID := createTestDataset(t, db)
	repo := NewRevisionRepository(db.Pool)
	ctx := context.Background()

	rev := &models.Revision{
		DatasetID:  datasetID,
		Index:      0,
		CubeState:  models.CubeAbsent,
		UploadedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, rev))

	draft, err := repo.GetDraft(ctx, datasetID)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, rev.ID, draft.ID)
	assert.True(t, draft.IsDraft())
}

func TestRevisionRepository_GetDraft_NoneReturnsNil(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")
	datasetID := createTestDataset(t, db)
	repo := NewRevisionRepository(db.Pool)

	draft, err := repo.GetDraft(context.Background(), datasetID)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestRevisionRepository_UpdateCubeState(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")
	datasetID := createTestDataset(t, db)
	repo := NewRevisionRepository(db.Pool)
	ctx := context.Background()

	rev := &models.Revision{DatasetID: datasetID, Index: 1, UploadedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, rev))

	require.NoError(t, repo.UpdateCubeState(ctx, rev.ID, models.CubeComplete))

	fetched, err := repo.GetByID(ctx, rev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CubeComplete, fetched.CubeState)
}

func TestRevisionRepository_UpdateTasks(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")
	datasetID := createTestDataset(t, db)
	repo := NewRevisionRepository(db.Pool)
	ctx := context.Background()

	rev := &models.Revision{DatasetID: datasetID, Index: 1, UploadedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, rev))

	tasks := &models.RevisionTask{
		Dimensions: []models.DimensionUpdateTask{{DimensionID: uuid.New(), LookupTableUpdated: false}},
	}
	require.NoError(t, repo.UpdateTasks(ctx, rev.ID, tasks))

	fetched, err := repo.GetByID(ctx, rev.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Tasks)
	assert.Len(t, fetched.Tasks.Dimensions, 1)
}

func TestRevisionRepository_ListByDataset_OrdersByIndexThenUpload(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")
	datasetID := createTestDataset(t, db)
	repo := NewRevisionRepository(db.Pool)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, repo.Create(ctx, &models.Revision{DatasetID: datasetID, Index: 2, UploadedAt: base.Add(2 * time.Second)}))
	require.NoError(t, repo.Create(ctx, &models.Revision{DatasetID: datasetID, Index: 1, UploadedAt: base.Add(1 * time.Second)}))

	list, err := repo.ListByDataset(ctx, datasetID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Index)
	assert.Equal(t, 2, list[1].Index)
}
