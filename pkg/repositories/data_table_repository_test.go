//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/models"
	"github.com/ekaya-inc/cubebuilder/pkg/testhelpers"
)

func createTestRevision(t *testing.T, db *testhelpers.TestDB, index int) *models.Revision {
	t.Helper()
	datasetID := createTestDataset(t, db)
	rev := &models.Revision{DatasetID: datasetID, Index: index, UploadedAt: time.Now()}
	require.NoError(t, NewRevisionRepository(db.Pool).Create(context.Background(), rev))
	return rev
}

func TestDataTableRepository_CreateAndGet(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")
	rev := createTestRevision(t, db, 1)
	repo := NewDataTableRepository(db.Pool)
	ctx := context.Background()

	dt := &models.DataTable{
		RevisionID:         rev.ID,
		FileType:           models.FileTypeCSV,
		Filename:           "facts.csv",
		Action:             models.ActionReplaceAll,
		ColumnDescriptions: map[string]string{"Year": "year"},
	}
	require.NoError(t, repo.Create(ctx, dt))

	fetched, err := repo.GetByID(ctx, dt.ID)
	require.NoError(t, err)
	assert.Equal(t, "facts.csv", fetched.Filename)
	assert.Equal(t, "year", fetched.ColumnDescriptions["Year"])
}

func TestDataTableRepository_ListForHistory_OrdersByUpload(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Truncate(t, "datasets")
	rev1 := createTestRevision(t, db, 1)
	rev2 := &models.Revision{DatasetID: rev1.DatasetID, Index: 2, UploadedAt: time.Now()}
	require.NoError(t, NewRevisionRepository(db.Pool).Create(context.Background(), rev2))

	repo := NewDataTableRepository(db.Pool)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.DataTable{
		RevisionID: rev1.ID, FileType: models.FileTypeCSV, Filename: "a.csv", Action: models.ActionReplaceAll,
	}))
	require.NoError(t, repo.Create(ctx, &models.DataTable{
		RevisionID: rev2.ID, FileType: models.FileTypeCSV, Filename: "b.csv", Action: models.ActionAdd,
	}))

	list, err := repo.ListForHistory(ctx, rev1.DatasetID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.csv", list[0].Filename)
	assert.Equal(t, "b.csv", list[1].Filename)
}
