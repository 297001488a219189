package loader

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

func TestLoader_ApplyColumnMapping_RenamesMappedColumns(t *testing.T) {
	l, eng := newTestLoader(t)
	path := writeFile(t, "facts.csv", "Year,Geog,Value\n2020,W06,1.5\n")

	dt := &models.DataTable{ID: uuid.New(), FileType: models.FileTypeCSV, Filename: "facts.csv"}
	ctx := context.Background()
	require.NoError(t, l.Load(ctx, dt, path, "staging_mapped"))

	require.NoError(t, l.ApplyColumnMapping(ctx, "staging_mapped", map[string]string{
		"Year":  "time_period",
		"Geog":  "geography",
		"Value": "value",
	}))

	row := eng.QueryRow(ctx, `SELECT time_period, geography, value FROM staging_mapped`)
	var year, geog, value string
	require.NoError(t, row.Scan(&year, &geog, &value))
	assert.Equal(t, "2020", year)
	assert.Equal(t, "W06", geog)
	assert.Equal(t, "1.5", value)
}

func TestLoader_ApplyColumnMapping_PassesThroughUnmappedColumns(t *testing.T) {
	l, eng := newTestLoader(t)
	path := writeFile(t, "facts.csv", "Year,Extra\n2020,x\n")

	dt := &models.DataTable{ID: uuid.New(), FileType: models.FileTypeCSV, Filename: "facts.csv"}
	ctx := context.Background()
	require.NoError(t, l.Load(ctx, dt, path, "staging_partial"))

	require.NoError(t, l.ApplyColumnMapping(ctx, "staging_partial", map[string]string{
		"Year": "time_period",
	}))

	row := eng.QueryRow(ctx, `SELECT time_period, Extra FROM staging_partial`)
	var year, extra string
	require.NoError(t, row.Scan(&year, &extra))
	assert.Equal(t, "2020", year)
	assert.Equal(t, "x", extra)
}

func TestLoader_ApplyColumnMapping_NoOpWhenEmpty(t *testing.T) {
	l, eng := newTestLoader(t)
	path := writeFile(t, "facts.csv", "Year\n2020\n")

	dt := &models.DataTable{ID: uuid.New(), FileType: models.FileTypeCSV, Filename: "facts.csv"}
	ctx := context.Background()
	require.NoError(t, l.Load(ctx, dt, path, "staging_empty"))

	require.NoError(t, l.ApplyColumnMapping(ctx, "staging_empty", nil))

	n, err := eng.CountRows(ctx, "staging_empty")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
