package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_GrainColumns(t *testing.T) {
	d := &Dataset{
		Columns: []FactTableColumn{
			{Name: "country", Role: RoleDimension, Index: 0},
			{Name: "year", Role: RoleTime, Index: 1},
			{Name: "value", Role: RoleMeasure, Index: 2},
			{Name: "data_value", Role: RoleDataValues, Index: 3},
			{Name: "note_codes", Role: RoleNoteCodes, Index: 4},
		},
	}

	grain := d.GrainColumns()
	require.Len(t, grain, 3)
	assert.Equal(t, []string{"country", "year", "value"}, []string{grain[0].Name, grain[1].Name, grain[2].Name})
}

func TestDataset_DimensionFor(t *testing.T) {
	d := &Dataset{
		Dimensions: []Dimension{
			{FactTableColumn: "country", Type: DimensionLookupTable},
		},
	}
	dim, ok := d.DimensionFor("country")
	require.True(t, ok)
	assert.Equal(t, DimensionLookupTable, dim.Type)

	_, ok = d.DimensionFor("missing")
	assert.False(t, ok)
}

func TestRevisionTask_AddDimensionTask_ReplacesExisting(t *testing.T) {
	task := &RevisionTask{}
	id := uuid.New()
	task.AddDimensionTask(DimensionUpdateTask{DimensionID: id, LookupTableUpdated: false})
	task.AddDimensionTask(DimensionUpdateTask{DimensionID: id, LookupTableUpdated: true})

	require.Len(t, task.Dimensions, 1)
	assert.True(t, task.Dimensions[0].LookupTableUpdated)
}

func TestExtractor_UnmarshalJSON_MissingPayloadFailsFast(t *testing.T) {
	raw := `{"kind":"date"}`
	var e Extractor
	err := json.Unmarshal([]byte(raw), &e)
	require.Error(t, err)
}

func TestExtractor_UnmarshalJSON_UnknownKindFailsFast(t *testing.T) {
	raw := `{"kind":"bogus"}`
	var e Extractor
	err := json.Unmarshal([]byte(raw), &e)
	require.Error(t, err)
}

func TestExtractor_UnmarshalJSON_Valid(t *testing.T) {
	raw := `{"kind":"number","number":{"number_type":"decimal","decimal_places":2}}`
	var e Extractor
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	require.NotNil(t, e.Number)
	assert.Equal(t, NumberDecimal, e.Number.NumberType)
}
