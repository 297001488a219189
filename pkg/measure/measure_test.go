package measure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	b := New(eng)
	m := &models.Measure{
		FactTableColumn: "measure_code",
		MeasureTable: []models.MeasureRow{
			{Reference: "count", Language: "en", Description: "Count", Format: models.FormatInteger},
			{Reference: "rate", Language: "en", Description: "Rate", Format: models.FormatPercentage, Decimals: intPtr(1)},
		},
	}
	require.NoError(t, b.Build(ctx, "measure_lookup", m))

	n, err := eng.CountRows(ctx, "measure_lookup")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBuilder_Build_EmptyMeasureTableFails(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	b := New(eng)
	err = b.Build(ctx, "measure_lookup", &models.Measure{FactTableColumn: "measure_code"})
	require.Error(t, err)
	assert.Equal(t, apperrors.MeasureNonMatched, apperrors.KindOf(err))
}

func TestBuilder_CheckNonMatchingReferences(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (measure_code VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('count'), ('unknown')`))

	b := New(eng)
	m := &models.Measure{
		FactTableColumn: "measure_code",
		MeasureTable:    []models.MeasureRow{{Reference: "count", Language: "en", Description: "Count", Format: models.FormatInteger}},
	}
	require.NoError(t, b.Build(ctx, "measure_lookup", m))

	err = b.CheckNonMatchingReferences(ctx, eng, "fact_table", "measure_code", "measure_lookup")
	require.Error(t, err)
	assert.Equal(t, apperrors.MeasureNonMatched, apperrors.KindOf(err))
}

func TestFormatExpression(t *testing.T) {
	assert.Contains(t, FormatExpression("value", models.FormatInteger, nil), "BIGINT")
	assert.Contains(t, FormatExpression("value", models.FormatPercentage, intPtr(2)), "'%'")
	assert.Equal(t, `"value"`, FormatExpression("value", models.FormatString, nil))
}

func TestBuilder_AddFormattedValueColumn(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (measure_code VARCHAR, value VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('count', '12.7'), ('rate', '3.456'), ('unknown', '9')`))

	b := New(eng)
	rows := []models.MeasureRow{
		{Reference: "count", Language: "en", Format: models.FormatInteger},
		{Reference: "rate", Language: "en", Format: models.FormatPercentage, Decimals: intPtr(1)},
	}
	require.NoError(t, b.AddFormattedValueColumn(ctx, "fact_table", "measure_code", "value", rows))

	var formatted string
	require.NoError(t, eng.QueryRow(ctx, `SELECT formatted_value FROM fact_table WHERE measure_code = 'count'`).Scan(&formatted))
	assert.Equal(t, "13", formatted)

	require.NoError(t, eng.QueryRow(ctx, `SELECT formatted_value FROM fact_table WHERE measure_code = 'rate'`).Scan(&formatted))
	assert.Equal(t, "3.5%", formatted)

	require.NoError(t, eng.QueryRow(ctx, `SELECT formatted_value FROM fact_table WHERE measure_code = 'unknown'`).Scan(&formatted))
	assert.Equal(t, "9", formatted)
}
