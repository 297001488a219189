package datedim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

func TestBuilder_Build_CalendarYears(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (year VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('2020'), ('2021'), ('2020')`))

	b := New(eng, []string{"en", "cy"})
	periods, min, max, err := b.Build(ctx, "fact_table", "year", &models.DateExtractor{YearType: models.YearTypeCalendar})
	require.NoError(t, err)

	assert.Len(t, periods, 4) // 2 distinct years x 2 languages
	assert.Equal(t, 2020, min.Year())
	assert.Equal(t, 2021, max.Year())
	for _, p := range periods {
		assert.Equal(t, PeriodYear, p.Type)
		assert.Empty(t, p.Hierarchy)
	}
}

func TestBuilder_Build_QuartersHaveYearParent(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (period VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('2020Q1'), ('2020Q2')`))

	b := New(eng, []string{"en"})
	periods, _, _, err := b.Build(ctx, "fact_table", "period", &models.DateExtractor{})
	require.NoError(t, err)

	require.Len(t, periods, 2)
	for _, p := range periods {
		assert.Equal(t, PeriodQuarter, p.Type)
		assert.Equal(t, "2020", p.Hierarchy)
	}
}

func TestBuilder_Build_WelshDescriptionsAreTranslated(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (period VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('2020-03-01'), ('2020-03'), ('2020Q1')`))

	b := New(eng, []string{"en", "cy"})
	periods, _, _, err := b.Build(ctx, "fact_table", "period", &models.DateExtractor{})
	require.NoError(t, err)

	byLangAndCode := map[string]map[string]string{"en": {}, "cy": {}}
	for _, p := range periods {
		byLangAndCode[p.Language][p.Code] = p.Description
	}

	assert.Equal(t, "Quarter 1 2020", byLangAndCode["en"]["2020Q1"])
	assert.Equal(t, "Chwarter 1 2020", byLangAndCode["cy"]["2020Q1"])
	assert.Equal(t, "March 2020", byLangAndCode["en"]["2020-03"])
	assert.Equal(t, "Mawrth 2020", byLangAndCode["cy"]["2020-03"])
	assert.Equal(t, "1 March 2020", byLangAndCode["en"]["2020-03-01"])
	assert.Equal(t, "1 Mawrth 2020", byLangAndCode["cy"]["2020-03-01"])
}

func TestBuilder_Build_Quarter5IsTotalWhenConfigured(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (period VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('2020Q5')`))

	b := New(eng, []string{"en", "cy"})
	periods, min, max, err := b.Build(ctx, "fact_table", "period", &models.DateExtractor{TreatQuarter5AsTotal: true})
	require.NoError(t, err)

	require.Len(t, periods, 2)
	assert.Equal(t, 2020, min.Year())
	assert.Equal(t, 2020, max.Year())
	for _, p := range periods {
		assert.Equal(t, PeriodTotal, p.Type)
		assert.Empty(t, p.Hierarchy)
		if p.Language == "en" {
			assert.Equal(t, "Total 2020", p.Description)
		} else {
			assert.Equal(t, "Cyfanswm 2020", p.Description)
		}
	}
}

func TestBuilder_Build_Quarter5WithoutTotalFlagFails(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (period VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('2020Q5')`))

	b := New(eng, []string{"en"})
	_, _, _, err = b.Build(ctx, "fact_table", "period", &models.DateExtractor{})
	assert.Error(t, err)
}

func TestBuilder_Build_UnparseableValueFails(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (year VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('not-a-year')`))

	b := New(eng, []string{"en"})
	_, _, _, err = b.Build(ctx, "fact_table", "year", &models.DateExtractor{})
	assert.Error(t, err)
}

func TestBuilder_WriteTable(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (period VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('2020Q1'), ('2020Q2')`))

	b := New(eng, []string{"en"})
	periods, _, _, err := b.Build(ctx, "fact_table", "period", &models.DateExtractor{})
	require.NoError(t, err)

	require.NoError(t, b.WriteTable(ctx, periods, "period_lookup"))

	n, err := eng.CountRows(ctx, "period_lookup")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var hierarchy string
	require.NoError(t, eng.QueryRow(ctx, `SELECT hierarchy FROM period_lookup WHERE code = '2020Q1'`).Scan(&hierarchy))
	assert.Equal(t, "2020", hierarchy)
}
