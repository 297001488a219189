package lookupdim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

func newEngine(t *testing.T) *columnar.Engine {
	t.Helper()
	eng, err := columnar.Open(context.Background(), columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestBuilder_LongForm(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE staging (area_code VARCHAR, lang VARCHAR, area_name VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO staging VALUES ('K02000001', 'en', 'United Kingdom'), ('K02000001', 'cy', 'Y Deyrnas Unedig')`))

	b := New(eng)
	extractor := &models.LookupTableExtractor{
		LanguageColumn:     "lang",
		DescriptionColumns: []models.DescriptionColumn{{Name: "area_name"}},
	}
	require.NoError(t, b.Build(ctx, "staging", "area_lookup", extractor))

	n, err := eng.CountRows(ctx, "area_lookup")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBuilder_WideForm(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE staging (area_code VARCHAR, name_en VARCHAR, name_cy VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO staging VALUES ('K02000001', 'United Kingdom', 'Y Deyrnas Unedig')`))

	b := New(eng)
	extractor := &models.LookupTableExtractor{
		IsWideForm: true,
		DescriptionColumns: []models.DescriptionColumn{
			{Lang: "en", Name: "name_en"},
			{Lang: "cy", Name: "name_cy"},
		},
	}
	require.NoError(t, b.Build(ctx, "staging", "area_lookup", extractor))

	n, err := eng.CountRows(ctx, "area_lookup")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var lang string
	require.NoError(t, eng.QueryRow(ctx, `SELECT language FROM area_lookup WHERE description = 'Y Deyrnas Unedig'`).Scan(&lang))
	assert.Equal(t, "cy", lang)
}

func TestBuilder_DuplicateCodeLanguageRejected(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE staging (area_code VARCHAR, lang VARCHAR, area_name VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO staging VALUES ('K02000001', 'en', 'A'), ('K02000001', 'en', 'B')`))

	b := New(eng)
	extractor := &models.LookupTableExtractor{
		LanguageColumn:     "lang",
		DescriptionColumns: []models.DescriptionColumn{{Name: "area_name"}},
	}
	err := b.Build(ctx, "staging", "area_lookup", extractor)
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidCSV, apperrors.KindOf(err))
}

func TestBuilder_NoJoinColumnFound(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE staging (lang VARCHAR, area_name VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO staging VALUES ('en', 'A')`))

	b := New(eng)
	extractor := &models.LookupTableExtractor{
		LanguageColumn:     "lang",
		DescriptionColumns: []models.DescriptionColumn{{Name: "area_name"}},
	}
	err := b.Build(ctx, "staging", "area_lookup", extractor)
	require.Error(t, err)
	assert.Equal(t, apperrors.NoJoinColumn, apperrors.KindOf(err))
}
