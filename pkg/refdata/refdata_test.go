package refdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
)

func TestBuilder_Build_FiltersByCategory(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	b := New(eng)
	require.NoError(t, b.Build(ctx, "country_lookup", []string{"iso_country"}))

	n, err := eng.CountRows(ctx, "country_lookup")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n) // 3 countries x 2 languages

	var description string
	require.NoError(t, eng.QueryRow(ctx, `SELECT description FROM country_lookup WHERE code = 'GB' AND language = 'en'`).Scan(&description))
	assert.Equal(t, "United Kingdom", description)
}

func TestBuilder_Build_GeographyHasHierarchy(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	b := New(eng)
	require.NoError(t, b.Build(ctx, "geo_lookup", []string{"geography"}))

	var hierarchy *string
	require.NoError(t, eng.QueryRow(ctx, `SELECT hierarchy FROM geo_lookup WHERE code = 'K03000001' AND language = 'en'`).Scan(&hierarchy))
	require.NotNil(t, hierarchy)
	assert.Equal(t, "K02000001", *hierarchy)
}

func TestBuilder_Categories(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	b := New(eng)
	cats, err := b.Categories(ctx)
	require.NoError(t, err)
	assert.Contains(t, cats, "geography")
	assert.Contains(t, cats, "iso_country")
}

func TestBuilder_Build_NoCategoriesFails(t *testing.T) {
	ctx := context.Background()
	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	b := New(eng)
	err = b.Build(ctx, "lookup", nil)
	assert.Error(t, err)
}
