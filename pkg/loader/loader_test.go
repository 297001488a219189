package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

func newTestLoader(t *testing.T) (*Loader, *columnar.Engine) {
	t.Helper()
	eng, err := columnar.Open(context.Background(), columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return New(eng), eng
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadCSV(t *testing.T) {
	l, eng := newTestLoader(t)
	path := writeFile(t, "facts.csv", "year,value\n2020,1.5\n2021,2.5\n")

	dt := &models.DataTable{ID: uuid.New(), FileType: models.FileTypeCSV, Filename: "facts.csv"}
	require.NoError(t, l.Load(context.Background(), dt, path, "staging_1"))

	n, err := eng.CountRows(context.Background(), "staging_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLoader_LoadJSON(t *testing.T) {
	l, eng := newTestLoader(t)
	path := writeFile(t, "facts.json", `[{"year":"2020","value":"1.5"},{"year":"2021","value":"2.5"}]`)

	dt := &models.DataTable{ID: uuid.New(), FileType: models.FileTypeJSON, Filename: "facts.json"}
	require.NoError(t, l.Load(context.Background(), dt, path, "staging_2"))

	n, err := eng.CountRows(context.Background(), "staging_2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLoader_LoadExcel(t *testing.T) {
	l, eng := newTestLoader(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "year")
	f.SetCellValue(sheet, "B1", "value")
	f.SetCellValue(sheet, "A2", "2020")
	f.SetCellValue(sheet, "B2", "1.5")
	path := filepath.Join(t.TempDir(), "facts.xlsx")
	require.NoError(t, f.SaveAs(path))

	dt := &models.DataTable{ID: uuid.New(), FileType: models.FileTypeSpreadsheet, Filename: "facts.xlsx"}
	require.NoError(t, l.Load(context.Background(), dt, path, "staging_3"))

	n, err := eng.CountRows(context.Background(), "staging_3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLoader_UnknownFileType(t *testing.T) {
	l, _ := newTestLoader(t)
	dt := &models.DataTable{ID: uuid.New(), FileType: "txt", Filename: "facts.txt"}

	err := l.Load(context.Background(), dt, "unused", "staging_4")
	require.Error(t, err)
	assert.Equal(t, apperrors.UnknownFileType, apperrors.KindOf(err))
}
