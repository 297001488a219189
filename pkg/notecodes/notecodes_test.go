package notecodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
)

func newEngine(t *testing.T) *columnar.Engine {
	t.Helper()
	eng, err := columnar.Open(context.Background(), columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestBuilder_EnsureVocabulary(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	b := New(eng)
	require.NoError(t, b.EnsureVocabulary(ctx))

	n, err := eng.CountRows(ctx, Table)
	require.NoError(t, err)
	assert.Equal(t, int64(len(codes)), n)
}

func TestBuilder_ValidateCodes_Passes(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	b := New(eng)
	require.NoError(t, b.EnsureVocabulary(ctx))
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (note_codes VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('p'), ('p,r'), (NULL)`))

	assert.NoError(t, b.ValidateCodes(ctx, "fact_table", "note_codes"))
}

func TestBuilder_ValidateCodes_RejectsUnknownCode(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	b := New(eng)
	require.NoError(t, b.EnsureVocabulary(ctx))
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (note_codes VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('p'), ('bogus')`))

	err := b.ValidateCodes(ctx, "fact_table", "note_codes")
	require.Error(t, err)
	assert.Equal(t, apperrors.BadNoteCodes, apperrors.KindOf(err))
}

func TestAllNotesExpression_JoinsDescriptions(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	b := New(eng)
	require.NoError(t, b.EnsureVocabulary(ctx))
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE fact_table (note_codes VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO fact_table VALUES ('p,r')`))

	query := `SELECT ` + AllNotesExpression("note_codes", "en") + ` FROM fact_table`
	var notes string
	require.NoError(t, eng.QueryRow(ctx, query).Scan(&notes))
	assert.Equal(t, "provisional, revised", notes)
}
