package columnar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ExecQueryCount(t *testing.T) {
	ctx := context.Background()
	eng, err := Open(ctx, Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE t (id INTEGER, name TEXT)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO t VALUES (1, 'a'), (2, 'b')`))

	count, err := eng.CountRows(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	rows, err := eng.Query(ctx, `SELECT id, name FROM t ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var id int
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		got = append(got, name)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestEngine_MemoryLimitApplied(t *testing.T) {
	ctx := context.Background()
	eng, err := Open(ctx, Config{TempDir: t.TempDir(), MemoryLimitMB: 256})
	require.NoError(t, err)
	defer eng.Close()

	var limit string
	row := eng.QueryRow(ctx, `SELECT current_setting('memory_limit')`)
	require.NoError(t, row.Scan(&limit))
	assert.NotEmpty(t, limit)
}
