//go:build integration

package pgstage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/testhelpers"
)

func TestPromoter_PromoteTable(t *testing.T) {
	ctx := context.Background()
	tdb := testhelpers.GetTestDB(t)

	eng, err := columnar.Open(ctx, columnar.Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE staging_fact (geography VARCHAR, value VARCHAR)`))
	require.NoError(t, eng.Exec(ctx, `INSERT INTO staging_fact VALUES ('GB', '1.5'), ('FR', '2.0')`))

	conn, err := tdb.Pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	p := New(conn)
	n, err := p.PromoteTable(ctx, eng, "staging_fact", "fact_table")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var count int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM fact_table`).Scan(&count))
	assert.Equal(t, 2, count)
}
