package filestore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key := Key{DatasetID: "dataset-1", Filename: "facts.csv"}

	require.NoError(t, store.Save(ctx, key, strings.NewReader("a,b\n1,2\n")))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))

	names, err := store.List(ctx, "dataset-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"facts.csv"}, names)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.Error(t, err)
}

func TestLocalStore_ListUnknownDatasetReturnsEmpty(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	names, err := store.List(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_FilenameCannotEscapeRoot(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key := Key{DatasetID: "dataset-1", Filename: "../../etc/passwd"}
	require.NoError(t, store.Save(context.Background(), key, strings.NewReader("x")))

	names, err := store.List(context.Background(), "dataset-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"passwd"}, names)
}
