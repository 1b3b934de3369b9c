package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseTokenStore(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, TokenKey, "first"))
	require.NoError(t, store.Set(ctx, TokenKey, "second"))

	value, ok, err := store.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", value)

	require.NoError(t, store.Delete(ctx, TokenKey))
	require.NoError(t, store.Delete(ctx, TokenKey))

	_, ok, err = store.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryTokenStore(t *testing.T) {
	exerciseTokenStore(t, NewMemoryTokenStore())
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exerciseTokenStore(t, NewFileTokenStore(path))

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "last delete should remove the file")
}

func TestFileTokenStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileTokenStore(path)
	require.NoError(t, store.Set(context.Background(), TokenKey, "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileTokenStoreDeleteCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	store := NewFileTokenStore(path)
	_, _, err := store.Get(context.Background(), TokenKey)
	require.Error(t, err)

	require.NoError(t, store.Delete(context.Background(), TokenKey))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestSQLiteTokenStore(t *testing.T) {
	store, err := NewSQLiteTokenStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseTokenStore(t, store)
}

func TestSQLiteTokenStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := NewSQLiteTokenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), TokenKey, "persisted"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteTokenStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(context.Background(), TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persisted", value)
}
