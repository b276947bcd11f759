package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	store, err := Connect(filepath.Join(t.TempDir(), "historical.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSizeBytes(t *testing.T) {
	store := newStore(t)

	size, err := store.SizeBytes()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	// Пропавший файл — ошибка, а не пустое хранилище
	require.NoError(t, os.Remove(store.Path()))
	_, err = store.SizeBytes()
	assert.Error(t, err)
}

func TestSnapshotProducesReadableCopy(t *testing.T) {
	store := newStore(t)

	dst := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, store.Snapshot(dst))

	snap, err := Connect(dst)
	require.NoError(t, err)
	defer snap.Close()
	require.NoError(t, snap.HealthCheck())
}
