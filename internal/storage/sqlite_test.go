package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSQLiteStore(t *testing.T) *SQLiteConnectionStore {
	t.Helper()
	store := NewSQLiteConnectionStore(filepath.Join(t.TempDir(), "data", "fairy.db"))
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteConnectionStore(t *testing.T) {
	runConnectionStoreContract(t, setupTestSQLiteStore(t))
}

func TestSQLiteConnectionStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fairy.db")

	first := NewSQLiteConnectionStore(path)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.CreateConnection(ctx, "100.1", "100.2"))
	require.NoError(t, first.Close())

	second := NewSQLiteConnectionStore(path)
	require.NoError(t, second.Initialize(ctx))
	defer second.Close()

	mirror, found, err := second.LookupMirror(ctx, "100.1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "100.2", mirror)
}

func TestSQLiteConnectionStore_NotInitialized(t *testing.T) {
	store := NewSQLiteConnectionStore(filepath.Join(t.TempDir(), "fairy.db"))
	ctx := context.Background()

	_, _, err := store.LookupMirror(ctx, "1")
	assert.Error(t, err)
	assert.Error(t, store.CreateConnection(ctx, "1", "2"))
	assert.Error(t, store.DeleteConnection(ctx, "1"))
	assert.Error(t, store.HealthCheck(ctx))
}
