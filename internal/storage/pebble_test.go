package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleConnectionStore(t *testing.T) {
	store := NewPebbleConnectionStore(filepath.Join(t.TempDir(), "pebble"))
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	runConnectionStoreContract(t, store)
}

func TestPebbleConnectionStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pebble")

	first := NewPebbleConnectionStore(path)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.CreateConnection(ctx, "100.1", "100.2"))
	require.NoError(t, first.Close())

	second := NewPebbleConnectionStore(path)
	require.NoError(t, second.Initialize(ctx))
	defer second.Close()

	mirror, found, err := second.LookupMirror(ctx, "100.1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "100.2", mirror)
}

func TestPebbleConnectionStore_NotOpen(t *testing.T) {
	store := NewPebbleConnectionStore(filepath.Join(t.TempDir(), "pebble"))

	_, _, err := store.LookupMirror(context.Background(), "1")
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
