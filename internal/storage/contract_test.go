package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runConnectionStoreContract exercises the behaviour every backend must share
func runConnectionStoreContract(t *testing.T, store ConnectionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("lookup miss", func(t *testing.T) {
		mirror, found, err := store.LookupMirror(ctx, "1700000000.000001")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, mirror)
	})

	t.Run("create then lookup", func(t *testing.T) {
		require.NoError(t, store.CreateConnection(ctx, "100.000001", "100.000002"))

		mirror, found, err := store.LookupMirror(ctx, "100.000001")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "100.000002", mirror)
	})

	t.Run("create is idempotent", func(t *testing.T) {
		require.NoError(t, store.CreateConnection(ctx, "200.000001", "200.000002"))
		require.NoError(t, store.CreateConnection(ctx, "200.000001", "200.000002"))

		mirror, found, err := store.LookupMirror(ctx, "200.000001")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "200.000002", mirror)
	})

	t.Run("create overwrites", func(t *testing.T) {
		require.NoError(t, store.CreateConnection(ctx, "300.000001", "300.000002"))
		require.NoError(t, store.CreateConnection(ctx, "300.000001", "300.000009"))

		mirror, found, err := store.LookupMirror(ctx, "300.000001")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "300.000009", mirror)
	})

	t.Run("delete removes", func(t *testing.T) {
		require.NoError(t, store.CreateConnection(ctx, "400.000001", "400.000002"))
		require.NoError(t, store.DeleteConnection(ctx, "400.000001"))

		_, found, err := store.LookupMirror(ctx, "400.000001")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("delete missing key is not an error", func(t *testing.T) {
		assert.NoError(t, store.DeleteConnection(ctx, "does-not-exist"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, store.CreateConnection(ctx, "500.000001", "500.100001"))
		require.NoError(t, store.CreateConnection(ctx, "500.000002", "500.100002"))
		require.NoError(t, store.DeleteConnection(ctx, "500.000001"))

		mirror, found, err := store.LookupMirror(ctx, "500.000002")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "500.100002", mirror)
	})

	t.Run("concurrent writers on distinct keys", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				origin := fmt.Sprintf("600.%06d", i)
				assert.NoError(t, store.CreateConnection(ctx, origin, origin+"-m"))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 20; i++ {
			origin := fmt.Sprintf("600.%06d", i)
			mirror, found, err := store.LookupMirror(ctx, origin)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, origin+"-m", mirror)
		}
	})

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, store.HealthCheck(ctx))
	})
}
