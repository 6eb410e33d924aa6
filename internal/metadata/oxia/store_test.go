package oxia

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scour-io/scour/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	server := StartTestServer(t)
	store, err := New(Config{
		ServiceAddress: server.Addr(),
		Namespace:      "default",
		RequestTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOxiaStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping oxia integration test in short mode")
	}
	store := newTestStore(t)
	ctx := context.Background()

	res, err := store.Get(ctx, "/scrub/orders/0")
	require.NoError(t, err)
	assert.False(t, res.Exists)

	v, err := store.Put(ctx, "/scrub/orders/0", []byte("state"))
	require.NoError(t, err)
	assert.Equal(t, metadata.Version(1), v)

	res, err = store.Get(ctx, "/scrub/orders/0")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, []byte("state"), res.Value)
	assert.Equal(t, metadata.Version(1), res.Version)
}

func TestOxiaStoreCompareAndSet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping oxia integration test in short mode")
	}
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.Put(ctx, "/scrub/orders/1", []byte("a"), metadata.WithExpectedVersion(0))
	require.NoError(t, err)
	assert.Equal(t, metadata.Version(1), v)

	_, err = store.Put(ctx, "/scrub/orders/1", []byte("b"), metadata.WithExpectedVersion(0))
	assert.ErrorIs(t, err, metadata.ErrVersionMismatch)

	v, err = store.Put(ctx, "/scrub/orders/1", []byte("b"), metadata.WithExpectedVersion(v))
	require.NoError(t, err)
	assert.Equal(t, metadata.Version(2), v)
}

func TestOxiaStoreListByPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping oxia integration test in short mode")
	}
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"/scrub/t/0", "/scrub/t/1", "/scrub/u/0"} {
		_, err := store.Put(ctx, key, []byte(key))
		require.NoError(t, err)
	}

	kvs, err := store.List(ctx, "/scrub/t")
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, "/scrub/t/0", kvs[0].Key)
	assert.Equal(t, "/scrub/t/1", kvs[1].Key)
}

func TestOxiaStoreClosed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping oxia integration test in short mode")
	}
	store := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Get(context.Background(), "/scrub/x")
	assert.ErrorIs(t, err, metadata.ErrStoreClosed)
}
