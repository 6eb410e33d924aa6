package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetPut(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	res, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, res.Exists)

	v, err := store.Put(ctx, "key", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)

	res, err = store.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, []byte("one"), res.Value)
	assert.Equal(t, Version(1), res.Version)

	v, err = store.Put(ctx, "key", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, Version(2), v)
}

func TestMemoryStoreCompareAndSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Insert-if-absent.
	v, err := store.Put(ctx, "key", []byte("one"), WithExpectedVersion(0))
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)

	_, err = store.Put(ctx, "key", []byte("again"), WithExpectedVersion(0))
	assert.ErrorIs(t, err, ErrVersionMismatch)

	_, err = store.Put(ctx, "key", []byte("stale"), WithExpectedVersion(5))
	assert.ErrorIs(t, err, ErrVersionMismatch)

	v, err = store.Put(ctx, "key", []byte("two"), WithExpectedVersion(1))
	require.NoError(t, err)
	assert.Equal(t, Version(2), v)
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Put(ctx, "key", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "key"))
	require.NoError(t, store.Delete(ctx, "key"))

	res, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, res.Exists)

	// A deleted key restarts its version sequence.
	v, err := store.Put(ctx, "key", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"/scrub/b", "/scrub/a", "/other/c"} {
		_, err := store.Put(ctx, key, []byte(key))
		require.NoError(t, err)
	}

	kvs, err := store.List(ctx, "/scrub/")
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, "/scrub/a", kvs[0].Key)
	assert.Equal(t, "/scrub/b", kvs[1].Key)
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	_, err := store.Get(context.Background(), "key")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Put(context.Background(), "key", nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryStoreFailNext(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("unavailable")
	store.FailNext(boom)

	_, err := store.Put(context.Background(), "key", []byte("x"))
	assert.ErrorIs(t, err, boom)

	_, err = store.Put(context.Background(), "key", []byte("x"))
	require.NoError(t, err)
}
