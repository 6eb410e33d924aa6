package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scour-io/scour/internal/manifest"
	"github.com/scour-io/scour/internal/objectstore"
)

func testBackoff() Backoff {
	return Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestExistsTriState(t *testing.T) {
	store := objectstore.NewMockStore()
	store.PutBytes("present", []byte("x"))
	r := New(store, testBackoff(), nil)

	ctx := context.Background()
	assert.Equal(t, ExistsFound, r.Exists(ctx, "present"))
	assert.Equal(t, ExistsNotFound, r.Exists(ctx, "absent"))

	store.FailKey("present", errors.New("throttled"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, ExistsFailure, r.Exists(ctx, "present"))
}

func TestRetryWindowRecovers(t *testing.T) {
	store := objectstore.NewMockStore()
	store.PutBytes("key", []byte("x"))
	r := New(store, testBackoff(), nil)

	store.FailKey("key", errors.New("throttled"))
	go func() {
		time.Sleep(5 * time.Millisecond)
		store.FailKey("key", nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Equal(t, ExistsFound, r.Exists(ctx, "key"))
	assert.Greater(t, store.Calls("key"), 1)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	store := objectstore.NewMockStore()
	r := New(store, testBackoff(), nil)

	ctx := context.Background()
	assert.Equal(t, ExistsNotFound, r.Exists(ctx, "absent"))
	assert.Equal(t, 1, store.Calls("absent"))
}

func TestDownloadPartitionManifestBinary(t *testing.T) {
	store := objectstore.NewMockStore()
	m := &manifest.Manifest{Topic: "orders", Partition: 1, Revision: 7}
	data, err := manifest.Encode(m, manifest.FormatBinary, manifest.CodecSnappy)
	require.NoError(t, err)
	store.PutBytes(manifest.PartitionManifestPath("orders", 1, 7, manifest.FormatBinary), data)

	r := New(store, testBackoff(), nil)
	status, got, format := r.DownloadPartitionManifest(context.Background(), "orders", 1, 7)
	assert.Equal(t, DownloadOK, status)
	assert.Equal(t, manifest.FormatBinary, format)
	assert.Equal(t, m, got)
}

func TestDownloadPartitionManifestLegacyJSONFallback(t *testing.T) {
	store := objectstore.NewMockStore()
	m := &manifest.Manifest{Topic: "orders", Partition: 1, Revision: 7}
	data, err := manifest.Encode(m, manifest.FormatJSON, manifest.CodecNone)
	require.NoError(t, err)
	store.PutBytes(manifest.PartitionManifestPath("orders", 1, 7, manifest.FormatJSON), data)

	r := New(store, testBackoff(), nil)
	status, got, format := r.DownloadPartitionManifest(context.Background(), "orders", 1, 7)
	assert.Equal(t, DownloadOK, status)
	assert.Equal(t, manifest.FormatJSON, format)
	assert.Equal(t, m, got)
}

func TestDownloadPartitionManifestNotFound(t *testing.T) {
	store := objectstore.NewMockStore()
	r := New(store, testBackoff(), nil)

	status, got, _ := r.DownloadPartitionManifest(context.Background(), "orders", 1, 7)
	assert.Equal(t, DownloadNotFound, status)
	assert.Nil(t, got)
}

func TestDownloadManifestDecodeFailureIsNotRetried(t *testing.T) {
	store := objectstore.NewMockStore()
	store.PutBytes("bad", []byte("SCOURMF garbage"))

	r := New(store, testBackoff(), nil)
	status, got := r.DownloadManifest(context.Background(), "bad")
	assert.Equal(t, DownloadFailure, status)
	assert.Nil(t, got)
	assert.Equal(t, 1, store.Calls("bad"))
}
