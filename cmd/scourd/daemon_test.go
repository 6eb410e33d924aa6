package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scour-io/scour/internal/discovery"
	"github.com/scour-io/scour/internal/objectstore"
)

func TestParsePartitionDir(t *testing.T) {
	p, rev, ok := parsePartitionDir("3_21")
	require.True(t, ok)
	assert.Equal(t, int32(3), p)
	assert.Equal(t, int64(21), rev)

	for _, dir := range []string{"", "3", "x_21", "3_y", "manifest.bin"} {
		_, _, ok := parsePartitionDir(dir)
		assert.False(t, ok, "dir %q", dir)
	}
}

func TestStoreDiscovererFindsPartitions(t *testing.T) {
	store := objectstore.NewMockStore()
	store.PutBytes("meta/orders/0_1/manifest.bin", []byte("m"))
	store.PutBytes("meta/orders/0_1/manifest.bin.0.99.0.99.1.2", []byte("m"))
	store.PutBytes("meta/orders/1_1/manifest.bin", []byte("m"))
	store.PutBytes("meta/billing/0_4/manifest.bin", []byte("m"))
	store.PutBytes("segments/orders/0_1/0-99.seg", []byte("s"))
	store.PutBytes("meta/broken", []byte("m"))

	d := &storeDiscoverer{store: store}
	got, err := d.Partitions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []discovery.Partition{
		{Topic: "billing", Partition: 0},
		{Topic: "orders", Partition: 0},
		{Topic: "orders", Partition: 1},
	}, got)
}

func TestResolveRevisionPicksNewest(t *testing.T) {
	store := objectstore.NewMockStore()
	store.PutBytes("meta/orders/0_1/manifest.bin", []byte("m"))
	store.PutBytes("meta/orders/0_7/manifest.bin", []byte("m"))
	store.PutBytes("meta/orders/1_2/manifest.bin", []byte("m"))

	rev, found, err := resolveRevision(context.Background(), store, "orders", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(7), rev)

	_, found, err = resolveRevision(context.Background(), store, "orders", 9)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFilterByPrefix(t *testing.T) {
	in := []discovery.Partition{
		{Topic: "billing", Partition: 0},
		{Topic: "orders", Partition: 0},
		{Topic: "orders", Partition: 1},
	}
	out := filterByPrefix(append([]discovery.Partition(nil), in...), "ord")
	assert.Equal(t, []discovery.Partition{
		{Topic: "orders", Partition: 0},
		{Topic: "orders", Partition: 1},
	}, out)

	out = filterByPrefix(append([]discovery.Partition(nil), in...), "")
	assert.Len(t, out, 3)
}

func TestNewDaemonRequiresConfig(t *testing.T) {
	_, err := NewDaemon(DaemonOptions{})
	require.Error(t, err)
}
