package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest() *Manifest {
	return &Manifest{
		Topic:     "orders",
		Partition: 3,
		Revision:  17,
		Segments: []SegmentMeta{
			{BaseOffset: 0, LastOffset: 99, BaseKafkaOffset: 0, NextKafkaOffset: 100, BaseTimestampMs: 1000, MaxTimestampMs: 1999, SizeBytes: 4096},
			{BaseOffset: 100, LastOffset: 199, BaseKafkaOffset: 100, NextKafkaOffset: 200, BaseTimestampMs: 2000, MaxTimestampMs: 2999, SizeBytes: 8192},
		},
		Spillover: []SpilloverRange{
			{BaseOffset: -200, LastOffset: -1, BaseKafkaOffset: -200, NextKafkaOffset: 0, BaseTimestampMs: 0, MaxTimestampMs: 999},
		},
	}
}

func TestBinaryRoundTripAllCodecs(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecSnappy, CodecLZ4, CodecZstd} {
		data, err := Encode(testManifest(), FormatBinary, codec)
		require.NoError(t, err, "codec %d", codec)

		decoded, format, err := Decode(data)
		require.NoError(t, err, "codec %d", codec)
		assert.Equal(t, FormatBinary, format)
		assert.Equal(t, testManifest(), decoded)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	data, err := Encode(testManifest(), FormatJSON, CodecNone)
	require.NoError(t, err)

	decoded, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, format)
	assert.Equal(t, testManifest(), decoded)
}

func TestDecodeRejectsCorruptFrame(t *testing.T) {
	data, err := Encode(testManifest(), FormatBinary, CodecSnappy)
	require.NoError(t, err)

	// Flip a payload byte; checksum must catch it.
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-1] ^= 0xFF
	_, _, err = Decode(corrupted)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// Truncated frame.
	_, _, err = Decode(data[:10])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	_, format, err := Decode([]byte("{not json"))
	assert.Equal(t, FormatJSON, format)
	assert.Error(t, err)
}

func TestEmptyManifestRoundTrip(t *testing.T) {
	m := &Manifest{Topic: "t", Partition: 0, Revision: 1}
	data, err := Encode(m, FormatBinary, CodecZstd)
	require.NoError(t, err)

	decoded, _, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, decoded.Empty())

	_, ok := decoded.FirstSegment()
	assert.False(t, ok)
	_, ok = decoded.LastSegment()
	assert.False(t, ok)
}

func TestPathDerivationIsDeterministic(t *testing.T) {
	r := SpilloverRange{BaseOffset: 0, LastOffset: 99, BaseKafkaOffset: 0, NextKafkaOffset: 100, BaseTimestampMs: 5, MaxTimestampMs: 9}

	p1 := SpilloverManifestPath("orders", 3, 17, r)
	p2 := SpilloverManifestPath("orders", 3, 17, r)
	assert.Equal(t, p1, p2)
	assert.Equal(t, "meta/orders/3_17/manifest.bin.0.99.0.100.5.9", p1)

	assert.Equal(t, "meta/orders/3_17/manifest.bin", PartitionManifestPath("orders", 3, 17, FormatBinary))
	assert.Equal(t, "meta/orders/3_17/manifest.json", PartitionManifestPath("orders", 3, 17, FormatJSON))
	assert.Equal(t, "segments/orders/3_17/0-99.seg", SegmentPath("orders", 3, 17, testManifest().Segments[0]))
}
