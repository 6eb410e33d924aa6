package manifest

import "fmt"

// Object key derivation. Paths must be deterministic and stable: the same
// range components always yield the same key, since spillover manifests are
// located without a directory listing.

// ManifestPrefix is the key prefix under which all partition manifests live.
const ManifestPrefix = "meta/"

// TopicManifestPrefix returns the listing prefix covering every partition and
// revision of a topic.
func TopicManifestPrefix(topic string) string {
	return fmt.Sprintf("meta/%s/", topic)
}

// PartitionManifestPath returns the key of the main manifest for a partition
// in the given encoding.
func PartitionManifestPath(topic string, partition int32, revision int64, format Format) string {
	name := "manifest.bin"
	if format == FormatJSON {
		name = "manifest.json"
	}
	return fmt.Sprintf("meta/%s/%d_%d/%s", topic, partition, revision, name)
}

// SpilloverManifestPath returns the key of the spillover manifest covering
// the given range. The range components are embedded in the key.
func SpilloverManifestPath(topic string, partition int32, revision int64, r SpilloverRange) string {
	return fmt.Sprintf(
		"meta/%s/%d_%d/manifest.bin.%d.%d.%d.%d.%d.%d",
		topic, partition, revision,
		r.BaseOffset, r.LastOffset,
		r.BaseKafkaOffset, r.NextKafkaOffset,
		r.BaseTimestampMs, r.MaxTimestampMs,
	)
}

// SegmentPath returns the key of a segment object.
func SegmentPath(topic string, partition int32, revision int64, seg SegmentMeta) string {
	return fmt.Sprintf(
		"segments/%s/%d_%d/%d-%d.seg",
		topic, partition, revision, seg.BaseOffset, seg.LastOffset,
	)
}
