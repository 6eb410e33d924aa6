// Package manifest defines the persisted index of a partition's tiered
// storage: ordered segment metadata plus descriptors for spillover manifests
// holding older, evicted slices of the index.
package manifest

// SegmentMeta describes one persisted log segment. Immutable once recorded
// in a manifest; comparable so it can key sets directly.
type SegmentMeta struct {
	BaseOffset      int64 `json:"baseOffset"`
	LastOffset      int64 `json:"lastOffset"`
	BaseKafkaOffset int64 `json:"baseKafkaOffset"`
	NextKafkaOffset int64 `json:"nextKafkaOffset"`
	BaseTimestampMs int64 `json:"baseTimestampMs"`
	MaxTimestampMs  int64 `json:"maxTimestampMs"`
	SizeBytes       int64 `json:"sizeBytes"`
}

// SpilloverRange describes the offset/timestamp range covered by a spillover
// manifest. It is a pointer to a separately stored manifest object, not its
// content; the object key is derived deterministically from these components.
type SpilloverRange struct {
	BaseOffset      int64 `json:"baseOffset"`
	LastOffset      int64 `json:"lastOffset"`
	BaseKafkaOffset int64 `json:"baseKafkaOffset"`
	NextKafkaOffset int64 `json:"nextKafkaOffset"`
	BaseTimestampMs int64 `json:"baseTimestampMs"`
	MaxTimestampMs  int64 `json:"maxTimestampMs"`
}

// Manifest is the authoritative index of which segments exist for one
// partition, ordered by base offset, plus descriptors for any spillover
// manifests. Spillover manifests share this shape but never nest further.
type Manifest struct {
	Topic     string           `json:"topic"`
	Partition int32            `json:"partition"`
	Revision  int64            `json:"revision"`
	Segments  []SegmentMeta    `json:"segments"`
	Spillover []SpilloverRange `json:"spillover,omitempty"`
}

// Empty reports whether the manifest records no segments.
func (m *Manifest) Empty() bool {
	return len(m.Segments) == 0
}

// FirstSegment returns the earliest retained segment.
func (m *Manifest) FirstSegment() (SegmentMeta, bool) {
	if len(m.Segments) == 0 {
		return SegmentMeta{}, false
	}
	return m.Segments[0], true
}

// LastSegment returns the latest retained segment.
func (m *Manifest) LastSegment() (SegmentMeta, bool) {
	if len(m.Segments) == 0 {
		return SegmentMeta{}, false
	}
	return m.Segments[len(m.Segments)-1], true
}
