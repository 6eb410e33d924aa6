package scrub

import (
	"sort"

	"github.com/scour-io/scour/internal/manifest"
)

// MetaAnomalyKind classifies an inconsistency between two adjacent segment
// metadata entries.
type MetaAnomalyKind string

const (
	// KindOffsetGap means the next segment starts after the expected offset,
	// leaving a hole in the raw offset space.
	KindOffsetGap MetaAnomalyKind = "offset_gap"
	// KindOffsetOverlap means the next segment starts at or before the
	// previous segment's last offset.
	KindOffsetOverlap MetaAnomalyKind = "offset_overlap"
	// KindKafkaOffsetInconsistency means the kafka offset progression between
	// the two segments is impossible: the kafka offset regresses, or the
	// number of non-data batches shrinks.
	KindKafkaOffsetInconsistency MetaAnomalyKind = "kafka_offset_inconsistency"
	// KindTimestampOrderViolation means the next segment's base timestamp is
	// earlier than the previous segment's max timestamp.
	KindTimestampOrderViolation MetaAnomalyKind = "timestamp_order_violation"
)

// MetaAnomaly records an inconsistency between segment At and the segment
// Prev that precedes it in the offset space.
type MetaAnomaly struct {
	Kind MetaAnomalyKind      `json:"kind"`
	Prev manifest.SegmentMeta `json:"previous"`
	At   manifest.SegmentMeta `json:"at"`
}

// AnomalySet accumulates the findings of a scrub pass. All collections are
// sets, so re-detecting a known anomaly changes nothing; merging the results
// of repeated runs over unchanged state is idempotent.
type AnomalySet struct {
	MissingPartitionManifest  bool
	InconsistentEncoding      bool
	MissingSpilloverManifests map[manifest.SpilloverRange]struct{}
	MissingSegments           map[manifest.SegmentMeta]struct{}
	CorruptSegments           map[manifest.SegmentMeta]struct{}
	MetaAnomalies             map[MetaAnomaly]struct{}
}

// NewAnomalySet creates an empty set.
func NewAnomalySet() AnomalySet {
	return AnomalySet{
		MissingSpilloverManifests: make(map[manifest.SpilloverRange]struct{}),
		MissingSegments:           make(map[manifest.SegmentMeta]struct{}),
		CorruptSegments:           make(map[manifest.SegmentMeta]struct{}),
		MetaAnomalies:             make(map[MetaAnomaly]struct{}),
	}
}

// AddMissingSpillover records a spillover manifest that is referenced by the
// main manifest but absent from the store.
func (a *AnomalySet) AddMissingSpillover(r manifest.SpilloverRange) {
	a.MissingSpilloverManifests[r] = struct{}{}
}

// AddMissingSegment records a segment that is referenced but absent.
func (a *AnomalySet) AddMissingSegment(s manifest.SegmentMeta) {
	a.MissingSegments[s] = struct{}{}
}

// AddCorruptSegment records a segment whose content failed deep validation.
func (a *AnomalySet) AddCorruptSegment(s manifest.SegmentMeta) {
	a.CorruptSegments[s] = struct{}{}
}

// AddMetaAnomaly records a metadata inconsistency.
func (a *AnomalySet) AddMetaAnomaly(m MetaAnomaly) {
	a.MetaAnomalies[m] = struct{}{}
}

// Merge folds other into a. Set union plus boolean OR; merging is
// commutative and idempotent.
func (a *AnomalySet) Merge(other AnomalySet) {
	a.MissingPartitionManifest = a.MissingPartitionManifest || other.MissingPartitionManifest
	a.InconsistentEncoding = a.InconsistentEncoding || other.InconsistentEncoding
	for r := range other.MissingSpilloverManifests {
		a.MissingSpilloverManifests[r] = struct{}{}
	}
	for s := range other.MissingSegments {
		a.MissingSegments[s] = struct{}{}
	}
	for s := range other.CorruptSegments {
		a.CorruptSegments[s] = struct{}{}
	}
	for m := range other.MetaAnomalies {
		a.MetaAnomalies[m] = struct{}{}
	}
}

// Empty reports whether no anomaly of any kind was found.
func (a *AnomalySet) Empty() bool {
	return !a.MissingPartitionManifest &&
		!a.InconsistentEncoding &&
		len(a.MissingSpilloverManifests) == 0 &&
		len(a.MissingSegments) == 0 &&
		len(a.CorruptSegments) == 0 &&
		len(a.MetaAnomalies) == 0
}

// Count returns the total number of recorded findings, with each boolean
// flag counting as one.
func (a *AnomalySet) Count() int {
	n := len(a.MissingSpilloverManifests) + len(a.MissingSegments) +
		len(a.CorruptSegments) + len(a.MetaAnomalies)
	if a.MissingPartitionManifest {
		n++
	}
	if a.InconsistentEncoding {
		n++
	}
	return n
}

// CheckAdjacent compares two segments adjacent in the offset space (prev
// precedes cur) and records every inconsistency between them. A clean
// handoff has cur starting exactly one past prev's last offset, with the
// kafka offset delta non-decreasing and timestamps non-regressing.
func (a *AnomalySet) CheckAdjacent(prev, cur manifest.SegmentMeta) {
	switch {
	case cur.BaseOffset > prev.LastOffset+1:
		a.AddMetaAnomaly(MetaAnomaly{Kind: KindOffsetGap, Prev: prev, At: cur})
	case cur.BaseOffset <= prev.LastOffset:
		a.AddMetaAnomaly(MetaAnomaly{Kind: KindOffsetOverlap, Prev: prev, At: cur})
	}

	// The delta between raw and kafka offsets counts non-data batches; it
	// can only grow along the log.
	if cur.BaseKafkaOffset < prev.NextKafkaOffset {
		a.AddMetaAnomaly(MetaAnomaly{Kind: KindKafkaOffsetInconsistency, Prev: prev, At: cur})
	} else if cur.BaseOffset-cur.BaseKafkaOffset < prev.LastOffset+1-prev.NextKafkaOffset {
		a.AddMetaAnomaly(MetaAnomaly{Kind: KindKafkaOffsetInconsistency, Prev: prev, At: cur})
	}

	if cur.BaseTimestampMs < prev.MaxTimestampMs {
		a.AddMetaAnomaly(MetaAnomaly{Kind: KindTimestampOrderViolation, Prev: prev, At: cur})
	}
}

// SortedMissingSpillovers returns the missing spillover ranges ordered by
// base offset, for stable report output.
func (a *AnomalySet) SortedMissingSpillovers() []manifest.SpilloverRange {
	out := make([]manifest.SpilloverRange, 0, len(a.MissingSpilloverManifests))
	for r := range a.MissingSpilloverManifests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseOffset < out[j].BaseOffset })
	return out
}

// SortedMissingSegments returns the missing segments ordered by base offset.
func (a *AnomalySet) SortedMissingSegments() []manifest.SegmentMeta {
	return sortSegments(a.MissingSegments)
}

// SortedCorruptSegments returns the corrupt segments ordered by base offset.
func (a *AnomalySet) SortedCorruptSegments() []manifest.SegmentMeta {
	return sortSegments(a.CorruptSegments)
}

// SortedMetaAnomalies returns the metadata anomalies ordered by the offset
// at which they occur.
func (a *AnomalySet) SortedMetaAnomalies() []MetaAnomaly {
	out := make([]MetaAnomaly, 0, len(a.MetaAnomalies))
	for m := range a.MetaAnomalies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.BaseOffset != out[j].At.BaseOffset {
			return out[i].At.BaseOffset < out[j].At.BaseOffset
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func sortSegments(set map[manifest.SegmentMeta]struct{}) []manifest.SegmentMeta {
	out := make([]manifest.SegmentMeta, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseOffset < out[j].BaseOffset })
	return out
}
