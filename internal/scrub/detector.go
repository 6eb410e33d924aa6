package scrub

import (
	"context"

	"github.com/scour-io/scour/internal/logging"
	"github.com/scour-io/scour/internal/manifest"
	"github.com/scour-io/scour/internal/remote"
)

// Result carries the findings of one detection pass: the completeness
// status, the anomalies found, and the number of object store operations
// performed.
type Result struct {
	Status   Status
	Detected AnomalySet
	Ops      uint64
}

// NewResult returns an empty full result.
func NewResult() Result {
	return Result{Status: StatusFull, Detected: NewAnomalySet()}
}

// Merge folds other into r: statuses merge, anomaly sets union, op counts
// add.
func (r *Result) Merge(other Result) {
	r.Status = r.Status.Merge(other.Status)
	r.Detected.Merge(other.Detected)
	r.Ops += other.Ops
}

// Detector walks one partition's manifest chain and verifies it against the
// object store. Each remote call counts as one operation against the run
// quota, whatever its outcome.
type Detector struct {
	topic     string
	partition int32
	revision  int64
	remote    *remote.Remote
	deepScrub bool
	logger    *logging.Logger
}

// NewDetector creates a detector for one partition. With deepScrub set,
// segments that exist are also downloaded and their columnar structure
// validated.
func NewDetector(topic string, partition int32, revision int64, rem *remote.Remote, deepScrub bool, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{
		topic:     topic,
		partition: partition,
		revision:  revision,
		remote:    rem,
		deepScrub: deepScrub,
		logger:    logger.Scoped("detector").WithPartition(topic, partition),
	}
}

// Run performs one detection pass. The pass walks the chain newest to
// oldest: main manifest, spillover descriptors, then the content of each
// manifest. Cancellation is checked before every spillover download and
// every per-segment check; an interrupted pass returns partial findings.
func (d *Detector) Run(ctx context.Context) Result {
	res := NewResult()

	res.Ops++
	status, main, format := d.remote.DownloadPartitionManifest(ctx, d.topic, d.partition, d.revision)
	switch status {
	case remote.DownloadNotFound:
		// Definitive absence of the main manifest is a complete finding:
		// there is nothing further to check.
		res.Detected.MissingPartitionManifest = true
		return res
	case remote.DownloadFailure:
		res.Status = StatusFailed
		return res
	}

	// Probe each spillover descriptor. Descriptors are stored oldest first;
	// retained paths are collected nearest-to-main first so the walk below
	// proceeds backwards through the log.
	var spillPaths []string
	for _, rng := range main.Spillover {
		res.Ops++
		path := manifest.SpilloverManifestPath(d.topic, d.partition, d.revision, rng)
		switch d.remote.Exists(ctx, path) {
		case remote.ExistsFound:
			spillPaths = append([]string{path}, spillPaths...)
		case remote.ExistsNotFound:
			res.Detected.AddMissingSpillover(rng)
		case remote.ExistsFailure:
			res.Status = res.Status.Merge(StatusPartial)
		}
	}

	// A legacy JSON main manifest predates spillover support; referencing
	// spillovers from one is structurally impossible.
	if format == manifest.FormatJSON && len(main.Spillover) > 0 {
		res.Detected.InconsistentEncoding = true
	}

	res.Merge(d.checkManifest(ctx, main))

	// Walk spillovers newest to oldest, stitching adjacency across manifest
	// boundaries: the last segment of an older manifest must hand off
	// cleanly to the first segment of the next newer one.
	boundary, haveBoundary := main.FirstSegment()
	for _, path := range spillPaths {
		if ctx.Err() != nil {
			res.Status = res.Status.Merge(StatusPartial)
			return res
		}

		res.Ops++
		status, spill := d.remote.DownloadManifest(ctx, path)
		if status != remote.DownloadOK {
			res.Status = res.Status.Merge(StatusPartial)
			haveBoundary = false
			continue
		}

		if last, ok := spill.LastSegment(); ok && haveBoundary {
			res.Detected.CheckAdjacent(last, boundary)
		}

		res.Merge(d.checkManifest(ctx, spill))

		boundary, haveBoundary = spill.FirstSegment()
	}

	return res
}

// checkManifest verifies one manifest's content: every referenced segment
// must exist, and each pair of consecutive entries must be consistent.
// Metadata checks run regardless of the existence probe's outcome.
func (d *Detector) checkManifest(ctx context.Context, m *manifest.Manifest) Result {
	res := NewResult()

	havePrev := false
	var prev manifest.SegmentMeta
	for _, seg := range m.Segments {
		if ctx.Err() != nil {
			res.Status = res.Status.Merge(StatusPartial)
			return res
		}

		res.Ops++
		path := manifest.SegmentPath(d.topic, d.partition, d.revision, seg)
		switch d.remote.Exists(ctx, path) {
		case remote.ExistsFound:
			if d.deepScrub {
				res.Merge(d.deepScrubSegment(ctx, path, seg))
			}
		case remote.ExistsNotFound:
			res.Detected.AddMissingSegment(seg)
		case remote.ExistsFailure:
			res.Status = res.Status.Merge(StatusPartial)
		}

		if havePrev {
			res.Detected.CheckAdjacent(prev, seg)
		}
		prev, havePrev = seg, true
	}

	return res
}

// deepScrubSegment downloads a segment and validates its structure.
func (d *Detector) deepScrubSegment(ctx context.Context, path string, seg manifest.SegmentMeta) Result {
	res := NewResult()

	res.Ops++
	status, data := d.remote.DownloadObject(ctx, path)
	switch status {
	case remote.DownloadNotFound:
		res.Detected.AddMissingSegment(seg)
	case remote.DownloadFailure:
		res.Status = StatusPartial
	case remote.DownloadOK:
		if err := validateSegment(data); err != nil {
			d.logger.Warnf("segment failed deep validation", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			res.Detected.AddCorruptSegment(seg)
		}
	}

	return res
}
