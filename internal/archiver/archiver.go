// Package archiver persists scrub outcomes into the metadata store. State
// is kept per partition under a single versioned key; writes are
// compare-and-set so a partition scrubbed from two nodes cannot silently
// clobber findings.
package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scour-io/scour/internal/logging"
	"github.com/scour-io/scour/internal/manifest"
	"github.com/scour-io/scour/internal/metadata"
	"github.com/scour-io/scour/internal/scrub"
)

// Report is the outcome of one persisted scrub run, as handed to an
// Emitter.
type Report struct {
	RunID     string    `json:"runId"`
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Revision  int64     `json:"revision"`
	ScrubTime time.Time `json:"scrubTime"`
	Status    string    `json:"status"`
	Anomalies int       `json:"anomalies"`
	State     State     `json:"state"`
}

// Emitter publishes scrub reports to an external sink. Emission is best
// effort: failures are logged and do not fail the run.
type Emitter interface {
	EmitReport(ctx context.Context, report Report) error
}

// State is the persisted per-partition scrub state. Anomaly collections are
// stored as sorted slices; they convert losslessly to and from the
// detector's sets.
type State struct {
	LastScrubMs int64  `json:"lastScrubMs"`
	LastStatus  string `json:"lastStatus"`
	LastRunID   string `json:"lastRunId"`

	MissingPartitionManifest bool                      `json:"missingPartitionManifest,omitempty"`
	InconsistentEncoding     bool                      `json:"inconsistentEncoding,omitempty"`
	MissingSpillovers        []manifest.SpilloverRange `json:"missingSpillovers,omitempty"`
	MissingSegments          []manifest.SegmentMeta    `json:"missingSegments,omitempty"`
	CorruptSegments          []manifest.SegmentMeta    `json:"corruptSegments,omitempty"`
	MetaAnomalies            []scrub.MetaAnomaly       `json:"metaAnomalies,omitempty"`
}

// Anomalies reconstructs the detector set from persisted state.
func (s *State) Anomalies() scrub.AnomalySet {
	set := scrub.NewAnomalySet()
	set.MissingPartitionManifest = s.MissingPartitionManifest
	set.InconsistentEncoding = s.InconsistentEncoding
	for _, r := range s.MissingSpillovers {
		set.AddMissingSpillover(r)
	}
	for _, seg := range s.MissingSegments {
		set.AddMissingSegment(seg)
	}
	for _, seg := range s.CorruptSegments {
		set.AddCorruptSegment(seg)
	}
	for _, m := range s.MetaAnomalies {
		set.AddMetaAnomaly(m)
	}
	return set
}

func (s *State) setAnomalies(set scrub.AnomalySet) {
	s.MissingPartitionManifest = set.MissingPartitionManifest
	s.InconsistentEncoding = set.InconsistentEncoding
	s.MissingSpillovers = set.SortedMissingSpillovers()
	s.MissingSegments = set.SortedMissingSegments()
	s.CorruptSegments = set.SortedCorruptSegments()
	s.MetaAnomalies = set.SortedMetaAnomalies()
}

// StateKey returns the metadata key holding one partition's scrub state.
func StateKey(topic string, partition int32, revision int64) string {
	return fmt.Sprintf("/scour/v1/scrub/%s/%d_%d", topic, partition, revision)
}

// StorePrefix is the metadata prefix under which all scrub state lives.
const StorePrefix = "/scour/v1/scrub/"

// StoreArchiver implements the scrubber's Archiver on a metadata.Store.
// Findings only accumulate: each run's anomalies merge into the persisted
// set.
type StoreArchiver struct {
	topic     string
	partition int32
	revision  int64
	store     metadata.Store
	emitter   Emitter
	logger    *logging.Logger

	mu      sync.Mutex
	state   State
	version metadata.Version
}

// New creates an archiver and loads any existing state for the partition.
func New(ctx context.Context, store metadata.Store, topic string, partition int32, revision int64, emitter Emitter, logger *logging.Logger) (*StoreArchiver, error) {
	if logger == nil {
		logger = logging.Default()
	}
	a := &StoreArchiver{
		topic:     topic,
		partition: partition,
		revision:  revision,
		store:     store,
		emitter:   emitter,
		logger:    logger.Scoped("archiver").WithPartition(topic, partition),
	}
	if err := a.reload(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *StoreArchiver) reload(ctx context.Context) error {
	res, err := a.store.Get(ctx, StateKey(a.topic, a.partition, a.revision))
	if err != nil {
		return fmt.Errorf("archiver: load state: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.version = res.Version
	if !res.Exists {
		a.state = State{}
		return nil
	}
	if err := json.Unmarshal(res.Value, &a.state); err != nil {
		return fmt.Errorf("archiver: decode state: %w", err)
	}
	return nil
}

// LastScrubTime returns the persisted timestamp of the most recent scrub,
// zero if the partition was never scrubbed.
func (a *StoreArchiver) LastScrubTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.LastScrubMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(a.state.LastScrubMs)
}

// State returns a copy of the cached persisted state.
func (a *StoreArchiver) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ProcessAnomalies merges a completed pass into the persisted state and
// advances the last-scrub timestamp. On a version conflict the cache is
// refreshed and the error returned; the scrubber retries on its next run.
func (a *StoreArchiver) ProcessAnomalies(ctx context.Context, scrubTime time.Time, status scrub.Status, detected scrub.AnomalySet) error {
	a.mu.Lock()
	merged := a.state.Anomalies()
	merged.Merge(detected)

	next := State{
		LastScrubMs: scrubTime.UnixMilli(),
		LastStatus:  status.String(),
		LastRunID:   uuid.NewString(),
	}
	next.setAnomalies(merged)

	data, err := json.Marshal(&next)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("archiver: encode state: %w", err)
	}

	key := StateKey(a.topic, a.partition, a.revision)
	expected := a.version
	a.mu.Unlock()

	version, err := a.store.Put(ctx, key, data, metadata.WithExpectedVersion(expected))
	if err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			a.logger.Warn("scrub state was modified concurrently, refreshing")
			if reloadErr := a.reload(ctx); reloadErr != nil {
				return reloadErr
			}
		}
		return fmt.Errorf("archiver: persist state: %w", err)
	}

	a.mu.Lock()
	a.state = next
	a.version = version
	a.mu.Unlock()

	a.emit(ctx, next, scrubTime)
	return nil
}

func (a *StoreArchiver) emit(ctx context.Context, state State, scrubTime time.Time) {
	if a.emitter == nil {
		return
	}
	set := state.Anomalies()
	report := Report{
		RunID:     state.LastRunID,
		Topic:     a.topic,
		Partition: a.partition,
		Revision:  a.revision,
		ScrubTime: scrubTime,
		Status:    state.LastStatus,
		Anomalies: set.Count(),
		State:     state,
	}
	if err := a.emitter.EmitReport(ctx, report); err != nil {
		a.logger.Warnf("report emission failed", map[string]any{"error": err.Error()})
	}
}

var _ scrub.Archiver = (*StoreArchiver)(nil)
