package scrub

import (
	"context"
	"sync"
	"time"

	"github.com/scour-io/scour/internal/config"
	"github.com/scour-io/scour/internal/features"
	"github.com/scour-io/scour/internal/logging"
)

// Archiver persists scrub outcomes into partition metadata. Findings only
// ever accumulate: re-detected anomalies merge in as no-ops.
type Archiver interface {
	// LastScrubTime returns the timestamp of the most recent persisted
	// scrub, zero if the partition was never scrubbed.
	LastScrubTime() time.Time
	// ProcessAnomalies merges a completed pass into the persisted state and
	// advances the last-scrub timestamp.
	ProcessAnomalies(ctx context.Context, scrubTime time.Time, status Status, detected AnomalySet) error
}

// RunObserver receives the outcome of completed runs, for metrics export.
type RunObserver interface {
	ObserveRun(topic string, partition int32, status Status, ops uint64, anomalies int)
}

// RunStatus is the outcome of one housekeeping invocation.
type RunStatus int

const (
	// RunOK means detection completed and its findings were persisted.
	RunOK RunStatus = iota
	// RunSkipped means gating prevented the run; no quota was consumed.
	RunSkipped
	// RunFailed means detection failed, was aborted, or persistence failed.
	RunFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunOK:
		return "ok"
	case RunSkipped:
		return "skipped"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunResult reports one invocation: its status and the quota accounting.
type RunResult struct {
	Status    RunStatus
	Consumed  RunQuota
	Remaining RunQuota
}

// ScrubberConfig collects the dependencies of one partition scrubber.
type ScrubberConfig struct {
	Topic     string
	Partition int32
	Revision  int64

	Detector  *Detector
	Scheduler *Scheduler
	Archiver  Archiver
	Features  *features.Table
	Enabled   *config.Binding[bool]

	// RunTimeout bounds one detection pass; it is the retry window for
	// every remote call within the pass.
	RunTimeout time.Duration

	Observer RunObserver
	Logger   *logging.Logger
}

// Scrubber drives periodic consistency scrubs for one partition. It is a
// housekeeping job: the manager acquires it, invokes Run with the epoch's
// remaining quota, and releases it. Start/Stop bound its background work.
type Scrubber struct {
	cfg       ScrubberConfig
	scheduler *Scheduler
	gate      *gate
	logger    *logging.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu          sync.Mutex
	jobEnabled  bool
	held        bool
	interrupted bool
	runCancel   context.CancelFunc

	now func() time.Time
}

// NewScrubber creates a scrubber. Call Start to arm it.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scrubber{
		cfg:        cfg,
		scheduler:  cfg.Scheduler,
		gate:       newGate(),
		logger:     logger.Scoped("scrubber").WithPartition(cfg.Topic, cfg.Partition),
		rootCtx:    ctx,
		rootCancel: cancel,
		jobEnabled: true,
		now:        time.Now,
	}
}

// Name identifies the job to the housekeeping manager.
func (s *Scrubber) Name() string {
	return "scrubber"
}

// Start arms the scrubber: once the scrubbing feature activates, the first
// scrub target is scheduled. Runs invoked before activation are skipped.
func (s *Scrubber) Start() {
	if err := s.gate.enter(); err != nil {
		return
	}
	go func() {
		defer s.gate.leave()
		if err := s.cfg.Features.AwaitActive(s.rootCtx, features.TieredScrubbing); err != nil {
			return
		}
		s.scheduler.PickNextScrubTime()
		s.logger.Debug("scrubbing feature active, first scrub scheduled")
	}()
}

// Stop interrupts any in-flight run and drains background work. The
// scrubber cannot be restarted.
func (s *Scrubber) Stop() {
	s.rootCancel()
	s.Interrupt()
	s.gate.close()
}

// Interrupt aborts the current run, if any. The interrupted flag stays set
// until the next run begins.
func (s *Scrubber) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
	if s.runCancel != nil {
		s.runCancel()
	}
}

// Interrupted reports whether the current or last run was interrupted.
func (s *Scrubber) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// SetEnabled toggles the job-level enable, independent of the cluster
// configuration binding.
func (s *Scrubber) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobEnabled = enabled
}

// Acquire takes the housekeeping token. Acquiring a held scrubber is a
// programming error and panics.
func (s *Scrubber) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		panic("scrub: scrubber already acquired")
	}
	s.held = true
}

// Release returns the housekeeping token. Releasing without a prior
// Acquire panics.
func (s *Scrubber) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		panic("scrub: release without acquire")
	}
	s.held = false
}

// Run performs one gated scrub attempt against the epoch's remaining quota.
// Gating is checked in order: feature activation, job enable, configuration
// enable, schedule. A skipped run consumes nothing.
func (s *Scrubber) Run(ctx context.Context, quota RunQuota) RunResult {
	if err := s.gate.enter(); err != nil {
		return RunResult{Status: RunSkipped, Remaining: quota}
	}
	defer s.gate.leave()

	if reason, skip := s.skipReason(quota); skip {
		s.logger.Debugf("scrub skipped", map[string]any{"reason": reason})
		return RunResult{Status: RunSkipped, Remaining: quota}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()
	stop := context.AfterFunc(s.rootCtx, cancel)
	defer stop()

	s.mu.Lock()
	s.interrupted = false
	s.runCancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.runCancel = nil
		s.mu.Unlock()
	}()

	started := s.now()
	s.logger.Debug("scrub starting")
	res := s.cfg.Detector.Run(runCtx)

	consumed := ConsumedFromOps(res.Ops)
	out := RunResult{Consumed: consumed, Remaining: quota.Remaining(consumed)}

	if res.Status == StatusFailed {
		// Nothing usable was produced; the schedule is left untouched so
		// the next housekeeping epoch retries.
		s.logger.Warnf("scrub failed", map[string]any{"ops": res.Ops})
		out.Status = RunFailed
		s.observe(res)
		return out
	}

	if s.Interrupted() {
		// Detection finished but shutdown or an interrupt raced it; drop
		// the findings rather than persist a possibly torn pass.
		s.logger.Debug("scrub interrupted, discarding findings")
		out.Status = RunFailed
		return out
	}

	err := s.cfg.Archiver.ProcessAnomalies(ctx, started, res.Status, res.Detected)
	s.scheduler.PickNextScrubTime()
	if err != nil {
		s.logger.Errorf("scrub result persistence failed", map[string]any{"error": err.Error()})
		out.Status = RunFailed
		return out
	}

	s.observe(res)
	s.logger.Infof("scrub complete", map[string]any{
		"status":    res.Status.String(),
		"ops":       res.Ops,
		"anomalies": res.Detected.Count(),
	})
	out.Status = RunOK
	return out
}

func (s *Scrubber) observe(res Result) {
	if s.cfg.Observer == nil {
		return
	}
	s.cfg.Observer.ObserveRun(s.cfg.Topic, s.cfg.Partition, res.Status, res.Ops, res.Detected.Count())
}

func (s *Scrubber) skipReason(quota RunQuota) (string, bool) {
	if !s.cfg.Features.IsActive(features.TieredScrubbing) {
		return "feature not active", true
	}

	s.mu.Lock()
	jobEnabled := s.jobEnabled
	s.mu.Unlock()
	if !jobEnabled {
		return "job disabled", true
	}

	if !s.cfg.Enabled.Get() {
		return "disabled in configuration", true
	}

	if quota.Exhausted() {
		return "quota exhausted", true
	}

	if !s.scheduler.ShouldScrub() {
		if until, ok := s.scheduler.UntilNextScrub(); ok {
			return "next scrub in " + until.String(), true
		}
		return "not scheduled", true
	}

	return "", false
}
