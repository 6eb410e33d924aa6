package scrub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scour-io/scour/internal/config"
	"github.com/scour-io/scour/internal/features"
	"github.com/scour-io/scour/internal/manifest"
)

type fakeArchiver struct {
	mu       sync.Mutex
	last     time.Time
	calls    int
	err      error
	status   Status
	detected AnomalySet
}

func (a *fakeArchiver) LastScrubTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *fakeArchiver) ProcessAnomalies(_ context.Context, scrubTime time.Time, status Status, detected AnomalySet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return a.err
	}
	a.last = scrubTime
	a.status = status
	a.detected = detected
	return nil
}

func (a *fakeArchiver) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeObserver struct {
	mu         sync.Mutex
	runs       int
	lastStatus Status
	lastOps    uint64
}

func (o *fakeObserver) ObserveRun(_ string, _ int32, status Status, ops uint64, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	o.lastStatus = status
	o.lastOps = ops
}

type scrubberEnv struct {
	*detectorEnv
	features *features.Table
	enabled  *config.Binding[bool]
	archiver *fakeArchiver
	observer *fakeObserver
	sched    *Scheduler
	scrubber *Scrubber
}

func newScrubberEnv(t *testing.T, runTimeout time.Duration) *scrubberEnv {
	t.Helper()
	env := &scrubberEnv{
		detectorEnv: newDetectorEnv(t, false),
		features:    features.NewTable(),
		enabled:     config.NewBinding(true),
		archiver:    &fakeArchiver{},
		observer:    &fakeObserver{},
	}
	env.sched = NewScheduler(
		env.archiver.LastScrubTime,
		config.NewBinding(time.Hour),
		config.NewBinding(time.Duration(0)),
	)
	env.scrubber = NewScrubber(ScrubberConfig{
		Topic:      testTopic,
		Partition:  testPartition,
		Revision:   testRevision,
		Detector:   env.det,
		Scheduler:  env.sched,
		Archiver:   env.archiver,
		Features:   env.features,
		Enabled:    env.enabled,
		RunTimeout: runTimeout,
		Observer:   env.observer,
	})
	t.Cleanup(env.scrubber.Stop)
	return env
}

func (e *scrubberEnv) putCleanChain(t *testing.T) {
	t.Helper()
	segs := []manifest.SegmentMeta{contiguousSeg(0, 99), contiguousSeg(100, 199)}
	e.putManifest(t, mainManifest(segs...), manifest.FormatBinary)
	for _, seg := range segs {
		e.putSegment(seg, []byte("data"))
	}
}

func TestScrubberGatingOrder(t *testing.T) {
	env := newScrubberEnv(t, time.Second)
	env.putCleanChain(t)
	ctx := context.Background()

	// Feature not yet active.
	res := env.scrubber.Run(ctx, 100)
	assert.Equal(t, RunSkipped, res.Status)
	assert.Equal(t, RunQuota(100), res.Remaining)

	env.features.Activate(features.TieredScrubbing)

	// Job disabled.
	env.scrubber.SetEnabled(false)
	assert.Equal(t, RunSkipped, env.scrubber.Run(ctx, 100).Status)
	env.scrubber.SetEnabled(true)

	// Disabled in cluster configuration.
	env.enabled.Set(false)
	assert.Equal(t, RunSkipped, env.scrubber.Run(ctx, 100).Status)
	env.enabled.Set(true)

	// No target scheduled yet.
	assert.Equal(t, RunSkipped, env.scrubber.Run(ctx, 100).Status)
	assert.Equal(t, 0, env.archiver.callCount())

	env.sched.PickNextScrubTime()
	assert.Equal(t, RunOK, env.scrubber.Run(ctx, 100).Status)
	assert.Equal(t, 1, env.archiver.callCount())
}

func TestScrubberRunConsumesQuotaAndPersists(t *testing.T) {
	env := newScrubberEnv(t, time.Second)
	env.putCleanChain(t)
	env.features.Activate(features.TieredScrubbing)
	env.sched.PickNextScrubTime()

	res := env.scrubber.Run(context.Background(), 100)
	assert.Equal(t, RunOK, res.Status)
	assert.Equal(t, RunQuota(3), res.Consumed)
	assert.Equal(t, RunQuota(97), res.Remaining)

	assert.Equal(t, StatusFull, env.archiver.status)
	assert.True(t, env.archiver.detected.Empty())
	assert.False(t, env.archiver.LastScrubTime().IsZero())

	assert.Equal(t, 1, env.observer.runs)
	assert.Equal(t, uint64(3), env.observer.lastOps)

	// The schedule advanced; the next run in this epoch is a no-op.
	res = env.scrubber.Run(context.Background(), res.Remaining)
	assert.Equal(t, RunSkipped, res.Status)
	assert.Equal(t, 1, env.archiver.callCount())
}

func TestScrubberSkipsOnExhaustedQuota(t *testing.T) {
	env := newScrubberEnv(t, time.Second)
	env.putCleanChain(t)
	env.features.Activate(features.TieredScrubbing)
	env.sched.PickNextScrubTime()

	res := env.scrubber.Run(context.Background(), 0)
	assert.Equal(t, RunSkipped, res.Status)
	assert.Equal(t, 0, env.archiver.callCount())
}

func TestScrubberDetectionFailureDoesNotAdvanceSchedule(t *testing.T) {
	env := newScrubberEnv(t, 30*time.Millisecond)
	binKey := manifest.PartitionManifestPath(testTopic, testPartition, testRevision, manifest.FormatBinary)
	env.store.FailKey(binKey, errors.New("throttled"))
	env.features.Activate(features.TieredScrubbing)
	env.sched.PickNextScrubTime()

	res := env.scrubber.Run(context.Background(), 100)
	assert.Equal(t, RunFailed, res.Status)
	assert.Equal(t, RunQuota(1), res.Consumed)
	assert.Equal(t, 0, env.archiver.callCount())

	// Still due: the next housekeeping epoch retries.
	assert.True(t, env.sched.ShouldScrub())
}

func TestScrubberPersistenceFailure(t *testing.T) {
	env := newScrubberEnv(t, time.Second)
	env.putCleanChain(t)
	env.archiver.err = errors.New("metadata unavailable")
	env.features.Activate(features.TieredScrubbing)
	env.sched.PickNextScrubTime()

	res := env.scrubber.Run(context.Background(), 100)
	assert.Equal(t, RunFailed, res.Status)
	assert.Equal(t, 1, env.archiver.callCount())
	assert.True(t, env.archiver.LastScrubTime().IsZero())
}

func TestScrubberInterruptAbortsRun(t *testing.T) {
	env := newScrubberEnv(t, 10*time.Second)
	binKey := manifest.PartitionManifestPath(testTopic, testPartition, testRevision, manifest.FormatBinary)
	env.store.FailKey(binKey, errors.New("throttled"))
	env.features.Activate(features.TieredScrubbing)
	env.sched.PickNextScrubTime()

	done := make(chan RunResult, 1)
	go func() {
		done <- env.scrubber.Run(context.Background(), 100)
	}()

	time.Sleep(10 * time.Millisecond)
	env.scrubber.Interrupt()

	select {
	case res := <-done:
		assert.Equal(t, RunFailed, res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not abort the run")
	}
	assert.True(t, env.scrubber.Interrupted())
	assert.Equal(t, 0, env.archiver.callCount())
}

func TestScrubberStartSchedulesOnFeatureActivation(t *testing.T) {
	env := newScrubberEnv(t, time.Second)
	env.scrubber.Start()
	assert.False(t, env.sched.ShouldScrub())

	env.features.Activate(features.TieredScrubbing)
	require.Eventually(t, env.sched.ShouldScrub, time.Second, time.Millisecond)
}

func TestScrubberStopDrainsAndDisables(t *testing.T) {
	env := newScrubberEnv(t, time.Second)
	env.putCleanChain(t)
	env.scrubber.Start()
	env.features.Activate(features.TieredScrubbing)
	env.scrubber.Stop()

	res := env.scrubber.Run(context.Background(), 100)
	assert.Equal(t, RunSkipped, res.Status)
	assert.Equal(t, 0, env.archiver.callCount())
}

func TestScrubberAcquireReleaseMisusePanics(t *testing.T) {
	env := newScrubberEnv(t, time.Second)

	env.scrubber.Acquire()
	assert.Panics(t, func() { env.scrubber.Acquire() })
	env.scrubber.Release()
	assert.Panics(t, func() { env.scrubber.Release() })
}

func TestScrubberName(t *testing.T) {
	env := newScrubberEnv(t, time.Second)
	assert.Equal(t, "scrubber", env.scrubber.Name())
}
