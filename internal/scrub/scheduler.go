package scrub

import (
	"math/rand"
	"sync"
	"time"

	"github.com/scour-io/scour/internal/config"
)

// Scheduler decides when a partition is due for its next scrub. Targets are
// jittered so that many partitions sharing an interval do not probe the
// object store in lockstep.
//
// Interval and jitter are live bindings: rebinding either one re-derives an
// already scheduled target, so shrinking the interval takes effect without
// waiting out the old one.
type Scheduler struct {
	mu        sync.Mutex
	lastScrub func() time.Time
	interval  *config.Binding[time.Duration]
	jitter    *config.Binding[time.Duration]
	next      time.Time
	scheduled bool
	rng       *rand.Rand

	now func() time.Time
}

// NewScheduler creates a scheduler. lastScrub reports the persisted
// timestamp of the most recent archived scrub, zero if never scrubbed.
func NewScheduler(lastScrub func() time.Time, interval, jitter *config.Binding[time.Duration]) *Scheduler {
	s := &Scheduler{
		lastScrub: lastScrub,
		interval:  interval,
		jitter:    jitter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
	interval.Watch(func(time.Duration) { s.reschedule() })
	jitter.Watch(func(time.Duration) { s.reschedule() })
	return s
}

// PickNextScrubTime derives a fresh jittered target. Called once on startup
// and after every completed run; repeated failures therefore wait out a full
// interval instead of retrying immediately.
func (s *Scheduler) PickNextScrubTime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = s.pickLocked()
	s.scheduled = true
}

// ShouldScrub reports whether a scrub is due. False until the first
// PickNextScrubTime.
func (s *Scheduler) ShouldScrub() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled && !s.now().Before(s.next)
}

// UntilNextScrub returns the time remaining until the scheduled target. The
// second return is false when no target has been picked yet.
func (s *Scheduler) UntilNextScrub() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scheduled {
		return 0, false
	}
	d := s.next.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

func (s *Scheduler) reschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduled {
		s.next = s.pickLocked()
	}
}

// pickLocked computes the next target. A never-scrubbed partition is due
// after just the jitter draw; otherwise the target is one interval past the
// last scrub, pushed out to a full interval from now when that moment has
// already passed.
func (s *Scheduler) pickLocked() time.Time {
	now := s.now()
	draw := s.jitterDraw()

	last := s.lastScrub()
	if last.IsZero() {
		return now.Add(draw)
	}

	target := last.Add(s.interval.Get()).Add(draw)
	if !target.After(now) {
		target = now.Add(s.interval.Get()).Add(draw)
	}
	return target
}

func (s *Scheduler) jitterDraw() time.Duration {
	j := s.jitter.Get()
	if j <= 0 {
		return 0
	}
	return time.Duration(s.rng.Int63n(int64(j) + 1))
}
