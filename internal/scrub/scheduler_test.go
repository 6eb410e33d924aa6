package scrub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scour-io/scour/internal/config"
)

type schedulerEnv struct {
	sched    *Scheduler
	interval *config.Binding[time.Duration]
	jitter   *config.Binding[time.Duration]
	now      time.Time
	last     time.Time
}

func newSchedulerEnv(interval, jitter time.Duration) *schedulerEnv {
	env := &schedulerEnv{
		interval: config.NewBinding(interval),
		jitter:   config.NewBinding(jitter),
		now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	env.sched = NewScheduler(func() time.Time { return env.last }, env.interval, env.jitter)
	env.sched.now = func() time.Time { return env.now }
	return env
}

func TestSchedulerNotDueBeforeFirstPick(t *testing.T) {
	env := newSchedulerEnv(time.Hour, 0)
	assert.False(t, env.sched.ShouldScrub())
	_, ok := env.sched.UntilNextScrub()
	assert.False(t, ok)
}

func TestSchedulerNeverScrubbedIsDueAfterJitter(t *testing.T) {
	env := newSchedulerEnv(time.Hour, 0)
	env.sched.PickNextScrubTime()
	assert.True(t, env.sched.ShouldScrub())
}

func TestSchedulerWaitsOutInterval(t *testing.T) {
	env := newSchedulerEnv(time.Hour, 0)
	env.last = env.now
	env.sched.PickNextScrubTime()

	assert.False(t, env.sched.ShouldScrub())
	until, ok := env.sched.UntilNextScrub()
	require.True(t, ok)
	assert.Equal(t, time.Hour, until)

	env.now = env.now.Add(time.Hour)
	assert.True(t, env.sched.ShouldScrub())
	until, ok = env.sched.UntilNextScrub()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), until)
}

func TestSchedulerJitterStaysWithinBounds(t *testing.T) {
	interval, jitter := time.Hour, 10*time.Minute
	env := newSchedulerEnv(interval, jitter)
	env.last = env.now

	for i := 0; i < 100; i++ {
		env.sched.PickNextScrubTime()
		until, ok := env.sched.UntilNextScrub()
		require.True(t, ok)
		assert.GreaterOrEqual(t, until, interval)
		assert.LessOrEqual(t, until, interval+jitter)
	}
}

func TestSchedulerOverdueTargetPushesFullInterval(t *testing.T) {
	env := newSchedulerEnv(time.Hour, 0)
	env.last = env.now.Add(-3 * time.Hour)
	env.sched.PickNextScrubTime()

	until, ok := env.sched.UntilNextScrub()
	require.True(t, ok)
	assert.Equal(t, time.Hour, until)
}

func TestSchedulerRebindTakesEffectOnScheduledTarget(t *testing.T) {
	env := newSchedulerEnv(10*time.Hour, 0)
	env.last = env.now
	env.sched.PickNextScrubTime()

	until, ok := env.sched.UntilNextScrub()
	require.True(t, ok)
	assert.Equal(t, 10*time.Hour, until)

	env.interval.Set(time.Hour)
	until, ok = env.sched.UntilNextScrub()
	require.True(t, ok)
	assert.Equal(t, time.Hour, until)
}

func TestSchedulerRebindBeforeFirstPickDoesNotSchedule(t *testing.T) {
	env := newSchedulerEnv(time.Hour, 0)
	env.interval.Set(time.Minute)
	assert.False(t, env.sched.ShouldScrub())
}
