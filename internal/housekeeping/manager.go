// Package housekeeping drives background maintenance jobs. A manager runs
// epochs on a fixed interval; within an epoch, jobs execute sequentially
// under an exclusive token and share a single object store operation quota.
package housekeeping

import (
	"context"
	"sync"
	"time"

	"github.com/scour-io/scour/internal/logging"
	"github.com/scour-io/scour/internal/scrub"
)

// Job is one unit of background maintenance. The manager acquires the job's
// token, invokes Run with the epoch's remaining quota, and releases the
// token. Jobs decide for themselves whether they are due.
type Job interface {
	Name() string
	Acquire()
	Release()
	Run(ctx context.Context, quota scrub.RunQuota) scrub.RunResult
}

// ManagerConfig configures the housekeeping manager.
type ManagerConfig struct {
	// EpochIntervalMs is the interval between housekeeping epochs in
	// milliseconds. Default: 60000 (1 minute)
	EpochIntervalMs int64

	// QuotaPerEpoch is the object store operation budget shared by all
	// jobs within one epoch. Default: 1000
	QuotaPerEpoch int64
}

// DefaultManagerConfig returns a default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		EpochIntervalMs: 60000,
		QuotaPerEpoch:   1000,
	}
}

// Manager runs registered jobs once per epoch.
type Manager struct {
	config ManagerConfig
	logger *logging.Logger

	mu      sync.Mutex
	jobs    []Job
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewManager creates a manager. Register jobs with AddJob, then Start.
func NewManager(config ManagerConfig, logger *logging.Logger) *Manager {
	if config.EpochIntervalMs <= 0 {
		config.EpochIntervalMs = DefaultManagerConfig().EpochIntervalMs
	}
	if config.QuotaPerEpoch <= 0 {
		config.QuotaPerEpoch = DefaultManagerConfig().QuotaPerEpoch
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		config: config,
		logger: logger.Scoped("housekeeping"),
	}
}

// AddJob registers a job. Safe to call while the manager is running; the
// job joins the next epoch.
func (m *Manager) AddJob(job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

// Start launches the epoch loop. The first epoch runs immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.run()
}

// Stop halts the epoch loop and waits for an in-flight epoch to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	m.mu.Unlock()

	<-m.doneCh

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

func (m *Manager) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(time.Duration(m.config.EpochIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	ctx := context.Background()
	m.runEpoch(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runEpoch(ctx)
		}
	}
}

// runEpoch executes every registered job once, threading the remaining
// quota from one job to the next.
func (m *Manager) runEpoch(ctx context.Context) {
	m.mu.Lock()
	jobs := make([]Job, len(m.jobs))
	copy(jobs, m.jobs)
	stopCh := m.stopCh
	m.mu.Unlock()

	quota := scrub.RunQuota(m.config.QuotaPerEpoch)
	for _, job := range jobs {
		select {
		case <-stopCh:
			return
		default:
		}

		res := m.runJob(ctx, job, quota)
		quota = res.Remaining

		if res.Status == scrub.RunFailed {
			m.logger.Warnf("housekeeping job failed", map[string]any{
				"job":      job.Name(),
				"consumed": int64(res.Consumed),
			})
		}
	}
}

func (m *Manager) runJob(ctx context.Context, job Job, quota scrub.RunQuota) scrub.RunResult {
	job.Acquire()
	defer job.Release()
	return job.Run(ctx, quota)
}
