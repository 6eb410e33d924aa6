// Package features tracks cluster-wide feature gates. A gate flips active at
// most once per process lifetime; components block on activation before
// starting gated work.
package features

import (
	"context"
	"sync"
)

// Feature identifies a cluster-wide feature gate.
type Feature string

// TieredScrubbing gates the consistency scrubber: scrubs are skipped until
// every node in the cluster understands scrub state in the manifest.
const TieredScrubbing Feature = "tiered_storage_scrubbing"

// Table tracks which features are active. Safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	active  map[Feature]bool
	waiters map[Feature][]chan struct{}
}

// NewTable creates an empty feature table.
func NewTable() *Table {
	return &Table{
		active:  make(map[Feature]bool),
		waiters: make(map[Feature][]chan struct{}),
	}
}

// Activate marks a feature active and releases all waiters.
// Activating an already-active feature is a no-op.
func (t *Table) Activate(f Feature) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active[f] {
		return
	}
	t.active[f] = true
	for _, ch := range t.waiters[f] {
		close(ch)
	}
	delete(t.waiters, f)
}

// IsActive reports whether a feature is active.
func (t *Table) IsActive(f Feature) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[f]
}

// AwaitActive blocks until the feature is active or the context is done.
func (t *Table) AwaitActive(ctx context.Context, f Feature) error {
	t.mu.Lock()
	if t.active[f] {
		t.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	t.waiters[f] = append(t.waiters[f], ch)
	t.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
