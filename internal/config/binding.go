package config

import "sync"

// Binding is a live-reloadable configuration value. Consumers read the
// current value with Get and register change callbacks with Watch; Set
// installs a new value and fires all watchers synchronously.
//
// Bindings decouple long-lived components (scheduler, scrubber gating) from
// the config source: rebinding interval/jitter/enabled takes effect for
// subsequent decisions without a restart.
type Binding[T any] struct {
	mu       sync.Mutex
	value    T
	watchers []func(T)
}

// NewBinding creates a Binding holding an initial value.
func NewBinding[T any](initial T) *Binding[T] {
	return &Binding[T]{value: initial}
}

// Get returns the current value.
func (b *Binding[T]) Get() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Set installs a new value and notifies watchers.
// Watchers run on the caller's goroutine; they must not call back into
// the same Binding.
func (b *Binding[T]) Set(v T) {
	b.mu.Lock()
	b.value = v
	watchers := make([]func(T), len(b.watchers))
	copy(watchers, b.watchers)
	b.mu.Unlock()

	for _, w := range watchers {
		w(v)
	}
}

// Watch registers a callback invoked on every Set.
func (b *Binding[T]) Watch(fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers = append(b.watchers, fn)
}
