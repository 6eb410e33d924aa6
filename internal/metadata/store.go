// Package metadata defines the Store interface for persisted scrub state:
// per-partition anomaly reports and last-scrub timestamps. The default
// implementation uses Oxia; an in-memory store backs tests.
package metadata

import (
	"context"
	"errors"
)

var (
	// ErrVersionMismatch is returned when the expected version does not
	// match the current version during a compare-and-set Put or Delete.
	ErrVersionMismatch = errors.New("metadata: version mismatch")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("metadata: store closed")
)

// Version is a key's version. Versions are assigned by the store on each
// write and increase monotonically; zero means the key has never been
// written, which makes WithExpectedVersion(0) an insert-if-absent.
type Version int64

// KV is a key-value pair with its version.
type KV struct {
	Key     string
	Value   []byte
	Version Version
}

// GetResult is the result of a Get. Absence is reported via Exists, not an
// error.
type GetResult struct {
	Value   []byte
	Version Version
	Exists  bool
}

// PutOption configures a Put.
type PutOption func(*putOptions)

type putOptions struct {
	expectedVersion *Version
}

// WithExpectedVersion makes the Put conditional: it fails with
// ErrVersionMismatch unless the key's current version matches. Version zero
// requires the key to not exist yet.
func WithExpectedVersion(v Version) PutOption {
	return func(o *putOptions) {
		o.expectedVersion = &v
	}
}

// ExtractExpectedVersion extracts the expected version from Put options,
// nil when unconditional.
func ExtractExpectedVersion(opts []PutOption) *Version {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.expectedVersion
}

// Store is a versioned key-value store for scrub state. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key. A missing key yields Exists=false.
	Get(ctx context.Context, key string) (GetResult, error)

	// Put stores a value and returns the new version. With
	// WithExpectedVersion the write is a compare-and-set.
	Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error)

	// Delete removes a key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error

	// List returns keys with the given prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]KV, error)

	// Close releases resources; subsequent operations return
	// ErrStoreClosed.
	Close() error
}
