// Package objectstore defines the Store interface for S3-compatible storage.
//
// The scrubber is a read-mostly consumer: it checks object existence with
// [Store.Head], downloads manifests and segments with [Store.Get], and only
// writes when seeding fixtures or publishing operator tooling output. The
// interface is deliberately smaller than a general-purpose store client.
//
// Implementations must map provider-specific failures onto the sentinel
// errors below so callers can distinguish "object absent" (an anomaly to
// record) from "call failed" (a transient condition to retry or degrade on):
//
//	meta, err := store.Head(ctx, key)
//	if errors.Is(err, objectstore.ErrNotFound) {
//	    // proven absence
//	}
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrClosed is returned when operations are attempted on a closed store.
	ErrClosed = errors.New("store is closed")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Get", "Head")
	Key string // Object key
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// ETag is the entity tag, typically an MD5 hash of the object content.
	ETag string

	// LastModified is the Unix timestamp (milliseconds) when the object
	// was last modified.
	LastModified int64
}

// Store is the interface for object storage operations.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations must be safe for concurrent use: many partition scrubbers
// share a single store.
type Store interface {
	// Head retrieves object metadata without the body. This is the
	// existence probe the scrubber issues for every segment and spillover
	// descriptor.
	//
	// Returns ErrNotFound (wrapped) if the object doesn't exist.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Get retrieves an entire object. The caller must close the returned
	// ReadCloser.
	//
	// Returns ErrNotFound (wrapped) if the object doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores an object at the given key. The reader is consumed until
	// EOF; size must match the total bytes read.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// List returns objects matching the given prefix in lexicographic
	// order by key.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Close releases resources associated with the store.
	// After Close returns, all other methods return ErrClosed.
	Close() error
}
