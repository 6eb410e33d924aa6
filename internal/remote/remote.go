// Package remote provides the scrubber's view of the object store: existence
// probes and manifest downloads with tri-state outcomes. Absence (NotFound)
// is a definitive finding; any other failure is transient and retried with
// capped backoff until the caller's context deadline (the retry window).
package remote

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/scour-io/scour/internal/logging"
	"github.com/scour-io/scour/internal/manifest"
	"github.com/scour-io/scour/internal/objectstore"
)

// ExistsResult is the outcome of an existence probe.
type ExistsResult int

const (
	// ExistsFound means the object is present.
	ExistsFound ExistsResult = iota
	// ExistsNotFound means the store definitively reported absence.
	ExistsNotFound
	// ExistsFailure means the probe failed; absence is unconfirmed.
	ExistsFailure
)

// DownloadStatus is the outcome of a download.
type DownloadStatus int

const (
	// DownloadOK means the object was fetched and decoded.
	DownloadOK DownloadStatus = iota
	// DownloadNotFound means the store definitively reported absence.
	DownloadNotFound
	// DownloadFailure means the fetch or decode failed.
	DownloadFailure
)

// Backoff configures the per-call retry window. Each transient failure is
// retried after an exponentially growing delay, capped at Max, until the
// context deadline expires.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff mirrors the scrub retry window defaults: 100ms initial
// delay, capped at 5s; the overall deadline comes from the caller's context.
func DefaultBackoff() Backoff {
	return Backoff{Base: 100 * time.Millisecond, Max: 5 * time.Second}
}

// Remote wraps an object store with manifest decoding and the retry window.
// Safe for concurrent use by many partition scrubbers.
type Remote struct {
	store   objectstore.Store
	backoff Backoff
	logger  *logging.Logger
}

// New creates a Remote over the given store.
func New(store objectstore.Store, backoff Backoff, logger *logging.Logger) *Remote {
	if backoff.Base <= 0 {
		backoff = DefaultBackoff()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Remote{store: store, backoff: backoff, logger: logger.Scoped("remote")}
}

// Exists probes for an object.
func (r *Remote) Exists(ctx context.Context, key string) ExistsResult {
	err := r.withRetry(ctx, func() error {
		_, headErr := r.store.Head(ctx, key)
		return headErr
	})
	switch {
	case err == nil:
		return ExistsFound
	case errors.Is(err, objectstore.ErrNotFound):
		return ExistsNotFound
	default:
		r.logger.Debugf("existence check failed", map[string]any{"key": key, "error": err.Error()})
		return ExistsFailure
	}
}

// DownloadManifest fetches and decodes the manifest object at key.
func (r *Remote) DownloadManifest(ctx context.Context, key string) (DownloadStatus, *manifest.Manifest) {
	status, m, _ := r.download(ctx, key)
	return status, m
}

// DownloadPartitionManifest fetches the main manifest for a partition. The
// binary encoding is tried first; the legacy JSON key is a fallback. The
// encoding actually found is returned so callers can flag structurally
// impossible combinations.
func (r *Remote) DownloadPartitionManifest(ctx context.Context, topic string, partition int32, revision int64) (DownloadStatus, *manifest.Manifest, manifest.Format) {
	binKey := manifest.PartitionManifestPath(topic, partition, revision, manifest.FormatBinary)
	status, m, format := r.download(ctx, binKey)
	if status != DownloadNotFound {
		return status, m, format
	}

	jsonKey := manifest.PartitionManifestPath(topic, partition, revision, manifest.FormatJSON)
	return r.download(ctx, jsonKey)
}

// DownloadObject fetches a raw object (deep scrub of segment content).
func (r *Remote) DownloadObject(ctx context.Context, key string) (DownloadStatus, []byte) {
	var data []byte
	err := r.withRetry(ctx, func() error {
		rc, getErr := r.store.Get(ctx, key)
		if getErr != nil {
			return getErr
		}
		defer rc.Close()
		data, getErr = io.ReadAll(rc)
		return getErr
	})
	switch {
	case err == nil:
		return DownloadOK, data
	case errors.Is(err, objectstore.ErrNotFound):
		return DownloadNotFound, nil
	default:
		r.logger.Debugf("object download failed", map[string]any{"key": key, "error": err.Error()})
		return DownloadFailure, nil
	}
}

func (r *Remote) download(ctx context.Context, key string) (DownloadStatus, *manifest.Manifest, manifest.Format) {
	status, data := r.DownloadObject(ctx, key)
	if status != DownloadOK {
		return status, nil, manifest.FormatBinary
	}

	m, format, err := manifest.Decode(data)
	if err != nil {
		// A fetched but undecodable manifest is not retryable.
		r.logger.Warnf("manifest decode failed", map[string]any{"key": key, "error": err.Error()})
		return DownloadFailure, nil, format
	}
	return DownloadOK, m, format
}

// withRetry runs op, retrying transient failures with capped exponential
// backoff until the context is done. NotFound is definitive and returned
// immediately.
func (r *Remote) withRetry(ctx context.Context, op func() error) error {
	delay := r.backoff.Base
	for {
		err := op()
		if err == nil || errors.Is(err, objectstore.ErrNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.backoff.Max {
			delay = r.backoff.Max
		}
	}
}
