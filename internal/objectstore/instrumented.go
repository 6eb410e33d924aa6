package objectstore

import (
	"context"
	"io"
	"time"
)

// MetricsRecorder is the interface for recording object store operation
// metrics. It decouples this package from the metrics package.
type MetricsRecorder interface {
	RecordHead(durationSeconds float64, success bool)
	RecordGet(durationSeconds float64, success bool, bytes int64)
	RecordPut(durationSeconds float64, success bool, bytes int64)
	RecordList(durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

// NewInstrumentedStore creates an instrumented wrapper around a Store.
// If metrics is nil, operations pass through directly.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{store: store, metrics: metrics}
}

func (s *InstrumentedStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	start := time.Now()
	meta, err := s.store.Head(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordHead(time.Since(start).Seconds(), err == nil)
	}
	return meta, err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.store.Get(ctx, key)
	if s.metrics != nil {
		if err != nil {
			s.metrics.RecordGet(time.Since(start).Seconds(), false, 0)
			return nil, err
		}
		return &countingReadCloser{
			inner: rc,
			done: func(n int64) {
				s.metrics.RecordGet(time.Since(start).Seconds(), true, n)
			},
		}, nil
	}
	return rc, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := s.store.Put(ctx, key, reader, size, contentType)
	if s.metrics != nil {
		s.metrics.RecordPut(time.Since(start).Seconds(), err == nil, size)
	}
	return err
}

func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	start := time.Now()
	metas, err := s.store.List(ctx, prefix)
	if s.metrics != nil {
		s.metrics.RecordList(time.Since(start).Seconds(), err == nil)
	}
	return metas, err
}

func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

// countingReadCloser reports the number of bytes read when closed.
type countingReadCloser struct {
	inner io.ReadCloser
	read  int64
	done  func(int64)
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.inner.Read(p)
	c.read += int64(n)
	return n, err
}

func (c *countingReadCloser) Close() error {
	err := c.inner.Close()
	if c.done != nil {
		c.done(c.read)
		c.done = nil
	}
	return err
}

var _ Store = (*InstrumentedStore)(nil)
