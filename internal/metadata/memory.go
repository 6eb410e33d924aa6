package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store implementation with full CAS semantics,
// used in tests and single-process deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]KV
	closed bool

	failNext error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]KV)}
}

// FailNext makes the next mutating operation return err. Tests use this to
// simulate an unavailable metadata service.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) takeFault() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *MemoryStore) Get(_ context.Context, key string) (GetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return GetResult{}, ErrStoreClosed
	}

	kv, ok := s.data[key]
	if !ok {
		return GetResult{}, nil
	}
	return GetResult{Value: kv.Value, Version: kv.Version, Exists: true}, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	if err := s.takeFault(); err != nil {
		return 0, err
	}

	current := s.data[key].Version
	if expected := ExtractExpectedVersion(opts); expected != nil && *expected != current {
		return 0, ErrVersionMismatch
	}

	next := current + 1
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = KV{Key: key, Value: stored, Version: next}
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.takeFault(); err != nil {
		return err
	}

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []KV
	for key, kv := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, kv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
