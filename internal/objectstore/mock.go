package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of the Store interface for
// testing. Per-key fault injection lets scrub tests simulate transient
// remote failures distinct from absence.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	meta    map[string]ObjectMeta
	faults  map[string]error
	calls   map[string]int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]ObjectMeta),
		faults:  make(map[string]error),
		calls:   make(map[string]int),
	}
}

// FailKey makes every Head/Get on key return err until cleared.
// A nil err clears the fault.
func (s *MockStore) FailKey(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, key)
		return
	}
	s.faults[key] = err
}

// Calls returns how many Head/Get operations were issued against key.
func (s *MockStore) Calls(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[key]
}

func (s *MockStore) Head(_ context.Context, key string) (ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[key]++
	if err, ok := s.faults[key]; ok {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: key, Err: err}
	}
	meta, ok := s.meta[key]
	if !ok {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: key, Err: ErrNotFound}
	}
	return meta, nil
}

func (s *MockStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[key]++
	if err, ok := s.faults[key]; ok {
		return nil, &ObjectError{Op: "Get", Key: key, Err: err}
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, &ObjectError{Op: "Get", Key: key, Err: ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MockStore) Put(_ context.Context, key string, reader io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = data
	s.meta[key] = ObjectMeta{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         "mock-etag",
		LastModified: time.Now().UnixMilli(),
	}
	return nil
}

// PutBytes is a test convenience wrapper around Put.
func (s *MockStore) PutBytes(key string, data []byte) {
	_ = s.Put(context.Background(), key, bytes.NewReader(data), int64(len(data)), "application/octet-stream")
}

// Delete removes an object. Deleting a missing key succeeds silently.
func (s *MockStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.meta, key)
}

func (s *MockStore) List(_ context.Context, prefix string) ([]ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ObjectMeta
	for key, meta := range s.meta {
		if strings.HasPrefix(key, prefix) {
			result = append(result, meta)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (s *MockStore) Close() error {
	return nil
}

var _ Store = (*MockStore)(nil)
