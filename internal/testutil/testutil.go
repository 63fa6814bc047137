// Package testutil provides fixtures shared by package tests: in-memory byte
// sources and stores, and builders for synthetic containers and archives.
package testutil

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data  []byte
	reads atomic.Int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// ReadCount returns the number of ReadAt calls made so far.
func (m *MockByteSource) ReadCount() int64 {
	return m.reads.Load()
}

// MockStore implements a concurrency-safe in-memory byte store that counts
// its operations.
type MockStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	gets atomic.Int64
	puts atomic.Int64
}

// NewMockStore constructs an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

// Get retrieves data by key.
func (s *MockStore) Get(key string) ([]byte, bool) {
	s.gets.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	return data, ok
}

// Put stores data by key.
func (s *MockStore) Put(key string, content []byte) error {
	s.puts.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), content...)
	return nil
}

// Delete removes data by key.
func (s *MockStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// PutCount returns the number of Put calls made so far.
func (s *MockStore) PutCount() int64 {
	return s.puts.Load()
}

// Len returns the number of stored keys.
func (s *MockStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// GatedStore is a MockStore whose first Get blocks until Release is called,
// holding the first load of a cache open while other callers arrive.
type GatedStore struct {
	*MockStore
	calls   atomic.Int64
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewGatedStore constructs an empty gated store.
func NewGatedStore() *GatedStore {
	return &GatedStore{
		MockStore: NewMockStore(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

// Get blocks on the first call until Release, then reads like MockStore.
func (s *GatedStore) Get(key string) ([]byte, bool) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-s.release
	}
	return s.MockStore.Get(key)
}

// Entered is closed once the first Get is blocked.
func (s *GatedStore) Entered() <-chan struct{} {
	return s.entered
}

// Release unblocks the first Get. It is safe to call more than once.
func (s *GatedStore) Release() {
	s.once.Do(func() { close(s.release) })
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}
