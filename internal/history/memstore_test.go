package history

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	registryblob "github.com/chirino/chat-history/internal/registry/blob"
)

// memStore is an in-memory BlobStore for tests.
type memStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	failRead  error
	failWrite error
	// failKeys fails writes to specific keys only.
	failKeys map[string]error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(value)
}

func (m *memStore) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return string(v), ok
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return nil, m.failRead
	}
	v, ok := m.data[key]
	if !ok {
		return nil, &registryblob.NotFoundError{Key: key}
	}
	return append([]byte(nil), v...), nil
}

func (m *memStore) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	if err := m.failKeys[key]; err != nil {
		return err
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) List(_ context.Context, dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.Trim(dir, "/") + "/"
	var names []string
	for k := range m.data {
		if rest, ok := strings.CutPrefix(k, prefix); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) CreateIfAbsent(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	if _, ok := m.data[key]; !ok {
		m.data[key] = nil
	}
	return nil
}

var errBoom = errors.New("boom")

var _ registryblob.BlobStore = (*memStore)(nil)
