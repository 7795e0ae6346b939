// mock_storage.go - In-memory object store for testing
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/baksh-audit/survey-backend/internal/storage"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected storage fault")

// MockStore implements storage.Store in memory, with per-key fault injection.
type MockStore struct {
	mu       sync.RWMutex
	objects  map[string]*storage.Object
	getFail  map[string]error
	putFail  map[string]error
	puts     []string
	failPuts error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		objects: make(map[string]*storage.Object),
		getFail: make(map[string]error),
		putFail: make(map[string]error),
	}
}

func (m *MockStore) Get(ctx context.Context, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.getFail[key]; ok {
		return nil, err
	}
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	cp := *obj
	cp.Body = append([]byte(nil), obj.Body...)
	return &cp, nil
}

func (m *MockStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPuts != nil {
		return m.failPuts
	}
	if err, ok := m.putFail[key]; ok {
		return err
	}
	m.objects[key] = &storage.Object{
		Key:          key,
		Body:         append([]byte(nil), body...),
		ContentType:  contentType,
		Size:         int64(len(body)),
		LastModified: time.Now(),
	}
	m.puts = append(m.puts, key)
	return nil
}

func (m *MockStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.getFail[key]; ok {
		return false, err
	}
	_, ok := m.objects[key]
	return ok, nil
}

// Ensure MockStore implements storage.Store
var _ storage.Store = (*MockStore)(nil)

// Test Helper Methods

// AddObject stores data directly, bypassing fault injection.
func (m *MockStore) AddObject(key string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &storage.Object{
		Key:          key,
		Body:         data,
		ContentType:  contentType,
		Size:         int64(len(data)),
		LastModified: time.Now(),
	}
}

// Object returns the stored object for key, or nil.
func (m *MockStore) Object(key string) *storage.Object {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key]
}

// Keys returns all stored keys in sorted order.
func (m *MockStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PutCount returns how many successful writes key has received.
func (m *MockStore) PutCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, k := range m.puts {
		if k == key {
			n++
		}
	}
	return n
}

// FailGet makes Get and Exists on key return err (ErrInjected when nil).
func (m *MockStore) FailGet(key string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getFail[key] = err
}

// FailPut makes Put on key return err (ErrInjected when nil).
func (m *MockStore) FailPut(key string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putFail[key] = err
}

// FailAllPuts makes every Put return err until cleared with nil.
func (m *MockStore) FailAllPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPuts = err
}

// Clear removes all objects and injected faults.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = make(map[string]*storage.Object)
	m.getFail = make(map[string]error)
	m.putFail = make(map[string]error)
	m.puts = nil
	m.failPuts = nil
}

// Clock returns a deterministic time source that advances by step on each
// call, starting at start.
func Clock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}
