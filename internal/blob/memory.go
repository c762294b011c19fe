package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInjected is returned by MemoryStore while failures are switched on.
var ErrInjected = errors.New("blob: injected failure")

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps blobs in process. Used in tests and when no storage
// endpoint is configured in development.
type MemoryStore struct {
	mu       sync.RWMutex
	objects  map[string]Object
	puts     int
	failPuts bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (m *MemoryStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPuts {
		return fmt.Errorf("put %s/%s: %w", bucket, key, ErrInjected)
	}
	m.objects[bucket+"/"+key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *MemoryStore) PublicURL(bucket, key string) string {
	return "memory://" + bucket + "/" + key
}

func (m *MemoryStore) SignedURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s?expires=%d", m.PublicURL(bucket, key), int64(ttl.Seconds())), nil
}

func (m *MemoryStore) Ping(context.Context, string) error { return nil }

// Get returns a stored object.
func (m *MemoryStore) Get(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+key]
	return obj, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Puts returns how many writes were attempted, including failed ones.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// FailPuts makes subsequent writes fail until switched off.
func (m *MemoryStore) FailPuts(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPuts = fail
}
