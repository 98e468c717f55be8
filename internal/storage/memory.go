package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBucket is an in-memory Bucket used by tests and local mode.
// Listing order is lexicographic, matching GCS behaviour.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryBucket creates an empty in-memory bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (b *MemoryBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var names []string
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *MemoryBucket) Read(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemoryBucket) Write(_ context.Context, name string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	b.objects[name] = stored
	b.types[name] = contentType
	return nil
}

func (b *MemoryBucket) Exists(_ context.Context, name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.objects[name]
	return ok, nil
}

// ContentType returns the content type recorded for an object, for tests.
func (b *MemoryBucket) ContentType(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.types[name]
}
