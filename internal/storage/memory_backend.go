package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps assets in process memory. Used by tests and the
// single-process development setup.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBackend creates an empty memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string][]byte)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), content...)
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrAssetNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := validateKey(dstKey); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("%s: %w", srcKey, ErrAssetNotFound)
	}
	m.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryBackend) HealthCheck(ctx context.Context) error { return nil }

func init() {
	DefaultFactory.Register("memory", func(ctx context.Context, cfg Config) (Backend, error) {
		return NewMemoryBackend(), nil
	})
}
