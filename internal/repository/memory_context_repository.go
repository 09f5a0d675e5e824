package repository

import (
	"context"
	"sync"
)

// MemoryContextRepository is an in-memory implementation of ContextRepository
type MemoryContextRepository struct {
	mu  sync.RWMutex
	ids map[string]bool
}

// NewMemoryContextRepository creates a repository that knows the given ids.
func NewMemoryContextRepository(ids ...string) *MemoryContextRepository {
	r := &MemoryContextRepository{ids: make(map[string]bool)}
	for _, id := range ids {
		r.ids[id] = true
	}
	return r
}

// Add registers a context id.
func (r *MemoryContextRepository) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = true
}

// Exists reports whether the context is known.
func (r *MemoryContextRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids[id], nil
}
