package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gotrs-io/eventclone/internal/models"
)

type associationKey struct {
	kind      models.EntityKind
	contextID string
	entityID  string
}

// MemoryAssociationRepository is an in-memory implementation of AssociationStore
type MemoryAssociationRepository struct {
	faultHook
	mu    sync.RWMutex
	links map[associationKey]models.Association
}

// NewMemoryAssociationRepository creates a new in-memory association repository
func NewMemoryAssociationRepository() *MemoryAssociationRepository {
	return &MemoryAssociationRepository{links: make(map[associationKey]models.Association)}
}

// ListEntityIDs returns linked entity ids in ascending order.
func (r *MemoryAssociationRepository) ListEntityIDs(ctx context.Context, kind models.EntityKind, contextID string) ([]string, error) {
	if err := r.check("list"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for key := range r.links {
		if key.kind == kind && key.contextID == contextID {
			ids = append(ids, key.entityID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether the link is present.
func (r *MemoryAssociationRepository) Exists(ctx context.Context, kind models.EntityKind, contextID, entityID string) (bool, error) {
	if err := r.check("exists"); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.links[associationKey{kind, contextID, entityID}]
	return ok, nil
}

// Insert creates the link.
func (r *MemoryAssociationRepository) Insert(ctx context.Context, link models.Association) error {
	if err := r.check("insert"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := associationKey{link.Kind, link.ContextID, link.EntityID}
	if _, exists := r.links[key]; exists {
		return fmt.Errorf("link %s/%s/%s: %w", link.Kind, link.ContextID, link.EntityID, ErrAlreadyExists)
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	r.links[key] = link
	return nil
}

// Delete removes the link.
func (r *MemoryAssociationRepository) Delete(ctx context.Context, kind models.EntityKind, contextID, entityID string) (bool, error) {
	if err := r.check("delete"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := associationKey{kind, contextID, entityID}
	if _, ok := r.links[key]; !ok {
		return false, nil
	}
	delete(r.links, key)
	return true, nil
}

// Count returns how many links exist for the context.
func (r *MemoryAssociationRepository) Count(kind models.EntityKind, contextID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for key := range r.links {
		if key.kind == kind && key.contextID == contextID {
			n++
		}
	}
	return n
}
