package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gotrs-io/eventclone/internal/models"
)

type identityKey struct {
	jobID    string
	kind     models.EntityKind
	sourceID string
}

// MemoryIdentityRepository is an in-memory implementation of IdentityStore
type MemoryIdentityRepository struct {
	faultHook
	mu      sync.RWMutex
	entries map[identityKey]models.IdentityEntry
}

// NewMemoryIdentityRepository creates a new in-memory identity repository
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{entries: make(map[identityKey]models.IdentityEntry)}
}

// Insert records a mapping; the first writer wins.
func (r *MemoryIdentityRepository) Insert(ctx context.Context, entry models.IdentityEntry) error {
	if err := r.check("insert"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey{entry.JobID, entry.Kind, entry.SourceID}
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("identity %s/%s/%s: %w", entry.JobID, entry.Kind, entry.SourceID, ErrAlreadyExists)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries[key] = entry
	return nil
}

// Lookup returns the mapped target id.
func (r *MemoryIdentityRepository) Lookup(ctx context.Context, jobID string, kind models.EntityKind, sourceID string) (string, bool, error) {
	if err := r.check("lookup"); err != nil {
		return "", false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[identityKey{jobID, kind, sourceID}]
	return entry.TargetID, ok, nil
}

// ListByJob returns a job's mappings ordered by kind and source id.
func (r *MemoryIdentityRepository) ListByJob(ctx context.Context, jobID string) ([]models.IdentityEntry, error) {
	if err := r.check("list"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.IdentityEntry
	for key, entry := range r.entries {
		if key.jobID == jobID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

// JobIDs lists jobs that still have mappings, oldest mapping first.
func (r *MemoryIdentityRepository) JobIDs(ctx context.Context, limit int) ([]string, error) {
	if err := r.check("list"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	oldest := make(map[string]time.Time)
	for key, entry := range r.entries {
		if first, ok := oldest[key.jobID]; !ok || entry.CreatedAt.Before(first) {
			oldest[key.jobID] = entry.CreatedAt
		}
	}
	ids := make([]string, 0, len(oldest))
	for id := range oldest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if !oldest[ids[i]].Equal(oldest[ids[j]]) {
			return oldest[ids[i]].Before(oldest[ids[j]])
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// DeleteByJobs purges the mappings of the given jobs.
func (r *MemoryIdentityRepository) DeleteByJobs(ctx context.Context, jobIDs []string) (int64, error) {
	if err := r.check("delete"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	purge := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		purge[id] = true
	}
	var n int64
	for key := range r.entries {
		if purge[key.jobID] {
			delete(r.entries, key)
			n++
		}
	}
	return n, nil
}
