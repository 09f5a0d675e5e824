package clone

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
)

// IdentityMap translates source record ids to the ids a job allocated for
// them. Entries are persisted so a retried step sees the mappings an earlier
// attempt wrote, and every (job, kind, source) key is written once.
type IdentityMap struct {
	store repository.IdentityStore
	newID func() string
}

// NewIdentityMap creates an identity map over the given store.
func NewIdentityMap(store repository.IdentityStore) *IdentityMap {
	return &IdentityMap{store: store, newID: uuid.NewString}
}

// Put allocates a target id for the source record. When the key is already
// mapped the stored id is returned unchanged.
func (m *IdentityMap) Put(ctx context.Context, jobID string, kind models.EntityKind, sourceID string) (string, error) {
	if existing, ok, err := m.store.Lookup(ctx, jobID, kind, sourceID); err != nil {
		return "", fmt.Errorf("identity lookup: %w", err)
	} else if ok {
		return existing, nil
	}

	entry := models.IdentityEntry{
		JobID:    jobID,
		Kind:     kind,
		SourceID: sourceID,
		TargetID: m.newID(),
	}
	err := m.store.Insert(ctx, entry)
	if err == nil {
		return entry.TargetID, nil
	}
	if !errors.Is(err, repository.ErrAlreadyExists) {
		return "", fmt.Errorf("identity insert: %w", err)
	}

	// Another attempt of the same job won the race; its id is authoritative.
	existing, ok, err := m.store.Lookup(ctx, jobID, kind, sourceID)
	if err != nil {
		return "", fmt.Errorf("identity lookup after conflict: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("identity %s/%s vanished after conflict", kind, sourceID)
	}
	return existing, nil
}

// Get returns the target id mapped for the source record.
func (m *IdentityMap) Get(ctx context.Context, jobID string, kind models.EntityKind, sourceID string) (string, bool, error) {
	target, ok, err := m.store.Lookup(ctx, jobID, kind, sourceID)
	if err != nil {
		return "", false, fmt.Errorf("identity lookup: %w", err)
	}
	return target, ok, nil
}

// Entries lists every mapping the job produced.
func (m *IdentityMap) Entries(ctx context.Context, jobID string) ([]models.IdentityEntry, error) {
	return m.store.ListByJob(ctx, jobID)
}
