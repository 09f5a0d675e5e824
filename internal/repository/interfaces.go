package repository

import (
	"context"
	"errors"

	"github.com/gotrs-io/eventclone/internal/models"
)

var (
	// ErrAlreadyExists is returned when an insert hits a unique constraint.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrUnavailable marks store failures that are expected to clear on retry.
	ErrUnavailable = errors.New("store unavailable")
)

// OwnedStore persists one kind of context-owned configuration record.
type OwnedStore[T models.OwnedRecord] interface {
	// ListByContext returns every record of the context ordered by id.
	ListByContext(ctx context.Context, contextID string) ([]T, error)
	Get(ctx context.Context, id string) (T, bool, error)
	// Insert creates the record; a primary key conflict returns ErrAlreadyExists.
	Insert(ctx context.Context, record T) error
}

// AssociationStore persists links between shared entities and contexts.
type AssociationStore interface {
	ListEntityIDs(ctx context.Context, kind models.EntityKind, contextID string) ([]string, error)
	Exists(ctx context.Context, kind models.EntityKind, contextID, entityID string) (bool, error)
	// Insert creates the link; an existing link returns ErrAlreadyExists.
	Insert(ctx context.Context, link models.Association) error
	Delete(ctx context.Context, kind models.EntityKind, contextID, entityID string) (bool, error)
}

// IdentityStore persists per-job source to target id mappings.
type IdentityStore interface {
	// Insert records the mapping; an existing (job, kind, source) returns ErrAlreadyExists.
	Insert(ctx context.Context, entry models.IdentityEntry) error
	Lookup(ctx context.Context, jobID string, kind models.EntityKind, sourceID string) (string, bool, error)
	ListByJob(ctx context.Context, jobID string) ([]models.IdentityEntry, error)
	// JobIDs lists jobs that still have mappings, oldest mapping first.
	JobIDs(ctx context.Context, limit int) ([]string, error)
	DeleteByJobs(ctx context.Context, jobIDs []string) (int64, error)
}

// ContextRepository answers whether an event context exists.
type ContextRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// OwnedTables groups the stores of every owned entity kind.
type OwnedTables struct {
	MainZones          OwnedStore[models.MainZone]
	SubZones           OwnedStore[models.SubZone]
	CameraZones        OwnedStore[models.CameraZone]
	MessageCenters     OwnedStore[models.MessageCenter]
	ReferenceMaterials OwnedStore[models.ReferenceMaterial]
	PresetMessages     OwnedStore[models.PresetMessage]
	Departments        OwnedStore[models.Department]
	Contacts           OwnedStore[models.Contact]
}
