package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gotrs-io/eventclone/internal/models"
)

// MemoryOwnedStore is an in-memory implementation of OwnedStore
type MemoryOwnedStore[T models.OwnedRecord] struct {
	faultHook
	mu      sync.RWMutex
	name    string
	records map[string]T
}

// NewMemoryOwnedStore creates a new in-memory owned record store
func NewMemoryOwnedStore[T models.OwnedRecord](name string) *MemoryOwnedStore[T] {
	return &MemoryOwnedStore[T]{name: name, records: make(map[string]T)}
}

// ListByContext returns the context's records ordered by id.
func (s *MemoryOwnedStore[T]) ListByContext(ctx context.Context, contextID string) ([]T, error) {
	if err := s.check("list"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []T
	for _, rec := range s.records {
		if rec.RecordContextID() == contextID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID() < out[j].RecordID() })
	return out, nil
}

// Get retrieves one record by id.
func (s *MemoryOwnedStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if err := s.check("get"); err != nil {
		return zero, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec, ok, nil
}

// Insert creates the record.
func (s *MemoryOwnedStore[T]) Insert(ctx context.Context, record T) error {
	if err := s.check("insert"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.RecordID()]; exists {
		return fmt.Errorf("%s %s: %w", s.name, record.RecordID(), ErrAlreadyExists)
	}
	s.records[record.RecordID()] = record
	return nil
}

// Count returns the number of stored records for a context.
func (s *MemoryOwnedStore[T]) Count(contextID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.RecordContextID() == contextID {
			n++
		}
	}
	return n
}

// MemoryOwnedTables exposes the concrete memory stores behind an OwnedTables.
type MemoryOwnedTables struct {
	MainZones          *MemoryOwnedStore[models.MainZone]
	SubZones           *MemoryOwnedStore[models.SubZone]
	CameraZones        *MemoryOwnedStore[models.CameraZone]
	MessageCenters     *MemoryOwnedStore[models.MessageCenter]
	ReferenceMaterials *MemoryOwnedStore[models.ReferenceMaterial]
	PresetMessages     *MemoryOwnedStore[models.PresetMessage]
	Departments        *MemoryOwnedStore[models.Department]
	Contacts           *MemoryOwnedStore[models.Contact]
}

// NewMemoryOwnedTables creates empty memory stores for every owned kind.
func NewMemoryOwnedTables() *MemoryOwnedTables {
	return &MemoryOwnedTables{
		MainZones:          NewMemoryOwnedStore[models.MainZone]("main_zones"),
		SubZones:           NewMemoryOwnedStore[models.SubZone]("sub_zones"),
		CameraZones:        NewMemoryOwnedStore[models.CameraZone]("camera_zones"),
		MessageCenters:     NewMemoryOwnedStore[models.MessageCenter]("message_centers"),
		ReferenceMaterials: NewMemoryOwnedStore[models.ReferenceMaterial]("reference_materials"),
		PresetMessages:     NewMemoryOwnedStore[models.PresetMessage]("preset_messages"),
		Departments:        NewMemoryOwnedStore[models.Department]("departments"),
		Contacts:           NewMemoryOwnedStore[models.Contact]("contacts"),
	}
}

// Tables returns the stores as an OwnedTables.
func (m *MemoryOwnedTables) Tables() *OwnedTables {
	return &OwnedTables{
		MainZones:          m.MainZones,
		SubZones:           m.SubZones,
		CameraZones:        m.CameraZones,
		MessageCenters:     m.MessageCenters,
		ReferenceMaterials: m.ReferenceMaterials,
		PresetMessages:     m.PresetMessages,
		Departments:        m.Departments,
		Contacts:           m.Contacts,
	}
}
