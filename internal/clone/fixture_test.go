package clone

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
	"github.com/gotrs-io/eventclone/internal/storage"
)

const (
	srcCtx = "ctx-source"
	dstCtx = "ctx-target"
)

var errLeaseHeldElsewhere = errors.New("lease held by another worker")

// memorySteps is a StepStore for engine tests.
type memorySteps struct {
	mu        sync.Mutex
	steps     map[string]map[string]*models.CloneStep
	cancelled map[string]bool
	holders   map[string]string
	onUpdate  func(step *models.CloneStep)
}

func newMemorySteps() *memorySteps {
	return &memorySteps{
		steps:     make(map[string]map[string]*models.CloneStep),
		cancelled: make(map[string]bool),
		holders:   make(map[string]string),
	}
}

func (m *memorySteps) EnsureSteps(ctx context.Context, jobID string, steps []*models.CloneStep) ([]*models.CloneStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.steps[jobID] == nil {
		m.steps[jobID] = make(map[string]*models.CloneStep)
	}
	for _, s := range steps {
		if _, ok := m.steps[jobID][s.Key()]; !ok {
			m.steps[jobID][s.Key()] = s.Clone()
		}
	}
	return m.list(jobID), nil
}

func (m *memorySteps) UpdateStep(ctx context.Context, owner string, step *models.CloneStep) error {
	m.mu.Lock()
	if holder, ok := m.holders[step.JobID]; ok && holder != owner {
		m.mu.Unlock()
		return errLeaseHeldElsewhere
	}
	m.steps[step.JobID][step.Key()] = step.Clone()
	hook := m.onUpdate
	m.mu.Unlock()
	if hook != nil {
		hook(step.Clone())
	}
	return nil
}

func (m *memorySteps) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled[jobID], nil
}

// lease restricts step writes of the job to owner.
func (m *memorySteps) lease(jobID, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holders[jobID] = owner
}

func (m *memorySteps) cancel(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[jobID] = true
}

func (m *memorySteps) list(jobID string) []*models.CloneStep {
	var out []*models.CloneStep
	for _, s := range m.steps[jobID] {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (m *memorySteps) get(jobID string, kind models.EntityKind, op models.StepOperation) *models.CloneStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps[jobID][string(kind)+":"+string(op)].Clone()
}

type fixture struct {
	tables  *repository.MemoryOwnedTables
	links   *repository.MemoryAssociationRepository
	idStore *repository.MemoryIdentityRepository
	ids     *IdentityMap
	assets  *storage.MemoryBackend
	cloners map[models.EntityKind]EntityCloner
	steps   *memorySteps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tables:  repository.NewMemoryOwnedTables(),
		links:   repository.NewMemoryAssociationRepository(),
		idStore: repository.NewMemoryIdentityRepository(),
		assets:  storage.NewMemoryBackend(),
		steps:   newMemorySteps(),
	}
	f.ids = NewIdentityMap(f.idStore)
	f.cloners = NewCloners(f.tables.Tables(), f.ids, f.assets)
	return f
}

func (f *fixture) orchestrator(opts ...OrchestratorOption) *Orchestrator {
	base := []OrchestratorOption{
		WithLogger(log.New(io.Discard, "", 0)),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}),
	}
	return NewOrchestrator(f.cloners, NewAssociationResolver(f.links), f.steps, append(base, opts...)...)
}

// seedZones creates main zones A and B with sub-zones A1, A2 and B1.
func (f *fixture) seedZones(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, z := range []models.MainZone{
		{ID: "zone-a", ContextID: srcCtx, Name: "A"},
		{ID: "zone-b", ContextID: srcCtx, Name: "B"},
	} {
		if err := f.tables.MainZones.Insert(ctx, z); err != nil {
			t.Fatalf("seed main zone: %v", err)
		}
	}
	for _, z := range []models.SubZone{
		{ID: "sub-a1", ContextID: srcCtx, MainZoneID: "zone-a", Name: "A1"},
		{ID: "sub-a2", ContextID: srcCtx, MainZoneID: "zone-a", Name: "A2"},
		{ID: "sub-b1", ContextID: srcCtx, MainZoneID: "zone-b", Name: "B1"},
	} {
		if err := f.tables.SubZones.Insert(ctx, z); err != nil {
			t.Fatalf("seed sub zone: %v", err)
		}
	}
}

func (f *fixture) seedLinks(t *testing.T, kind models.EntityKind, contextID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		err := f.links.Insert(context.Background(), models.Association{Kind: kind, ContextID: contextID, EntityID: id})
		if err != nil {
			t.Fatalf("seed link: %v", err)
		}
	}
}

func newJob(id string, scope models.CloneScope) *models.CloneJob {
	return &models.CloneJob{
		ID:              id,
		Type:            models.JobTypeClone,
		SourceContextID: srcCtx,
		TargetContextID: dstCtx,
		Scope:           scope,
		Status:          models.JobRunning,
	}
}
