package models

import (
	"sort"
	"time"
)

// EntityKind names one kind of configuration record handled by the clone engine.
type EntityKind string

const (
	KindMainZones          EntityKind = "main_zones"
	KindSubZones           EntityKind = "sub_zones"
	KindCameraZones        EntityKind = "camera_zones"
	KindMessageCenters     EntityKind = "message_centers"
	KindReferenceMaterials EntityKind = "reference_materials"
	KindPresetMessages     EntityKind = "preset_messages"
	KindDepartments        EntityKind = "departments"
	KindContacts           EntityKind = "contacts"

	KindTaxonomyTypes EntityKind = "taxonomy_types"
	KindDivisions     EntityKind = "divisions"
	KindSources       EntityKind = "sources"
)

var ownedKinds = map[EntityKind]bool{
	KindMainZones:          true,
	KindSubZones:           true,
	KindCameraZones:        true,
	KindMessageCenters:     true,
	KindReferenceMaterials: true,
	KindPresetMessages:     true,
	KindDepartments:        true,
	KindContacts:           true,
}

var sharedKinds = map[EntityKind]bool{
	KindTaxonomyTypes: true,
	KindDivisions:     true,
	KindSources:       true,
}

// Owned reports whether records of this kind belong to a single context and are copied.
func (k EntityKind) Owned() bool { return ownedKinds[k] }

// Shared reports whether records of this kind are linked to contexts rather than copied.
func (k EntityKind) Shared() bool { return sharedKinds[k] }

// Valid reports whether the kind is known.
func (k EntityKind) Valid() bool { return k.Owned() || k.Shared() }

// SharedKinds returns the shared kinds in a stable order.
func SharedKinds() []EntityKind {
	return []EntityKind{KindTaxonomyTypes, KindDivisions, KindSources}
}

// OwnedKinds returns the owned kinds in a stable order.
func OwnedKinds() []EntityKind {
	kinds := make([]EntityKind, 0, len(ownedKinds))
	for k := range ownedKinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// JobType distinguishes deep-copy jobs from association moves.
type JobType string

const (
	JobTypeClone  JobType = "clone"
	JobTypeImport JobType = "import"
)

// JobStatus is the lifecycle state of a clone job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// FailureReasonCancelled is stored on jobs that stopped because of a cancel request.
const FailureReasonCancelled = "cancelled"

// CloneScope selects which entity kinds a job touches.
type CloneScope struct {
	CopyMainZones          bool `json:"copy_main_zones" yaml:"copy_main_zones"`
	CopySubZones           bool `json:"copy_sub_zones" yaml:"copy_sub_zones"`
	CopyCameraZones        bool `json:"copy_camera_zones" yaml:"copy_camera_zones"`
	CopyAllZones           bool `json:"copy_all_zones" yaml:"copy_all_zones"`
	CopyMessageCenters     bool `json:"copy_message_centers" yaml:"copy_message_centers"`
	CopyReferenceMaterials bool `json:"copy_reference_materials" yaml:"copy_reference_materials"`
	CopyPresetMessages     bool `json:"copy_preset_messages" yaml:"copy_preset_messages"`
	CopyDepartments        bool `json:"copy_departments" yaml:"copy_departments"`
	CopyContacts           bool `json:"copy_contacts" yaml:"copy_contacts"`

	AssociateTaxonomyTypes bool `json:"associate_taxonomy_types" yaml:"associate_taxonomy_types"`
	AssociateDivisions     bool `json:"associate_divisions" yaml:"associate_divisions"`
	AssociateSources       bool `json:"associate_sources" yaml:"associate_sources"`
}

// Normalize expands shorthand flags.
func (s CloneScope) Normalize() CloneScope {
	if s.CopyAllZones {
		s.CopyMainZones = true
		s.CopySubZones = true
		s.CopyCameraZones = true
	}
	return s
}

// Selects reports whether the scope enables work for the kind.
func (s CloneScope) Selects(kind EntityKind) bool {
	n := s.Normalize()
	switch kind {
	case KindMainZones:
		return n.CopyMainZones
	case KindSubZones:
		return n.CopySubZones
	case KindCameraZones:
		return n.CopyCameraZones
	case KindMessageCenters:
		return n.CopyMessageCenters
	case KindReferenceMaterials:
		return n.CopyReferenceMaterials
	case KindPresetMessages:
		return n.CopyPresetMessages
	case KindDepartments:
		return n.CopyDepartments
	case KindContacts:
		return n.CopyContacts
	case KindTaxonomyTypes:
		return n.AssociateTaxonomyTypes
	case KindDivisions:
		return n.AssociateDivisions
	case KindSources:
		return n.AssociateSources
	}
	return false
}

// Empty reports whether no kind is selected.
func (s CloneScope) Empty() bool {
	for _, k := range append(OwnedKinds(), SharedKinds()...) {
		if s.Selects(k) {
			return false
		}
	}
	return true
}

// SharedScope builds a scope that only associates the given shared kinds.
// An empty list selects every shared kind.
func SharedScope(kinds []EntityKind) CloneScope {
	if len(kinds) == 0 {
		kinds = SharedKinds()
	}
	var s CloneScope
	for _, k := range kinds {
		switch k {
		case KindTaxonomyTypes:
			s.AssociateTaxonomyTypes = true
		case KindDivisions:
			s.AssociateDivisions = true
		case KindSources:
			s.AssociateSources = true
		}
	}
	return s
}

// CloneJob is one durable unit of clone or import work.
type CloneJob struct {
	ID              string
	Type            JobType
	SourceContextID string
	TargetContextID string
	Scope           CloneScope
	Status          JobStatus
	FailureReason   *string
	Attempts        int
	LeaseOwner      *string
	LeaseExpiresAt  *time.Time
	CancelRequested bool
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy so callers can mutate the result freely.
func (j *CloneJob) Clone() *CloneJob {
	if j == nil {
		return nil
	}
	copy := *j
	if j.FailureReason != nil {
		reason := *j.FailureReason
		copy.FailureReason = &reason
	}
	if j.LeaseOwner != nil {
		owner := *j.LeaseOwner
		copy.LeaseOwner = &owner
	}
	if j.LeaseExpiresAt != nil {
		exp := *j.LeaseExpiresAt
		copy.LeaseExpiresAt = &exp
	}
	if j.StartedAt != nil {
		st := *j.StartedAt
		copy.StartedAt = &st
	}
	if j.CompletedAt != nil {
		ct := *j.CompletedAt
		copy.CompletedAt = &ct
	}
	return &copy
}

// StepOperation is the kind of work a step performs.
type StepOperation string

const (
	OpCopy         StepOperation = "copy"
	OpAssociate    StepOperation = "associate"
	OpDisassociate StepOperation = "disassociate"
)

// StepStatus is the lifecycle state of a single step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// MaxStepWarnings bounds the warnings kept on a step record.
const MaxStepWarnings = 50

// CloneStep is one entity kind's worth of work inside a job.
type CloneStep struct {
	JobID          string
	Seq            int
	Kind           EntityKind
	Operation      StepOperation
	Selected       bool
	Status         StepStatus
	ProcessedCount int
	SkippedCount   int
	ErrorCount     int
	Attempts       int
	LastError      *string
	Warnings       []string
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// Key identifies the step within its job.
func (s *CloneStep) Key() string {
	return string(s.Kind) + ":" + string(s.Operation)
}

// Clone returns a deep copy of the step.
func (s *CloneStep) Clone() *CloneStep {
	if s == nil {
		return nil
	}
	copy := *s
	if s.LastError != nil {
		e := *s.LastError
		copy.LastError = &e
	}
	if s.Warnings != nil {
		copy.Warnings = append([]string(nil), s.Warnings...)
	}
	if s.StartedAt != nil {
		st := *s.StartedAt
		copy.StartedAt = &st
	}
	if s.CompletedAt != nil {
		ct := *s.CompletedAt
		copy.CompletedAt = &ct
	}
	return &copy
}

// IdentityEntry maps a source record to the record a job created for it.
type IdentityEntry struct {
	JobID     string     `db:"job_id"`
	Kind      EntityKind `db:"kind"`
	SourceID  string     `db:"source_id"`
	TargetID  string     `db:"target_id"`
	CreatedAt time.Time  `db:"created_at"`
}

// Association links a shared entity to a context.
type Association struct {
	Kind      EntityKind `db:"kind"`
	ContextID string     `db:"context_id"`
	EntityID  string     `db:"entity_id"`
	CreatedAt time.Time  `db:"created_at"`
}
