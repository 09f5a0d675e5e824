package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gotrs-io/eventclone/internal/cache"
	"github.com/gotrs-io/eventclone/internal/clone"
	"github.com/gotrs-io/eventclone/internal/clonequeue"
	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
)

// CloneRequest asks for the selected configuration of one context to be copied into another.
type CloneRequest struct {
	SourceContextID string            `json:"source_context_id" yaml:"source_context_id"`
	TargetContextID string            `json:"target_context_id" yaml:"target_context_id"`
	Scope           models.CloneScope `json:"scope" yaml:"scope"`
}

// ImportRequest asks for shared entity links to move from one context to another.
// An empty Kinds list moves every shared kind.
type ImportRequest struct {
	SourceContextID string              `json:"source_context_id" yaml:"source_context_id"`
	TargetContextID string              `json:"target_context_id" yaml:"target_context_id"`
	Kinds           []models.EntityKind `json:"kinds,omitempty" yaml:"kinds,omitempty"`
}

// StepStatus is the caller-facing view of one step.
type StepStatus struct {
	Kind           models.EntityKind    `json:"kind"`
	Operation      models.StepOperation `json:"operation"`
	Selected       bool                 `json:"selected"`
	Status         models.StepStatus    `json:"status"`
	ProcessedCount int                  `json:"processed_count"`
	SkippedCount   int                  `json:"skipped_count"`
	ErrorCount     int                  `json:"error_count"`
	Attempts       int                  `json:"attempts"`
	LastError      *string              `json:"last_error,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
}

// JobStatus is the caller-facing view of a job and its progress.
type JobStatus struct {
	JobID           string           `json:"job_id"`
	Type            models.JobType   `json:"type"`
	Status          models.JobStatus `json:"status"`
	FailureReason   *string          `json:"failure_reason,omitempty"`
	SourceContextID string           `json:"source_context_id"`
	TargetContextID string           `json:"target_context_id"`
	Attempts        int              `json:"attempts"`
	CancelRequested bool             `json:"cancel_requested"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Steps           []StepStatus     `json:"steps"`
}

// CloneServiceOption configures a CloneService.
type CloneServiceOption func(*CloneService)

// WithNotifier publishes a wake-up for every enqueued job.
func WithNotifier(n cache.Notifier) CloneServiceOption {
	return func(s *CloneService) { s.notifier = n }
}

// WithStatusCache serves status reads from the cache when possible.
func WithStatusCache(c cache.StatusCache) CloneServiceOption {
	return func(s *CloneService) { s.statusCache = c }
}

// WithServiceLogger replaces the default logger.
func WithServiceLogger(l *log.Logger) CloneServiceOption {
	return func(s *CloneService) {
		if l != nil {
			s.logger = l
		}
	}
}

// CloneService accepts clone and import requests and reports their progress.
type CloneService struct {
	queue       clonequeue.Queue
	contexts    repository.ContextRepository
	notifier    cache.Notifier
	statusCache cache.StatusCache
	logger      *log.Logger
	newID       func() string
}

// NewCloneService creates a new clone service
func NewCloneService(queue clonequeue.Queue, contexts repository.ContextRepository, opts ...CloneServiceOption) *CloneService {
	s := &CloneService{
		queue:    queue,
		contexts: contexts,
		logger:   log.New(os.Stdout, "[CLONE-SERVICE] ", log.LstdFlags),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and enqueues a clone job.
func (s *CloneService) Submit(ctx context.Context, req CloneRequest) (string, error) {
	req.SourceContextID = strings.TrimSpace(req.SourceContextID)
	req.TargetContextID = strings.TrimSpace(req.TargetContextID)
	if err := s.validateContexts(ctx, req.SourceContextID, req.TargetContextID); err != nil {
		return "", err
	}
	scope := req.Scope.Normalize()
	if scope.Empty() {
		return "", clone.NewValidationError("scope selects nothing to clone")
	}

	job := &models.CloneJob{
		ID:              s.newID(),
		Type:            models.JobTypeClone,
		SourceContextID: req.SourceContextID,
		TargetContextID: req.TargetContextID,
		Scope:           scope,
	}
	return s.enqueue(ctx, job)
}

// SubmitImport validates and enqueues an import job that moves shared links.
func (s *CloneService) SubmitImport(ctx context.Context, req ImportRequest) (string, error) {
	req.SourceContextID = strings.TrimSpace(req.SourceContextID)
	req.TargetContextID = strings.TrimSpace(req.TargetContextID)
	for _, kind := range req.Kinds {
		if !kind.Shared() {
			return "", clone.NewValidationError("kind %q cannot be imported", kind)
		}
	}
	if err := s.validateContexts(ctx, req.SourceContextID, req.TargetContextID); err != nil {
		return "", err
	}

	job := &models.CloneJob{
		ID:              s.newID(),
		Type:            models.JobTypeImport,
		SourceContextID: req.SourceContextID,
		TargetContextID: req.TargetContextID,
		Scope:           models.SharedScope(req.Kinds),
	}
	return s.enqueue(ctx, job)
}

func (s *CloneService) validateContexts(ctx context.Context, source, target string) error {
	if source == "" || target == "" {
		return clone.NewValidationError("source and target context ids are required")
	}
	if source == target {
		return clone.NewValidationError("source and target context must differ")
	}
	for _, id := range []string{source, target} {
		ok, err := s.contexts.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check context %s: %w", id, err)
		}
		if !ok {
			return clone.NewValidationError("context %s does not exist", id)
		}
	}
	return nil
}

func (s *CloneService) enqueue(ctx context.Context, job *models.CloneJob) (string, error) {
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	s.logger.Printf("enqueued %s job %s: %s -> %s", job.Type, job.ID, job.SourceContextID, job.TargetContextID)

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, job.ID); err != nil {
			s.logger.Printf("job %s: wake-up publish failed, workers will poll: %v", job.ID, err)
		}
	}
	return job.ID, nil
}

// Status returns the job with its steps. Unknown ids return clonequeue.ErrJobNotFound.
// Only terminal jobs are cached; they never change again.
func (s *CloneService) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	if s.statusCache != nil {
		snap, err := s.statusCache.GetStatus(ctx, jobID)
		if err != nil {
			s.logger.Printf("job %s: status cache read failed: %v", jobID, err)
		} else if snap != nil {
			return newJobStatus(snap.Job, snap.Steps), nil
		}
	}

	job, err := s.queue.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	steps, err := s.queue.Steps(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if s.statusCache != nil && job.Status.Terminal() {
		snap := &cache.JobSnapshot{Job: job, Steps: steps, CachedAt: time.Now().UTC()}
		if err := s.statusCache.SetStatus(ctx, snap); err != nil {
			s.logger.Printf("job %s: status cache write failed: %v", jobID, err)
		}
	}
	return newJobStatus(job, steps), nil
}

// Cancel stops a queued job immediately or flags a running one.
func (s *CloneService) Cancel(ctx context.Context, jobID string) (clonequeue.CancelOutcome, error) {
	outcome, err := s.queue.Cancel(ctx, jobID)
	if err != nil {
		return "", err
	}
	if s.statusCache != nil {
		if err := s.statusCache.Invalidate(ctx, jobID); err != nil {
			s.logger.Printf("job %s: status cache invalidation failed: %v", jobID, err)
		}
	}
	s.logger.Printf("job %s: %s", jobID, outcome)
	return outcome, nil
}

func newJobStatus(job *models.CloneJob, steps []*models.CloneStep) *JobStatus {
	status := &JobStatus{
		JobID:           job.ID,
		Type:            job.Type,
		Status:          job.Status,
		FailureReason:   job.FailureReason,
		SourceContextID: job.SourceContextID,
		TargetContextID: job.TargetContextID,
		Attempts:        job.Attempts,
		CancelRequested: job.CancelRequested,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		Steps:           make([]StepStatus, 0, len(steps)),
	}
	for _, step := range steps {
		status.Steps = append(status.Steps, StepStatus{
			Kind:           step.Kind,
			Operation:      step.Operation,
			Selected:       step.Selected,
			Status:         step.Status,
			ProcessedCount: step.ProcessedCount,
			SkippedCount:   step.SkippedCount,
			ErrorCount:     step.ErrorCount,
			Attempts:       step.Attempts,
			LastError:      step.LastError,
			Warnings:       step.Warnings,
		})
	}
	return status
}
