package clonequeue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gotrs-io/eventclone/internal/models"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("clone job not found")
	// ErrLeaseLost is returned when the caller no longer owns the job's lease.
	ErrLeaseLost = errors.New("clone job lease lost")
	// ErrJobTerminal is returned when a finished job is cancelled.
	ErrJobTerminal = errors.New("clone job already finished")
)

// CancelOutcome describes what a cancel request did.
type CancelOutcome string

const (
	// CancelledQueued means the job never started and is now failed.
	CancelledQueued CancelOutcome = "cancelled"
	// CancelRequested means the running job will stop before its next step.
	CancelRequested CancelOutcome = "cancel_requested"
)

// ReasonLeaseExpired is stored on jobs whose lease expired with no attempts left.
const ReasonLeaseExpired = "lease expired with no attempts left"

// Queue is the durable clone job queue. Every job mutation is conditional
// on the job not being terminal; worker-side mutations are additionally
// conditional on the caller owning the lease.
type Queue interface {
	Enqueue(ctx context.Context, job *models.CloneJob) error
	// Claim leases the oldest claimable job: queued, or running with an
	// expired lease, and with fewer than maxAttempts claims. It returns
	// nil when there is nothing to do.
	Claim(ctx context.Context, owner string, leaseTTL time.Duration, maxAttempts int) (*models.CloneJob, error)
	RenewLease(ctx context.Context, jobID, owner string, leaseTTL time.Duration) error
	Complete(ctx context.Context, jobID, owner string) error
	Fail(ctx context.Context, jobID, owner, reason string) error
	Cancel(ctx context.Context, jobID string) (CancelOutcome, error)
	Get(ctx context.Context, jobID string) (*models.CloneJob, error)
	Steps(ctx context.Context, jobID string) ([]*models.CloneStep, error)

	EnsureSteps(ctx context.Context, jobID string, steps []*models.CloneStep) ([]*models.CloneStep, error)
	// UpdateStep fails with ErrLeaseLost unless the job is running under
	// owner's lease.
	UpdateStep(ctx context.Context, owner string, step *models.CloneStep) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)

	// ReapExpired fails running jobs whose lease expired after their last
	// allowed attempt.
	ReapExpired(ctx context.Context, maxAttempts int) (int64, error)
}

// jobRow is the clone_jobs row shape.
type jobRow struct {
	ID              string     `db:"id"`
	JobType         string     `db:"job_type"`
	SourceContextID string     `db:"source_context_id"`
	TargetContextID string     `db:"target_context_id"`
	Scope           string     `db:"scope"`
	Status          string     `db:"status"`
	FailureReason   *string    `db:"failure_reason"`
	Attempts        int        `db:"attempts"`
	LeaseOwner      *string    `db:"lease_owner"`
	LeaseExpiresAt  *time.Time `db:"lease_expires_at"`
	CancelRequested bool       `db:"cancel_requested"`
	CreatedAt       time.Time  `db:"created_at"`
	StartedAt       *time.Time `db:"started_at"`
	CompletedAt     *time.Time `db:"completed_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func newJobRow(job *models.CloneJob) (*jobRow, error) {
	scope, err := json.Marshal(job.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scope: %w", err)
	}
	return &jobRow{
		ID:              job.ID,
		JobType:         string(job.Type),
		SourceContextID: job.SourceContextID,
		TargetContextID: job.TargetContextID,
		Scope:           string(scope),
		Status:          string(job.Status),
		FailureReason:   job.FailureReason,
		Attempts:        job.Attempts,
		LeaseOwner:      job.LeaseOwner,
		LeaseExpiresAt:  job.LeaseExpiresAt,
		CancelRequested: job.CancelRequested,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		UpdatedAt:       job.UpdatedAt,
	}, nil
}

func (r *jobRow) toModel() (*models.CloneJob, error) {
	job := &models.CloneJob{
		ID:              r.ID,
		Type:            models.JobType(r.JobType),
		SourceContextID: r.SourceContextID,
		TargetContextID: r.TargetContextID,
		Status:          models.JobStatus(r.Status),
		FailureReason:   r.FailureReason,
		Attempts:        r.Attempts,
		LeaseOwner:      r.LeaseOwner,
		LeaseExpiresAt:  r.LeaseExpiresAt,
		CancelRequested: r.CancelRequested,
		CreatedAt:       r.CreatedAt,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Scope), &job.Scope); err != nil {
		return nil, fmt.Errorf("failed to decode scope of job %s: %w", r.ID, err)
	}
	return job, nil
}

// stepRow is the clone_steps row shape.
type stepRow struct {
	JobID          string     `db:"job_id"`
	Seq            int        `db:"seq"`
	Kind           string     `db:"kind"`
	Operation      string     `db:"operation"`
	Selected       bool       `db:"selected"`
	Status         string     `db:"status"`
	ProcessedCount int        `db:"processed_count"`
	SkippedCount   int        `db:"skipped_count"`
	ErrorCount     int        `db:"error_count"`
	Attempts       int        `db:"attempts"`
	LastError      *string    `db:"last_error"`
	Warnings       *string    `db:"warnings"`
	StartedAt      *time.Time `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}

func newStepRow(step *models.CloneStep) (*stepRow, error) {
	row := &stepRow{
		JobID:          step.JobID,
		Seq:            step.Seq,
		Kind:           string(step.Kind),
		Operation:      string(step.Operation),
		Selected:       step.Selected,
		Status:         string(step.Status),
		ProcessedCount: step.ProcessedCount,
		SkippedCount:   step.SkippedCount,
		ErrorCount:     step.ErrorCount,
		Attempts:       step.Attempts,
		LastError:      step.LastError,
		StartedAt:      step.StartedAt,
		CompletedAt:    step.CompletedAt,
	}
	if len(step.Warnings) > 0 {
		data, err := json.Marshal(step.Warnings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode warnings: %w", err)
		}
		w := string(data)
		row.Warnings = &w
	}
	return row, nil
}

func (r *stepRow) toModel() (*models.CloneStep, error) {
	step := &models.CloneStep{
		JobID:          r.JobID,
		Seq:            r.Seq,
		Kind:           models.EntityKind(r.Kind),
		Operation:      models.StepOperation(r.Operation),
		Selected:       r.Selected,
		Status:         models.StepStatus(r.Status),
		ProcessedCount: r.ProcessedCount,
		SkippedCount:   r.SkippedCount,
		ErrorCount:     r.ErrorCount,
		Attempts:       r.Attempts,
		LastError:      r.LastError,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
	}
	if r.Warnings != nil && *r.Warnings != "" {
		if err := json.Unmarshal([]byte(*r.Warnings), &step.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings of step %s: %w", step.Key(), err)
		}
	}
	return step, nil
}
