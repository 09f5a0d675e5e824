package clonequeue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gotrs-io/eventclone/internal/models"
)

// MemoryQueue is an in-memory implementation of Queue
type MemoryQueue struct {
	mu    sync.Mutex
	jobs  map[string]*models.CloneJob
	steps map[string]map[string]*models.CloneStep
	now   func() time.Time
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		jobs:  make(map[string]*models.CloneJob),
		steps: make(map[string]map[string]*models.CloneStep),
		now:   time.Now,
	}
}

// SetClock overrides the time source.
func (q *MemoryQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *models.CloneJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.ID]; exists {
		return fmt.Errorf("clone job %s already queued", job.ID)
	}
	now := q.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobQueued
	}
	q.jobs[job.ID] = job.Clone()
	return nil
}

func (q *MemoryQueue) claimable(job *models.CloneJob, now time.Time, maxAttempts int) bool {
	if job.Attempts >= maxAttempts {
		return false
	}
	switch job.Status {
	case models.JobQueued:
		return true
	case models.JobRunning:
		return job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now)
	}
	return false
}

func (q *MemoryQueue) Claim(ctx context.Context, owner string, leaseTTL time.Duration, maxAttempts int) (*models.CloneJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now().UTC()
	var candidates []*models.CloneJob
	for _, job := range q.jobs {
		if q.claimable(job, now, maxAttempts) {
			candidates = append(candidates, job)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	job := candidates[0]
	expires := now.Add(leaseTTL)
	job.Status = models.JobRunning
	job.LeaseOwner = &owner
	job.LeaseExpiresAt = &expires
	job.Attempts++
	if job.StartedAt == nil {
		started := now
		job.StartedAt = &started
	}
	job.UpdatedAt = now
	return job.Clone(), nil
}

// owned returns the job if it is running under owner's lease.
func (q *MemoryQueue) owned(jobID, owner string) (*models.CloneJob, error) {
	job, ok := q.jobs[jobID]
	if !ok || job.Status != models.JobRunning || job.LeaseOwner == nil || *job.LeaseOwner != owner {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrLeaseLost)
	}
	return job, nil
}

func (q *MemoryQueue) RenewLease(ctx context.Context, jobID, owner string, leaseTTL time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.owned(jobID, owner)
	if err != nil {
		return err
	}
	now := q.now().UTC()
	expires := now.Add(leaseTTL)
	job.LeaseExpiresAt = &expires
	job.UpdatedAt = now
	return nil
}

func (q *MemoryQueue) finish(jobID, owner string, status models.JobStatus, reason *string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.owned(jobID, owner)
	if err != nil {
		return err
	}
	now := q.now().UTC()
	job.Status = status
	job.FailureReason = reason
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.LeaseOwner = nil
	job.LeaseExpiresAt = nil
	return nil
}

func (q *MemoryQueue) Complete(ctx context.Context, jobID, owner string) error {
	return q.finish(jobID, owner, models.JobCompleted, nil)
}

func (q *MemoryQueue) Fail(ctx context.Context, jobID, owner, reason string) error {
	return q.finish(jobID, owner, models.JobFailed, &reason)
}

func (q *MemoryQueue) Cancel(ctx context.Context, jobID string) (CancelOutcome, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return "", ErrJobNotFound
	}
	now := q.now().UTC()
	switch job.Status {
	case models.JobQueued:
		reason := models.FailureReasonCancelled
		job.Status = models.JobFailed
		job.FailureReason = &reason
		job.CompletedAt = &now
		job.UpdatedAt = now
		return CancelledQueued, nil
	case models.JobRunning:
		job.CancelRequested = true
		job.UpdatedAt = now
		return CancelRequested, nil
	}
	return "", ErrJobTerminal
}

func (q *MemoryQueue) Get(ctx context.Context, jobID string) (*models.CloneJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

func (q *MemoryQueue) Steps(ctx context.Context, jobID string) ([]*models.CloneStep, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.listSteps(jobID), nil
}

func (q *MemoryQueue) listSteps(jobID string) []*models.CloneStep {
	steps := make([]*models.CloneStep, 0, len(q.steps[jobID]))
	for _, s := range q.steps[jobID] {
		steps = append(steps, s.Clone())
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Seq < steps[j].Seq })
	return steps
}

func (q *MemoryQueue) EnsureSteps(ctx context.Context, jobID string, steps []*models.CloneStep) ([]*models.CloneStep, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.steps[jobID] == nil {
		q.steps[jobID] = make(map[string]*models.CloneStep)
	}
	for _, step := range steps {
		if _, ok := q.steps[jobID][step.Key()]; !ok {
			q.steps[jobID][step.Key()] = step.Clone()
		}
	}
	return q.listSteps(jobID), nil
}

func (q *MemoryQueue) UpdateStep(ctx context.Context, owner string, step *models.CloneStep) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.owned(step.JobID, owner); err != nil {
		return err
	}
	if _, ok := q.steps[step.JobID][step.Key()]; !ok {
		return fmt.Errorf("step %s of job %s not found", step.Key(), step.JobID)
	}
	q.steps[step.JobID][step.Key()] = step.Clone()
	return nil
}

func (q *MemoryQueue) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return false, ErrJobNotFound
	}
	return job.CancelRequested, nil
}

func (q *MemoryQueue) ReapExpired(ctx context.Context, maxAttempts int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now().UTC()
	var n int64
	for _, job := range q.jobs {
		if job.Status != models.JobRunning || job.LeaseExpiresAt == nil || !job.LeaseExpiresAt.Before(now) {
			continue
		}
		if job.Attempts < maxAttempts {
			continue
		}
		reason := ReasonLeaseExpired
		completed := now
		job.Status = models.JobFailed
		job.FailureReason = &reason
		job.CompletedAt = &completed
		job.UpdatedAt = now
		job.LeaseOwner = nil
		job.LeaseExpiresAt = nil
		n++
	}
	return n, nil
}
