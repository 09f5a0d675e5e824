package clonequeue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/eventclone/internal/database"
	"github.com/gotrs-io/eventclone/internal/models"
)

const jobColumns = `id, job_type, source_context_id, target_context_id, scope, status,
	failure_reason, attempts, lease_owner, lease_expires_at, cancel_requested,
	created_at, started_at, completed_at, updated_at`

const stepColumns = `job_id, seq, kind, operation, selected, status, processed_count,
	skipped_count, error_count, attempts, last_error, warnings, started_at, completed_at`

// claimBatch bounds how many candidates one Claim call tries.
const claimBatch = 5

// SQLQueue stores clone jobs and their steps in clone_jobs and clone_steps.
// Claims use a conditional UPDATE so they work the same on every driver.
type SQLQueue struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLQueue creates a new database-backed queue
func NewSQLQueue(db *sqlx.DB) *SQLQueue {
	return &SQLQueue{db: db, now: time.Now}
}

// SetClock overrides the time source.
func (q *SQLQueue) SetClock(now func() time.Time) { q.now = now }

// Enqueue adds a new job to the queue
func (q *SQLQueue) Enqueue(ctx context.Context, job *models.CloneJob) error {
	now := q.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobQueued
	}
	row, err := newJobRow(job)
	if err != nil {
		return err
	}
	query := `INSERT INTO clone_jobs (` + jobColumns + `) VALUES (
		:id, :job_type, :source_context_id, :target_context_id, :scope, :status,
		:failure_reason, :attempts, :lease_owner, :lease_expires_at, :cancel_requested,
		:created_at, :started_at, :completed_at, :updated_at)`
	if _, err := q.db.NamedExecContext(ctx, query, row); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("clone job %s already queued: %w", job.ID, err)
		}
		return fmt.Errorf("failed to insert clone job: %w", err)
	}
	return nil
}

// Claim leases the oldest claimable job.
func (q *SQLQueue) Claim(ctx context.Context, owner string, leaseTTL time.Duration, maxAttempts int) (*models.CloneJob, error) {
	now := q.now().UTC()
	var candidates []string
	err := q.db.SelectContext(ctx, &candidates, q.db.Rebind(`
		SELECT id FROM clone_jobs
		WHERE (status = ? OR (status = ? AND lease_expires_at < ?))
		  AND attempts < ?
		ORDER BY created_at ASC
		LIMIT ?`),
		models.JobQueued, models.JobRunning, now, maxAttempts, claimBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to query claimable jobs: %w", err)
	}

	expires := now.Add(leaseTTL)
	for _, id := range candidates {
		res, err := q.db.ExecContext(ctx, q.db.Rebind(`
			UPDATE clone_jobs
			SET status = ?, lease_owner = ?, lease_expires_at = ?, attempts = attempts + 1,
				started_at = COALESCE(started_at, ?), updated_at = ?
			WHERE id = ?
			  AND (status = ? OR (status = ? AND lease_expires_at < ?))
			  AND attempts < ?`),
			models.JobRunning, owner, expires, now, now,
			id, models.JobQueued, models.JobRunning, now, maxAttempts)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read claim result: %w", err)
		}
		if n == 1 {
			return q.Get(ctx, id)
		}
		// Another worker claimed it first.
	}
	return nil, nil
}

// RenewLease extends the caller's lease.
func (q *SQLQueue) RenewLease(ctx context.Context, jobID, owner string, leaseTTL time.Duration) error {
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, q.db.Rebind(`
		UPDATE clone_jobs SET lease_expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND lease_owner = ?`),
		now.Add(leaseTTL), now, jobID, models.JobRunning, owner)
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	return requireOne(res, jobID)
}

// Complete marks the job completed.
func (q *SQLQueue) Complete(ctx context.Context, jobID, owner string) error {
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, q.db.Rebind(`
		UPDATE clone_jobs
		SET status = ?, completed_at = ?, updated_at = ?, lease_owner = NULL, lease_expires_at = NULL
		WHERE id = ? AND status = ? AND lease_owner = ?`),
		models.JobCompleted, now, now, jobID, models.JobRunning, owner)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return requireOne(res, jobID)
}

// Fail marks the job failed with reason.
func (q *SQLQueue) Fail(ctx context.Context, jobID, owner, reason string) error {
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, q.db.Rebind(`
		UPDATE clone_jobs
		SET status = ?, failure_reason = ?, completed_at = ?, updated_at = ?, lease_owner = NULL, lease_expires_at = NULL
		WHERE id = ? AND status = ? AND lease_owner = ?`),
		models.JobFailed, reason, now, now, jobID, models.JobRunning, owner)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return requireOne(res, jobID)
}

// Cancel fails a queued job outright and flags a running one.
func (q *SQLQueue) Cancel(ctx context.Context, jobID string) (CancelOutcome, error) {
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, q.db.Rebind(`
		UPDATE clone_jobs
		SET status = ?, failure_reason = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		models.JobFailed, models.FailureReasonCancelled, now, now, jobID, models.JobQueued)
	if err != nil {
		return "", fmt.Errorf("failed to cancel job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return CancelledQueued, nil
	}

	res, err = q.db.ExecContext(ctx, q.db.Rebind(`
		UPDATE clone_jobs SET cancel_requested = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		true, now, jobID, models.JobRunning)
	if err != nil {
		return "", fmt.Errorf("failed to request cancellation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return CancelRequested, nil
	}

	if _, err := q.Get(ctx, jobID); err != nil {
		return "", err
	}
	return "", ErrJobTerminal
}

// Get retrieves a job by id.
func (q *SQLQueue) Get(ctx context.Context, jobID string) (*models.CloneJob, error) {
	var row jobRow
	err := q.db.GetContext(ctx, &row, q.db.Rebind(`SELECT `+jobColumns+` FROM clone_jobs WHERE id = ?`), jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clone job: %w", err)
	}
	return row.toModel()
}

// Steps returns the job's steps in execution order.
func (q *SQLQueue) Steps(ctx context.Context, jobID string) ([]*models.CloneStep, error) {
	var rows []stepRow
	err := q.db.SelectContext(ctx, &rows, q.db.Rebind(`
		SELECT `+stepColumns+` FROM clone_steps WHERE job_id = ? ORDER BY seq`), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clone steps: %w", err)
	}
	steps := make([]*models.CloneStep, 0, len(rows))
	for i := range rows {
		step, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// EnsureSteps inserts missing steps and returns all steps of the job.
func (q *SQLQueue) EnsureSteps(ctx context.Context, jobID string, steps []*models.CloneStep) ([]*models.CloneStep, error) {
	existing, err := q.Steps(ctx, jobID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.Key()] = true
	}

	query := `INSERT INTO clone_steps (` + stepColumns + `) VALUES (
		:job_id, :seq, :kind, :operation, :selected, :status, :processed_count,
		:skipped_count, :error_count, :attempts, :last_error, :warnings, :started_at, :completed_at)`
	inserted := false
	for _, step := range steps {
		if have[step.Key()] {
			continue
		}
		row, err := newStepRow(step)
		if err != nil {
			return nil, err
		}
		if _, err := q.db.NamedExecContext(ctx, query, row); err != nil && !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to insert step %s: %w", step.Key(), err)
		}
		inserted = true
	}
	if !inserted {
		return existing, nil
	}
	return q.Steps(ctx, jobID)
}

// UpdateStep overwrites the recorded progress of a step while owner holds
// the lease of the running job.
func (q *SQLQueue) UpdateStep(ctx context.Context, owner string, step *models.CloneStep) error {
	row, err := newStepRow(step)
	if err != nil {
		return err
	}
	res, err := q.db.NamedExecContext(ctx, `
		UPDATE clone_steps
		SET status = :status, processed_count = :processed_count, skipped_count = :skipped_count,
			error_count = :error_count, attempts = :attempts, last_error = :last_error,
			warnings = :warnings, started_at = :started_at, completed_at = :completed_at
		WHERE job_id = :job_id AND kind = :kind AND operation = :operation
			AND EXISTS (SELECT 1 FROM clone_jobs
				WHERE clone_jobs.id = :job_id AND clone_jobs.status = :job_status AND clone_jobs.lease_owner = :lease_owner)`,
		ownedStepRow{stepRow: row, JobStatus: models.JobRunning, LeaseOwner: owner})
	if err != nil {
		return fmt.Errorf("failed to update step %s: %w", step.Key(), err)
	}
	return requireOne(res, step.JobID)
}

// ownedStepRow adds the lease guard parameters to a step update.
type ownedStepRow struct {
	*stepRow
	JobStatus  models.JobStatus `db:"job_status"`
	LeaseOwner string           `db:"lease_owner"`
}

// CancelRequested reports whether a cancel was requested for the job.
func (q *SQLQueue) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	var flag bool
	err := q.db.GetContext(ctx, &flag, q.db.Rebind(`SELECT cancel_requested FROM clone_jobs WHERE id = ?`), jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrJobNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return flag, nil
}

// ReapExpired fails running jobs whose final lease expired.
func (q *SQLQueue) ReapExpired(ctx context.Context, maxAttempts int) (int64, error) {
	now := q.now().UTC()
	res, err := q.db.ExecContext(ctx, q.db.Rebind(`
		UPDATE clone_jobs
		SET status = ?, failure_reason = ?, completed_at = ?, updated_at = ?, lease_owner = NULL, lease_expires_at = NULL
		WHERE status = ? AND lease_expires_at < ? AND attempts >= ?`),
		models.JobFailed, ReasonLeaseExpired, now, now, models.JobRunning, now, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired jobs: %w", err)
	}
	return res.RowsAffected()
}

func requireOne(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("job %s: %w", jobID, ErrLeaseLost)
	}
	return nil
}
