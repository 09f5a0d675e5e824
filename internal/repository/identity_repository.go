package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/eventclone/internal/models"
)

// SQLIdentityRepository stores identity map entries in clone_identity_map.
type SQLIdentityRepository struct {
	db *sqlx.DB
}

// NewSQLIdentityRepository creates a new identity map repository
func NewSQLIdentityRepository(db *sqlx.DB) *SQLIdentityRepository {
	return &SQLIdentityRepository{db: db}
}

// Insert records a mapping. The primary key makes the first writer win.
func (r *SQLIdentityRepository) Insert(ctx context.Context, entry models.IdentityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO clone_identity_map (job_id, kind, source_id, target_id, created_at)
		VALUES (?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query, entry.JobID, string(entry.Kind), entry.SourceID, entry.TargetID, entry.CreatedAt)
	if err != nil {
		return wrapStoreError(fmt.Sprintf("failed to map %s %s", entry.Kind, entry.SourceID), err)
	}
	return nil
}

// Lookup returns the target id recorded for the source id.
func (r *SQLIdentityRepository) Lookup(ctx context.Context, jobID string, kind models.EntityKind, sourceID string) (string, bool, error) {
	query := r.db.Rebind(`
		SELECT target_id FROM clone_identity_map
		WHERE job_id = ? AND kind = ? AND source_id = ?`)

	var target string
	err := r.db.GetContext(ctx, &target, query, jobID, string(kind), sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapStoreError("failed to look up identity", err)
	}
	return target, true, nil
}

// ListByJob returns every mapping a job produced.
func (r *SQLIdentityRepository) ListByJob(ctx context.Context, jobID string) ([]models.IdentityEntry, error) {
	query := r.db.Rebind(`
		SELECT job_id, kind, source_id, target_id, created_at
		FROM clone_identity_map
		WHERE job_id = ?
		ORDER BY kind, source_id`)

	var entries []models.IdentityEntry
	if err := r.db.SelectContext(ctx, &entries, query, jobID); err != nil {
		return nil, wrapStoreError("failed to list identities", err)
	}
	return entries, nil
}

// JobIDs lists jobs that still have mappings, oldest mapping first.
func (r *SQLIdentityRepository) JobIDs(ctx context.Context, limit int) ([]string, error) {
	query := r.db.Rebind(`
		SELECT job_id FROM clone_identity_map
		GROUP BY job_id
		ORDER BY MIN(created_at), job_id
		LIMIT ?`)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, wrapStoreError("failed to list mapped jobs", err)
	}
	return ids, nil
}

// DeleteByJobs purges the mappings of the given jobs.
func (r *SQLIdentityRepository) DeleteByJobs(ctx context.Context, jobIDs []string) (int64, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM clone_identity_map WHERE job_id IN (?)`, jobIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build purge query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, wrapStoreError("failed to purge identities", err)
	}
	return res.RowsAffected()
}
