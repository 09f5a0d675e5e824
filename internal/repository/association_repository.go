package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/eventclone/internal/models"
)

// SQLAssociationRepository stores context links in context_associations.
// The (kind, context_id, entity_id) primary key enforces one link per pair.
type SQLAssociationRepository struct {
	db *sqlx.DB
}

// NewSQLAssociationRepository creates a new association repository
func NewSQLAssociationRepository(db *sqlx.DB) *SQLAssociationRepository {
	return &SQLAssociationRepository{db: db}
}

// ListEntityIDs returns the ids of shared entities linked to the context.
func (r *SQLAssociationRepository) ListEntityIDs(ctx context.Context, kind models.EntityKind, contextID string) ([]string, error) {
	query := r.db.Rebind(`
		SELECT entity_id FROM context_associations
		WHERE kind = ? AND context_id = ?
		ORDER BY entity_id`)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, string(kind), contextID); err != nil {
		return nil, wrapStoreError("failed to list associations", err)
	}
	return ids, nil
}

// Exists reports whether the link is present.
func (r *SQLAssociationRepository) Exists(ctx context.Context, kind models.EntityKind, contextID, entityID string) (bool, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM context_associations
		WHERE kind = ? AND context_id = ? AND entity_id = ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, string(kind), contextID, entityID); err != nil {
		return false, wrapStoreError("failed to check association", err)
	}
	return count > 0, nil
}

// Insert creates the link.
func (r *SQLAssociationRepository) Insert(ctx context.Context, link models.Association) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO context_associations (kind, context_id, entity_id, created_at)
		VALUES (?, ?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, string(link.Kind), link.ContextID, link.EntityID, link.CreatedAt); err != nil {
		return wrapStoreError(fmt.Sprintf("failed to link %s %s to %s", link.Kind, link.EntityID, link.ContextID), err)
	}
	return nil
}

// Delete removes the link and reports whether it existed.
func (r *SQLAssociationRepository) Delete(ctx context.Context, kind models.EntityKind, contextID, entityID string) (bool, error) {
	query := r.db.Rebind(`
		DELETE FROM context_associations
		WHERE kind = ? AND context_id = ? AND entity_id = ?`)

	res, err := r.db.ExecContext(ctx, query, string(kind), contextID, entityID)
	if err != nil {
		return false, wrapStoreError("failed to delete association", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreError("failed to read affected rows", err)
	}
	return n > 0, nil
}
