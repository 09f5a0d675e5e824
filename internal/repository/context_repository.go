package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLContextRepository checks event contexts in event_contexts.
type SQLContextRepository struct {
	db *sqlx.DB
}

// NewSQLContextRepository creates a new context repository
func NewSQLContextRepository(db *sqlx.DB) *SQLContextRepository {
	return &SQLContextRepository{db: db}
}

// Exists reports whether the context is known.
func (r *SQLContextRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM event_contexts WHERE id = ?`)
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return false, wrapStoreError("failed to check context", err)
	}
	return count > 0, nil
}
