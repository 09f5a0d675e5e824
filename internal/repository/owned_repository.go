package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/eventclone/internal/database"
	"github.com/gotrs-io/eventclone/internal/models"
)

// SQLOwnedStore is a table-backed OwnedStore. Column names must match the
// record's db struct tags.
type SQLOwnedStore[T models.OwnedRecord] struct {
	db      *sqlx.DB
	table   string
	columns []string
}

// NewSQLOwnedStore creates a store over the given table.
func NewSQLOwnedStore[T models.OwnedRecord](db *sqlx.DB, table string, columns []string) *SQLOwnedStore[T] {
	return &SQLOwnedStore[T]{db: db, table: table, columns: columns}
}

// ListByContext returns the context's records ordered by id.
func (s *SQLOwnedStore[T]) ListByContext(ctx context.Context, contextID string) ([]T, error) {
	query := s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE context_id = ? ORDER BY id",
		strings.Join(s.columns, ", "), s.table))

	var records []T
	if err := s.db.SelectContext(ctx, &records, query, contextID); err != nil {
		return nil, wrapStoreError(fmt.Sprintf("failed to list %s", s.table), err)
	}
	return records, nil
}

// Get retrieves one record by id.
func (s *SQLOwnedStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	query := s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?",
		strings.Join(s.columns, ", "), s.table))

	var record T
	err := s.db.GetContext(ctx, &record, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return record, false, nil
	}
	if err != nil {
		return record, false, wrapStoreError(fmt.Sprintf("failed to get %s %s", s.table, id), err)
	}
	return record, true, nil
}

// Insert creates the record.
func (s *SQLOwnedStore[T]) Insert(ctx context.Context, record T) error {
	named := make([]string, len(s.columns))
	for i, col := range s.columns {
		named[i] = ":" + col
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(s.columns, ", "), strings.Join(named, ", "))

	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		return wrapStoreError(fmt.Sprintf("failed to insert %s %s", s.table, record.RecordID()), err)
	}
	return nil
}

// NewSQLOwnedTables wires a SQL store for every owned kind.
func NewSQLOwnedTables(db *sqlx.DB) *OwnedTables {
	return &OwnedTables{
		MainZones: NewSQLOwnedStore[models.MainZone](db, "main_zones", []string{
			"id", "context_id", "name", "description", "color", "latitude", "longitude",
			"radius_meters", "sort_order", "active", "created_at",
		}),
		SubZones: NewSQLOwnedStore[models.SubZone](db, "sub_zones", []string{
			"id", "context_id", "main_zone_id", "name", "description", "color", "sort_order",
			"active", "created_at",
		}),
		CameraZones: NewSQLOwnedStore[models.CameraZone](db, "camera_zones", []string{
			"id", "context_id", "name", "stream_url", "latitude", "longitude", "active", "created_at",
		}),
		MessageCenters: NewSQLOwnedStore[models.MessageCenter](db, "message_centers", []string{
			"id", "context_id", "name", "channel", "address", "active", "created_at",
		}),
		ReferenceMaterials: NewSQLOwnedStore[models.ReferenceMaterial](db, "reference_materials", []string{
			"id", "context_id", "name", "media_type", "file_name", "storage_key", "size_bytes", "created_at",
		}),
		PresetMessages: NewSQLOwnedStore[models.PresetMessage](db, "preset_messages", []string{
			"id", "context_id", "title", "body", "priority", "active", "created_at",
		}),
		Departments: NewSQLOwnedStore[models.Department](db, "departments", []string{
			"id", "context_id", "name", "email", "phone", "created_at",
		}),
		Contacts: NewSQLOwnedStore[models.Contact](db, "contacts", []string{
			"id", "context_id", "department_id", "name", "email", "phone", "role", "alert_enabled", "created_at",
		}),
	}
}

// wrapStoreError attaches the sentinel matching the driver error so callers
// can classify it without knowing the driver.
func wrapStoreError(msg string, err error) error {
	switch {
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", msg, ErrAlreadyExists, err)
	case database.IsConnectionError(err):
		return fmt.Errorf("%s: %w: %v", msg, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
