package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/eventclone/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestSQLOwnedStore_ListByContext(t *testing.T) {
	db, mock := newMockDB(t)
	tables := NewSQLOwnedTables(db)

	rows := sqlmock.NewRows([]string{"id", "context_id", "name", "email", "phone", "created_at"}).
		AddRow("d1", "ctx-a", "Medical", "med@example.com", "555", time.Now()).
		AddRow("d2", "ctx-a", "Security", "sec@example.com", "556", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, context_id, name, email, phone, created_at FROM departments WHERE context_id = ? ORDER BY id")).
		WithArgs("ctx-a").
		WillReturnRows(rows)

	list, err := tables.Departments.ListByContext(context.Background(), "ctx-a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Security", list[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLOwnedStore_NullColumns(t *testing.T) {
	db, mock := newMockDB(t)
	tables := NewSQLOwnedTables(db)

	rows := sqlmock.NewRows([]string{"id", "context_id", "name", "description", "color", "latitude", "longitude",
		"radius_meters", "sort_order", "active", "created_at"}).
		AddRow("z1", "ctx-a", "Gate", nil, nil, nil, nil, nil, 1, true, nil).
		AddRow("z2", "ctx-a", "Stage", "Main stage", "#00ff00", 52.5, 13.4, 25.0, 2, true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM main_zones WHERE context_id = ? ORDER BY id")).
		WithArgs("ctx-a").
		WillReturnRows(rows)

	zones, err := tables.MainZones.ListByContext(context.Background(), "ctx-a")
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Nil(t, zones[0].Description)
	assert.Nil(t, zones[0].Latitude)
	assert.Nil(t, zones[0].CreatedAt)
	require.NotNil(t, zones[1].Latitude)
	assert.Equal(t, 52.5, *zones[1].Latitude)

	materialRows := sqlmock.NewRows([]string{"id", "context_id", "name", "media_type", "file_name", "storage_key",
		"size_bytes", "created_at"}).
		AddRow("rm-1", "ctx-a", "Map", nil, nil, nil, 0, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM reference_materials WHERE id = ?")).
		WithArgs("rm-1").
		WillReturnRows(materialRows)

	material, ok, err := tables.ReferenceMaterials.Get(context.Background(), "rm-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, material.StorageKey)
	assert.Nil(t, material.FileName)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO main_zones")).
		WithArgs("z9", "ctx-b", "Gate", nil, nil, nil, nil, nil, 1, true, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	zones[0].ID, zones[0].ContextID = "z9", "ctx-b"
	require.NoError(t, tables.MainZones.Insert(context.Background(), zones[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLOwnedStore_GetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	tables := NewSQLOwnedTables(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM main_zones WHERE id = ?")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := tables.MainZones.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLOwnedStore_InsertDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	tables := NewSQLOwnedTables(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO preset_messages (id, context_id, title, body, priority, active, created_at)")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := tables.PresetMessages.Insert(context.Background(), models.PresetMessage{ID: "p1", ContextID: "ctx-b"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLOwnedStore_InsertConnectionLost(t *testing.T) {
	db, mock := newMockDB(t)
	tables := NewSQLOwnedTables(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO camera_zones")).
		WillReturnError(sql.ErrConnDone)

	err := tables.CameraZones.Insert(context.Background(), models.CameraZone{ID: "c1", ContextID: "ctx-b"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSQLAssociationRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Insert", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSQLAssociationRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO context_associations (kind, context_id, entity_id, created_at)")).
			WithArgs("sources", "ctx-b", "s1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Insert(ctx, models.Association{Kind: models.KindSources, ContextID: "ctx-b", EntityID: "s1"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteReportsRemoval", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSQLAssociationRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM context_associations")).
			WithArgs("divisions", "ctx-a", "v1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		removed, err := repo.Delete(ctx, models.KindDivisions, "ctx-a", "v1")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("ListEntityIDs", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSQLAssociationRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT entity_id FROM context_associations")).
			WithArgs("taxonomy_types", "ctx-a").
			WillReturnRows(sqlmock.NewRows([]string{"entity_id"}).AddRow("t1").AddRow("t2"))

		ids, err := repo.ListEntityIDs(ctx, models.KindTaxonomyTypes, "ctx-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2"}, ids)
	})
}

func TestSQLIdentityRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("LookupMissing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSQLIdentityRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT target_id FROM clone_identity_map")).
			WithArgs("job-1", "main_zones", "z1").
			WillReturnError(sql.ErrNoRows)

		_, ok, err := repo.Lookup(ctx, "job-1", models.KindMainZones, "z1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InsertConflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSQLIdentityRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clone_identity_map")).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Insert(ctx, models.IdentityEntry{JobID: "job-1", Kind: models.KindMainZones, SourceID: "z1", TargetID: "t1"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("DeleteByJobs", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSQLIdentityRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM clone_identity_map WHERE job_id IN (?, ?)")).
			WithArgs("job-1", "job-2").
			WillReturnResult(sqlmock.NewResult(0, 7))

		n, err := repo.DeleteByJobs(ctx, []string{"job-1", "job-2"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})

	t.Run("JobIDs", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSQLIdentityRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT job_id FROM clone_identity_map")).
			WithArgs(50).
			WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow("job-1").AddRow("job-2"))

		ids, err := repo.JobIDs(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"job-1", "job-2"}, ids)
	})

	t.Run("DeleteByJobsEmpty", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewSQLIdentityRepository(db)

		n, err := repo.DeleteByJobs(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestSQLContextRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSQLContextRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM event_contexts WHERE id = ?")).
		WithArgs("ctx-a").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.Exists(context.Background(), "ctx-a")
	require.NoError(t, err)
	assert.True(t, ok)
}
