package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaStatementsCoverEngineTables(t *testing.T) {
	stmts := SchemaStatements()
	require.NotEmpty(t, stmts)

	joined := ""
	for _, s := range stmts {
		joined += s + "\n"
	}
	for _, table := range []string{
		"main_zones", "sub_zones", "camera_zones", "message_centers", "reference_materials",
		"preset_messages", "departments", "contacts", "context_associations",
		"clone_identity_map", "clone_jobs", "clone_steps",
	} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestMigrateExecutesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(func(string, string) error { return nil })))
	require.NoError(t, err)
	defer db.Close()

	stmts := SchemaStatements()
	for range stmts {
		mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	applied, err := Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"))
	require.NoError(t, err)
	assert.Equal(t, len(stmts), applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(func(string, string) error { return nil })))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	applied, err := Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"))
	assert.Error(t, err)
	assert.Equal(t, 1, applied)
}
