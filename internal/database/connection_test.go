package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLFoundRowsDSN(t *testing.T) {
	dsn, err := mysqlFoundRowsDSN("clone:secret@tcp(db:3306)/events?parseTime=true")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ClientFoundRows)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "events", cfg.DBName)

	_, err = mysqlFoundRowsDSN("not a dsn")
	assert.Error(t, err)
}
