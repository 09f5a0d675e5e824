package database

import (
	"fmt"
	"strings"
)

// Supported driver names as registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverMySQL    = "mysql"
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
)

// NormalizeDriver maps configured driver aliases to registered driver names.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql", "pq":
		return DriverPostgres, nil
	case "pgx":
		return DriverPgx, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "sqlite3":
		return DriverSQLite3, nil
	case "sqlite", "modernc":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// IsMySQL returns true if the driver talks to MySQL/MariaDB
func IsMySQL(driver string) bool {
	return driver == DriverMySQL
}

// IsSQLite returns true for either sqlite driver
func IsSQLite(driver string) bool {
	return driver == DriverSQLite3 || driver == DriverSQLite
}
