package database

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/eventclone.sql
var schemaSQL string

// SchemaStatements returns the schema DDL split into individual statements.
func SchemaStatements() []string {
	var stmts []string
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		stmts = append(stmts, strings.TrimSpace(stmt))
	}
	return stmts
}

// Migrate creates any missing tables. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	applied := 0
	for _, stmt := range SchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return applied, fmt.Errorf("migration failed: %w", err)
		}
		applied++
	}
	log.Printf("migrations: applied %d schema statements using driver %s", applied, db.DriverName())
	return applied, nil
}
