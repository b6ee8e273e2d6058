// Package migrations runs the core schema migration embedded from sql/, and
// generates the per-user-state migrations (a versions table, a unique
// index, and an ALTER of the view table for legacy installs).
//
// No SQL parsing happens here: instead of discovering column names from the
// user's CREATE TABLE statement, StateMigration callers supply the view's
// column list directly alongside its raw CREATE TABLE SQL.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed sql/*.sql
var coreFS embed.FS

const dialect = "postgres"

// RunCore applies the embedded core schema migration (nodes, contract
// addresses, events, reorged blocks, root state, handler subscriptions).
func RunCore(database *sql.DB) error {
	source := migrate.EmbedFileSystemMigrationSource{
		FileSystem: coreFS,
		Root:       "sql",
	}
	if _, err := migrate.Exec(database, dialect, source, migrate.Up); err != nil {
		return fmt.Errorf("migrations: failed to run core schema: %w", err)
	}
	return nil
}

// RunMemory applies an in-memory set of migrations, used for the generated
// state-table migrations (RunStateMigrations).
func RunMemory(database *sql.DB, migs []*migrate.Migration) error {
	source := migrate.MemoryMigrationSource{Migrations: migs}
	if _, err := migrate.Exec(database, dialect, source, migrate.Up); err != nil {
		return fmt.Errorf("migrations: failed to run migration batch: %w", err)
	}
	return nil
}
