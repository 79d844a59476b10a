package kvstore

import (
	"database/sql"
	"fmt"
	"strings"
)

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// MigrationRunner applies pending migrations to a SQLite database.
type MigrationRunner struct {
	db          *sql.DB
	journalMode string
	migrations  []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
// An empty journalMode selects WAL.
func NewMigrationRunner(db *sql.DB, journalMode string) *MigrationRunner {
	if journalMode == "" {
		journalMode = "wal"
	}
	return &MigrationRunner{
		db:          db,
		journalMode: journalMode,
		migrations: []migration{
			{Version: 1, Name: "initial_schema", Apply: migrateV001},
		},
	}
}

// ValidJournalMode reports whether mode is a journal mode the store runs
// with. MEMORY and OFF are refused: the file is shared between processes.
func ValidJournalMode(mode string) bool {
	switch strings.ToUpper(mode) {
	case "WAL", "DELETE", "TRUNCATE", "PERSIST":
		return true
	}
	return false
}

// Run sets the journal mode, creates the schema_migrations tracking table,
// then applies each migration that hasn't been recorded yet.
func (r *MigrationRunner) Run() error {
	if !ValidJournalMode(r.journalMode) {
		return fmt.Errorf("unsupported journal mode %q", r.journalMode)
	}
	mode := strings.ToUpper(r.journalMode)
	if _, err := r.db.Exec("PRAGMA journal_mode = " + mode); err != nil {
		return fmt.Errorf("set journal mode %s: %w", mode, err)
	}

	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if err := r.apply(m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

func (r *MigrationRunner) isApplied(version int) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// apply executes a migration inside a transaction and records it.
func (r *MigrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
