package kvstore

import "database/sql"

// migrateV001 creates the initial schema: the scoped key-value table, the
// alarm registrations and the command audit log. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			scope      TEXT NOT NULL CHECK (scope IN ('local', 'sync')),
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (scope, key)
		)`,

		`CREATE TABLE IF NOT EXISTS alarms (
			name         TEXT PRIMARY KEY,
			scheduled_at INTEGER NOT NULL,
			period_ms    INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			ts     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_kv_updated       ON kv(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alarms_scheduled ON alarms(scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts     ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
