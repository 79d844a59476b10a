package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditLog records dispatched commands in the audit_log table.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog wraps a migrated database.
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record appends one entry.
func (a *AuditLog) Record(ctx context.Context, action, detail string) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO audit_log (action, detail, ts) VALUES (?, ?, ?)",
		action, detail, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, action, detail, ts FROM audit_log ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.Action, &e.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp, _ = parseTimestamp(ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
