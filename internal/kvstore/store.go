// Package kvstore is the persistent state store shared by the daemon and
// every UI surface: a scoped key-value table in SQLite.
package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store defines the key-value operations used across the application.
type Store interface {
	// Get returns the stored JSON for each requested key that exists.
	// With no keys it returns every key in the scope.
	Get(ctx context.Context, scope Scope, keys ...string) (map[string]json.RawMessage, error)
	// Set writes all values in one transaction.
	Set(ctx context.Context, scope Scope, values map[string]any) error
	// Remove deletes keys. Missing keys are ignored.
	Remove(ctx context.Context, scope Scope, keys ...string) error
	Close() error
}

// Open opens (creating if needed) the SQLite database at path and runs
// migrations. The caller owns the returned *sql.DB.
func Open(path, journalMode string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	runner := NewMigrationRunner(db, journalMode)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// SQLiteStore implements Store backed by the kv table.
type SQLiteStore struct {
	db *sql.DB

	getValue    *sql.Stmt
	upsertValue *sql.Stmt
	deleteValue *sql.Stmt
}

// NewSQLiteStore creates a store from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getValue, err = s.db.Prepare(`SELECT value FROM kv WHERE scope = ? AND key = ?`)
	if err != nil {
		return err
	}

	s.upsertValue, err = s.db.Prepare(`
		INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.deleteValue, err = s.db.Prepare(`DELETE FROM kv WHERE scope = ? AND key = ?`)
	if err != nil {
		return err
	}

	return nil
}

// Get returns the stored JSON values for the requested keys. Missing keys
// are absent from the result map.
func (s *SQLiteStore) Get(ctx context.Context, scope Scope, keys ...string) (map[string]json.RawMessage, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("invalid scope %q", scope)
	}

	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE scope = ?`, string(scope))
		if err != nil {
			return nil, fmt.Errorf("query scope %s: %w", scope, err)
		}
		defer rows.Close()

		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return nil, fmt.Errorf("scan value: %w", err)
			}
			out[key] = json.RawMessage(value)
		}
		return out, rows.Err()
	}

	for _, key := range keys {
		var value string
		err := s.getValue.QueryRowContext(ctx, string(scope), key).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s.%s: %w", scope, key, err)
		}
		out[key] = json.RawMessage(value)
	}
	return out, nil
}

// Set marshals each value to JSON and writes them all in a single transaction.
func (s *SQLiteStore) Set(ctx context.Context, scope Scope, values map[string]any) error {
	if !scope.Valid() {
		return fmt.Errorf("invalid scope %q", scope)
	}
	if len(values) == 0 {
		return nil
	}

	encoded := make(map[string]json.RawMessage, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		encoded[key] = data
	}

	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	upsert := tx.StmtContext(ctx, s.upsertValue)
	for key, data := range encoded {
		if _, err := upsert.ExecContext(ctx, string(scope), key, string(data), now.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("write %s.%s: %w", scope, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Remove deletes keys from a scope in a single transaction.
func (s *SQLiteStore) Remove(ctx context.Context, scope Scope, keys ...string) error {
	if !scope.Valid() {
		return fmt.Errorf("invalid scope %q", scope)
	}
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del := tx.StmtContext(ctx, s.deleteValue)
	for _, key := range keys {
		if _, err := del.ExecContext(ctx, string(scope), key); err != nil {
			return fmt.Errorf("delete %s.%s: %w", scope, key, err)
		}
	}
	return tx.Commit()
}

// Close releases prepared statements. The underlying *sql.DB is NOT closed;
// that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getValue, s.upsertValue, s.deleteValue} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

// GetValue decodes a single key into T. The bool reports whether the key
// existed and held a non-null value.
func GetValue[T any](ctx context.Context, s Store, scope Scope, key string) (T, bool, error) {
	var zero T
	values, err := s.Get(ctx, scope, key)
	if err != nil {
		return zero, false, err
	}
	raw, ok := values[key]
	if !ok || strings.TrimSpace(string(raw)) == "null" {
		return zero, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s.%s: %w", scope, key, err)
	}
	return v, true, nil
}
