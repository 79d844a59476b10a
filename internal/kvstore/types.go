package kvstore

import "time"

// Scope selects one of the two key namespaces.
type Scope string

const (
	// Local holds per-machine state: timer fields, notes, task, history.
	Local Scope = "local"
	// Sync holds user configuration.
	Sync Scope = "sync"
)

// Valid reports whether s names a known scope.
func (s Scope) Valid() bool {
	return s == Local || s == Sync
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        int64
	Action    string
	Detail    string
	Timestamp time.Time
}
