// Package history keeps the log of summarized work sessions, newest first
// and capped at MaxEntries.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/worktimer/internal/kvstore"
)

// Key is the local-scope key holding the log.
const Key = "history"

// MaxEntries is the capacity of the log.
const MaxEntries = 10

// Record is one completed, summarized session. Timestamp is epoch ms and
// Duration is milliseconds.
type Record struct {
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Duration  int64  `json:"duration"`
	Notes     string `json:"notes"`
	Summary   string `json:"summary"`
}

// NewRecord builds a record with a fresh id.
func NewRecord(at time.Time, duration time.Duration, notes, summary string) Record {
	return Record{
		ID:        uuid.New().String(),
		Timestamp: at.UnixMilli(),
		Duration:  duration.Milliseconds(),
		Notes:     notes,
		Summary:   summary,
	}
}

// Time returns the record timestamp.
func (r Record) Time() time.Time { return time.UnixMilli(r.Timestamp) }

// Elapsed returns the recorded duration.
func (r Record) Elapsed() time.Duration { return time.Duration(r.Duration) * time.Millisecond }

// Prepend returns records with r at the front, truncated to MaxEntries.
// The input slice is not modified.
func Prepend(records []Record, r Record) []Record {
	out := make([]Record, 0, min(len(records)+1, MaxEntries))
	out = append(out, r)
	for _, old := range records {
		if len(out) == MaxEntries {
			break
		}
		out = append(out, old)
	}
	return out
}

// List returns the stored log, newest first. A missing key is an empty log.
func List(ctx context.Context, store kvstore.Store) ([]Record, error) {
	records, _, err := kvstore.GetValue[[]Record](ctx, store, kvstore.Local, Key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Append adds r to the front of the stored log and evicts beyond capacity.
// Concurrent appends are last-write-wins.
func Append(ctx context.Context, store kvstore.Store, r Record) ([]Record, error) {
	records, err := List(ctx, store)
	if err != nil {
		return nil, err
	}
	records = Prepend(records, r)
	if err := store.Set(ctx, kvstore.Local, map[string]any{Key: records}); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	return records, nil
}
