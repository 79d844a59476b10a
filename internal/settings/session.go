package settings

import (
	"context"
	"fmt"

	"github.com/runnerr0/worktimer/internal/kvstore"
)

// Local-scope keys written by UI surfaces.
const (
	KeyNotes = "notes"
	KeyTask  = "task"
)

// localDefaults are written on first run. The timer keys are included so a
// fresh store reads as a stopped timer.
var localDefaults = map[string]any{
	"isRunning":   false,
	"elapsedTime": 0,
	KeyNotes:      "",
	"history":     []any{},
}

// Seed writes default values for every key that does not exist yet and
// returns the keys it wrote. Existing values are never overwritten.
func Seed(ctx context.Context, store kvstore.Store) ([]string, error) {
	var seeded []string

	for scope, defaults := range map[kvstore.Scope]map[string]any{
		kvstore.Local: localDefaults,
		kvstore.Sync:  Defaults().values(),
	} {
		keys := make([]string, 0, len(defaults))
		for k := range defaults {
			keys = append(keys, k)
		}
		existing, err := store.Get(ctx, scope, keys...)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", scope, err)
		}

		missing := make(map[string]any)
		for k, v := range defaults {
			if _, ok := existing[k]; !ok {
				missing[k] = v
				seeded = append(seeded, string(scope)+"."+k)
			}
		}
		if err := store.Set(ctx, scope, missing); err != nil {
			return nil, fmt.Errorf("seed %s: %w", scope, err)
		}
	}
	return seeded, nil
}

// Task returns the current task id, empty when unset.
func Task(ctx context.Context, store kvstore.Store) (string, error) {
	v, _, err := kvstore.GetValue[string](ctx, store, kvstore.Local, KeyTask)
	return v, err
}

// SetTask stores the current task id.
func SetTask(ctx context.Context, store kvstore.Store, task string) error {
	return store.Set(ctx, kvstore.Local, map[string]any{KeyTask: task})
}

// Notes returns the session notes, empty when unset.
func Notes(ctx context.Context, store kvstore.Store) (string, error) {
	v, _, err := kvstore.GetValue[string](ctx, store, kvstore.Local, KeyNotes)
	return v, err
}

// SetNotes stores the session notes.
func SetNotes(ctx context.Context, store kvstore.Store, notes string) error {
	return store.Set(ctx, kvstore.Local, map[string]any{KeyNotes: notes})
}

// ClearNotes removes the session notes.
func ClearNotes(ctx context.Context, store kvstore.Store) error {
	return store.Remove(ctx, kvstore.Local, KeyNotes)
}
