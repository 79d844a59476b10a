package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// watchStoreFile signals on the returned channel whenever the SQLite file at
// dbPath (or its -wal/-journal companions) is written by any process. The
// channel closes when ctx is done.
func watchStoreFile(ctx context.Context, dbPath string, log *slog.Logger) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// the directory, since SQLite replaces and creates companion files
	dir := filepath.Dir(dbPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(dbPath)
	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasPrefix(filepath.Base(event.Name), base) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("store watcher error", "error", err)
			}
		}
	}()
	return wake, nil
}
