// Package logging builds the slog loggers used by the daemon and the CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/runnerr0/worktimer/internal/config"
)

// New returns a text logger writing to w at the given level name.
func New(w io.Writer, level string) (*slog.Logger, error) {
	l, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// ForDaemon returns a logger writing to the configured log file and to
// stderr when foreground is set. The returned closer releases the file.
func ForDaemon(cfg *config.Config, level string, foreground bool) (*slog.Logger, io.Closer, error) {
	if level == "" {
		level = cfg.Logging.Level
	}

	path, err := cfg.LogPath()
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		logger, err := New(os.Stderr, level)
		return logger, io.NopCloser(nil), err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	var w io.Writer = f
	if foreground {
		w = io.MultiWriter(f, os.Stderr)
	}
	logger, err := New(w, level)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return logger, f, nil
}
