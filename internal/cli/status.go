package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/worktimer/internal/client"
	"github.com/runnerr0/worktimer/internal/display"
	"github.com/runnerr0/worktimer/internal/settings"
	"github.com/runnerr0/worktimer/internal/timer"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string `json:"version"`
	Task              string `json:"task"`
	IsRunning         bool   `json:"is_running"`
	ElapsedMs         int64  `json:"elapsed_ms"`
	Elapsed           string `json:"elapsed"`
	StartedAt         string `json:"started_at,omitempty"`
	NotesLength       int    `json:"notes_length"`
	DatabasePath      string `json:"database_path,omitempty"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	DaemonRunning     bool   `json:"daemon_running"`
	DaemonVersion     string `json:"daemon_version,omitempty"`
	DaemonObservers   int    `json:"daemon_observers"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()

	out, err := c.collect(context.Background(), rt)
	if err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(out)
	}
	return c.printHuman(out)
}

func (c *StatusCommand) collect(ctx context.Context, rt *runtime) (statusJSON, error) {
	out := statusJSON{Version: c.version, DatabasePath: rt.dbPath}

	var err error
	if out.Task, err = settings.Task(ctx, rt.store); err != nil {
		return out, err
	}
	notes, err := settings.Notes(ctx, rt.store)
	if err != nil {
		return out, err
	}
	out.NotesLength = len(notes)

	// the daemon's view is authoritative; the store is the fallback
	var st timer.State
	if ds, err := rt.daemon.Status(ctx); err == nil {
		out.DaemonRunning, out.DaemonVersion, out.DaemonObservers = true, ds.Version, ds.Observers
		if st, err = rt.daemon.TimerState(ctx); err != nil {
			return out, err
		}
	} else {
		if !errors.Is(err, client.ErrDaemonUnavailable) {
			rt.log.Warn("daemon status check failed", "error", err)
		}
		if st, err = localState(ctx, rt); err != nil {
			return out, err
		}
	}

	now := rt.clock.Now()
	elapsed := st.Elapsed(now)
	out.IsRunning = st.IsRunning
	out.ElapsedMs = elapsed.Milliseconds()
	out.Elapsed = display.Clock(elapsed)
	if st.IsRunning && st.StartTime != nil {
		out.StartedAt = time.UnixMilli(*st.StartTime).UTC().Format(time.RFC3339)
	}

	if rt.dbPath != "" {
		if info, err := os.Stat(rt.dbPath); err == nil {
			out.DatabaseSizeBytes = info.Size()
		}
	}
	return out, nil
}

func (c *StatusCommand) printHuman(out statusJSON) error {
	fmt.Println("Worktimer Status")
	fmt.Println("================")
	fmt.Printf("Version:   %s\n", out.Version)

	task := out.Task
	if task == "" {
		task = "(none)"
	}
	fmt.Printf("Task:      %s\n", task)

	if out.IsRunning {
		fmt.Printf("Timer:     running (%s)\n", out.Elapsed)
	} else {
		fmt.Printf("Timer:     stopped (%s)\n", out.Elapsed)
	}
	fmt.Printf("Notes:     %d characters\n", out.NotesLength)

	if out.DatabasePath != "" {
		fmt.Printf("Database:  %s (%s)\n", out.DatabasePath, formatBytes(out.DatabaseSizeBytes))
	}

	fmt.Println()
	if out.DaemonRunning {
		fmt.Printf("Daemon:    running (%s, %d observers)\n", out.DaemonVersion, out.DaemonObservers)
	} else {
		fmt.Println("Daemon:    not running")
	}
	return nil
}
