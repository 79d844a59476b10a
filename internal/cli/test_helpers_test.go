package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/client"
	"github.com/runnerr0/worktimer/internal/clock"
	"github.com/runnerr0/worktimer/internal/config"
	"github.com/runnerr0/worktimer/internal/kvstore"
	"github.com/runnerr0/worktimer/internal/logging"
	"github.com/runnerr0/worktimer/internal/reminder"
	"github.com/runnerr0/worktimer/internal/timer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2026, 3, 6, 14, 30, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// fakeDaemon implements daemonAPI in memory.
type fakeDaemon struct {
	mu          sync.Mutex
	clock       clock.Clock
	state       timer.State
	calls       []string
	unavailable bool
	summary     string
	summaryErr  error
	summaryArgs []string
	reminders   []reminder.Settings
	events      chan broadcast.Event
}

func (f *fakeDaemon) call(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.unavailable {
		return client.ErrDaemonUnavailable
	}
	return nil
}

func (f *fakeDaemon) Status(context.Context) (client.DaemonStatus, error) {
	if err := f.call("status"); err != nil {
		return client.DaemonStatus{}, err
	}
	return client.DaemonStatus{Version: "fake", Observers: 2}, nil
}

func (f *fakeDaemon) StartTimer(context.Context) error {
	if err := f.call("startTimer"); err != nil {
		return err
	}
	if !f.state.IsRunning {
		start := f.clock.Now().UnixMilli() - f.state.ElapsedTime
		f.state = timer.State{IsRunning: true, StartTime: &start}
	}
	return nil
}

func (f *fakeDaemon) StopTimer(context.Context) error {
	if err := f.call("stopTimer"); err != nil {
		return err
	}
	if f.state.IsRunning {
		f.state = timer.State{ElapsedTime: f.state.Elapsed(f.clock.Now()).Milliseconds()}
	}
	return nil
}

func (f *fakeDaemon) ResetTimer(context.Context) error {
	if err := f.call("resetTimer"); err != nil {
		return err
	}
	f.state = timer.State{}
	return nil
}

func (f *fakeDaemon) TimerState(context.Context) (timer.State, error) {
	if err := f.call("getTimerState"); err != nil {
		return timer.State{}, err
	}
	st := f.state
	if st.IsRunning {
		st.ElapsedTime = st.Elapsed(f.clock.Now()).Milliseconds()
	}
	return st, nil
}

func (f *fakeDaemon) UpdateReminderSettings(_ context.Context, s reminder.Settings) error {
	if err := f.call("updateReminderSettings"); err != nil {
		return err
	}
	f.reminders = append(f.reminders, s)
	return nil
}

func (f *fakeDaemon) GenerateSummary(_ context.Context, notes, duration, apiKey, task, tabs string) (string, error) {
	if err := f.call("generateSummary"); err != nil {
		return "", err
	}
	f.summaryArgs = []string{notes, duration, apiKey, task, tabs}
	return f.summary, f.summaryErr
}

func (f *fakeDaemon) Events(context.Context) (<-chan broadcast.Event, error) {
	if err := f.call("events"); err != nil {
		return nil, err
	}
	return f.events, nil
}

func (f *fakeDaemon) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// quietLogger drops everything below error.
func quietLogger(t *testing.T) *slog.Logger {
	t.Helper()
	logger, err := logging.New(io.Discard, "error")
	require.NoError(t, err)
	return logger
}

// newTestRuntime returns a runtime over a temp-dir store, a manual clock at
// t0 and a fake daemon.
func newTestRuntime(t *testing.T) (*runtime, *fakeDaemon, *clock.Manual) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = dir
	cfg.Observer.PollInterval = 10 * time.Millisecond

	dbPath := filepath.Join(dir, "worktimer.db")
	db, err := kvstore.Open(dbPath, "wal")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := kvstore.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewManual(t0)
	fd := &fakeDaemon{clock: clk, summary: "Worked on the thing."}
	rt := &runtime{
		cfg:    cfg,
		dbPath: dbPath,
		store:  store,
		audit:  kvstore.NewAuditLog(db),
		daemon: fd,
		clock:  clk,
		log:    quietLogger(t),
		in:     strings.NewReader(""),
		loc:    time.UTC,
	}
	return rt, fd, clk
}
