package observer

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/clock"
	"github.com/runnerr0/worktimer/internal/kvstore"
	"github.com/runnerr0/worktimer/internal/timer"
)

var now = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) kvstore.Store {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "observer.db"), "wal")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := kvstore.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeRunning(t *testing.T, store kvstore.Store, start time.Time) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), kvstore.Local, map[string]any{
		timer.KeyIsRunning:   true,
		timer.KeyStartTime:   start.UnixMilli(),
		timer.KeyElapsedTime: 0,
	}))
}

func writeStopped(t *testing.T, store kvstore.Store, elapsedMs int64) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), kvstore.Local, map[string]any{
		timer.KeyIsRunning:   false,
		timer.KeyStartTime:   nil,
		timer.KeyElapsedTime: elapsedMs,
	}))
}

func newObserver(store kvstore.Store, clk clock.Clock, opts Options) *Observer {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	return New(store, clk, opts)
}

func runObserver(t *testing.T, o *Observer, events <-chan broadcast.Event) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx, events) //nolint:errcheck
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRefresh_ComputesLiveElapsedFromStore(t *testing.T) {
	store := newTestStore(t)
	writeRunning(t, store, now.Add(-5*time.Second))

	o := newObserver(store, clock.NewManual(now), Options{})
	v, err := o.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, v.IsRunning)
	assert.Equal(t, 5*time.Second, v.Elapsed)
}

func TestRefresh_StoppedUsesStoredElapsed(t *testing.T) {
	store := newTestStore(t)
	writeStopped(t, store, 42_000)

	o := newObserver(store, clock.NewManual(now), Options{})
	v, err := o.Refresh(context.Background())
	require.NoError(t, err)

	assert.False(t, v.IsRunning)
	assert.Equal(t, 42*time.Second, v.Elapsed)
}

func TestRun_PollsWhileRunningAndStopsWhenStopped(t *testing.T) {
	store := newTestStore(t)
	clk := clock.NewManual(now)
	writeRunning(t, store, now)

	o := newObserver(store, clk, Options{})
	runObserver(t, o, nil)

	assert.Eventually(t, o.Polling, time.Second, 5*time.Millisecond)

	clk.Advance(3 * time.Second)
	assert.Eventually(t, func() bool { return o.View().Elapsed == 3*time.Second }, time.Second, 5*time.Millisecond)

	writeStopped(t, store, 3000)
	assert.Eventually(t, func() bool { return !o.Polling() }, time.Second, 5*time.Millisecond)
	assert.False(t, o.View().IsRunning)
	assert.Equal(t, 3*time.Second, o.View().Elapsed)
}

func TestRun_StoppedTimerDoesNotPoll(t *testing.T) {
	store := newTestStore(t)
	writeStopped(t, store, 1000)

	o := newObserver(store, clock.NewManual(now), Options{})
	runObserver(t, o, nil)

	time.Sleep(30 * time.Millisecond)
	assert.False(t, o.Polling())
}

func TestRun_PushUpdateShowsImmediatelyAndArmsPolling(t *testing.T) {
	store := newTestStore(t)
	writeStopped(t, store, 0)

	var mu sync.Mutex
	var seen []View
	events := make(chan broadcast.Event, 1)
	// a long poll interval keeps the pushed value on screen for the assertion
	o := newObserver(store, clock.NewManual(now), Options{
		PollInterval: time.Hour,
		OnChange: func(v View) {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
		},
	})
	runObserver(t, o, events)

	events <- broadcast.TimerUpdate(7000)

	assert.Eventually(t, func() bool { return o.View().Elapsed == 7*time.Second }, time.Second, 5*time.Millisecond)
	assert.True(t, o.View().IsRunning)
	assert.True(t, o.Polling())

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, seen)
}

func TestRun_PushResetClearsState(t *testing.T) {
	store := newTestStore(t)
	writeRunning(t, store, now.Add(-time.Minute))

	events := make(chan broadcast.Event, 1)
	o := newObserver(store, clock.NewManual(now), Options{PollInterval: time.Hour})
	runObserver(t, o, events)
	assert.Eventually(t, o.Polling, time.Second, 5*time.Millisecond)

	events <- broadcast.TimerReset()

	assert.Eventually(t, func() bool { return !o.Polling() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, View{}, o.View())
}

func TestRun_StalePushIsCorrectedByNextPoll(t *testing.T) {
	store := newTestStore(t)
	clk := clock.NewManual(now)
	writeRunning(t, store, now.Add(-10*time.Second))

	events := make(chan broadcast.Event, 1)
	o := newObserver(store, clk, Options{})
	runObserver(t, o, events)

	events <- broadcast.TimerUpdate(1000)
	assert.Eventually(t, func() bool { return o.View().Elapsed == 10*time.Second }, time.Second, 5*time.Millisecond)
}

func TestRun_NotificationCallback(t *testing.T) {
	store := newTestStore(t)
	got := make(chan string, 1)
	events := make(chan broadcast.Event, 1)
	o := newObserver(store, clock.NewManual(now), Options{
		OnNotification: func(title, message string) { got <- title + ": " + message },
	})
	runObserver(t, o, events)

	events <- broadcast.Notification("Daily Work Tracker Reminder", "Time to start tracking your work for today!")

	select {
	case s := <-got:
		assert.Equal(t, "Daily Work Tracker Reminder: Time to start tracking your work for today!", s)
	case <-time.After(time.Second):
		t.Fatal("notification callback not called")
	}
}

func TestRun_ClosedEventsChannelFallsBackToPolling(t *testing.T) {
	store := newTestStore(t)
	clk := clock.NewManual(now)
	writeRunning(t, store, now)

	events := make(chan broadcast.Event)
	close(events)
	o := newObserver(store, clk, Options{})
	runObserver(t, o, events)

	clk.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return o.View().Elapsed == 2*time.Second }, time.Second, 5*time.Millisecond)
}

func TestRun_WakeRereadsStoreAndArmsPolling(t *testing.T) {
	store := newTestStore(t)
	clk := clock.NewManual(now)
	writeStopped(t, store, 0)

	wake := make(chan struct{}, 1)
	o := newObserver(store, clk, Options{Wake: wake})
	runObserver(t, o, nil)

	time.Sleep(20 * time.Millisecond)
	require.False(t, o.Polling())

	// another process starts the timer; no push arrives
	writeRunning(t, store, now.Add(-2*time.Second))
	wake <- struct{}{}

	assert.Eventually(t, o.Polling, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return o.View().Elapsed == 2*time.Second }, time.Second, 5*time.Millisecond)

	writeStopped(t, store, 2000)
	wake <- struct{}{}
	assert.Eventually(t, func() bool { return !o.Polling() }, time.Second, 5*time.Millisecond)
}
