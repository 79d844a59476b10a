package timer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/clock"
	"github.com/runnerr0/worktimer/internal/kvstore"
)

// ErrOwnerStopped is returned by commands sent after Run has returned.
var ErrOwnerStopped = errors.New("timer owner is not running")

// Publisher receives owner events.
type Publisher interface {
	Publish(e broadcast.Event) int
}

// Options configures an Owner.
type Options struct {
	TickInterval time.Duration
	Logger       *slog.Logger
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdReset
	cmdQuery
	cmdTick
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdReset:
		return "reset"
	case cmdQuery:
		return "query"
	case cmdTick:
		return "tick"
	}
	return "unknown"
}

type command struct {
	kind  commandKind
	reply chan State
}

// Owner is the single writer of the timer keys. All mutation happens on the
// goroutine running Run; callers talk to it through Start, Stop, Reset and
// Query.
type Owner struct {
	store    kvstore.Store
	clock    clock.Clock
	pub      Publisher
	interval time.Duration
	log      *slog.Logger

	cmds  chan command
	ready chan struct{}
	done  chan struct{}
}

// NewOwner creates an Owner. Run must be called before any command is served.
func NewOwner(store kvstore.Store, clk clock.Clock, pub Publisher, opts Options) *Owner {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Owner{
		store:    store,
		clock:    clk,
		pub:      pub,
		interval: opts.TickInterval,
		log:      opts.Logger.With("component", "timer"),
		cmds:     make(chan command),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Ready is closed once Run has loaded the stored state.
func (o *Owner) Ready() <-chan struct{} { return o.ready }

// Run loads the persisted state and serves commands until ctx is done. A
// timer that was running when the previous process exited resumes ticking
// immediately.
func (o *Owner) Run(ctx context.Context) error {
	defer close(o.done)

	st, err := LoadState(ctx, o.store)
	if err != nil {
		o.log.Warn("could not load timer state, starting stopped", "error", err)
		st = State{}
	}
	m := NewMachine(st.Snapshot())

	var ticker *time.Ticker
	var tickC <-chan time.Time
	rearm := func() {
		running := m.Snapshot().IsRunning
		switch {
		case running && ticker == nil:
			ticker = time.NewTicker(o.interval)
			tickC = ticker.C
		case !running && ticker != nil:
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	rearm()
	if m.Snapshot().IsRunning {
		o.log.Info("resuming running timer", "elapsed_ms", st.Elapsed(o.clock.Now()).Milliseconds())
	}
	close(o.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tickC:
			o.apply(ctx, m, cmdTick)
		case cmd := <-o.cmds:
			st := o.apply(ctx, m, cmd.kind)
			rearm()
			cmd.reply <- st
		}
	}
}

// apply runs one command against m, persisting and publishing as needed,
// and returns the resulting live view.
func (o *Owner) apply(ctx context.Context, m *Machine, kind commandKind) State {
	now := o.clock.Now()

	switch kind {
	case cmdStart:
		if m.Start(now) {
			o.persist(ctx, kind, StateOf(m.Snapshot()).values())
		}
	case cmdStop:
		if m.Stop(now) {
			o.persist(ctx, kind, StateOf(m.Snapshot()).values())
		}
	case cmdReset:
		m.Reset()
		o.persist(ctx, kind, StateOf(m.Snapshot()).values())
		o.publish(broadcast.TimerReset())
	case cmdTick:
		if m.Tick(now) {
			elapsed := m.Snapshot().Accumulated.Milliseconds()
			o.persist(ctx, kind, map[string]any{KeyElapsedTime: elapsed})
			o.publish(broadcast.TimerUpdate(elapsed))
		}
	case cmdQuery:
	}

	return StateOf(m.Query(now))
}

// persist writes values, retrying once. A second failure is logged and the
// in-memory state stays authoritative.
func (o *Owner) persist(ctx context.Context, kind commandKind, values map[string]any) {
	err := o.store.Set(ctx, kvstore.Local, values)
	if err == nil {
		return
	}
	o.log.Warn("persist timer state failed, retrying", "command", kind.String(), "error", err)
	if err := o.store.Set(ctx, kvstore.Local, values); err != nil {
		o.log.Error("persist timer state failed", "command", kind.String(), "error", err)
	}
}

func (o *Owner) publish(e broadcast.Event) {
	if o.pub == nil {
		return
	}
	o.pub.Publish(e)
}

func (o *Owner) do(ctx context.Context, kind commandKind) (State, error) {
	cmd := command{kind: kind, reply: make(chan State, 1)}
	select {
	case o.cmds <- cmd:
	case <-o.done:
		return State{}, ErrOwnerStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case st := <-cmd.reply:
		return st, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Start starts the timer. Starting a running timer is a no-op.
func (o *Owner) Start(ctx context.Context) (State, error) { return o.do(ctx, cmdStart) }

// Stop stops the timer. Stopping a stopped timer is a no-op.
func (o *Owner) Stop(ctx context.Context) (State, error) { return o.do(ctx, cmdStop) }

// Reset zeroes the timer and publishes exactly one timerReset event.
func (o *Owner) Reset(ctx context.Context) (State, error) { return o.do(ctx, cmdReset) }

// Query returns the current state with elapsed time recomputed live.
func (o *Owner) Query(ctx context.Context) (State, error) { return o.do(ctx, cmdQuery) }
