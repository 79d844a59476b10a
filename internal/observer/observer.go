// Package observer keeps a read-only projection of the timer for a UI
// surface. It combines pushed events with a once-per-interval re-read of the
// store while it believes the timer is running.
package observer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/clock"
	"github.com/runnerr0/worktimer/internal/kvstore"
	"github.com/runnerr0/worktimer/internal/timer"
)

// View is what a surface displays.
type View struct {
	IsRunning bool
	Elapsed   time.Duration
}

// Options configures an Observer.
type Options struct {
	PollInterval time.Duration
	Logger       *slog.Logger
	// OnChange is called from the Run goroutine after every refresh or push.
	OnChange func(View)
	// OnNotification is called for pushed notification events.
	OnNotification func(title, message string)
	// Wake, when set, signals that the store may have changed outside this
	// process. Each signal triggers an immediate re-read.
	Wake <-chan struct{}
}

// Observer never writes to the store.
type Observer struct {
	store    kvstore.Store
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger
	onChange func(View)
	onNotify func(title, message string)
	wake     <-chan struct{}

	mu      sync.Mutex
	view    View
	polling bool
}

// New creates an Observer reading from store.
func New(store kvstore.Store, clk clock.Clock, opts Options) *Observer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Observer{
		store:    store,
		clock:    clk,
		interval: opts.PollInterval,
		log:      opts.Logger.With("component", "observer"),
		onChange: opts.OnChange,
		onNotify: opts.OnNotification,
		wake:     opts.Wake,
	}
}

// View returns the current projection.
func (o *Observer) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

// Polling reports whether the poll loop is armed.
func (o *Observer) Polling() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.polling
}

// Refresh re-reads the store, which is the source of truth, and recomputes
// the displayed elapsed time.
func (o *Observer) Refresh(ctx context.Context) (View, error) {
	st, err := timer.LoadState(ctx, o.store)
	if err != nil {
		return o.View(), err
	}
	v := View{IsRunning: st.IsRunning, Elapsed: st.Elapsed(o.clock.Now())}
	o.set(v)
	return v, nil
}

func (o *Observer) set(v View) {
	o.mu.Lock()
	o.view = v
	o.mu.Unlock()
	if o.onChange != nil {
		o.onChange(v)
	}
}

func (o *Observer) setPolling(p bool) {
	o.mu.Lock()
	o.polling = p
	o.mu.Unlock()
}

// Run initializes from the store, then reacts to events and poll ticks until
// ctx is done. A nil or closed events channel leaves polling as the only
// source of updates.
func (o *Observer) Run(ctx context.Context, events <-chan broadcast.Event) error {
	var ticker *time.Ticker
	var pollC <-chan time.Time
	arm := func() {
		if ticker == nil {
			ticker = time.NewTicker(o.interval)
			pollC = ticker.C
			o.setPolling(true)
		}
	}
	disarm := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, pollC = nil, nil
			o.setPolling(false)
		}
	}
	defer disarm()

	v, err := o.Refresh(ctx)
	if err != nil {
		o.log.Warn("initial store read failed", "error", err)
	}
	if v.IsRunning {
		arm()
	}

	wake := o.wake
	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			v, err := o.Refresh(ctx)
			if err != nil {
				o.log.Warn("refresh on wake failed", "error", err)
				continue
			}
			if v.IsRunning {
				arm()
			} else {
				disarm()
			}

		case <-pollC:
			v, err := o.Refresh(ctx)
			if err != nil {
				o.log.Warn("poll failed", "error", err)
				continue
			}
			if !v.IsRunning {
				disarm()
			}

		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch e.Action {
			case broadcast.ActionTimerUpdate:
				// the push may land before the store reflects it
				o.set(View{IsRunning: true, Elapsed: time.Duration(e.ElapsedTime) * time.Millisecond})
				arm()
			case broadcast.ActionTimerReset:
				o.set(View{})
				disarm()
			case broadcast.ActionNotification:
				if o.onNotify != nil {
					o.onNotify(e.Title, e.Message)
				}
			default:
				o.log.Debug("ignoring event", "action", e.Action)
			}
		}
	}
}
