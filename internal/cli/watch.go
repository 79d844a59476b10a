package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/display"
	"github.com/runnerr0/worktimer/internal/observer"
)

// Execute implements the go-flags Commander interface for WatchCommand.
func (c *WatchCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.watch(ctx, rt)
}

type watchLine struct {
	IsRunning   bool   `json:"isRunning"`
	ElapsedTime int64  `json:"elapsedTime"`
	Display     string `json:"display"`
}

// watch follows the timer until ctx is done. Pushed events come from the
// daemon when reachable; the store file watcher catches changes made while
// nothing is polling.
func (c *WatchCommand) watch(ctx context.Context, rt *runtime) error {
	var events <-chan broadcast.Event
	if !c.NoPush {
		ch, err := rt.daemon.Events(ctx)
		if err != nil {
			rt.log.Warn("event stream unavailable, polling the store only", "error", err)
		} else {
			events = ch
		}
	}

	var wake <-chan struct{}
	if rt.dbPath != "" {
		ch, err := watchStoreFile(ctx, rt.dbPath, rt.log)
		if err != nil {
			rt.log.Warn("store file watch unavailable", "error", err)
		} else {
			wake = ch
		}
	}

	asJSON := wantJSON(c.globals)
	enc := json.NewEncoder(os.Stdout)
	last := ""

	var pollInterval time.Duration
	if rt.cfg != nil {
		pollInterval = rt.cfg.Observer.PollInterval
	}
	obs := observer.New(rt.store, rt.clock, observer.Options{
		PollInterval: pollInterval,
		Logger:       rt.log,
		Wake:         wake,
		OnChange: func(v observer.View) {
			text := display.Clock(v.Elapsed)
			if v.IsRunning {
				text += " running"
			} else {
				text += " stopped"
			}
			if text == last {
				return
			}
			last = text
			if asJSON {
				enc.Encode(watchLine{IsRunning: v.IsRunning, ElapsedTime: v.Elapsed.Milliseconds(), Display: display.Clock(v.Elapsed)}) //nolint:errcheck
				return
			}
			fmt.Println(text)
		},
		OnNotification: func(title, message string) {
			if asJSON {
				enc.Encode(broadcast.Notification(title, message)) //nolint:errcheck
				return
			}
			fmt.Printf("\n%s\n  %s\n\n", title, message)
		},
	})
	return obs.Run(ctx, events)
}
