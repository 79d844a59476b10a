package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/runnerr0/worktimer/internal/display"
	"github.com/runnerr0/worktimer/internal/settings"
	"github.com/runnerr0/worktimer/internal/timer"
)

var errNoTask = errors.New("Please enter your task before starting the timer.")

const resetPrompt = "Are you sure you want to reset the timer? This will clear the current time."

// Execute implements the go-flags Commander interface for StartCommand.
func (c *StartCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	if task := strings.TrimSpace(c.Task); task != "" {
		if err := settings.SetTask(ctx, rt.store, task); err != nil {
			return err
		}
	}
	task, err := settings.Task(ctx, rt.store)
	if err != nil {
		return err
	}
	if strings.TrimSpace(task) == "" {
		return errNoTask
	}

	if err := rt.daemon.StartTimer(ctx); err != nil {
		return err
	}
	return reportState(ctx, rt, c.globals, "Timer started", task)
}

// Execute implements the go-flags Commander interface for StopCommand.
func (c *StopCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	if err := rt.daemon.StopTimer(ctx); err != nil {
		return err
	}
	task, err := settings.Task(ctx, rt.store)
	if err != nil {
		return err
	}
	return reportState(ctx, rt, c.globals, "Timer stopped", task)
}

// Execute implements the go-flags Commander interface for ResetCommand.
func (c *ResetCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	if !c.Yes {
		ok, err := confirm(rt.in, resetPrompt)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	if err := rt.daemon.ResetTimer(ctx); err != nil {
		return err
	}
	return reportState(ctx, rt, c.globals, "Timer reset", "")
}

// reportState prints the daemon's view of the timer after a command.
func reportState(ctx context.Context, rt *runtime, globals *GlobalFlags, what, task string) error {
	st, err := rt.daemon.TimerState(ctx)
	if err != nil {
		return err
	}
	if wantJSON(globals) {
		return printJSON(st)
	}
	elapsed := display.Clock(st.Elapsed(rt.clock.Now()))
	if task != "" {
		fmt.Printf("%s: %s (%s)\n", what, task, elapsed)
	} else {
		fmt.Printf("%s (%s)\n", what, elapsed)
	}
	return nil
}

// localState reads the timer straight from the store, for when the daemon
// is not reachable.
func localState(ctx context.Context, rt *runtime) (timer.State, error) {
	return timer.LoadState(ctx, rt.store)
}
