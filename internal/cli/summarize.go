package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/runnerr0/worktimer/internal/display"
	"github.com/runnerr0/worktimer/internal/history"
	"github.com/runnerr0/worktimer/internal/settings"
	"github.com/runnerr0/worktimer/internal/summary"
)

var (
	errNoNotes        = errors.New("Please add some notes before generating a summary.")
	errInvalidSummary = errors.New("Invalid summary text in response")
)

type summarizeJSON struct {
	Summary string         `json:"summary"`
	Record  history.Record `json:"record"`
}

// Execute implements the go-flags Commander interface for SummarizeCommand.
func (c *SummarizeCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	notes, err := settings.Notes(ctx, rt.store)
	if err != nil {
		return err
	}
	if notes == "" {
		return errNoNotes
	}
	s, err := settings.Load(ctx, rt.store)
	if err != nil {
		return err
	}
	if s.GeminiAPIKey == "" {
		return summary.ErrMissingAPIKey
	}
	task, err := settings.Task(ctx, rt.store)
	if err != nil {
		return err
	}

	st, err := rt.daemon.TimerState(ctx)
	if err != nil {
		return err
	}
	now := rt.clock.Now()
	elapsed := st.Elapsed(now)

	if !wantJSON(c.globals) {
		fmt.Println("Generating...")
	}
	text, err := rt.daemon.GenerateSummary(ctx, notes, display.Duration(elapsed), s.GeminiAPIKey, task, strings.Join(c.Tabs, ", "))
	if err != nil {
		return fmt.Errorf("Error generating summary: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("Error generating summary: %w", errInvalidSummary)
	}

	rec := history.NewRecord(now, elapsed, notes, text)
	if _, err := history.Append(ctx, rt.store, rec); err != nil {
		// the summary itself succeeded; losing the history entry is not fatal
		rt.log.Warn("saving history failed", "error", err)
	}

	if wantJSON(c.globals) {
		return printJSON(summarizeJSON{Summary: text, Record: rec})
	}
	fmt.Println()
	fmt.Println(text)
	return nil
}
