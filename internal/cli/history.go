package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/worktimer/internal/display"
	"github.com/runnerr0/worktimer/internal/history"
	"github.com/runnerr0/worktimer/internal/settings"
)

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	records, err := history.List(ctx, rt.store)
	if err != nil {
		return err
	}
	if c.Limit > 0 && len(records) > c.Limit {
		records = records[:c.Limit]
	}

	if wantJSON(c.globals) {
		if records == nil {
			records = []history.Record{}
		}
		return printJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	s, err := settings.Load(ctx, rt.store)
	if err != nil {
		return err
	}
	for i, r := range records {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s  (%s)\n", display.Timestamp(r.Time().In(rt.location()), s.DateFormat, s.TimeFormat), display.Duration(r.Elapsed()))
		fmt.Println(r.Summary)
	}
	return nil
}
