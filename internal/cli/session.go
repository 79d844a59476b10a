package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/worktimer/internal/settings"
)

// Execute implements the go-flags Commander interface for TaskCommand.
func (c *TaskCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	if len(args) > 0 {
		task := strings.TrimSpace(strings.Join(args, " "))
		if err := settings.SetTask(ctx, rt.store, task); err != nil {
			return err
		}
		if wantJSON(c.globals) {
			return printJSON(map[string]string{"task": task})
		}
		fmt.Printf("Task set: %s\n", task)
		return nil
	}

	task, err := settings.Task(ctx, rt.store)
	if err != nil {
		return err
	}
	if wantJSON(c.globals) {
		return printJSON(map[string]string{"task": task})
	}
	if task == "" {
		fmt.Println("No task set.")
		return nil
	}
	fmt.Println(task)
	return nil
}

// Execute implements the go-flags Commander interface for NotesCommand.
func (c *NotesCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	if c.Clear {
		if err := settings.ClearNotes(ctx, rt.store); err != nil {
			return err
		}
		fmt.Println("Notes cleared.")
		return nil
	}

	text, given, err := c.input(rt, args)
	if err != nil {
		return err
	}
	if !given {
		notes, err := settings.Notes(ctx, rt.store)
		if err != nil {
			return err
		}
		if wantJSON(c.globals) {
			return printJSON(map[string]string{"notes": notes})
		}
		fmt.Println(notes)
		return nil
	}

	if c.Append {
		existing, err := settings.Notes(ctx, rt.store)
		if err != nil {
			return err
		}
		if existing != "" {
			text = existing + "\n" + text
		}
	}
	if err := settings.SetNotes(ctx, rt.store, text); err != nil {
		return err
	}
	fmt.Printf("Notes saved (%d characters).\n", len(text))
	return nil
}

// input returns the new notes text from --file or the arguments.
func (c *NotesCommand) input(rt *runtime, args []string) (string, bool, error) {
	switch {
	case c.File == "-":
		data, err := io.ReadAll(rt.in)
		if err != nil {
			return "", false, fmt.Errorf("read notes from stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), true, nil
	case c.File != "":
		data, err := os.ReadFile(c.File)
		if err != nil {
			return "", false, fmt.Errorf("read notes file: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), true, nil
	case len(args) > 0:
		return strings.Join(args, " "), true, nil
	}
	return "", false, nil
}
