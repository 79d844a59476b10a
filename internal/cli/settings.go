package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/worktimer/internal/client"
	"github.com/runnerr0/worktimer/internal/settings"
)

// Execute implements the go-flags Commander interface for SettingsCommand.
func (c *SettingsCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()

	s, err := settings.Load(context.Background(), rt.store)
	if err != nil {
		return err
	}
	if !c.ShowKey {
		s = s.Redacted()
	}
	return printSettings(c.globals, s)
}

func printSettings(globals *GlobalFlags, s settings.Settings) error {
	if wantJSON(globals) {
		return printJSON(s)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}

// Execute implements the go-flags Commander interface for SettingsSetCommand.
func (c *SettingsSetCommand) Execute(args []string) error {
	if c.DailyReminder && c.NoDailyReminder {
		return fmt.Errorf("--daily-reminder and --no-daily-reminder are mutually exclusive")
	}

	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()
	ctx := context.Background()

	s, err := settings.Load(ctx, rt.store)
	if err != nil {
		return err
	}
	c.apply(&s)

	if err := settings.Save(ctx, rt.store, s); err != nil {
		return fmt.Errorf("Error saving settings: %w", err)
	}

	// a stopped daemon picks the settings up from the store when it starts
	rescheduled := true
	if err := rt.daemon.UpdateReminderSettings(ctx, s.Reminder()); err != nil {
		if !errors.Is(err, client.ErrDaemonUnavailable) {
			return fmt.Errorf("Error saving settings: %w", err)
		}
		rescheduled = false
	}

	if wantJSON(c.globals) {
		return printJSON(map[string]any{"saved": true, "rescheduled": rescheduled, "settings": s.Redacted()})
	}
	fmt.Println("Settings saved successfully!")
	if !rescheduled {
		fmt.Println("Daemon not running; reminders will be scheduled when it starts.")
	}
	return nil
}

func (c *SettingsSetCommand) apply(s *settings.Settings) {
	if c.DateFormat != "" {
		s.DateFormat = c.DateFormat
	}
	if c.TimeFormat != "" {
		s.TimeFormat = c.TimeFormat
	}
	if c.WeekStart != "" {
		s.WeekStart = c.WeekStart
	}
	if c.ReminderTime != "" {
		s.ReminderTime = c.ReminderTime
	}
	if c.DailyReminder {
		s.DailyReminderEnabled = true
	}
	if c.NoDailyReminder {
		s.DailyReminderEnabled = false
	}
	if c.DailyReminderTime != "" {
		s.DailyReminderTime = c.DailyReminderTime
	}
	if c.APIKey != "" {
		s.GeminiAPIKey = c.APIKey
	}
}
