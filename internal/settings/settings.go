// Package settings holds the user configuration kept in the sync scope and
// the small pieces of session state (task, notes) kept in the local scope.
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/runnerr0/worktimer/internal/kvstore"
	"github.com/runnerr0/worktimer/internal/reminder"
)

// Sync-scope keys.
const (
	KeyDateFormat           = "dateFormat"
	KeyTimeFormat           = "timeFormat"
	KeyWeekStart            = "weekStart"
	KeyReminderTime         = "reminderTime"
	KeyDailyReminderEnabled = "dailyReminderEnabled"
	KeyDailyReminderTime    = "dailyReminderTime"
	KeyGeminiAPIKey         = "geminiApiKey"
)

// Supported display formats.
var (
	DateFormats = []string{"MM/DD/YYYY", "DD/MM/YYYY", "YYYY-MM-DD"}
	TimeFormats = []string{"12h", "24h"}
)

// Settings is the sync-scope configuration.
type Settings struct {
	DateFormat           string `json:"dateFormat" yaml:"dateFormat"`
	TimeFormat           string `json:"timeFormat" yaml:"timeFormat"`
	WeekStart            string `json:"weekStart" yaml:"weekStart"`
	ReminderTime         string `json:"reminderTime" yaml:"reminderTime"`
	DailyReminderEnabled bool   `json:"dailyReminderEnabled" yaml:"dailyReminderEnabled"`
	DailyReminderTime    string `json:"dailyReminderTime" yaml:"dailyReminderTime"`
	GeminiAPIKey         string `json:"geminiApiKey" yaml:"geminiApiKey"`
}

// Defaults returns the settings a fresh install starts with.
func Defaults() Settings {
	return Settings{
		DateFormat:           "MM/DD/YYYY",
		TimeFormat:           "12h",
		WeekStart:            "1",
		ReminderTime:         "17:00",
		DailyReminderEnabled: false,
		DailyReminderTime:    "09:00",
	}
}

// Reminder converts s to the scheduler's settings.
func (s Settings) Reminder() reminder.Settings {
	return reminder.Settings{
		WeeklyReminderTime:   s.ReminderTime,
		WeekStartDay:         s.WeekStart,
		DailyReminderEnabled: s.DailyReminderEnabled,
		DailyReminderTime:    s.DailyReminderTime,
	}
}

// Validate checks formats and reminder times.
func (s Settings) Validate() error {
	if !contains(DateFormats, s.DateFormat) {
		return fmt.Errorf("unsupported date format %q", s.DateFormat)
	}
	if !contains(TimeFormats, s.TimeFormat) {
		return fmt.Errorf("unsupported time format %q", s.TimeFormat)
	}
	return s.Reminder().Validate()
}

// Redacted returns a copy with the API key masked for display.
func (s Settings) Redacted() Settings {
	if s.GeminiAPIKey != "" {
		s.GeminiAPIKey = "********"
	}
	return s
}

func (s Settings) values() map[string]any {
	return map[string]any{
		KeyDateFormat:           s.DateFormat,
		KeyTimeFormat:           s.TimeFormat,
		KeyWeekStart:            s.WeekStart,
		KeyReminderTime:         s.ReminderTime,
		KeyDailyReminderEnabled: s.DailyReminderEnabled,
		KeyDailyReminderTime:    s.DailyReminderTime,
		KeyGeminiAPIKey:         s.GeminiAPIKey,
	}
}

// Load reads the sync scope over Defaults; keys never written keep their
// default value.
func Load(ctx context.Context, store kvstore.Store) (Settings, error) {
	raw, err := store.Get(ctx, kvstore.Sync)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	// stored keys overlay the defaults
	data, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Save validates s and writes every key in one transaction.
func Save(ctx context.Context, store kvstore.Store, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := store.Set(ctx, kvstore.Sync, s.values()); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
