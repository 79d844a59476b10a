package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/worktimer/internal/alarm"
	"github.com/runnerr0/worktimer/internal/clock"
	"github.com/runnerr0/worktimer/internal/notify"
)

// Alarm names.
const (
	WeeklyAlarm = "weeklyReminder"
	DailyAlarm  = "dailyReminder"
)

// Settings is the reminder configuration carried by updateReminderSettings.
type Settings struct {
	WeeklyReminderTime   string `json:"weeklyReminderTime"`
	WeekStartDay         string `json:"weekStartDay"`
	DailyReminderEnabled bool   `json:"dailyReminderEnabled"`
	DailyReminderTime    string `json:"dailyReminderTime"`
}

// UnmarshalJSON also accepts the stored settings key names reminderTime and
// weekStart.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	var aux struct {
		plain
		ReminderTime string `json:"reminderTime"`
		WeekStart    string `json:"weekStart"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Settings(aux.plain)
	if s.WeeklyReminderTime == "" {
		s.WeeklyReminderTime = aux.ReminderTime
	}
	if s.WeekStartDay == "" {
		s.WeekStartDay = aux.WeekStart
	}
	return nil
}

type plan struct {
	weeklyDay  time.Weekday
	weeklyTime TimeOfDay
	daily      *TimeOfDay
}

func (s Settings) plan() (plan, error) {
	var p plan
	var err error
	if p.weeklyDay, err = ParseWeekday(s.WeekStartDay); err != nil {
		return plan{}, err
	}
	if p.weeklyTime, err = ParseTimeOfDay(s.WeeklyReminderTime); err != nil {
		return plan{}, fmt.Errorf("weekly reminder: %w", err)
	}
	if s.DailyReminderEnabled {
		tod, err := ParseTimeOfDay(s.DailyReminderTime)
		if err != nil {
			return plan{}, fmt.Errorf("daily reminder: %w", err)
		}
		p.daily = &tod
	}
	return p, nil
}

// Validate reports whether the settings can be scheduled.
func (s Settings) Validate() error {
	_, err := s.plan()
	return err
}

// Alarms is the part of the alarm facility the scheduler needs.
type Alarms interface {
	Create(ctx context.Context, name string, when time.Time, period time.Duration) error
	Clear(ctx context.Context, name string) (bool, error)
}

// Scheduler registers reminder alarms and turns fired ones into
// notifications.
type Scheduler struct {
	alarms   Alarms
	clock    clock.Clock
	notifier notify.Notifier
	log      *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(alarms Alarms, clk clock.Clock, notifier notify.Notifier, logger *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{alarms: alarms, clock: clk, notifier: notifier, log: logger.With("component", "reminder")}
}

// Apply replaces the reminder alarms with ones computed from settings.
// Invalid settings leave the existing alarms untouched. Both alarms are
// cleared before either is created.
func (s *Scheduler) Apply(ctx context.Context, settings Settings) error {
	p, err := settings.plan()
	if err != nil {
		return err
	}

	for _, name := range []string{WeeklyAlarm, DailyAlarm} {
		if _, err := s.alarms.Clear(ctx, name); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}

	now := s.clock.Now()
	weekly := NextWeekly(now, p.weeklyDay, p.weeklyTime)
	if err := s.alarms.Create(ctx, WeeklyAlarm, weekly, WeeklyPeriod); err != nil {
		return fmt.Errorf("create %s: %w", WeeklyAlarm, err)
	}
	s.log.Info("weekly reminder scheduled", "at", weekly)

	if p.daily != nil {
		daily := NextDaily(now, *p.daily)
		if err := s.alarms.Create(ctx, DailyAlarm, daily, DailyPeriod); err != nil {
			return fmt.Errorf("create %s: %w", DailyAlarm, err)
		}
		s.log.Info("daily reminder scheduled", "at", daily)
	}
	return nil
}

// NotificationFor returns the notification shown when the named alarm fires.
func NotificationFor(name string) (notify.Notification, bool) {
	switch name {
	case WeeklyAlarm:
		return notify.Notification{
			Title:    "Weekly Timesheet Reminder",
			Message:  "Don't forget to fill in your timesheet for this week.",
			Priority: notify.PriorityHigh,
		}, true
	case DailyAlarm:
		return notify.Notification{
			Title:    "Daily Work Tracker Reminder",
			Message:  "Time to start tracking your work for today!",
			Priority: notify.PriorityHigh,
		}, true
	}
	return notify.Notification{}, false
}

// HandleAlarm is an alarm.Handler. Alarms that are not reminders are ignored.
func (s *Scheduler) HandleAlarm(ctx context.Context, a alarm.Alarm) {
	n, ok := NotificationFor(a.Name)
	if !ok || s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("deliver reminder", "alarm", a.Name, "error", err)
	}
}
