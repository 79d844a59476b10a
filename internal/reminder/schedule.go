// Package reminder computes when calendar reminders fire next and keeps
// their alarms registered.
package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Repeat periods for the two reminder kinds.
const (
	WeeklyPeriod = 7 * 24 * time.Hour
	DailyPeriod  = 24 * time.Hour
)

// TimeOfDay is an "HH:MM" wall-clock time.
type TimeOfDay struct {
	Hour, Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// on returns the instant at t on the calendar day of day, in day's location.
func (t TimeOfDay) on(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// ParseWeekday parses "0" (Sunday) through "6" (Saturday).
func ParseWeekday(s string) (time.Weekday, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid day of week %q: want 0-6", s)
	}
	return time.Weekday(n), nil
}

// DaysUntil returns (target - current + 7) mod 7.
func DaysUntil(current, target time.Weekday) int {
	return (int(target) - int(current) + 7) % 7
}

// NextWeekly returns the next occurrence of day at tod. When today is the
// target day and tod has already passed, the reminder moves a full week
// ahead; at exactly tod it fires today.
func NextWeekly(now time.Time, day time.Weekday, tod TimeOfDay) time.Time {
	days := DaysUntil(now.Weekday(), day)
	if days == 0 && now.After(tod.on(now)) {
		days = 7
	}
	y, m, d := now.Date()
	return tod.on(time.Date(y, m, d+days, 0, 0, 0, 0, now.Location()))
}

// NextDaily returns today's tod, or tomorrow's when now is already past it.
func NextDaily(now time.Time, tod TimeOfDay) time.Time {
	next := tod.on(now)
	if now.After(next) {
		y, m, d := now.Date()
		next = tod.on(time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()))
	}
	return next
}
