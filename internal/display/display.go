// Package display renders durations, dates and times the way every surface
// shows them.
package display

import (
	"fmt"
	"time"
)

var dateLayouts = map[string]string{
	"MM/DD/YYYY": "01/02/2006",
	"DD/MM/YYYY": "02/01/2006",
	"YYYY-MM-DD": "2006-01-02",
}

var timeLayouts = map[string]string{
	"12h": "3:04 PM",
	"24h": "15:04",
}

// Clock renders d as HH:MM:SS. Hours grow past two digits when needed.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Duration renders d as "Xh Ym", truncating seconds.
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dh %dm", int64(d/time.Hour), int64((d%time.Hour)/time.Minute))
}

// Date renders t in one of MM/DD/YYYY, DD/MM/YYYY or YYYY-MM-DD. Unknown
// formats fall back to MM/DD/YYYY.
func Date(t time.Time, format string) string {
	layout, ok := dateLayouts[format]
	if !ok {
		layout = dateLayouts["MM/DD/YYYY"]
	}
	return t.Format(layout)
}

// Time renders t as "3:04 PM" for 12h; anything else uses 24-hour "15:04".
func Time(t time.Time, format string) string {
	layout, ok := timeLayouts[format]
	if !ok {
		layout = timeLayouts["24h"]
	}
	return t.Format(layout)
}

// Timestamp renders t as date and time separated by a space.
func Timestamp(t time.Time, dateFormat, timeFormat string) string {
	return Date(t, dateFormat) + " " + Time(t, timeFormat)
}
