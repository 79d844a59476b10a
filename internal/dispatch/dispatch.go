// Package dispatch is the command interface of the canonical owner. UI
// surfaces send a Message; Handle routes it and returns the reply body.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/runnerr0/worktimer/internal/reminder"
	"github.com/runnerr0/worktimer/internal/summary"
	"github.com/runnerr0/worktimer/internal/timer"
)

// Actions.
const (
	ActionStartTimer             = "startTimer"
	ActionStopTimer              = "stopTimer"
	ActionResetTimer             = "resetTimer"
	ActionGetTimerState          = "getTimerState"
	ActionUpdateReminderSettings = "updateReminderSettings"
	ActionGenerateSummary        = "generateSummary"
)

var (
	// ErrUnknownAction is returned for an action no handler serves.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidMessage is returned when a known action lacks a field it needs.
	ErrInvalidMessage = errors.New("invalid message")
)

// SummaryError carries a summary failure across the message boundary. Its
// text is the underlying error's text, unchanged.
type SummaryError struct {
	Err error
}

func (e *SummaryError) Error() string { return e.Err.Error() }
func (e *SummaryError) Unwrap() error { return e.Err }

// Message is one command. Only the fields its action uses are read.
type Message struct {
	Action   string             `json:"action"`
	Settings *reminder.Settings `json:"settings,omitempty"`
	Notes    string             `json:"notes,omitempty"`
	Duration string             `json:"duration,omitempty"`
	APIKey   string             `json:"apiKey,omitempty"`
	Task     string             `json:"task,omitempty"`
	Tabs     string             `json:"tabs,omitempty"`
}

// Ack acknowledges a command that returns no data.
type Ack struct {
	Success bool `json:"success"`
}

// SummaryResult is the reply to generateSummary.
type SummaryResult struct {
	Summary string `json:"summary"`
}

// Timer is the canonical owner's command surface.
type Timer interface {
	Start(ctx context.Context) (timer.State, error)
	Stop(ctx context.Context) (timer.State, error)
	Reset(ctx context.Context) (timer.State, error)
	Query(ctx context.Context) (timer.State, error)
}

// Reminders re-registers reminder alarms.
type Reminders interface {
	Apply(ctx context.Context, s reminder.Settings) error
}

// Summarizer produces session summaries.
type Summarizer interface {
	Summarize(ctx context.Context, apiKey string, req summary.Request) (string, error)
}

// Auditor records handled commands.
type Auditor interface {
	Record(ctx context.Context, action, detail string) error
}

// Options configures a Dispatcher.
type Options struct {
	Audit  Auditor
	Logger *slog.Logger
}

// Dispatcher routes messages to the owner, the scheduler and the summarizer.
type Dispatcher struct {
	timer      Timer
	reminders  Reminders
	summarizer Summarizer
	audit      Auditor
	log        *slog.Logger
}

// New creates a Dispatcher.
func New(t Timer, r Reminders, s Summarizer, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		timer:      t,
		reminders:  r,
		summarizer: s,
		audit:      opts.Audit,
		log:        opts.Logger.With("component", "dispatch"),
	}
}

// Handle executes msg. The reply is Ack, timer.State or SummaryResult.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (any, error) {
	reply, detail, err := d.route(ctx, msg)
	if err != nil {
		d.log.Warn("command failed", "action", msg.Action, "error", err)
		d.record(ctx, msg.Action, "error: "+err.Error())
		return nil, err
	}
	d.log.Debug("command handled", "action", msg.Action)
	d.record(ctx, msg.Action, detail)
	return reply, nil
}

func (d *Dispatcher) route(ctx context.Context, msg Message) (any, string, error) {
	switch msg.Action {
	case ActionStartTimer:
		st, err := d.timer.Start(ctx)
		if err != nil {
			return nil, "", err
		}
		return Ack{Success: true}, stateDetail(st), nil

	case ActionStopTimer:
		st, err := d.timer.Stop(ctx)
		if err != nil {
			return nil, "", err
		}
		return Ack{Success: true}, stateDetail(st), nil

	case ActionResetTimer:
		if _, err := d.timer.Reset(ctx); err != nil {
			return nil, "", err
		}
		return Ack{Success: true}, "", nil

	case ActionGetTimerState:
		st, err := d.timer.Query(ctx)
		if err != nil {
			return nil, "", err
		}
		return st, "", nil

	case ActionUpdateReminderSettings:
		if msg.Settings == nil {
			return nil, "", fmt.Errorf("%w: settings are required", ErrInvalidMessage)
		}
		if err := msg.Settings.Validate(); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if err := d.reminders.Apply(ctx, *msg.Settings); err != nil {
			return nil, "", err
		}
		return Ack{Success: true}, fmt.Sprintf("weekly=%s@%s daily=%t@%s",
			msg.Settings.WeekStartDay, msg.Settings.WeeklyReminderTime,
			msg.Settings.DailyReminderEnabled, msg.Settings.DailyReminderTime), nil

	case ActionGenerateSummary:
		text, err := d.summarizer.Summarize(ctx, msg.APIKey, summary.Request{
			Notes:    msg.Notes,
			Duration: msg.Duration,
			TaskID:   msg.Task,
			Tabs:     msg.Tabs,
		})
		if err != nil {
			return nil, "", &SummaryError{Err: err}
		}
		return SummaryResult{Summary: text}, "task=" + msg.Task, nil
	}

	return nil, "", fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
}

func (d *Dispatcher) record(ctx context.Context, action, detail string) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Record(ctx, action, detail); err != nil {
		d.log.Warn("audit record failed", "action", action, "error", err)
	}
}

func stateDetail(st timer.State) string {
	return fmt.Sprintf("running=%t elapsed_ms=%d", st.IsRunning, st.ElapsedTime)
}
