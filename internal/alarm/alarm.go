// Package alarm is a small persistent alarm facility: named alarms with an
// optional repeat period, stored in SQLite and fired by in-process timers.
package alarm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runnerr0/worktimer/internal/clock"
)

// Alarm is one registration. A zero Period means the alarm fires once.
type Alarm struct {
	Name        string
	ScheduledAt time.Time
	Period      time.Duration
}

// Handler is called on its own goroutine each time an alarm fires.
type Handler func(ctx context.Context, a Alarm)

// Options configures a Manager.
type Options struct {
	Logger *slog.Logger
}

// Manager owns the alarms table and the in-process timers that fire it.
type Manager struct {
	db    *sql.DB
	clock clock.Clock
	log   *slog.Logger

	mu      sync.Mutex
	handler Handler
	timers  map[string]*scheduled
	gen     uint64
	ctx     context.Context
	started bool
}

type scheduled struct {
	timer *time.Timer
	gen   uint64
}

// NewManager creates a Manager over a migrated database.
func NewManager(db *sql.DB, clk clock.Clock, opts Options) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		db:     db,
		clock:  clk,
		log:    opts.Logger.With("component", "alarm"),
		timers: make(map[string]*scheduled),
		ctx:    context.Background(),
	}
}

// OnAlarm sets the handler for fired alarms.
func (m *Manager) OnAlarm(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Start restores persisted alarms and arms their timers. Recurring alarms
// whose fire time has passed move forward by whole periods; one-shot alarms
// in the past fire once, immediately. Timers stop when ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	alarms, err := m.List(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.ctx = ctx
	m.started = true
	m.mu.Unlock()

	now := m.clock.Now()
	for _, a := range alarms {
		if a.Period > 0 && !a.ScheduledAt.After(now) {
			a.ScheduledAt = nextOccurrence(a.ScheduledAt, a.Period, now)
			if err := m.save(ctx, a); err != nil {
				return err
			}
		}
		m.arm(a)
	}
	m.log.Info("alarms restored", "count", len(alarms))

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop disarms every timer. Persisted alarms are kept.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, s := range m.timers {
		s.timer.Stop()
		delete(m.timers, name)
	}
	m.started = false
}

// Create registers an alarm, replacing any alarm with the same name.
func (m *Manager) Create(ctx context.Context, name string, when time.Time, period time.Duration) error {
	if name == "" {
		return errors.New("alarm name is required")
	}
	if period < 0 {
		return fmt.Errorf("alarm %s: negative period", name)
	}
	a := Alarm{Name: name, ScheduledAt: when, Period: period}
	if err := m.save(ctx, a); err != nil {
		return err
	}
	m.arm(a)
	m.log.Debug("alarm created", "name", name, "when", when, "period", period)
	return nil
}

// Clear removes the named alarm and reports whether it existed.
func (m *Manager) Clear(ctx context.Context, name string) (bool, error) {
	m.disarm(name)
	res, err := m.db.ExecContext(ctx, "DELETE FROM alarms WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("clear alarm %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Get returns the named alarm.
func (m *Manager) Get(ctx context.Context, name string) (Alarm, bool, error) {
	var a Alarm
	var at, period int64
	err := m.db.QueryRowContext(ctx,
		"SELECT name, scheduled_at, period_ms FROM alarms WHERE name = ?", name,
	).Scan(&a.Name, &at, &period)
	if err == sql.ErrNoRows {
		return Alarm{}, false, nil
	}
	if err != nil {
		return Alarm{}, false, fmt.Errorf("get alarm %s: %w", name, err)
	}
	a.ScheduledAt = time.UnixMilli(at)
	a.Period = time.Duration(period) * time.Millisecond
	return a, true, nil
}

// List returns all alarms ordered by next fire time.
func (m *Manager) List(ctx context.Context) ([]Alarm, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT name, scheduled_at, period_ms FROM alarms ORDER BY scheduled_at, name",
	)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	defer rows.Close()

	alarms := []Alarm{}
	for rows.Next() {
		var a Alarm
		var at, period int64
		if err := rows.Scan(&a.Name, &at, &period); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		a.ScheduledAt = time.UnixMilli(at)
		a.Period = time.Duration(period) * time.Millisecond
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}

func (m *Manager) save(ctx context.Context, a Alarm) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO alarms (name, scheduled_at, period_ms) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET scheduled_at = excluded.scheduled_at, period_ms = excluded.period_ms
	`, a.Name, a.ScheduledAt.UnixMilli(), a.Period.Milliseconds())
	if err != nil {
		return fmt.Errorf("save alarm %s: %w", a.Name, err)
	}
	return nil
}

// arm (re)starts the in-process timer for a, if the manager is started.
func (m *Manager) arm(a Alarm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armLocked(a)
}

func (m *Manager) armLocked(a Alarm) {
	if !m.started {
		return
	}
	if s, ok := m.timers[a.Name]; ok {
		s.timer.Stop()
	}

	m.gen++
	gen := m.gen
	delay := a.ScheduledAt.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	m.timers[a.Name] = &scheduled{
		gen:   gen,
		timer: time.AfterFunc(delay, func() { m.fire(a.Name, gen) }),
	}
}

func (m *Manager) disarm(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.timers[name]; ok {
		s.timer.Stop()
		delete(m.timers, name)
	}
}

// fire runs on the timer goroutine. gen guards against a timer that was
// replaced after it had already started firing.
func (m *Manager) fire(name string, gen uint64) {
	m.mu.Lock()
	s, ok := m.timers[name]
	if !ok || s.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.timers, name)
	ctx := m.ctx
	handler := m.handler
	m.mu.Unlock()

	a, ok, err := m.Get(ctx, name)
	if err != nil {
		m.log.Error("load fired alarm", "name", name, "error", err)
		return
	}
	if !ok {
		return
	}

	m.log.Info("alarm fired", "name", name)
	if handler != nil {
		handler(ctx, a)
	}

	if a.Period <= 0 {
		if _, err := m.db.ExecContext(ctx, "DELETE FROM alarms WHERE name = ? AND scheduled_at = ?", name, a.ScheduledAt.UnixMilli()); err != nil {
			m.log.Error("remove one-shot alarm", "name", name, "error", err)
		}
		return
	}

	// the handler may have run while the alarm was cleared or re-created;
	// only the registration that fired is moved forward
	fired := a.ScheduledAt
	a.ScheduledAt = nextOccurrence(fired, a.Period, m.clock.Now())
	res, err := m.db.ExecContext(ctx,
		"UPDATE alarms SET scheduled_at = ? WHERE name = ? AND scheduled_at = ? AND period_ms = ?",
		a.ScheduledAt.UnixMilli(), name, fired.UnixMilli(), a.Period.Milliseconds())
	if err != nil {
		m.log.Error("reschedule alarm", "name", name, "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		m.log.Debug("alarm replaced while firing", "name", name)
		return
	}
	m.armIfIdle(a)
}

// armIfIdle arms a unless another registration under the same name was armed
// since a fired.
func (m *Manager) armIfIdle(a Alarm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.timers[a.Name]; busy {
		return
	}
	m.armLocked(a)
}

// nextOccurrence returns the first instant scheduled + k*period (k >= 1)
// strictly after now. For a scheduled instant already in the future it
// returns scheduled + period.
func nextOccurrence(scheduled time.Time, period time.Duration, now time.Time) time.Time {
	if period <= 0 {
		return scheduled
	}
	next := scheduled.Add(period)
	if next.After(now) {
		return next
	}
	behind := now.Sub(next)
	steps := behind/period + 1
	return next.Add(steps * period)
}
