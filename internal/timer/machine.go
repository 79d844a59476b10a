// Package timer owns the canonical work-timer state. Machine holds the pure
// transition rules; Owner runs it on a single goroutine behind a command
// channel, persists every mutation and publishes updates.
package timer

import "time"

// Snapshot is the timer state at one instant. StartInstant is non-nil iff
// IsRunning. When running, StartInstant has already been moved back by the
// duration accumulated in earlier runs.
type Snapshot struct {
	IsRunning    bool
	StartInstant *time.Time
	Accumulated  time.Duration
}

// Elapsed returns the effective elapsed time at now.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.IsRunning && s.StartInstant != nil {
		if d := now.Sub(*s.StartInstant); d > 0 {
			return d
		}
		return 0
	}
	return s.Accumulated
}

// Machine applies start/stop/reset/tick transitions. It is not safe for
// concurrent use; Owner serializes access.
type Machine struct {
	state Snapshot
}

// NewMachine returns a Machine seeded with initial, normalized so the
// invariants hold.
func NewMachine(initial Snapshot) *Machine {
	return &Machine{state: normalize(initial)}
}

func normalize(s Snapshot) Snapshot {
	if s.Accumulated < 0 {
		s.Accumulated = 0
	}
	if !s.IsRunning {
		s.StartInstant = nil
		return s
	}
	if s.StartInstant == nil {
		// running with no start: keep the progress, drop the run
		s.IsRunning = false
	}
	return s
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	s := m.state
	if s.StartInstant != nil {
		t := *s.StartInstant
		s.StartInstant = &t
	}
	return s
}

// Start begins a run that resumes from the accumulated duration. It reports
// false and changes nothing when already running.
func (m *Machine) Start(now time.Time) bool {
	if m.state.IsRunning {
		return false
	}
	start := now.Add(-m.state.Accumulated)
	m.state.IsRunning = true
	m.state.StartInstant = &start
	return true
}

// Stop ends the current run, folding it into Accumulated. It reports false
// and changes nothing when already stopped.
func (m *Machine) Stop(now time.Time) bool {
	if !m.state.IsRunning {
		return false
	}
	m.state.Accumulated = m.state.Elapsed(now)
	m.state.IsRunning = false
	m.state.StartInstant = nil
	return true
}

// Reset forces the stopped, zero state.
func (m *Machine) Reset() {
	m.state = Snapshot{}
}

// Query returns the state with Accumulated recomputed live when running.
// The stored accumulation is left untouched.
func (m *Machine) Query(now time.Time) Snapshot {
	s := m.Snapshot()
	s.Accumulated = s.Elapsed(now)
	return s
}

// Tick re-derives Accumulated from the start instant. It reports false when
// the timer is stopped.
func (m *Machine) Tick(now time.Time) bool {
	if !m.state.IsRunning {
		return false
	}
	m.state.Accumulated = m.state.Elapsed(now)
	return true
}
