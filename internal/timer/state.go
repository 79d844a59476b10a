package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/worktimer/internal/kvstore"
)

// Local-scope keys holding the timer.
const (
	KeyIsRunning   = "isRunning"
	KeyStartTime   = "startTime"
	KeyElapsedTime = "elapsedTime"
)

// State is the wire and store view of a Snapshot: epoch milliseconds for the
// start instant, milliseconds for elapsed time.
type State struct {
	IsRunning   bool   `json:"isRunning"`
	StartTime   *int64 `json:"startTime"`
	ElapsedTime int64  `json:"elapsedTime"`
}

// StateOf converts s to its wire view. ElapsedTime is s.Accumulated as-is;
// callers wanting a live value pass a Query result.
func StateOf(s Snapshot) State {
	st := State{IsRunning: s.IsRunning, ElapsedTime: s.Accumulated.Milliseconds()}
	if s.StartInstant != nil {
		ms := s.StartInstant.UnixMilli()
		st.StartTime = &ms
	}
	return st
}

// Snapshot converts the wire view back.
func (st State) Snapshot() Snapshot {
	s := Snapshot{IsRunning: st.IsRunning, Accumulated: time.Duration(st.ElapsedTime) * time.Millisecond}
	if st.StartTime != nil {
		t := time.UnixMilli(*st.StartTime)
		s.StartInstant = &t
	}
	return s
}

// Elapsed returns the live elapsed duration at now.
func (st State) Elapsed(now time.Time) time.Duration {
	return st.Snapshot().Elapsed(now)
}

// values returns the full set of timer keys for a Set call.
func (st State) values() map[string]any {
	return map[string]any{
		KeyIsRunning:   st.IsRunning,
		KeyStartTime:   st.StartTime,
		KeyElapsedTime: st.ElapsedTime,
	}
}

// LoadState reads the timer keys from the local scope. Absent keys default
// to the stopped, zero state.
func LoadState(ctx context.Context, store kvstore.Store) (State, error) {
	var st State
	var err error

	if st.IsRunning, _, err = kvstore.GetValue[bool](ctx, store, kvstore.Local, KeyIsRunning); err != nil {
		return State{}, fmt.Errorf("load timer state: %w", err)
	}
	start, ok, err := kvstore.GetValue[int64](ctx, store, kvstore.Local, KeyStartTime)
	if err != nil {
		return State{}, fmt.Errorf("load timer state: %w", err)
	}
	if ok {
		st.StartTime = &start
	}
	if st.ElapsedTime, _, err = kvstore.GetValue[int64](ctx, store, kvstore.Local, KeyElapsedTime); err != nil {
		return State{}, fmt.Errorf("load timer state: %w", err)
	}
	return st, nil
}
