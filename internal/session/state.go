// Package session holds the blocking session record and the elapsed-time
// ledger behind the "time saved" counter.
package session

import (
	"slices"
	"time"
)

// State is the single record of whether blocking is happening and how much
// time has accrued. A zero StartedAt means the clock is not running.
type State struct {
	IsBlocking         bool      `json:"is_blocking"`
	IsPaused           bool      `json:"is_paused"`
	StartedAt          time.Time `json:"started_at"`
	AccumulatedTime    int64     `json:"accumulated_time"`
	SavedTime          int64     `json:"saved_time"`
	ActiveScheduleIDs  []string  `json:"active_schedule_ids"`
	WaitingScheduleIDs []string  `json:"waiting_schedule_ids"`
	CurrentScheduleID  string    `json:"current_schedule_id,omitempty"`
}

// New returns the first-run state.
func New() State {
	return State{
		ActiveScheduleIDs:  []string{},
		WaitingScheduleIDs: []string{},
	}
}

// Elapsed is the one formula for accrued seconds: AccumulatedTime when the
// clock is stopped, otherwise AccumulatedTime plus whole seconds since
// StartedAt. A clock that moved backwards contributes nothing.
func Elapsed(st State, now time.Time) int64 {
	if !st.Running() {
		return st.AccumulatedTime
	}
	delta := now.Sub(st.StartedAt)
	if delta < 0 {
		return st.AccumulatedTime
	}
	return st.AccumulatedTime + int64(delta/time.Second)
}

// Running reports whether the elapsed-time clock is ticking.
func (s State) Running() bool {
	return !s.IsPaused && !s.StartedAt.IsZero()
}

// StartClock begins a run at now unless one is already in progress.
func (s *State) StartClock(now time.Time) {
	if s.Running() {
		return
	}
	s.AccumulatedTime = Elapsed(*s, now)
	s.SavedTime = s.AccumulatedTime
	s.StartedAt = now
}

// FreezeClock folds the current run into AccumulatedTime and stops the clock.
func (s *State) FreezeClock(now time.Time) {
	s.AccumulatedTime = Elapsed(*s, now)
	s.SavedTime = s.AccumulatedTime
	s.StartedAt = time.Time{}
}

// EndRun freezes the clock and clears the pause flag. Waiting schedules stay
// queued.
func (s *State) EndRun(now time.Time) {
	s.FreezeClock(now)
	s.IsPaused = false
}

// Stop ends the session: the clock is frozen and every tracked schedule is
// released.
func (s *State) Stop(now time.Time) {
	s.EndRun(now)
	s.ActiveScheduleIDs = []string{}
	s.WaitingScheduleIDs = []string{}
	s.sync()
}

func (s *State) IsActive(id string) bool  { return slices.Contains(s.ActiveScheduleIDs, id) }
func (s *State) IsWaiting(id string) bool { return slices.Contains(s.WaitingScheduleIDs, id) }

// Tracked reports whether id is active or waiting.
func (s *State) Tracked(id string) bool {
	return s.IsActive(id) || s.IsWaiting(id)
}

// Activate moves id into the active set, keeping insertion order.
func (s *State) Activate(id string) {
	s.WaitingScheduleIDs = remove(s.WaitingScheduleIDs, id)
	if !s.IsActive(id) {
		s.ActiveScheduleIDs = append(s.ActiveScheduleIDs, id)
	}
	s.sync()
}

// Queue adds id to the waiting set.
func (s *State) Queue(id string) {
	if s.Tracked(id) {
		return
	}
	s.WaitingScheduleIDs = append(s.WaitingScheduleIDs, id)
}

// Release removes id from every set. It returns whether id was active.
func (s *State) Release(id string) bool {
	wasActive := s.IsActive(id)
	s.ActiveScheduleIDs = remove(s.ActiveScheduleIDs, id)
	s.WaitingScheduleIDs = remove(s.WaitingScheduleIDs, id)
	s.sync()
	return wasActive
}

// sync recomputes the fields derived from the active set.
func (s *State) sync() {
	s.IsBlocking = len(s.ActiveScheduleIDs) > 0
	s.CurrentScheduleID = ""
	if s.IsBlocking {
		s.CurrentScheduleID = s.ActiveScheduleIDs[0]
	}
}

// Normalize repairs a loaded record so the invariants hold and recomputes
// SavedTime for now. A running record whose StartedAt was lost restarts at now.
func (s *State) Normalize(now time.Time) {
	if s.ActiveScheduleIDs == nil {
		s.ActiveScheduleIDs = []string{}
	}
	if s.WaitingScheduleIDs == nil {
		s.WaitingScheduleIDs = []string{}
	}
	s.sync()
	if !s.IsBlocking {
		s.IsPaused = false
		s.StartedAt = time.Time{}
	}
	if s.IsPaused {
		s.StartedAt = time.Time{}
	}
	if s.IsBlocking && !s.IsPaused && s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	if s.AccumulatedTime < 0 {
		s.AccumulatedTime = 0
	}
	s.SavedTime = Elapsed(*s, now)
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.ActiveScheduleIDs = slices.Clone(s.ActiveScheduleIDs)
	s.WaitingScheduleIDs = slices.Clone(s.WaitingScheduleIDs)
	return s
}

// Equal compares two records, treating StartedAt by instant.
func (s State) Equal(o State) bool {
	return s.IsBlocking == o.IsBlocking &&
		s.IsPaused == o.IsPaused &&
		s.StartedAt.Equal(o.StartedAt) &&
		s.AccumulatedTime == o.AccumulatedTime &&
		s.SavedTime == o.SavedTime &&
		slices.Equal(s.ActiveScheduleIDs, o.ActiveScheduleIDs) &&
		slices.Equal(s.WaitingScheduleIDs, o.WaitingScheduleIDs) &&
		s.CurrentScheduleID == o.CurrentScheduleID
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}
