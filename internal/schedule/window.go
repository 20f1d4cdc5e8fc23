// Package schedule defines blocking schedules and the pure time arithmetic
// that decides whether a schedule's window is open at a given instant.
//
// An overnight window (start > end) belongs to the day it starts on: the part
// after midnight is eligible when the previous weekday is in Days. A
// zero-length window (start == end) is never eligible.
package schedule

import "time"

// Status classifies a schedule relative to an instant.
type Status int

const (
	StatusWrongDay Status = iota
	StatusWaiting
	StatusActive
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusWaiting:
		return "waiting"
	case StatusEnded:
		return "ended"
	default:
		return "wrong_day"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func previous(d time.Weekday) time.Weekday {
	return (d + 6) % 7
}

// on returns the instant at tod on the calendar day offset days after t's day.
func on(t time.Time, days int, tod TimeOfDay) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days, tod.Hour(), tod.Minute(), 0, 0, t.Location())
}

// IsWithinWindow reports whether now falls inside an open window of s.
func IsWithinWindow(s Schedule, now time.Time) bool {
	if !s.Enabled || s.Start == s.End {
		return false
	}
	m := minuteOfDay(now)
	start, end := int(s.Start), int(s.End)
	if start < end {
		return s.runsOn(now.Weekday()) && m >= start && m < end
	}
	switch {
	case m >= start:
		return s.runsOn(now.Weekday())
	case m < end:
		return s.runsOn(previous(now.Weekday()))
	}
	return false
}

// UntilWindowStart returns the time until the next start boundary strictly
// after now, looking up to one week ahead. The bool is false when the
// schedule has no weekdays.
func UntilWindowStart(s Schedule, now time.Time) (time.Duration, bool) {
	if len(s.Days) == 0 {
		return 0, false
	}
	for d := 0; d <= 7; d++ {
		start := on(now, d, s.Start)
		if !s.runsOn(start.Weekday()) {
			continue
		}
		if start.After(now) {
			return start.Sub(now), true
		}
	}
	return 0, false
}

// UntilWindowEnd returns the time remaining in the window now is inside of.
// The bool is false when now is not inside a window.
func UntilWindowEnd(s Schedule, now time.Time) (time.Duration, bool) {
	if !IsWithinWindow(s, now) {
		return 0, false
	}
	offset := 0
	if s.Overnight() && minuteOfDay(now) >= int(s.Start) {
		offset = 1
	}
	return on(now, offset, s.End).Sub(now), true
}

// UntilNextBoundary returns the time until the schedule next opens or closes.
func UntilNextBoundary(s Schedule, now time.Time) (time.Duration, bool) {
	if d, ok := UntilWindowEnd(s, now); ok {
		return d, true
	}
	if !s.Enabled || s.Start == s.End {
		return 0, false
	}
	return UntilWindowStart(s, now)
}

// Classify returns the status of s at now.
func Classify(s Schedule, now time.Time) Status {
	if IsWithinWindow(s, now) {
		return StatusActive
	}
	if !s.Enabled || !s.runsOn(now.Weekday()) {
		return StatusWrongDay
	}
	if s.Start != s.End && minuteOfDay(now) < int(s.Start) {
		return StatusWaiting
	}
	return StatusEnded
}

// HasStarted reports whether the schedule's window is open now.
func HasStarted(s Schedule, now time.Time) bool {
	return Classify(s, now) == StatusActive
}
