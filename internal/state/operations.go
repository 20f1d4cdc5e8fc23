package state

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/SoarinFerret/BlockWarden/internal/schedule"
)

// StartOutcome tells the caller what StartSchedule did.
type StartOutcome int

const (
	// Started: the window is open and the schedule joined the active set.
	Started StartOutcome = iota
	// Queued: the window opens later today.
	Queued
	// AlreadyTracked: the schedule was already active or waiting.
	AlreadyTracked
	// NoEligibleWindow: the window already passed today or today is not a
	// scheduled day.
	NoEligibleWindow
	// Disabled: the schedule does not take part in evaluation.
	Disabled
)

func (o StartOutcome) String() string {
	switch o {
	case Started:
		return "started"
	case Queued:
		return "queued"
	case AlreadyTracked:
		return "already_tracked"
	case NoEligibleWindow:
		return "no_eligible_window"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("StartOutcome(%d)", int(o))
	}
}

// StartSchedule is the user intent to begin a schedule. A schedule joining a
// running session does not restart the clock.
func (m *Manager) StartSchedule(ctx context.Context, id string) (StartOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.find(id)
	if !ok {
		return NoEligibleWindow, ErrScheduleNotFound
	}
	if m.session.Tracked(id) {
		return AlreadyTracked, nil
	}
	if !s.Enabled {
		return Disabled, nil
	}

	now := m.clock.Now()
	before := m.session.Clone()

	var outcome StartOutcome
	switch schedule.Classify(s, now) {
	case schedule.StatusActive:
		m.session.Activate(id)
		if !before.IsBlocking {
			m.session.StartClock(now)
		}
		m.enforce(ctx, s)
		m.log.Infof("Started schedule %s", s.Name)
		outcome = Started
	case schedule.StatusWaiting:
		m.session.Queue(id)
		m.log.Infof("Queued schedule %s until its window opens", s.Name)
		outcome = Queued
	default:
		m.log.Infof("Schedule %s has no eligible window today", s.Name)
		return NoEligibleWindow, nil
	}

	m.commit(before)
	return outcome, nil
}

// StopSchedule releases a schedule. It returns false if the schedule was not
// active or waiting.
func (m *Manager) StopSchedule(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.session.Clone()
	if !m.stopSchedule(ctx, id) {
		return false
	}
	m.commit(before)
	return true
}

func (m *Manager) stopSchedule(ctx context.Context, id string) bool {
	if !m.session.Tracked(id) {
		return false
	}
	wasActive := m.session.Release(id)
	if wasActive {
		if m.session.IsBlocking {
			m.reassertAll(ctx)
		} else {
			m.endRun(ctx, m.clock.Now())
		}
	}
	m.log.Infof("Stopped schedule %s", id)
	return true
}

// StopAllSchedules ends the session unconditionally.
func (m *Manager) StopAllSchedules(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.session.Clone()
	m.session.Stop(m.clock.Now())
	m.clearAll(ctx)
	m.log.Info("Stopped all schedules")
	m.commit(before)
}

// Pause freezes the clock and lifts enforcement while keeping the session.
func (m *Manager) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.IsBlocking {
		return ErrNotRunning
	}
	if m.session.IsPaused {
		return nil
	}
	before := m.session.Clone()
	m.session.FreezeClock(m.clock.Now())
	m.session.IsPaused = true
	m.clearAll(ctx)
	m.log.Info("Session paused")
	m.commit(before)
	return nil
}

// Resume restarts the clock and re-asserts enforcement.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.IsPaused {
		return ErrNotPaused
	}
	before := m.session.Clone()
	m.session.IsPaused = false
	m.session.StartClock(m.clock.Now())
	m.reassertAll(ctx)
	m.log.Info("Session resumed")
	m.commit(before)
	return nil
}

// AddSchedule validates s, assigns an id if it has none, and stores it.
func (m *Manager) AddSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s = s.Clone()
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if m.index(s.ID) >= 0 {
		return schedule.Schedule{}, fmt.Errorf("%w: %s", ErrDuplicateSchedule, s.ID)
	}
	if err := s.Validate(); err != nil {
		return schedule.Schedule{}, err
	}

	m.schedules = append(m.schedules, s)
	m.persistSchedules()
	m.log.Infof("Added schedule %s (%s)", s.Name, s.ID)

	m.evaluate(ctx, m.clock.Now())
	return s.Clone(), nil
}

// UpdateSchedule applies patch. Edits to an active schedule take effect
// immediately.
func (m *Manager) UpdateSchedule(ctx context.Context, id string, patch schedule.Patch) (schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return schedule.Schedule{}, ErrScheduleNotFound
	}
	updated := patch.Apply(m.schedules[i])
	if err := updated.Validate(); err != nil {
		return schedule.Schedule{}, err
	}
	wasActive := m.session.IsActive(id)

	m.schedules[i] = updated
	m.persistSchedules()
	m.log.Infof("Updated schedule %s (%s)", updated.Name, id)

	_, resynced := m.evaluate(ctx, m.clock.Now())
	if !resynced && wasActive && m.session.IsActive(id) && patch.TouchesEnforcement() {
		m.reassertAll(ctx)
	}
	return updated.Clone(), nil
}

// DeleteSchedule stops the schedule if it is tracked, then removes it.
func (m *Manager) DeleteSchedule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return ErrScheduleNotFound
	}

	before := m.session.Clone()
	m.stopSchedule(ctx, id)
	m.commit(before)

	name := m.schedules[i].Name
	m.schedules = append(m.schedules[:i:i], m.schedules[i+1:]...)
	m.persistSchedules()
	m.log.Infof("Deleted schedule %s (%s)", name, id)

	m.evaluate(ctx, m.clock.Now())
	return nil
}
