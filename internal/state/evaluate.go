package state

import (
	"context"
	"slices"
	"time"

	"github.com/SoarinFerret/BlockWarden/internal/schedule"
)

// Evaluate reconciles the active and waiting sets with the clock. It is safe
// to call as often as needed: with no change in eligibility it neither
// writes nor calls the actuator. It returns whether the session changed.
func (m *Manager) Evaluate(ctx context.Context, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed, _ := m.evaluate(ctx, now)
	return changed
}

// Refresh evaluates at the current time.
func (m *Manager) Refresh(ctx context.Context) bool {
	return m.Evaluate(ctx, m.clock.Now())
}

// Reconcile evaluates and then rebuilds enforcement from the session alone:
// an idle or paused session is cleared, a blocking one is re-asserted. Used
// at startup and on resume, when the actuator's real state is unknown.
func (m *Manager) Reconcile(ctx context.Context, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed, resynced := m.evaluate(ctx, now)
	if !resynced {
		m.resync(ctx)
	}
	return changed
}

// evaluate returns whether the session changed and whether enforcement was
// already rebuilt from a clear along the way.
func (m *Manager) evaluate(ctx context.Context, now time.Time) (changed, resynced bool) {
	before := m.session.Clone()
	removed := false

	for _, id := range slices.Clone(m.session.ActiveScheduleIDs) {
		s, ok := m.find(id)
		switch {
		case !ok:
			m.log.Infof("Dropping deleted schedule %s from active set", id)
		case !s.Enabled:
			m.log.Infof("Schedule %s was disabled, releasing it", s.Name)
		case schedule.Classify(s, now) != schedule.StatusActive:
			m.log.Infof("Window for schedule %s closed", s.Name)
		default:
			continue
		}
		m.session.Release(id)
		removed = true
	}

	var promoted []schedule.Schedule
	for _, id := range slices.Clone(m.session.WaitingScheduleIDs) {
		s, ok := m.find(id)
		if !ok {
			m.log.Infof("Dropping deleted schedule %s from waiting set", id)
			m.session.Release(id)
			continue
		}
		switch schedule.Classify(s, now) {
		case schedule.StatusActive:
			m.log.Infof("Window for schedule %s opened", s.Name)
			m.session.Activate(id)
			promoted = append(promoted, s)
		case schedule.StatusEnded, schedule.StatusWrongDay:
			m.log.Infof("Window for waiting schedule %s passed unobserved, dropping it", s.Name)
			m.session.Release(id)
		}
	}

	switch {
	case before.IsBlocking && !m.session.IsBlocking:
		m.endRun(ctx, now)
		resynced = true
	case !before.IsBlocking && m.session.IsBlocking:
		m.session.StartClock(now)
		m.log.Infof("Blocking started with %d schedule(s)", len(m.session.ActiveScheduleIDs))
		for _, s := range promoted {
			m.enforce(ctx, s)
		}
	case m.session.IsBlocking && removed:
		m.reassertAll(ctx)
		resynced = true
	default:
		for _, s := range promoted {
			m.enforce(ctx, s)
		}
	}

	if m.clearPending && !resynced {
		m.log.Info("Retrying a clear that failed earlier")
		m.resync(ctx)
		resynced = true
	}

	return m.commit(before), resynced
}

// endRun stops the clock once the active set is empty and lifts enforcement.
func (m *Manager) endRun(ctx context.Context, now time.Time) {
	m.session.EndRun(now)
	m.clearAll(ctx)
	m.log.Infof("Blocking stopped, %s saved in total", time.Duration(m.session.AccumulatedTime)*time.Second)
}
