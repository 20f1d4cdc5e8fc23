package state

import (
	"context"

	"github.com/SoarinFerret/BlockWarden/internal/enforce"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
)

// canEnforce gates every actuator call. An unavailable or unauthorized
// actuator is skipped; the session still reflects intent.
func (m *Manager) canEnforce(ctx context.Context) bool {
	if !m.actuator.Available(ctx) {
		m.log.Debug("Enforcement unavailable, skipping actuator call")
		return false
	}
	status, err := m.actuator.AuthorizationStatus(ctx)
	if err != nil {
		m.actuatorFailed("query authorization", err)
		return false
	}
	if status != enforce.AuthorizationApproved {
		m.log.Debugf("Enforcement not authorized (%s), skipping actuator call", status)
		return false
	}
	return true
}

func (m *Manager) actuatorFailed(op string, err error) {
	m.log.Errorf("Enforcement failed to %s: %v", op, err)
	m.reportError(err)
}

// enforce blocks one schedule's selection. Nothing is enforced while paused.
func (m *Manager) enforce(ctx context.Context, s schedule.Schedule) {
	if m.session.IsPaused || !s.Enforceable() || !m.canEnforce(ctx) {
		return
	}
	if err := m.actuator.Enforce(ctx, s.AppSelection); err != nil {
		m.actuatorFailed("enforce "+s.Name, err)
		return
	}
	m.log.Infof("Enforcing schedule %s (%s)", s.Name, s.ID)
}

// clearAll lifts every block. A failed clear stays pending and is retried
// by the next evaluation.
func (m *Manager) clearAll(ctx context.Context) {
	if !m.canEnforce(ctx) {
		return
	}
	if !m.tryClear(ctx) {
		return
	}
	m.log.Info("Cleared all enforcement")
}

func (m *Manager) tryClear(ctx context.Context) bool {
	if err := m.actuator.ClearAll(ctx); err != nil {
		m.clearPending = true
		m.actuatorFailed("clear enforcement", err)
		return false
	}
	m.clearPending = false
	return true
}

// resync rebuilds enforcement from the session: cleared when idle or paused,
// re-asserted for every active schedule otherwise.
func (m *Manager) resync(ctx context.Context) {
	if !m.session.IsBlocking || m.session.IsPaused {
		m.clearAll(ctx)
		return
	}
	m.reassertAll(ctx)
}

// reassertAll clears enforcement and re-applies it for every active
// schedule, so a departing schedule can never leave a block behind.
func (m *Manager) reassertAll(ctx context.Context) {
	if !m.session.IsBlocking || m.session.IsPaused || !m.canEnforce(ctx) {
		return
	}
	m.tryClear(ctx)
	for _, id := range m.session.ActiveScheduleIDs {
		s, ok := m.find(id)
		if !ok || !s.Enforceable() {
			continue
		}
		if err := m.actuator.Enforce(ctx, s.AppSelection); err != nil {
			m.actuatorFailed("enforce "+s.Name, err)
		}
	}
	m.log.Infof("Re-asserted enforcement for %d active schedule(s)", len(m.session.ActiveScheduleIDs))
}
