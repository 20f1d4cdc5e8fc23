// Package state owns the blocking session and the schedule list. Every
// mutation goes through Manager, which evaluates schedules against the clock,
// drives the enforcement actuator, and persists each new snapshot.
package state

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SoarinFerret/BlockWarden/internal/clock"
	"github.com/SoarinFerret/BlockWarden/internal/enforce"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/session"
	"github.com/SoarinFerret/BlockWarden/internal/store"
)

var (
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrDuplicateSchedule = errors.New("schedule already exists")
	ErrNotRunning        = errors.New("no blocking session is running")
	ErrNotPaused         = errors.New("session is not paused")
)

// Manager is the single writer of session state and the schedule list.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	actuator enforce.Actuator
	clock    clock.Clock
	log      *zap.SugaredLogger
	writer   *writer
	seed     []schedule.Schedule

	session   session.State
	schedules []schedule.Schedule

	// clearPending is set while a failed ClearAll still has to be retried.
	clearPending bool

	errMu   sync.Mutex
	lastErr error
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithSeed imports schedules on first run, when the store holds no list.
func WithSeed(schedules []schedule.Schedule) Option {
	return func(m *Manager) { m.seed = schedules }
}

// NewManager loads both records from st. Unreadable records fall back to
// empty defaults; the failure is logged and kept in LastError.
func NewManager(ctx context.Context, st store.Store, act enforce.Actuator, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		actuator: act,
		clock:    clock.Real{},
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.writer = newWriter(st, m.log, m.reportError)
	m.load(ctx)
	return m
}

func (m *Manager) load(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	r := store.LoadAll(ctx, m.store)

	m.session = session.New()
	if r.SessionErr != nil {
		m.log.Warnf("Failed to load session state, starting fresh: %v", r.SessionErr)
		m.reportError(r.SessionErr)
	} else if r.Session != nil {
		m.session = *r.Session
	}
	m.session.Normalize(now)

	switch {
	case r.SchedulesErr != nil:
		m.log.Errorf("Schedule list could not be read, treating it as empty: %v", r.SchedulesErr)
		m.reportError(r.SchedulesErr)
		m.schedules = []schedule.Schedule{}
	case r.Schedules == nil:
		m.schedules = m.seedSchedules()
		if len(m.schedules) > 0 {
			m.log.Infof("Imported %d schedule(s) from configuration", len(m.schedules))
			m.persistSchedules()
		}
	default:
		m.schedules = r.Schedules
	}

	m.log.Infow("Loaded state",
		"schedules", len(m.schedules),
		"blocking", m.session.IsBlocking,
		"paused", m.session.IsPaused,
		"saved_seconds", m.session.SavedTime)
}

func (m *Manager) seedSchedules() []schedule.Schedule {
	out := []schedule.Schedule{}
	for _, s := range m.seed {
		s = s.Clone()
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if err := s.Validate(); err != nil {
			m.log.Warnf("Skipping configured schedule %q: %v", s.Name, err)
			continue
		}
		if slices.ContainsFunc(out, func(o schedule.Schedule) bool { return o.ID == s.ID }) {
			m.log.Warnf("Skipping configured schedule %q: duplicate id %s", s.Name, s.ID)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Snapshot returns a copy of the session with SavedTime computed for now.
func (m *Manager) Snapshot() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.session.Clone()
	st.SavedTime = session.Elapsed(st, m.clock.Now())
	return st
}

// Schedules returns a copy of the schedule list.
func (m *Manager) Schedules() []schedule.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schedule.Schedule, len(m.schedules))
	for i, s := range m.schedules {
		out[i] = s.Clone()
	}
	return out
}

// Schedule returns one schedule by id.
func (m *Manager) Schedule(id string) (schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.find(id)
	if !ok {
		return schedule.Schedule{}, ErrScheduleNotFound
	}
	return s.Clone(), nil
}

// Status classifies a schedule against the current time.
func (m *Manager) Status(id string) (schedule.Status, error) {
	s, err := m.Schedule(id)
	if err != nil {
		return schedule.StatusWrongDay, err
	}
	return schedule.Classify(s, m.clock.Now()), nil
}

// HasStarted reports whether the schedule's window is open right now.
func (m *Manager) HasStarted(id string) (bool, error) {
	status, err := m.Status(id)
	return status == schedule.StatusActive, err
}

// NextTransition returns the time until the next window boundary of any
// active or waiting schedule.
func (m *Manager) NextTransition(now time.Time) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		next  time.Duration
		found bool
	)
	tracked := slices.Concat(m.session.ActiveScheduleIDs, m.session.WaitingScheduleIDs)
	for _, id := range tracked {
		s, ok := m.find(id)
		if !ok {
			continue
		}
		d, ok := schedule.UntilNextBoundary(s, now)
		if ok && (!found || d < next) {
			next, found = d, true
		}
	}
	return next, found
}

// LastError returns the most recent collaborator failure, if any.
func (m *Manager) LastError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

func (m *Manager) reportError(err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	m.lastErr = err
}

// Flush waits until every queued snapshot has been written.
func (m *Manager) Flush() {
	m.writer.flush()
}

// Close drains pending writes. The store is left open for its owner.
func (m *Manager) Close() {
	m.writer.close()
}

func (m *Manager) find(id string) (schedule.Schedule, bool) {
	i := m.index(id)
	if i < 0 {
		return schedule.Schedule{}, false
	}
	return m.schedules[i], true
}

func (m *Manager) index(id string) int {
	return slices.IndexFunc(m.schedules, func(s schedule.Schedule) bool { return s.ID == id })
}

func (m *Manager) persistSession() {
	m.writer.saveSession(m.session.Clone())
}

func (m *Manager) persistSchedules() {
	out := make([]schedule.Schedule, len(m.schedules))
	for i, s := range m.schedules {
		out[i] = s.Clone()
	}
	m.writer.saveSchedules(out)
}

// commit persists the session if it differs from before, or if the last
// write failed.
func (m *Manager) commit(before session.State) bool {
	changed := !before.Equal(m.session)
	if changed || m.writer.sessionDirty.Load() {
		m.persistSession()
	}
	if m.writer.schedulesDirty.Load() {
		m.persistSchedules()
	}
	return changed
}
