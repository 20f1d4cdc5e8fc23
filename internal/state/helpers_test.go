package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/SoarinFerret/BlockWarden/internal/clock"
	"github.com/SoarinFerret/BlockWarden/internal/enforce"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/session"
	"github.com/SoarinFerret/BlockWarden/internal/store"
)

var errBoom = errors.New("boom")

// 2024-06-03 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2024, 6, 3, hour, minute, 0, 0, time.UTC)
}

func testSchedule(id string, start, end schedule.TimeOfDay, days ...time.Weekday) schedule.Schedule {
	return schedule.Schedule{
		ID:           id,
		Name:         id,
		Start:        start,
		End:          end,
		Days:         days,
		Enabled:      true,
		AppSelection: "sel-" + id,
	}
}

// fakeActuator records every call it receives.
type fakeActuator struct {
	mu          sync.Mutex
	unavailable bool
	auth        enforce.AuthorizationStatus
	enforceErr  error
	clearErr    error
	calls       []string
}

func newFakeActuator() *fakeActuator {
	return &fakeActuator{auth: enforce.AuthorizationApproved}
}

func (f *fakeActuator) Available(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeActuator) AuthorizationStatus(context.Context) (enforce.AuthorizationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth, nil
}

func (f *fakeActuator) RequestAuthorization(context.Context) (enforce.AuthorizationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = enforce.AuthorizationApproved
	return f.auth, nil
}

func (f *fakeActuator) Enforce(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "enforce:"+ref)
	return f.enforceErr
}

func (f *fakeActuator) ClearAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "clear")
	return f.clearErr
}

// take returns the recorded calls and resets the log.
func (f *fakeActuator) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	if out == nil {
		out = []string{}
	}
	return out
}

// flakyStore fails session writes while failing is set.
type flakyStore struct {
	*store.MemoryStore
	failing atomic.Bool
}

func (s *flakyStore) SaveSession(ctx context.Context, st session.State) error {
	if s.failing.Load() {
		return errBoom
	}
	return s.MemoryStore.SaveSession(ctx, st)
}

type fixture struct {
	m     *Manager
	store *store.MemoryStore
	act   *fakeActuator
	clock *clock.Mock
}

func newFixture(t *testing.T, now time.Time, schedules ...schedule.Schedule) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.SaveSchedules(context.Background(), schedules); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return newFixtureWithStore(t, now, st, st)
}

func newFixtureWithStore(t *testing.T, now time.Time, mem *store.MemoryStore, st store.Store, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store: mem,
		act:   newFakeActuator(),
		clock: clock.NewMock(now),
	}
	opts = append([]Option{
		WithClock(f.clock),
		WithLogger(zaptest.NewLogger(t).Sugar()),
	}, opts...)
	f.m = NewManager(context.Background(), st, f.act, opts...)
	t.Cleanup(f.m.Close)
	return f
}

// writes flushes pending snapshots and returns the session write count.
func (f *fixture) writes() int {
	f.m.Flush()
	return f.store.Writes(store.KeySession)
}

func (f *fixture) persisted(t *testing.T) session.State {
	t.Helper()
	f.m.Flush()
	st, err := f.store.LoadSession(context.Background())
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if st == nil {
		t.Fatal("no session persisted")
	}
	return *st
}
