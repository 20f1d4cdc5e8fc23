package ipc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/SoarinFerret/BlockWarden/internal/clock"
	"github.com/SoarinFerret/BlockWarden/internal/enforce"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/state"
	"github.com/SoarinFerret/BlockWarden/internal/store"
)

// 2024-06-03 is a Monday.
var monday10 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type resumeRecorder struct{ reasons []string }

func (r *resumeRecorder) Resume(reason string) { r.reasons = append(r.reasons, reason) }

func newService(t *testing.T) *BlockWarden {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryStore()
	office := schedule.Schedule{
		ID: "office", Name: "Office",
		Start: schedule.At(9, 0), End: schedule.At(17, 0),
		Days: []time.Weekday{time.Monday}, Enabled: true, AppSelection: "sel",
	}
	evening := schedule.Schedule{
		ID: "evening", Name: "Evening",
		Start: schedule.At(19, 0), End: schedule.At(21, 0),
		Days: []time.Weekday{time.Monday}, Enabled: true,
	}
	require.NoError(t, mem.SaveSchedules(ctx, []schedule.Schedule{office, evening}))

	clk := clock.NewMock(monday10)
	log := zaptest.NewLogger(t).Sugar()
	m := state.NewManager(ctx, mem, enforce.Noop{}, state.WithClock(clk), state.WithLogger(log))
	t.Cleanup(m.Close)
	return &BlockWarden{Manager: m, Clock: clk, Log: log}
}

func TestGetStatus(t *testing.T) {
	b := newService(t)
	_, derr := b.StartSchedule("office")
	require.Nil(t, derr)

	reply, derr := b.GetStatus()
	require.Nil(t, derr)

	var st Status
	require.NoError(t, json.Unmarshal([]byte(reply), &st))
	assert.True(t, st.Session.IsBlocking)
	require.Len(t, st.Schedules, 2)

	assert.Equal(t, "office", st.Schedules[0].ID)
	assert.Equal(t, schedule.StatusActive, st.Schedules[0].Status)
	assert.True(t, st.Schedules[0].Tracked)
	assert.Equal(t, int64(7*3600), st.Schedules[0].EndsIn)

	assert.Equal(t, schedule.StatusWaiting, st.Schedules[1].Status)
	assert.False(t, st.Schedules[1].Tracked)
	assert.Equal(t, int64(9*3600), st.Schedules[1].StartsIn)
	assert.Empty(t, st.LastError)
}

func TestScheduleMethods(t *testing.T) {
	b := newService(t)

	reply, derr := b.AddSchedule(`{"name":"Reading","start_time":"20:00","end_time":"21:30","days_of_week":[1,2],"is_active":true}`)
	require.Nil(t, derr)
	var added schedule.Schedule
	require.NoError(t, json.Unmarshal([]byte(reply), &added))
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, schedule.At(21, 30), added.End)

	reply, derr = b.UpdateSchedule(added.ID, `{"name":"Books"}`)
	require.Nil(t, derr)
	assert.Contains(t, reply, `"name":"Books"`)

	reply, derr = b.ListSchedules()
	require.Nil(t, derr)
	var list []schedule.Schedule
	require.NoError(t, json.Unmarshal([]byte(reply), &list))
	assert.Len(t, list, 3)

	require.Nil(t, b.DeleteSchedule(added.ID))
	derr = b.DeleteSchedule(added.ID)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorNotFound, derr.Name)
}

func TestMethodErrors(t *testing.T) {
	b := newService(t)

	_, derr := b.AddSchedule("{")
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgument, derr.Name)

	_, derr = b.AddSchedule(`{"name":"","start_time":"09:00","end_time":"10:00"}`)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgument, derr.Name)

	_, derr = b.UpdateSchedule("missing", `{}`)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorNotFound, derr.Name)

	derr = b.Pause()
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgument, derr.Name)

	_, derr = b.HasStarted("missing")
	require.NotNil(t, derr)
	assert.Equal(t, ErrorNotFound, derr.Name)
}

func TestSessionMethods(t *testing.T) {
	b := newService(t)

	outcome, derr := b.StartSchedule("evening")
	require.Nil(t, derr)
	assert.Equal(t, "queued", outcome)

	outcome, derr = b.StartSchedule("office")
	require.Nil(t, derr)
	assert.Equal(t, "started", outcome)

	started, derr := b.HasStarted("office")
	require.Nil(t, derr)
	assert.True(t, started)

	require.Nil(t, b.Pause())
	assert.True(t, b.Manager.Snapshot().IsPaused)
	require.Nil(t, b.Resume())
	assert.False(t, b.Manager.Snapshot().IsPaused)

	stopped, derr := b.StopSchedule("office")
	require.Nil(t, derr)
	assert.True(t, stopped)

	require.Nil(t, b.StopAll())
	assert.Empty(t, b.Manager.Snapshot().WaitingScheduleIDs)
}

func TestRefresh(t *testing.T) {
	b := newService(t)
	require.Nil(t, b.Refresh())

	r := &resumeRecorder{}
	b.Resumer = r
	require.Nil(t, b.Refresh())
	assert.Equal(t, []string{"client refresh"}, r.reasons)
}

// loopback routes client calls straight to a service object.
type loopback struct {
	dbus.BusObject
	b *BlockWarden
}

func (l *loopback) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	name := strings.TrimPrefix(method, InterfaceName+".")
	str := func(i int) string { return args[i].(string) }

	var (
		body []interface{}
		derr *dbus.Error
	)
	switch name {
	case "GetStatus":
		var s string
		s, derr = l.b.GetStatus()
		body = []interface{}{s}
	case "AddSchedule":
		var s string
		s, derr = l.b.AddSchedule(str(0))
		body = []interface{}{s}
	case "StartSchedule":
		var s string
		s, derr = l.b.StartSchedule(str(0))
		body = []interface{}{s}
	case "StopSchedule":
		var ok bool
		ok, derr = l.b.StopSchedule(str(0))
		body = []interface{}{ok}
	case "DeleteSchedule":
		derr = l.b.DeleteSchedule(str(0))
	default:
		derr = dbus.NewError("org.freedesktop.DBus.Error.UnknownMethod", []interface{}{"unknown method " + name})
	}

	call := &dbus.Call{Method: method, Body: body}
	if derr != nil {
		call.Err = *derr
	}
	return call
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newService(t)
	c := newClient(&loopback{b: b})
	defer c.Close()

	outcome, err := c.StartSchedule(ctx, "office")
	require.NoError(t, err)
	assert.Equal(t, "started", outcome)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Session.IsBlocking)

	added, err := c.AddSchedule(ctx, schedule.Schedule{Name: "Lunch", Start: schedule.At(12, 0), End: schedule.At(13, 0), Enabled: true})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	stopped, err := c.StopSchedule(ctx, "office")
	require.NoError(t, err)
	assert.True(t, stopped)

	err = c.DeleteSchedule(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, "DeleteSchedule: schedule not found", err.Error())

	err = c.Pause(ctx)
	assert.ErrorContains(t, err, "unknown method Pause")
}
