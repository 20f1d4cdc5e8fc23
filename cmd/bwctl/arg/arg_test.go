package arg

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/BlockWarden/internal/ipc"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/session"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 30*time.Minute, "2h 30m 0s"},
		{1500 * time.Millisecond, "2s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDaysString(t *testing.T) {
	assert.Equal(t, "never", daysString(nil))
	assert.Equal(t, "mon,fri", daysString([]time.Weekday{time.Monday, time.Friday}))
	all := []time.Weekday{0, 1, 2, 3, 4, 5, 6}
	assert.Equal(t, "daily", daysString(all))
}

func TestBadge(t *testing.T) {
	base := schedule.Schedule{ID: "a", Name: "A", Enabled: true}

	tests := []struct {
		name string
		ss   ipc.ScheduleStatus
		want string
	}{
		{"disabled", ipc.ScheduleStatus{Schedule: schedule.Schedule{Enabled: false}}, "disabled"},
		{"active", ipc.ScheduleStatus{Schedule: base, Status: schedule.StatusActive, EndsIn: 5400}, "active now, ends in 1h 30m 0s"},
		{"waiting", ipc.ScheduleStatus{Schedule: base, Status: schedule.StatusWaiting, StartsIn: 600}, "starts in 10m 0s"},
		{"ended", ipc.ScheduleStatus{Schedule: base, Status: schedule.StatusEnded}, "ended today"},
		{"another day", ipc.ScheduleStatus{Schedule: base, Status: schedule.StatusWrongDay, StartsIn: 86400}, "next in 24h 0m 0s"},
		{"never", ipc.ScheduleStatus{Schedule: base, Status: schedule.StatusWrongDay}, "not scheduled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, badge(tt.ss))
		})
	}
}

func TestPrintStatus(t *testing.T) {
	sess := session.New()
	sess.Activate("work")
	sess.Queue("gym")
	sess.StartClock(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	sess.SavedTime = 3720

	st := ipc.Status{
		Session: sess,
		Schedules: []ipc.ScheduleStatus{
			{
				Schedule: schedule.Schedule{ID: "work", Name: "Work", Start: schedule.At(9, 0), End: schedule.At(17, 0), Days: []time.Weekday{time.Monday}, Enabled: true},
				Status:   schedule.StatusActive,
				EndsIn:   3600,
			},
			{
				Schedule: schedule.Schedule{ID: "gym", Name: "Gym", Start: schedule.At(18, 0), End: schedule.At(19, 0), Days: []time.Weekday{time.Monday}, Enabled: true},
				Status:   schedule.StatusWaiting,
				StartsIn: 1800,
			},
		},
		LastError: "enforcer unavailable",
	}

	var buf bytes.Buffer
	printStatus(&buf, st)
	out := buf.String()

	assert.Contains(t, out, "Status: Blocking")
	assert.Contains(t, out, "Time saved: 1h 2m 0s")
	assert.Contains(t, out, "Last error: enforcer unavailable")
	assert.Contains(t, out, "Schedules (2):")
	assert.Contains(t, out, "* Work")
	assert.Contains(t, out, "~ Gym")
	assert.Contains(t, out, "09:00-17:00")
	assert.Contains(t, out, "starts in 30m 0s")
}

func TestPrintStatus_Idle(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, ipc.Status{Session: session.New()})
	assert.Contains(t, buf.String(), "Status: Idle")
	assert.Contains(t, buf.String(), "No schedules")
}

func resetScheduleFlags() {
	scheduleID, scheduleName, scheduleWindow, scheduleApp = "", "", "", ""
	scheduleDays = nil
	scheduleDisabled, scheduleEnabled = false, false
}

func TestBuildSchedule(t *testing.T) {
	resetScheduleFlags()
	t.Cleanup(resetScheduleFlags)
	scheduleName = "Night"
	scheduleWindow = "22:00-06:00"
	scheduleDays = []string{"fri", "sat"}
	scheduleApp = "games"

	s, err := buildSchedule()
	require.NoError(t, err)
	assert.Equal(t, "Night", s.Name)
	assert.Equal(t, schedule.At(22, 0), s.Start)
	assert.Equal(t, schedule.At(6, 0), s.End)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, s.Days)
	assert.True(t, s.Enabled)
	assert.Equal(t, "games", s.AppSelection)

	scheduleWindow = "10:00"
	_, err = buildSchedule()
	assert.Error(t, err)

	scheduleWindow = "10:00-11:00"
	scheduleDays = []string{"someday"}
	_, err = buildSchedule()
	assert.Error(t, err)
}

func TestBuildPatch(t *testing.T) {
	resetScheduleFlags()
	t.Cleanup(resetScheduleFlags)

	cmd := &cobra.Command{Use: "update"}
	bindUpdateFlags(cmd)

	_, err := buildPatch(cmd)
	require.Error(t, err)

	require.NoError(t, cmd.Flags().Set("window", "08:30-12:00"))
	require.NoError(t, cmd.Flags().Set("disabled", "true"))

	p, err := buildPatch(cmd)
	require.NoError(t, err)
	assert.Nil(t, p.Name)
	assert.Nil(t, p.Days)
	require.NotNil(t, p.Start)
	assert.Equal(t, schedule.At(8, 30), *p.Start)
	assert.Equal(t, schedule.At(12, 0), *p.End)
	require.NotNil(t, p.Enabled)
	assert.False(t, *p.Enabled)

	cmd = &cobra.Command{Use: "update"}
	bindUpdateFlags(cmd)
	require.NoError(t, cmd.Flags().Set("days", "weekends"))
	p, err = buildPatch(cmd)
	require.NoError(t, err)
	require.NotNil(t, p.Days)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, *p.Days)
	assert.Nil(t, p.Enabled)
}

func TestDescribeOutcome(t *testing.T) {
	assert.Equal(t, "Blocking started", describeOutcome("started"))
	assert.Contains(t, describeOutcome("no_eligible_window"), "already passed")
	assert.Equal(t, "something_new", describeOutcome("something_new"))
}
