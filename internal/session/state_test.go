package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func running(accumulated int64, startedAt time.Time) State {
	st := New()
	st.Activate("a")
	st.AccumulatedTime = accumulated
	st.StartedAt = startedAt
	return st
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		name  string
		state State
		now   time.Time
		want  int64
	}{
		{"Running clock adds whole seconds", running(100, t0), t0.Add(30 * time.Second), 130},
		{"Partial seconds are floored", running(100, t0), t0.Add(30*time.Second + 999*time.Millisecond), 130},
		{"Stopped returns accumulated", State{AccumulatedTime: 42}, t0.Add(time.Hour), 42},
		{"Clock moved backwards", running(100, t0), t0.Add(-time.Minute), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Elapsed(tt.state, tt.now))
		})
	}

	paused := running(100, t0)
	paused.IsPaused = true
	assert.Equal(t, int64(100), Elapsed(paused, t0.Add(time.Hour)))
}

func TestElapsed_Monotonic(t *testing.T) {
	st := running(5, t0)
	prev := Elapsed(st, t0)
	for now := t0; now.Before(t0.Add(10 * time.Minute)); now = now.Add(250 * time.Millisecond) {
		got := Elapsed(st, now)
		if got < prev {
			t.Fatalf("Elapsed decreased from %d to %d at %s", prev, got, now)
		}
		prev = got
	}
}

func TestStartAndFreezeClock(t *testing.T) {
	st := New()
	st.Activate("a")
	st.StartClock(t0)
	assert.True(t, st.Running())
	assert.Equal(t, t0, st.StartedAt)

	// a second start while running does not restart the clock
	st.StartClock(t0.Add(time.Minute))
	assert.Equal(t, t0, st.StartedAt)

	st.FreezeClock(t0.Add(90 * time.Second))
	assert.False(t, st.Running())
	assert.Equal(t, int64(90), st.AccumulatedTime)
	assert.Equal(t, int64(90), st.SavedTime)

	st.StartClock(t0.Add(time.Hour))
	assert.Equal(t, int64(100), Elapsed(st, t0.Add(time.Hour+10*time.Second)))
}

func TestActivateQueueRelease(t *testing.T) {
	st := New()
	st.Queue("w")
	st.Queue("w")
	assert.Equal(t, []string{"w"}, st.WaitingScheduleIDs)
	assert.False(t, st.IsBlocking)

	st.Activate("w")
	st.Activate("m")
	assert.Empty(t, st.WaitingScheduleIDs)
	assert.Equal(t, []string{"w", "m"}, st.ActiveScheduleIDs)
	assert.True(t, st.IsBlocking)
	assert.Equal(t, "w", st.CurrentScheduleID)

	assert.True(t, st.Release("w"))
	assert.Equal(t, "m", st.CurrentScheduleID)
	assert.True(t, st.Release("m"))
	assert.False(t, st.IsBlocking)
	assert.Empty(t, st.CurrentScheduleID)
	assert.False(t, st.Release("unknown"))
}

func TestStop(t *testing.T) {
	st := running(10, t0)
	st.Queue("w")
	st.IsPaused = false
	st.Stop(t0.Add(5 * time.Second))

	assert.False(t, st.IsBlocking)
	assert.False(t, st.IsPaused)
	assert.True(t, st.StartedAt.IsZero())
	assert.Equal(t, int64(15), st.AccumulatedTime)
	assert.Empty(t, st.ActiveScheduleIDs)
	assert.Empty(t, st.WaitingScheduleIDs)
}

func TestNormalize(t *testing.T) {
	t.Run("Blocking flag follows active set", func(t *testing.T) {
		st := State{IsBlocking: true, IsPaused: true, StartedAt: t0, AccumulatedTime: 7}
		st.Normalize(t0.Add(time.Hour))
		assert.False(t, st.IsBlocking)
		assert.False(t, st.IsPaused)
		assert.True(t, st.StartedAt.IsZero())
		assert.Equal(t, int64(7), st.SavedTime)
		assert.NotNil(t, st.ActiveScheduleIDs)
	})

	t.Run("Saved time recomputed after suspension", func(t *testing.T) {
		st := running(100, t0)
		st.SavedTime = 100
		st.Normalize(t0.Add(10 * time.Minute))
		assert.Equal(t, int64(700), st.SavedTime)
		assert.Equal(t, t0, st.StartedAt)
	})

	t.Run("Lost start time restarts at now", func(t *testing.T) {
		st := running(20, time.Time{})
		st.Normalize(t0)
		assert.Equal(t, t0, st.StartedAt)
		assert.Equal(t, int64(20), st.SavedTime)
	})
}

func TestStateJSONRoundTrip(t *testing.T) {
	st := running(100, t0.Add(123456789*time.Nanosecond))
	st.Queue("w")
	st.Activate("m")
	st.SavedTime = 100

	data, err := json.Marshal(st)
	require.NoError(t, err)

	var got State
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, st.Equal(got), "round trip mismatch: %+v != %+v", st, got)
}

func TestCloneIsDeep(t *testing.T) {
	st := running(0, t0)
	c := st.Clone()
	c.Activate("b")
	assert.Equal(t, []string{"a"}, st.ActiveScheduleIDs)
	assert.Equal(t, []string{"a", "b"}, c.ActiveScheduleIDs)
}

func TestEndRun(t *testing.T) {
	st := running(10, t0)
	st.Activate("m")
	st.Queue("w")
	st.IsPaused = true
	st.Release("a")
	st.Release("m")
	st.EndRun(t0.Add(5 * time.Second))

	assert.False(t, st.IsPaused)
	assert.True(t, st.StartedAt.IsZero())
	assert.Equal(t, []string{"w"}, st.WaitingScheduleIDs)
}
