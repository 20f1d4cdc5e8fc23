package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        TimeOfDay
		expectError bool
	}{
		{"Morning", "09:00", At(9, 0), false},
		{"Last minute", "23:59", At(23, 59), false},
		{"Midnight", "00:00", 0, false},
		{"Out of range hour", "24:00", 0, true},
		{"Bad separator", "09.00", 0, true},
		{"Empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestScheduleJSON(t *testing.T) {
	s := New("Work", At(9, 0), At(17, 30), []time.Weekday{time.Friday, time.Monday, time.Monday}, "sel-1")
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"start_time":"09:00"`)
	assert.Contains(t, string(data), `"days_of_week":[1,5]`)

	var got Schedule
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, s, got)
}

func TestNew_AssignsUniqueIDs(t *testing.T) {
	a := New("a", At(9, 0), At(10, 0), nil, "")
	b := New("b", At(9, 0), At(10, 0), nil, "")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Enabled)
	assert.Equal(t, []time.Weekday{}, a.Days)
	assert.False(t, a.Enforceable())
}

func TestValidate(t *testing.T) {
	s := New("ok", At(9, 0), At(10, 0), []time.Weekday{time.Sunday}, "")
	assert.NoError(t, s.Validate())

	noName := s
	noName.Name = ""
	assert.ErrorIs(t, noName.Validate(), ErrInvalid)

	badDay := s.Clone()
	badDay.Days = []time.Weekday{7}
	assert.ErrorIs(t, badDay.Validate(), ErrInvalid)

	badTime := s
	badTime.End = TimeOfDay(24 * 60)
	assert.ErrorIs(t, badTime.Validate(), ErrInvalid)
}

func TestPatchApply(t *testing.T) {
	s := New("Work", At(9, 0), At(17, 0), []time.Weekday{time.Monday}, "sel-1")
	name := "Deep work"
	end := At(18, 0)
	days := []time.Weekday{time.Tuesday, time.Monday}

	p := Patch{Name: &name, End: &end, Days: &days}
	got := p.Apply(s)

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "Deep work", got.Name)
	assert.Equal(t, At(9, 0), got.Start)
	assert.Equal(t, At(18, 0), got.End)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday}, got.Days)
	assert.Equal(t, []time.Weekday{time.Monday}, s.Days, "original must not change")
	assert.True(t, p.TouchesEnforcement())
	assert.False(t, Patch{Name: &name}.TouchesEnforcement())
}
