package schedule

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

var ErrInvalid = errors.New("invalid schedule")

// TimeOfDay is a wall-clock time with minute precision, stored as minutes
// since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(str string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", str)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected 'HH:MM'", str)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// At builds a TimeOfDay from an hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Schedule is a named, recurring blocking window.
type Schedule struct {
	ID           string         `json:"id" toml:"id"`
	Name         string         `json:"name" toml:"name"`
	Start        TimeOfDay      `json:"start_time" toml:"start_time"`
	End          TimeOfDay      `json:"end_time" toml:"end_time"`
	Days         []time.Weekday `json:"days_of_week" toml:"days_of_week"`
	Enabled      bool           `json:"is_active" toml:"enabled"`
	AppSelection string         `json:"app_selection,omitempty" toml:"app_selection"`
}

// New creates an enabled schedule with a freshly assigned id.
func New(name string, start, end TimeOfDay, days []time.Weekday, appSelection string) Schedule {
	return Schedule{
		ID:           uuid.New().String(),
		Name:         name,
		Start:        start,
		End:          end,
		Days:         normalizeDays(days),
		Enabled:      true,
		AppSelection: appSelection,
	}
}

// Validate checks field ranges and normalizes the weekday set.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if s.Start < 0 || s.Start >= minutesPerDay || s.End < 0 || s.End >= minutesPerDay {
		return fmt.Errorf("%w: time of day out of range", ErrInvalid)
	}
	for _, d := range s.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalid, d)
		}
	}
	s.Days = normalizeDays(s.Days)
	return nil
}

// Enforceable reports whether the schedule carries an app selection.
func (s Schedule) Enforceable() bool {
	return s.AppSelection != ""
}

// Overnight reports whether the window crosses midnight.
func (s Schedule) Overnight() bool {
	return s.Start > s.End
}

func (s Schedule) runsOn(d time.Weekday) bool {
	return slices.Contains(s.Days, d)
}

func normalizeDays(days []time.Weekday) []time.Weekday {
	out := slices.Clone(days)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []time.Weekday{}
	}
	return out
}

// Clone returns a deep copy.
func (s Schedule) Clone() Schedule {
	s.Days = slices.Clone(s.Days)
	return s
}

// Patch holds optional edits for UpdateSchedule. Nil fields are left as-is.
type Patch struct {
	Name         *string         `json:"name,omitempty"`
	Start        *TimeOfDay      `json:"start_time,omitempty"`
	End          *TimeOfDay      `json:"end_time,omitempty"`
	Days         *[]time.Weekday `json:"days_of_week,omitempty"`
	Enabled      *bool           `json:"is_active,omitempty"`
	AppSelection *string         `json:"app_selection,omitempty"`
}

// Apply returns s with the patch applied. The id is never changed.
func (p Patch) Apply(s Schedule) Schedule {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Start != nil {
		out.Start = *p.Start
	}
	if p.End != nil {
		out.End = *p.End
	}
	if p.Days != nil {
		out.Days = normalizeDays(*p.Days)
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.AppSelection != nil {
		out.AppSelection = *p.AppSelection
	}
	return out
}

// TouchesEnforcement reports whether the patch changes anything that affects
// which window is enforced or what it blocks.
func (p Patch) TouchesEnforcement() bool {
	return p.Start != nil || p.End != nil || p.Days != nil || p.Enabled != nil || p.AppSelection != nil
}
