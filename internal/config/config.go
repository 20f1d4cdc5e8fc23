package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/SoarinFerret/BlockWarden/internal/enforce"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/store"
)

const DefaultTickInterval = 15 * time.Second

// Duration is a time.Duration written as a Go duration string, e.g. "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// TimeRange is a daily window written as "HH:MM-HH:MM". A start after the
// end wraps past midnight.
type TimeRange struct {
	Start schedule.TimeOfDay
	End   schedule.TimeOfDay
}

func (tr *TimeRange) UnmarshalText(text []byte) error {
	str := string(text)
	parts := strings.Split(str, "-")
	if len(parts) != 2 {
		return fmt.Errorf("invalid time range format: expected 'HH:MM-HH:MM'")
	}

	start, err1 := schedule.ParseTimeOfDay(strings.TrimSpace(parts[0]))
	end, err2 := schedule.ParseTimeOfDay(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return fmt.Errorf("invalid time values: %v", errors.Join(err1, err2))
	}
	if start == end {
		return fmt.Errorf("start time %s must differ from end time %s", parts[0], parts[1])
	}

	tr.Start = start
	tr.End = end
	return nil
}

func (tr TimeRange) MarshalText() ([]byte, error) {
	return []byte(tr.Start.String() + "-" + tr.End.String()), nil
}

type DaemonConfig struct {
	TickInterval Duration `toml:"tick_interval"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type EnforcementConfig struct {
	Backend string `toml:"backend"`
	Service string `toml:"service"`
}

type NotifyConfig struct {
	Enabled *bool `toml:"enabled"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// ScheduleConfig seeds a schedule on first run.
type ScheduleConfig struct {
	ID           string    `toml:"id"`
	Name         string    `toml:"name"`
	Window       TimeRange `toml:"window"`
	Days         []string  `toml:"days"`
	AppSelection string    `toml:"app_selection"`
	Enabled      *bool     `toml:"enabled"`
}

type Config struct {
	Daemon      DaemonConfig      `toml:"daemon"`
	Storage     StorageConfig     `toml:"storage"`
	Enforcement EnforcementConfig `toml:"enforcement"`
	Notify      NotifyConfig      `toml:"notify"`
	Log         LogConfig         `toml:"log"`
	Schedules   []ScheduleConfig  `toml:"schedules"`
}

// SetDefault fills every unset value.
func (c *Config) SetDefault() {
	if c.Daemon.TickInterval.Duration == 0 {
		c.Daemon.TickInterval.Duration = DefaultTickInterval
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = store.BackendFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStateDir()
	}
	if c.Enforcement.Backend == "" {
		c.Enforcement.Backend = enforce.BackendDBus
	}
	if c.Enforcement.Service == "" {
		c.Enforcement.Service = enforce.EnforcerService
	}
	if c.Notify.Enabled == nil {
		defaultVal := true
		c.Notify.Enabled = &defaultVal
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.Schedules {
		if c.Schedules[i].Enabled == nil {
			defaultVal := true
			c.Schedules[i].Enabled = &defaultVal
		}
	}
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case store.BackendFile, store.BackendSQLite, store.BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Enforcement.Backend {
	case enforce.BackendDBus, enforce.BackendNone:
	default:
		return fmt.Errorf("unknown enforcement backend %q", c.Enforcement.Backend)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Daemon.TickInterval.Duration < 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	_, err := c.Seeds()
	return err
}

// Seeds converts the configured schedules.
func (c *Config) Seeds() ([]schedule.Schedule, error) {
	out := make([]schedule.Schedule, 0, len(c.Schedules))
	for i, sc := range c.Schedules {
		days, err := ParseDays(sc.Days)
		if err != nil {
			return nil, fmt.Errorf("schedules[%d] %q: %w", i, sc.Name, err)
		}
		s := schedule.Schedule{
			ID:           sc.ID,
			Name:         sc.Name,
			Start:        sc.Window.Start,
			End:          sc.Window.End,
			Days:         days,
			Enabled:      sc.Enabled == nil || *sc.Enabled,
			AppSelection: sc.AppSelection,
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("schedules[%d] %q: %w", i, sc.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseDays parses weekday names such as "mon" or "Friday". The shorthands
// "weekdays", "weekends" and "daily" expand to their days.
func ParseDays(names []string) ([]time.Weekday, error) {
	days := []time.Weekday{}
	for _, name := range names {
		switch n := strings.ToLower(strings.TrimSpace(name)); n {
		case "weekdays":
			days = append(days, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
		case "weekends":
			days = append(days, time.Saturday, time.Sunday)
		case "daily":
			days = append(days, time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday)
		default:
			d, ok := weekdays[n]
			if !ok {
				return nil, fmt.Errorf("unknown weekday %q", name)
			}
			days = append(days, d)
		}
	}
	return days, nil
}

// DefaultStateDir is $XDG_STATE_HOME/blockwarden, falling back to
// ~/.local/state/blockwarden.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "blockwarden")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "blockwarden")
	}
	return filepath.Join(home, ".local", "state", "blockwarden")
}

// DefaultConfigPath is the config.toml under the user config directory.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "blockwarden", "config.toml")
}

// LoadConfigFromFile reads path. A missing file yields the defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		config := &Config{}
		config.SetDefault()
		return config, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	var config Config
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	config.SetDefault()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	config.SetDefault()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
