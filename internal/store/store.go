// Package store persists the session record and the schedule list to a
// durable key-value namespace.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/session"
)

const (
	KeySession   = "session"
	KeySchedules = "schedules"
)

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("corrupt record")

// Store is the persistence gateway used by the state manager.
type Store interface {
	// LoadSession returns nil without error when no session was saved yet.
	LoadSession(ctx context.Context) (*session.State, error)
	SaveSession(ctx context.Context, st session.State) error
	// LoadSchedules returns nil without error when no list was saved yet.
	LoadSchedules(ctx context.Context) ([]schedule.Schedule, error)
	SaveSchedules(ctx context.Context, schedules []schedule.Schedule) error
	Close() error
}

// Records is the result of LoadAll. Errors are kept per record so a bad
// schedule list does not hide a good session record.
type Records struct {
	Session      *session.State
	Schedules    []schedule.Schedule
	SessionErr   error
	SchedulesErr error
}

// LoadAll reads both records in one call.
func LoadAll(ctx context.Context, s Store) Records {
	var r Records
	r.Session, r.SessionErr = s.LoadSession(ctx)
	r.Schedules, r.SchedulesErr = s.LoadSchedules(ctx)
	return r
}

// kv is the raw byte interface shared by the backends.
type kv interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	put(ctx context.Context, key string, value []byte) error
}

// codec implements Store on top of a kv backend.
type codec struct {
	kv kv
}

func (c codec) LoadSession(ctx context.Context) (*session.State, error) {
	data, ok, err := c.kv.get(ctx, KeySession)
	if err != nil || !ok {
		return nil, err
	}
	var st session.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeySession, err)
	}
	return &st, nil
}

func (c codec) SaveSession(ctx context.Context, st session.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return c.kv.put(ctx, KeySession, data)
}

func (c codec) LoadSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	data, ok, err := c.kv.get(ctx, KeySchedules)
	if err != nil || !ok {
		return nil, err
	}
	var schedules []schedule.Schedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeySchedules, err)
	}
	if schedules == nil {
		schedules = []schedule.Schedule{}
	}
	return schedules, nil
}

func (c codec) SaveSchedules(ctx context.Context, schedules []schedule.Schedule) error {
	if schedules == nil {
		schedules = []schedule.Schedule{}
	}
	data, err := json.MarshalIndent(schedules, "", "  ")
	if err != nil {
		return err
	}
	return c.kv.put(ctx, KeySchedules, data)
}
