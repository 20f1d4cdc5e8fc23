// Package ipc exposes the state manager on the session bus and provides the
// client used by bwctl. Snapshots travel as JSON strings.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/zap"

	"github.com/SoarinFerret/BlockWarden/internal/clock"
	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/session"
	"github.com/SoarinFerret/BlockWarden/internal/state"
)

const (
	ObjectPath    = "/io/github/soarinferret/blockwarden"
	InterfaceName = "io.github.soarinferret.blockwarden.Manager"
	ServiceName   = "io.github.soarinferret.blockwarden"
)

// D-Bus error names returned by the service.
const (
	ErrorNotFound        = InterfaceName + ".Error.NotFound"
	ErrorInvalidArgument = InterfaceName + ".Error.InvalidArgument"
	ErrorFailed          = InterfaceName + ".Error.Failed"
)

const callTimeout = 15 * time.Second

// ScheduleStatus is a schedule as shown to the UI, with its classification
// and the countdown to its next boundary.
type ScheduleStatus struct {
	schedule.Schedule
	Status   schedule.Status `json:"status"`
	Tracked  bool            `json:"tracked"`
	StartsIn int64           `json:"starts_in_seconds,omitempty"`
	EndsIn   int64           `json:"ends_in_seconds,omitempty"`
}

// Status is the GetStatus reply.
type Status struct {
	Session   session.State    `json:"session"`
	Schedules []ScheduleStatus `json:"schedules"`
	LastError string           `json:"last_error,omitempty"`
}

// Resumer is notified when a client asks for a refresh.
type Resumer interface {
	Resume(reason string)
}

// BlockWarden is the exported D-Bus object.
type BlockWarden struct {
	Manager *state.Manager
	Resumer Resumer
	Clock   clock.Clock
	Log     *zap.SugaredLogger
}

func (b *BlockWarden) now() time.Time {
	if b.Clock == nil {
		return time.Now()
	}
	return b.Clock.Now()
}

func (b *BlockWarden) logger() *zap.SugaredLogger {
	if b.Log == nil {
		return zap.NewNop().Sugar()
	}
	return b.Log
}

// callContext bounds the work of a single method call.
func (b *BlockWarden) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func (b *BlockWarden) GetStatus() (string, *dbus.Error) {
	now := b.now()
	snap := b.Manager.Snapshot()
	st := Status{Session: snap, Schedules: []ScheduleStatus{}}
	for _, s := range b.Manager.Schedules() {
		ss := ScheduleStatus{
			Schedule: s,
			Status:   schedule.Classify(s, now),
			Tracked:  snap.Tracked(s.ID),
		}
		if d, ok := schedule.UntilWindowEnd(s, now); ok {
			ss.EndsIn = int64(d / time.Second)
		} else if d, ok := schedule.UntilNextBoundary(s, now); ok {
			ss.StartsIn = int64(d / time.Second)
		}
		st.Schedules = append(st.Schedules, ss)
	}
	if err := b.Manager.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return encode(st)
}

func (b *BlockWarden) ListSchedules() (string, *dbus.Error) {
	return encode(b.Manager.Schedules())
}

func (b *BlockWarden) AddSchedule(scheduleJSON string) (string, *dbus.Error) {
	var s schedule.Schedule
	if err := json.Unmarshal([]byte(scheduleJSON), &s); err != nil {
		return "", invalid(err)
	}
	ctx, cancel := b.callContext()
	defer cancel()
	added, err := b.Manager.AddSchedule(ctx, s)
	if err != nil {
		return "", b.translate("AddSchedule", err)
	}
	return encode(added)
}

func (b *BlockWarden) UpdateSchedule(id, patchJSON string) (string, *dbus.Error) {
	var p schedule.Patch
	if err := json.Unmarshal([]byte(patchJSON), &p); err != nil {
		return "", invalid(err)
	}
	ctx, cancel := b.callContext()
	defer cancel()
	updated, err := b.Manager.UpdateSchedule(ctx, id, p)
	if err != nil {
		return "", b.translate("UpdateSchedule", err)
	}
	return encode(updated)
}

func (b *BlockWarden) DeleteSchedule(id string) *dbus.Error {
	ctx, cancel := b.callContext()
	defer cancel()
	if err := b.Manager.DeleteSchedule(ctx, id); err != nil {
		return b.translate("DeleteSchedule", err)
	}
	return nil
}

// StartSchedule returns the outcome name, e.g. "started" or
// "no_eligible_window".
func (b *BlockWarden) StartSchedule(id string) (string, *dbus.Error) {
	ctx, cancel := b.callContext()
	defer cancel()
	outcome, err := b.Manager.StartSchedule(ctx, id)
	if err != nil {
		return "", b.translate("StartSchedule", err)
	}
	return outcome.String(), nil
}

func (b *BlockWarden) StopSchedule(id string) (bool, *dbus.Error) {
	ctx, cancel := b.callContext()
	defer cancel()
	return b.Manager.StopSchedule(ctx, id), nil
}

func (b *BlockWarden) StopAll() *dbus.Error {
	ctx, cancel := b.callContext()
	defer cancel()
	b.Manager.StopAllSchedules(ctx)
	return nil
}

func (b *BlockWarden) Pause() *dbus.Error {
	ctx, cancel := b.callContext()
	defer cancel()
	if err := b.Manager.Pause(ctx); err != nil {
		return b.translate("Pause", err)
	}
	return nil
}

func (b *BlockWarden) Resume() *dbus.Error {
	ctx, cancel := b.callContext()
	defer cancel()
	if err := b.Manager.Resume(ctx); err != nil {
		return b.translate("Resume", err)
	}
	return nil
}

// Refresh queues a full reconciliation on the loop. Without a loop it
// evaluates directly.
func (b *BlockWarden) Refresh() *dbus.Error {
	if b.Resumer != nil {
		b.Resumer.Resume("client refresh")
		return nil
	}
	ctx, cancel := b.callContext()
	defer cancel()
	b.Manager.Refresh(ctx)
	return nil
}

func (b *BlockWarden) HasStarted(id string) (bool, *dbus.Error) {
	started, err := b.Manager.HasStarted(id)
	if err != nil {
		return false, b.translate("HasStarted", err)
	}
	return started, nil
}

func (b *BlockWarden) translate(method string, err error) *dbus.Error {
	switch {
	case errors.Is(err, state.ErrScheduleNotFound):
		return dbus.NewError(ErrorNotFound, []interface{}{err.Error()})
	case errors.Is(err, schedule.ErrInvalid),
		errors.Is(err, state.ErrDuplicateSchedule),
		errors.Is(err, state.ErrNotRunning),
		errors.Is(err, state.ErrNotPaused):
		return dbus.NewError(ErrorInvalidArgument, []interface{}{err.Error()})
	}
	b.logger().Errorf("%s failed: %v", method, err)
	return dbus.NewError(ErrorFailed, []interface{}{err.Error()})
}

func invalid(err error) *dbus.Error {
	return dbus.NewError(ErrorInvalidArgument, []interface{}{fmt.Sprintf("malformed JSON: %v", err)})
}

func encode(v interface{}) (string, *dbus.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// Export publishes b on conn and claims the service name.
func Export(conn *dbus.Conn, b *BlockWarden) error {
	if err := conn.Export(b, dbus.ObjectPath(ObjectPath), InterfaceName); err != nil {
		return fmt.Errorf("failed to export interface: %w", err)
	}
	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    InterfaceName,
				Methods: introspect.Methods(b),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), dbus.ObjectPath(ObjectPath), "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}
	return nil
}
