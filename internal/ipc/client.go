package ipc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/SoarinFerret/BlockWarden/internal/schedule"
)

// Client calls the daemon over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the session bus.
func Dial() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, obj: conn.Object(ServiceName, dbus.ObjectPath(ObjectPath))}, nil
}

func newClient(obj dbus.BusObject) *Client {
	return &Client{obj: obj}
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, out []interface{}, args ...interface{}) error {
	call := c.obj.CallWithContext(ctx, InterfaceName+"."+method, 0, args...)
	if call.Err != nil {
		return describe(method, call.Err)
	}
	if len(out) == 0 {
		return nil
	}
	if err := call.Store(out...); err != nil {
		return fmt.Errorf("%s: bad reply: %w", method, err)
	}
	return nil
}

func (c *Client) callJSON(ctx context.Context, method string, v interface{}, args ...interface{}) error {
	var reply string
	if err := c.call(ctx, method, []interface{}{&reply}, args...); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(reply), v); err != nil {
		return fmt.Errorf("%s: bad reply: %w", method, err)
	}
	return nil
}

// describe turns a service error into a readable one.
func describe(method string, err error) error {
	if derr, ok := err.(dbus.Error); ok && len(derr.Body) > 0 {
		if msg, ok := derr.Body[0].(string); ok {
			return fmt.Errorf("%s: %s", method, msg)
		}
	}
	if derr, ok := err.(*dbus.Error); ok && len(derr.Body) > 0 {
		if msg, ok := derr.Body[0].(string); ok {
			return fmt.Errorf("%s: %s", method, msg)
		}
	}
	return fmt.Errorf("%s: %w", method, err)
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.callJSON(ctx, "GetStatus", &st)
	return st, err
}

func (c *Client) ListSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	var out []schedule.Schedule
	err := c.callJSON(ctx, "ListSchedules", &out)
	return out, err
}

func (c *Client) AddSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return schedule.Schedule{}, err
	}
	var out schedule.Schedule
	err = c.callJSON(ctx, "AddSchedule", &out, string(data))
	return out, err
}

func (c *Client) UpdateSchedule(ctx context.Context, id string, p schedule.Patch) (schedule.Schedule, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return schedule.Schedule{}, err
	}
	var out schedule.Schedule
	err = c.callJSON(ctx, "UpdateSchedule", &out, id, string(data))
	return out, err
}

func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.call(ctx, "DeleteSchedule", nil, id)
}

// StartSchedule returns the outcome name reported by the daemon.
func (c *Client) StartSchedule(ctx context.Context, id string) (string, error) {
	var outcome string
	err := c.call(ctx, "StartSchedule", []interface{}{&outcome}, id)
	return outcome, err
}

func (c *Client) StopSchedule(ctx context.Context, id string) (bool, error) {
	var stopped bool
	err := c.call(ctx, "StopSchedule", []interface{}{&stopped}, id)
	return stopped, err
}

func (c *Client) StopAll(ctx context.Context) error {
	return c.call(ctx, "StopAll", nil)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, "Pause", nil)
}

func (c *Client) Resume(ctx context.Context) error {
	return c.call(ctx, "Resume", nil)
}

func (c *Client) Refresh(ctx context.Context) error {
	return c.call(ctx, "Refresh", nil)
}

func (c *Client) HasStarted(ctx context.Context, id string) (bool, error) {
	var started bool
	err := c.call(ctx, "HasStarted", []interface{}{&started}, id)
	return started, err
}
