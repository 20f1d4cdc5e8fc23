// Package notify sends desktop notifications through the freedesktop
// notification service on the session bus.
package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = "/org/freedesktop/Notifications"
	notifyMethod         = "org.freedesktop.Notifications.Notify"

	appName       = "BlockWarden"
	expireTimeout = int32(10000)
)

// Desktop posts notifications to the user's notification daemon.
type Desktop struct {
	obj dbus.BusObject
}

// NewDesktop uses conn, which must be a session bus connection.
func NewDesktop(conn *dbus.Conn) *Desktop {
	return &Desktop{obj: conn.Object(notificationsService, notificationsPath)}
}

func newDesktop(obj dbus.BusObject) *Desktop {
	return &Desktop{obj: obj}
}

// Notify shows a notification with normal urgency.
func (d *Desktop) Notify(ctx context.Context, summary, body string) error {
	call := d.obj.CallWithContext(ctx, notifyMethod, 0,
		appName,                 // app_name
		uint32(0),               // replaces_id
		"appointment-soon",      // app_icon
		summary,                 // summary
		body,                    // body
		[]string{},              // actions
		map[string]dbus.Variant{ // hints
			"urgency": dbus.MakeVariant(byte(1)),
		},
		expireTimeout,
	)
	if call.Err != nil {
		return fmt.Errorf("failed to send notification: %w", call.Err)
	}
	return nil
}
