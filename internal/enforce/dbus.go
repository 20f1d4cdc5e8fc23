package enforce

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	EnforcerService   = "io.github.soarinferret.blockwarden.Enforcer"
	EnforcerPath      = "/io/github/soarinferret/blockwarden/Enforcer"
	EnforcerInterface = "io.github.soarinferret.blockwarden.Enforcer"

	probeTimeout = 2 * time.Second
)

// DBus forwards enforcement to an enforcer service on the session bus.
type DBus struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// DialDBus opens a private session bus connection and targets service. An
// empty service uses EnforcerService.
func DialDBus(service string) (*DBus, error) {
	if service == "" {
		service = EnforcerService
	}
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send hello: %w", err)
	}
	return &DBus{conn: conn, obj: conn.Object(service, dbus.ObjectPath(EnforcerPath))}, nil
}

func newDBus(obj dbus.BusObject) *DBus {
	return &DBus{obj: obj}
}

func (d *DBus) call(ctx context.Context, method string, args ...interface{}) *dbus.Call {
	return d.obj.CallWithContext(ctx, EnforcerInterface+"."+method, 0, args...)
}

// Available probes the enforcer within ctx, bounded by probeTimeout. An
// unreachable service is unavailable.
func (d *DBus) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var ok bool
	if err := d.call(ctx, "IsAvailable").Store(&ok); err != nil {
		return false
	}
	return ok
}

func (d *DBus) AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error) {
	var status string
	if err := d.call(ctx, "AuthorizationStatus").Store(&status); err != nil {
		return AuthorizationNotDetermined, fmt.Errorf("failed to query authorization: %w", err)
	}
	return parseAuthorization(status), nil
}

func (d *DBus) RequestAuthorization(ctx context.Context) (AuthorizationStatus, error) {
	var status string
	if err := d.call(ctx, "RequestAuthorization").Store(&status); err != nil {
		return AuthorizationNotDetermined, fmt.Errorf("failed to request authorization: %w", err)
	}
	return parseAuthorization(status), nil
}

func (d *DBus) Enforce(ctx context.Context, appSelection string) error {
	if call := d.call(ctx, "Enforce", appSelection); call.Err != nil {
		return fmt.Errorf("failed to enforce %s: %w", appSelection, call.Err)
	}
	return nil
}

func (d *DBus) ClearAll(ctx context.Context) error {
	if call := d.call(ctx, "ClearAll"); call.Err != nil {
		return fmt.Errorf("failed to clear enforcement: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (d *DBus) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func parseAuthorization(s string) AuthorizationStatus {
	switch s {
	case "approved":
		return AuthorizationApproved
	case "denied":
		return AuthorizationDenied
	default:
		return AuthorizationNotDetermined
	}
}
