// Package enforce adapts the external app-blocking mechanism. The state
// manager only talks to the Actuator interface; backends are chosen by
// configuration.
package enforce

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned by backends that cannot reach an enforcer.
var ErrUnavailable = errors.New("enforcement unavailable")

// AuthorizationStatus mirrors the platform's permission state for blocking.
type AuthorizationStatus int

const (
	AuthorizationNotDetermined AuthorizationStatus = iota
	AuthorizationDenied
	AuthorizationApproved
)

func (a AuthorizationStatus) String() string {
	switch a {
	case AuthorizationApproved:
		return "approved"
	case AuthorizationDenied:
		return "denied"
	default:
		return "not_determined"
	}
}

// Actuator starts and stops enforcement for app selections. Enforce and
// ClearAll must be idempotent.
type Actuator interface {
	Available(ctx context.Context) bool
	AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error)
	RequestAuthorization(ctx context.Context) (AuthorizationStatus, error)
	Enforce(ctx context.Context, appSelection string) error
	ClearAll(ctx context.Context) error
}

const (
	BackendDBus = "dbus"
	BackendNone = "none"
)

// Noop never enforces anything and reports itself unavailable.
type Noop struct{}

func (Noop) Available(context.Context) bool { return false }

func (Noop) AuthorizationStatus(context.Context) (AuthorizationStatus, error) {
	return AuthorizationNotDetermined, nil
}

func (Noop) RequestAuthorization(context.Context) (AuthorizationStatus, error) {
	return AuthorizationNotDetermined, ErrUnavailable
}

func (Noop) Enforce(context.Context, string) error { return ErrUnavailable }
func (Noop) ClearAll(context.Context) error        { return ErrUnavailable }

// New returns the actuator for backend. The dbus backend connects to the
// session bus.
func New(backend, service string) (Actuator, error) {
	switch backend {
	case BackendNone, "":
		return Noop{}, nil
	case BackendDBus:
		return DialDBus(service)
	default:
		return nil, fmt.Errorf("unknown enforcement backend %q", backend)
	}
}
