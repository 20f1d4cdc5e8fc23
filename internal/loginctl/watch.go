// Package loginctl turns logind signals into resume edges for the
// reconciliation loop: waking from sleep and unlocking the screen both mean
// wall-clock time may have jumped while nothing was evaluated.
package loginctl

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	login1Service    = "org.freedesktop.login1"
	login1Path       = "/org/freedesktop/login1"
	managerInterface = "org.freedesktop.login1.Manager"
	sessionInterface = "org.freedesktop.login1.Session"

	prepareForSleep   = managerInterface + ".PrepareForSleep"
	propertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

const (
	ReasonWake   = "wake from sleep"
	ReasonUnlock = "session unlock"
)

// Resumer receives resume edges.
type Resumer interface {
	Resume(reason string)
}

// Watcher listens on the system bus for logind signals.
type Watcher struct {
	resumer Resumer
	log     *zap.SugaredLogger
	uid     uint32
	// sessionUID resolves the owner of a session object.
	sessionUID func(dbus.ObjectPath) (uint32, error)
}

// NewWatcher creates a watcher that only reacts to sessions owned by the
// current user.
func NewWatcher(r Resumer, log *zap.SugaredLogger) *Watcher {
	return &Watcher{resumer: r, log: log, uid: uint32(os.Getuid())}
}

// Watch connects to the system bus and forwards resume edges until ctx is
// cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	if w.sessionUID == nil {
		w.sessionUID = func(path dbus.ObjectPath) (uint32, error) {
			return getSessionUID(conn, path)
		}
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(login1Path),
		dbus.WithMatchInterface(managerInterface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return fmt.Errorf("add match failed: %w", err)
	}

	// watch for property changes (session unlocked)
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, sessionInterface),
	); err != nil {
		return fmt.Errorf("add match for PropertiesChanged failed: %w", err)
	}

	c := make(chan *dbus.Signal, 10)
	conn.Signal(c)
	defer conn.RemoveSignal(c)

	w.log.Info("Watching logind for wake and unlock")
	for {
		select {
		case sig := <-c:
			if sig == nil {
				return nil
			}
			if reason, ok := w.handle(sig); ok {
				w.resumer.Resume(reason)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// handle maps a signal to a resume reason.
func (w *Watcher) handle(sig *dbus.Signal) (string, bool) {
	switch sig.Name {
	case prepareForSleep:
		if len(sig.Body) == 0 {
			return "", false
		}
		sleeping, _ := sig.Body[0].(bool)
		if sleeping {
			w.log.Info("System is going to sleep")
			return "", false
		}
		w.log.Info("System has woken up")
		return ReasonWake, true

	case propertiesChanged:
		if len(sig.Body) < 2 {
			return "", false
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != sessionInterface {
			return "", false
		}
		changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return "", false
		}
		val, exists := changedProps["LockedHint"]
		if !exists {
			return "", false
		}
		if locked, _ := val.Value().(bool); locked {
			return "", false
		}
		uid, err := w.sessionUID(sig.Path)
		if err != nil {
			w.log.Warnf("LockedHint: failed to resolve session owner of %s: %v", sig.Path, err)
			return "", false
		}
		if uid != w.uid {
			return "", false
		}
		w.log.Infof("Session %s unlocked", sig.Path)
		return ReasonUnlock, true
	}
	return "", false
}

func getSessionUID(conn *dbus.Conn, sessionPath dbus.ObjectPath) (uint32, error) {
	sessionObj := conn.Object(login1Service, sessionPath)

	var userInfo []interface{}
	err := sessionObj.Call("org.freedesktop.DBus.Properties.Get", 0,
		sessionInterface, "User").Store(&userInfo)
	if err != nil {
		return 0, fmt.Errorf("failed to get user info: %w", err)
	}
	if len(userInfo) < 2 {
		return 0, fmt.Errorf("unexpected user info %v", userInfo)
	}
	uid, ok := userInfo[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected type for session uid")
	}
	return uid, nil
}
