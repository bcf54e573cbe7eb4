// Package power bridges logind and UPower D-Bus signals into core
// events: lid open/close, suspend/wake, and session lock/unlock
// (whether Stasis initiated the lock or not). It calls
// D-Bus the same way fancylock's MediaController does -- a live
// *dbus.Conn, Object(dest, path).Call/AddMatchSignal -- rather than a
// higher-level systemd binding, to keep the whole daemon on one D-Bus
// idiom.
package power

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/godbus/dbus/v5"

	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/log"
	"github.com/stasis-project/stasis/internal/supervisor"
)

const (
	login1Dest = "org.freedesktop.login1"
	upowerDest = "org.freedesktop.UPower"
	upowerPath = "/org/freedesktop/UPower"
)

// dbusConnAdapter narrows *dbus.Conn down to supervisor.DbusConn.
type dbusConnAdapter struct{ conn *dbus.Conn }

func (a dbusConnAdapter) Object(dest, path string) supervisor.BusObject {
	return dbusObjectAdapter{a.conn.Object(dest, dbus.ObjectPath(path))}
}

type dbusObjectAdapter struct{ obj dbus.BusObject }

func (a dbusObjectAdapter) GetProperty(p string) (supervisor.Variant, error) {
	v, err := a.obj.GetProperty(p)
	if err != nil {
		return supervisor.Variant{}, err
	}
	return supervisor.Variant{Value: v.Value()}, nil
}

// resolveSessionPath asks logind for the session object path owning
// this process, the same lookup "loginctl lock-session" resolves
// implicitly from the caller's PID.
func resolveSessionPath(conn *dbus.Conn) (string, error) {
	mgr := conn.Object(login1Dest, "/org/freedesktop/login1")
	var path dbus.ObjectPath
	if err := mgr.Call("org.freedesktop.login1.Manager.GetSessionByPID", 0, uint32(os.Getpid())).Store(&path); err != nil {
		return "", fmt.Errorf("resolving logind session: %w", err)
	}
	return string(path), nil
}

// Run connects to the system bus, wires the supervisor's logind
// session handle, and routes lid-switch and resume-from-sleep signals
// into m until ctx is cancelled.
func Run(ctx context.Context, m *core.Manager, super *supervisor.Supervisor) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		log.Warn("power adapter: system bus unavailable, lid/sleep events disabled: %v", err)
		return
	}
	defer conn.Close()

	sessionPath, err := resolveSessionPath(conn)
	if err != nil {
		log.Warn("power adapter: %v", err)
	} else {
		super.SetSession(dbusConnAdapter{conn}, sessionPath)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		log.Warn("power adapter: subscribing to PrepareForSleep failed: %v", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(dbus.ObjectPath(upowerPath)),
	); err != nil {
		log.Warn("power adapter: subscribing to UPower properties failed: %v", err)
	}
	if sessionPath != "" {
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.login1.Session"),
			dbus.WithMatchMember("Lock"),
			dbus.WithMatchObjectPath(dbus.ObjectPath(sessionPath)),
		); err != nil {
			log.Warn("power adapter: subscribing to session Lock failed: %v", err)
		}
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.login1.Session"),
			dbus.WithMatchMember("Unlock"),
			dbus.WithMatchObjectPath(dbus.ObjectPath(sessionPath)),
		); err != nil {
			log.Warn("power adapter: subscribing to session Unlock failed: %v", err)
		}
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			handleSignal(ctx, m, sig)
		}
	}
}

func handleSignal(ctx context.Context, m *core.Manager, sig *dbus.Signal) {
	switch sig.Name {
	case "org.freedesktop.login1.Manager.PrepareForSleep":
		if len(sig.Body) == 0 {
			return
		}
		goingToSleep, _ := sig.Body[0].(bool)
		if goingToSleep {
			log.Info("suspending")
			m.HandleEvent(ctx, core.Event{Kind: core.EventSuspend})
		} else {
			log.Info("resumed from suspend")
			m.HandleEvent(ctx, core.Event{Kind: core.EventWake})
		}

	case "org.freedesktop.login1.Session.Lock":
		m.HandleEvent(ctx, core.Event{Kind: core.EventSessionLocked})

	case "org.freedesktop.login1.Session.Unlock":
		m.HandleEvent(ctx, core.Event{Kind: core.EventSessionUnlocked})

	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}
		iface, _ := sig.Body[0].(string)
		if iface != "org.freedesktop.UPower" {
			return
		}
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		v, ok := changed["LidIsClosed"]
		if !ok {
			return
		}
		closed, _ := v.Value().(bool)
		if closed {
			m.HandleEvent(ctx, core.Event{Kind: core.EventLidClosed})
		} else {
			m.HandleEvent(ctx, core.Event{Kind: core.EventLidOpened})
		}
	}
}

// SessionIDFromEnv is a fallback session resolver for environments
// where GetSessionByPID is unsupported (some container setups), using
// $XDG_SESSION_ID directly.
func SessionIDFromEnv() (int, bool) {
	id, err := strconv.Atoi(os.Getenv("XDG_SESSION_ID"))
	if err != nil {
		return 0, false
	}
	return id, true
}
