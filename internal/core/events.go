package core

import (
	"context"
	"fmt"
	"time"

	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/log"
)

// EventKind enumerates every signal the Event Router (spec §4.6)
// dispatches into the Manager. Source adapters translate whatever
// native shape they receive (evdev, Wayland, D-Bus, sysfs) into one of
// these before handing it to HandleEvent, so the core never imports an
// adapter package.
type EventKind int

const (
	EventInputActivity EventKind = iota
	EventInhibitorAdded
	EventInhibitorRemoved
	EventLidClosed
	EventLidOpened
	EventPowerSourceChanged
	EventMediaPlaybackChanged
	EventSessionLocked
	EventSessionUnlocked
	EventSuspend
	EventWake
	EventConfigReloaded
)

// Event is a single occurrence routed to HandleEvent. Only the fields
// relevant to Kind are read.
type Event struct {
	Kind EventKind

	OnBattery    bool // EventPowerSourceChanged
	MediaPlaying bool // EventMediaPlaybackChanged
	NewConfig    *config.Config // EventConfigReloaded
}

// HandleEvent is the single legal entry point for adapter-originated
// state changes; it acquires the manager lock itself so callers never
// need to. IPC commands mutate state through the dedicated exported
// methods instead, but take the same lock.
func (m *Manager) HandleEvent(ctx context.Context, ev Event) {
	m.Lock()
	defer m.Unlock()

	now := time.Now()
	s := m.State

	switch ev.Kind {
	case EventInputActivity:
		m.ResetOnActivity(ctx, now)

	case EventInhibitorAdded:
		m.IncrInhibitor()

	case EventInhibitorRemoved:
		m.DecrInhibitor()
		if s.ActiveInhibitorCount == 0 && !s.ManuallyPaused {
			m.ResetOnActivity(ctx, now)
		}

	case EventLidClosed:
		m.handleLidAction(ctx, s.Config.LidCloseAction)

	case EventLidOpened:
		m.handleLidAction(ctx, s.Config.LidOpenAction)

	case EventPowerSourceChanged:
		if s.Chassis.Kind != ChassisLaptop {
			return
		}
		if s.Chassis.OnBattery == ev.OnBattery {
			return
		}
		s.Chassis.OnBattery = ev.OnBattery
		m.ReconcileBlock(ctx)

	case EventMediaPlaybackChanged:
		wasPlaying := s.MPRISPlaying
		s.MPRISPlaying = ev.MediaPlaying
		if ev.MediaPlaying && !wasPlaying {
			m.IncrInhibitor()
		} else if !ev.MediaPlaying && wasPlaying {
			m.DecrInhibitor()
			if s.ActiveInhibitorCount == 0 && !s.ManuallyPaused {
				m.ResetOnActivity(ctx, now)
			}
		}

	case EventSessionLocked:
		if s.Lock.IsLocked {
			return
		}
		s.Lock.IsLocked = true
		s.Lock.LockedAt = now
		if cmd := findLockProbeCommand(s.Queue); cmd != "" {
			s.Lock.Command = cmd
		}
		m.advancePastLockMarker(now)
		m.LockNotify.Notify()

	case EventSessionUnlocked:
		m.ResetOnActivity(ctx, now)

	case EventSuspend:
		m.IncrInhibitor()

	case EventWake:
		m.DecrInhibitor()
		m.ResetOnActivity(ctx, now)

	case EventConfigReloaded:
		if ev.NewConfig == nil {
			log.Warn("config reload event carried a nil config, ignoring")
			return
		}
		s.Config = ev.NewConfig
		s.Queue.UpdateFromConfig(ev.NewConfig)
		m.ReconcileBlock(ctx)
		m.ActivityNotify.Notify()

	default:
		log.Warn("unhandled event kind %d", ev.Kind)
	}
}

func (m *Manager) handleLidAction(ctx context.Context, action config.LidAction) {
	switch action.Kind {
	case config.LidIgnore:
		return
	case config.LidLockScreen:
		if idx, a, ok := m.State.Queue.FindByName("lock_screen"); ok {
			m.RunAction(ctx, idx, *a)
			return
		}
		m.super.RunBackground(ctx, "loginctl lock-session")
	case config.LidSuspend:
		m.super.RunBackground(ctx, "systemctl suspend")
	case config.LidWake:
		m.ResetOnActivity(ctx, time.Now())
	case config.LidCustom:
		m.super.RunBackground(ctx, action.Command)
	default:
		log.Warn(fmt.Sprintf("unknown lid action kind %q", action.Kind))
	}
}
