// Package input watches raw evdev devices for keyboard/pointer/touch
// activity, the same device-discovery and event-read loop as the
// evdev-based idle watcher other Wayland utilities use when they can't
// rely on the compositor's own idle-notify protocol for every input
// class (touchpad gestures in particular rarely surface there).
package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	evdev "github.com/gvalkov/golang-evdev"

	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/log"
)

const devInputDir = "/dev/input"

// relevant reports whether dev exposes key, relative-axis or
// absolute-axis events (keyboards, mice, touchpads, touchscreens).
// Switch-only devices such as a lid switch are left out; any device
// with key events, a power button included, counts.
func relevant(dev *evdev.InputDevice) bool {
	caps := dev.Capabilities
	for cap := range caps {
		if cap.Type == evdev.EV_KEY || cap.Type == evdev.EV_REL || cap.Type == evdev.EV_ABS {
			return true
		}
	}
	return false
}

func discover() []*evdev.InputDevice {
	entries, err := os.ReadDir(devInputDir)
	if err != nil {
		return nil
	}
	var devices []*evdev.InputDevice
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		path := filepath.Join(devInputDir, e.Name())
		dev, err := evdev.Open(path)
		if err != nil {
			continue
		}
		if relevant(dev) {
			devices = append(devices, dev)
		} else {
			dev.File.Close()
		}
	}
	return devices
}

// Run opens every relevant evdev device under /dev/input and routes an
// EventInputActivity to m for reads from any of them, at most one per
// device every inputDebounce. Devices that fail to open (commonly a
// permissions issue when not in the "input" group) are skipped rather
// than aborting startup, since partial input coverage is still better
// than none; a warning is logged only when no device is usable.
func Run(ctx context.Context, m *core.Manager) {
	devices := discover()
	if len(devices) == 0 {
		log.Warn("no evdev input devices found or accessible; relying on compositor/X11 idle signal only")
		return
	}
	log.Info("monitoring %d input device(s) for activity", len(devices))

	done := make(chan struct{})
	for _, dev := range devices {
		go watchDevice(ctx, m, dev, done)
	}

	<-ctx.Done()
	for range devices {
		<-done
	}
}

func watchDevice(ctx context.Context, m *core.Manager, dev *evdev.InputDevice, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	defer dev.File.Close()

	// inputDebounce suppresses event storms: reads arriving within it
	// of the last routed event are dropped.
	const inputDebounce = 300 * time.Millisecond
	var lastSent time.Time

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		events, err := dev.Read()
		if err != nil {
			return
		}
		if len(events) == 0 {
			continue
		}
		if now := time.Now(); now.Sub(lastSent) >= inputDebounce {
			lastSent = now
			m.HandleEvent(ctx, core.Event{Kind: core.EventInputActivity})
		}
	}
}
