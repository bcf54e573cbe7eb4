// Package compositor watches the Wayland compositor connection as a
// liveness signal: if the compositor disconnects (session ending, or
// crashing), Stasis has no session left to manage and should shut
// down cleanly rather than spin retrying forever. It binds the
// registry the same way fancylock's WaylandLocker does, but only
// cares about the wl_seat global existing and the display staying
// dispatchable.
package compositor

import (
	"context"
	"fmt"
	"time"

	"github.com/neurlang/wayland/wl"
	"github.com/neurlang/wayland/wlclient"

	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/log"
)

type monitor struct {
	display  *wl.Display
	registry *wl.Registry
	seat     *wl.Seat
}

func (m *monitor) HandleRegistryGlobal(ev wl.RegistryGlobalEvent) {
	if ev.Interface == "wl_seat" {
		m.seat = wlclient.RegistryBindSeatInterface(m.registry, ev.Name, 7)
	}
}

// Run connects to the Wayland display named by WAYLAND_DISPLAY and
// dispatches events until ctx is cancelled or the connection errors
// out. On a connection error it notifies mgr.Shutdown so the rest of
// the daemon winds down; on ctx cancellation it just returns. Returns
// immediately, without error, if no Wayland display is reachable (an
// X11-only session falls back entirely on evdev + X11-specific
// adapters for activity).
func Run(ctx context.Context, mgr *core.Manager) {
	display, err := wlclient.DisplayConnect(nil)
	if err != nil {
		log.Info("compositor adapter: no Wayland display, skipping liveness watchdog: %v", err)
		return
	}
	defer display.Disconnect()

	h := &monitor{display: display}
	h.registry, err = display.GetRegistry()
	if err != nil {
		log.Warn("compositor adapter: get_registry failed: %v", err)
		return
	}
	h.registry.AddGlobalHandler(h)
	if err := wlclient.DisplayRoundtrip(display); err != nil {
		log.Warn("compositor adapter: registry roundtrip failed: %v", err)
		return
	}

	log.Info("compositor adapter: connected, watching for compositor exit")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := wlclient.DisplayDispatch(display); err != nil {
			log.Warn(fmt.Sprintf("compositor adapter: connection lost, shutting down: %v", err))
			mgr.Shutdown.Notify()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
