// Package x11idle provides an X11 fallback activity source for
// sessions without Wayland, polling the screensaver extension's idle
// counter the same way fancylock's IdleWatcher does, but inverted: a
// drop in MsSinceUserInput between polls means activity happened,
// which we translate into an EventInputActivity rather than a lock
// trigger (that decision belongs to the action queue, not this
// adapter).
package x11idle

import (
	"context"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/screensaver"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/log"
)

const pollInterval = time.Second

// Run connects to the X server and polls MsSinceUserInput every
// pollInterval, routing an EventInputActivity whenever it decreases
// (the counter resets to near-zero on any key or pointer event).
// Returns immediately if no X server is reachable, which is the normal
// case on a pure-Wayland session.
func Run(ctx context.Context, m *core.Manager) {
	conn, err := xgb.NewConn()
	if err != nil {
		log.Info("x11idle adapter: no X server reachable, skipping: %v", err)
		return
	}
	defer conn.Close()

	if err := screensaver.Init(conn); err != nil {
		log.Warn("x11idle adapter: screensaver extension unavailable: %v", err)
		return
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	log.Info("x11idle adapter: polling screensaver idle counter")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastIdleMs uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := screensaver.QueryInfo(conn, xproto.Drawable(root)).Reply()
			if err != nil {
				log.Warn("x11idle adapter: QueryInfo failed: %v", err)
				continue
			}
			if info.MsSinceUserInput < lastIdleMs {
				m.HandleEvent(ctx, core.Event{Kind: core.EventInputActivity})
			}
			lastIdleMs = info.MsSinceUserInput
		}
	}
}
