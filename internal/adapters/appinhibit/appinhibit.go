// Package appinhibit scans /proc for running processes matching the
// configured inhibit_apps patterns (literal process names or regexes)
// and holds the manager's inhibit counter up for as long as any of
// them are running, the same general "watch /proc, diff against last
// scan" shape idle.go's process monitor uses for its own exclusion
// list.
package appinhibit

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/log"
)

const pollInterval = 5 * time.Second

type matcher struct {
	literal string
	re      *regexp.Regexp
}

func compile(patterns []config.AppInhibitPattern) []matcher {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		if p.Kind == config.PatternRegex {
			if re, err := regexp.Compile(p.Pattern); err == nil {
				out = append(out, matcher{re: re})
			}
			continue
		}
		out = append(out, matcher{literal: p.Pattern})
	}
	return out
}

func (m matcher) matches(comm string) bool {
	if m.re != nil {
		return m.re.MatchString(comm)
	}
	return m.literal == comm
}

func scanMatchingComms(matchers []matcher) bool {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		data, err := os.ReadFile("/proc/" + e.Name() + "/comm")
		if err != nil {
			continue
		}
		comm := strings.TrimSpace(string(data))
		for _, m := range matchers {
			if m.matches(comm) {
				return true
			}
		}
	}
	return false
}

// Run polls /proc every pollInterval and increments/decrements the
// manager's inhibit counter as matching processes appear and
// disappear. It re-reads cfg() on every tick so a config reload takes
// effect without restarting the adapter.
func Run(ctx context.Context, m *core.Manager, cfg func() *config.Config) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	held := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c := cfg()
			if len(c.InhibitApps) == 0 {
				if held {
					m.HandleEvent(ctx, core.Event{Kind: core.EventInhibitorRemoved})
					held = false
				}
				continue
			}
			matchers := compile(c.InhibitApps)
			found := scanMatchingComms(matchers)
			if found && !held {
				log.Debug("app inhibit pattern matched a running process")
				m.HandleEvent(ctx, core.Event{Kind: core.EventInhibitorAdded})
				held = true
			} else if !found && held {
				m.HandleEvent(ctx, core.Event{Kind: core.EventInhibitorRemoved})
				held = false
			}
		}
	}
}
