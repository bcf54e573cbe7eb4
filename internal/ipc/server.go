// Package ipc serves the stasisctl command protocol over a UNIX
// domain socket: one line in, one line (or JSON blob) out, the socket
// recreated fresh on every daemon start the way fancylock's PID-file
// single-instance guard clears stale state before binding.
package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/log"
)

// ReloadFunc loads a fresh configuration from disk, returning an error
// if the file is malformed; the server feeds the result into
// core.EventConfigReloaded on success and reports the error back to the
// caller otherwise, leaving the running config untouched.
type ReloadFunc func() (*config.Config, error)

// Server owns the listening socket and routes each connection's single
// command to the Manager.
type Server struct {
	path   string
	m      *core.Manager
	reload ReloadFunc
}

// New returns a Server bound to socketPath, not yet listening.
func New(socketPath string, m *core.Manager, reload ReloadFunc) *Server {
	return &Server{path: socketPath, m: m, reload: reload}
}

// Run removes any stale socket file, listens, and serves connections
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	_ = os.Remove(s.path)

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.path, err)
	}
	defer ln.Close()
	defer os.Remove(s.path)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Info("IPC server listening on %s", s.path)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn("IPC accept error: %v", err)
				continue
			}
		}
		go s.handle(ctx, conn)
	}
}

// connTimeout bounds an entire request/response round trip, so a
// stalled or malicious client can never pin a connection goroutine
// open indefinitely. maxLineBytes caps the request line itself: the
// protocol is a handful of short commands, never a payload, so an
// unbounded read is never legitimate.
const (
	connTimeout  = 10 * time.Second
	maxLineBytes = 256
)

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	line, err := readLine(conn, maxLineBytes)
	if err != nil && line == "" {
		return
	}
	reply := s.dispatch(ctx, strings.TrimSpace(line))
	fmt.Fprintln(conn, reply)
}

// readLine reads up to limit bytes looking for a terminating '\n',
// returning what it has if the limit is hit first rather than reading
// without bound.
func readLine(r io.Reader, limit int) (string, error) {
	var b strings.Builder
	buf := make([]byte, 1)
	for b.Len() < limit {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return b.String(), nil
			}
			b.WriteByte(buf[0])
		}
		if err != nil {
			return b.String(), err
		}
	}
	return b.String(), nil
}

func (s *Server) dispatch(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERROR: empty command"
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "reload":
		return s.cmdReload(ctx)
	case "pause":
		return s.cmdPause(args)
	case "resume":
		s.m.Lock()
		s.m.Resume()
		s.m.Unlock()
		return "Idle manager resumed"
	case "trigger":
		return s.cmdTrigger(ctx, args)
	case "list_actions":
		return s.cmdListActions()
	case "toggle_inhibit":
		return s.cmdToggleInhibit()
	case "info":
		return s.cmdInfo(args)
	case "stop":
		s.m.Shutdown.Notify()
		return "Stopping Stasis..."
	default:
		return fmt.Sprintf("ERROR: unknown command %q", cmd)
	}
}

func (s *Server) cmdReload(ctx context.Context) string {
	cfg, err := s.reload()
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	s.m.HandleEvent(ctx, core.Event{Kind: core.EventConfigReloaded, NewConfig: cfg})
	return "ok"
}

// pauseHelpMessage is stasisctl's "pause help" / "pause -h" text.
const pauseHelpMessage = `Pause all timers indefinitely or for a specific duration

Usage:
  stasisctl pause              Pause indefinitely until 'resume' is called
  stasisctl pause <DURATION>   Pause for a specific duration, then auto-resume

Duration format:
  You can specify durations using combinations of:
    - s, sec, seconds (e.g., 30s)
    - m, min, minutes (e.g., 5m)
    - h, hr, hours    (e.g., 2h)

Examples:
  stasisctl pause 5m           Pause for 5 minutes
  stasisctl pause 1h 30m       Pause for 1 hour and 30 minutes
  stasisctl pause 2h 15m 30s   Pause for 2 hours, 15 minutes, and 30 seconds
  stasisctl pause 30s          Pause for 30 seconds

Use 'stasisctl resume' to manually resume before the timer expires.`

func (s *Server) cmdPause(args []string) string {
	if len(args) == 0 {
		s.m.Lock()
		s.m.Pause(true, 0)
		s.m.Unlock()
		return "Idle manager paused"
	}

	joined := strings.Join(args, " ")
	switch strings.ToLower(strings.TrimSpace(joined)) {
	case "help", "-h", "--help":
		return pauseHelpMessage
	}

	dur, err := parseDuration(joined)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}

	s.m.Lock()
	s.m.Pause(false, dur)
	s.m.Unlock()
	return fmt.Sprintf("Paused for %s", formatDuration(dur))
}

// durationTokenRE pulls every (count, unit) pair out of a duration
// string, tolerating both space-separated ("1h 30m") and concatenated
// ("1h30m") forms.
var durationTokenRE = regexp.MustCompile(`(?i)(\d+)\s*([a-z]+)`)

// parseDuration implements the same unit grammar as stasisctl's
// original duration parser: any combination of s/sec/secs/second/seconds,
// m/min/mins/minute/minutes, h/hr/hrs/hour/hours tokens, summed.
func parseDuration(input string) (time.Duration, error) {
	matches := durationTokenRE.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration %q", input)
	}

	var total time.Duration
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		switch strings.ToLower(m[2]) {
		case "s", "sec", "secs", "second", "seconds":
			total += time.Duration(n) * time.Second
		case "m", "min", "mins", "minute", "minutes":
			total += time.Duration(n) * time.Minute
		case "h", "hr", "hrs", "hour", "hours":
			total += time.Duration(n) * time.Hour
		default:
			return 0, fmt.Errorf("unknown duration unit %q", m[2])
		}
	}

	if total <= 0 {
		return 0, fmt.Errorf("duration must be greater than zero")
	}
	return total, nil
}

// formatDuration renders d the way the original pause_for_duration
// does: only the non-zero hours/minutes/seconds components, joined
// with single spaces.
func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

func (s *Server) cmdTrigger(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "ERROR: trigger requires \"all\" or an action name"
	}

	s.m.Lock()
	defer s.m.Unlock()

	if args[0] == "all" {
		for i, a := range s.m.State.Queue.ActiveActions() {
			s.m.RunAction(ctx, i, a)
		}
		s.m.State.Queue.SetIndex(len(s.m.State.Queue.ActiveActions()))
		return "All idle actions triggered"
	}

	idx, action, ok := s.m.State.Queue.FindByName(args[0])
	if !ok {
		return fmt.Sprintf("ERROR: no action named %q in current block", args[0])
	}
	s.m.RunAction(ctx, idx, *action)
	return fmt.Sprintf("Action '%s' triggered successfully", args[0])
}

// cmdListActions reports the default block's action names rather than
// whichever block happens to be active: the list is a configuration
// reference for stasisctl users, not a live-timeline query, so it
// always answers from the same base set regardless of AC/battery
// state. pre_suspend is listed alongside it when a pre_suspend_command
// is configured; "trigger" does not resolve that name, since it only
// searches the active block's staged actions.
func (s *Server) cmdListActions() string {
	s.m.Lock()
	defer s.m.Unlock()

	names := make([]string, 0, len(s.m.State.Queue.AllBlocks()[core.BlockDefault])+1)
	for _, a := range s.m.State.Queue.AllBlocks()[core.BlockDefault] {
		names = append(names, a.Name)
	}
	if s.m.State.Config.PreSuspendCommand != "" {
		names = append(names, "pre_suspend")
	}
	if len(names) == 0 {
		return "No actions available"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// cmdToggleInhibit flips the manual inhibit and reports the new state
// in the {text, alt, tooltip} shape a status-bar widget (e.g. a Waybar
// custom module) expects.
func (s *Server) cmdToggleInhibit() string {
	s.m.Lock()
	held := s.m.ToggleManualInhibit()
	s.m.Unlock()

	var resp struct {
		Text    string `json:"text"`
		Alt     string `json:"alt"`
		Tooltip string `json:"tooltip"`
	}
	if held {
		resp.Text, resp.Alt, resp.Tooltip = "Inhibited", "manually_inhibited", "Idle inhibition active"
	} else {
		resp.Text, resp.Alt, resp.Tooltip = "Active", "idle_active", "Idle inhibition cleared"
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return string(data)
}

// infoRetries/infoRetryWait bound how long "info" waits for the
// manager lock before reporting busy: a snapshot read should never
// queue behind a slow action invocation indefinitely.
const (
	infoRetries   = 5
	infoRetryWait = 20 * time.Millisecond
)

func (s *Server) cmdInfo(args []string) string {
	asJSON := len(args) > 0 && args[0] == "--json"

	var locked bool
	for i := 0; i < infoRetries; i++ {
		if s.m.TryLock() {
			locked = true
			break
		}
		time.Sleep(infoRetryWait)
	}
	if !locked {
		if asJSON {
			data, _ := json.Marshal(struct {
				Text    string `json:"text"`
				Alt     string `json:"alt"`
				Tooltip string `json:"tooltip"`
			}{Text: "", Alt: "not_running", Tooltip: "Busy, try again"})
			return string(data)
		}
		return "Busy, try again"
	}

	now := time.Now()
	info := s.m.Snapshot(now)
	manuallyInhibited := s.m.State.ManuallyPaused
	appBlocking := s.m.State.ActiveInhibitorCount > 0
	idleInhibited := info.Paused || appBlocking || manuallyInhibited
	s.m.Unlock()

	if asJSON {
		text, alt := "Active", "idle_active"
		switch {
		case manuallyInhibited:
			text, alt = "Inhibited", "manually_inhibited"
		case idleInhibited:
			text, alt = "Blocked", "idle_inhibited"
		}
		state := "Idle active"
		if idleInhibited {
			state = "Idle inhibited"
		}
		tooltip := fmt.Sprintf(
			"%s\nIdle time: %s\nUptime: %s\nPaused: %v\nManually paused: %v\nApp blocking: %v\nMedia blocking: %v",
			state, now.Sub(info.LastActivity).Round(time.Second), info.Uptime.Round(time.Second),
			info.Paused, manuallyInhibited, appBlocking, info.MediaPlaying,
		)
		data, err := json.Marshal(struct {
			Text    string `json:"text"`
			Alt     string `json:"alt"`
			Tooltip string `json:"tooltip"`
		}{Text: text, Alt: alt, Tooltip: tooltip})
		if err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return string(data)
	}

	return fmt.Sprintf(
		"uptime=%s block=%s index=%d locked=%v paused=%v manually_paused=%v inhibitors=%d media_playing=%v on_battery=%v laptop=%v",
		info.Uptime.Round(time.Second), info.CurrentBlock, info.ActionIndex, info.Locked, info.Paused,
		info.ManuallyPaused, info.InhibitorCount, info.MediaPlaying, info.OnBattery, info.Laptop,
	)
}
