// Package config holds Stasis's configuration model and the layered
// loader that populates it. Loading and parsing config files is an
// external concern to the Idle Orchestration Core (spec.md §1), but a
// complete daemon still needs somewhere for that to live.
package config

import "time"

// ActionKind is the closed set of action kinds the core understands.
type ActionKind string

const (
	ActionLockScreen ActionKind = "lock_screen"
	ActionSuspend    ActionKind = "suspend"
	ActionDpms       ActionKind = "dpms"
	ActionBrightness ActionKind = "brightness"
	ActionCustom     ActionKind = "custom"
)

// Action is a single named unit of staged work.
//
// LastTriggered is the only mutable field; it is written exclusively
// by the scheduler (on fire) and the manager (on reset / config
// reload), never by the config loader after initial construction.
type Action struct {
	Name            string     `json:"name"`
	Kind            ActionKind `json:"kind"`
	TimeoutSecs     uint32     `json:"timeout_secs"`
	Command         string     `json:"command"`
	LockCommand     string     `json:"lock_command,omitempty"`
	ResumeCommand   string     `json:"resume_command,omitempty"`
	Notification    string     `json:"notification,omitempty"`
	LastTriggered   *time.Time `json:"-"`
}

// IsInstant reports whether the action fires once at startup / block
// switch instead of participating in the staged timeline.
func (a *Action) IsInstant() bool {
	return a.TimeoutSecs == 0
}

// Clone returns a deep copy, used whenever an Action needs to be
// handed off to a goroutine without aliasing LastTriggered.
func (a Action) Clone() Action {
	c := a
	if a.LastTriggered != nil {
		t := *a.LastTriggered
		c.LastTriggered = &t
	}
	return c
}

// AppPatternKind distinguishes literal from regex app-inhibit patterns.
type AppPatternKind int

const (
	PatternLiteral AppPatternKind = iota
	PatternRegex
)

// AppInhibitPattern matches an application identifier against the
// inhibit_apps blacklist.
type AppInhibitPattern struct {
	Kind    AppPatternKind
	Pattern string
}

// LidAction is the behavior taken on a lid transition.
type LidAction struct {
	Kind    string `json:"kind"` // "ignore" | "lock_screen" | "suspend" | "wake" | "custom"
	Command string `json:"command,omitempty"`
}

const (
	LidIgnore     = "ignore"
	LidLockScreen = "lock_screen"
	LidSuspend    = "suspend"
	LidWake       = "wake"
	LidCustom     = "custom"
)

// Config is the immutable snapshot consumed by the core. It is shared
// read-only with the Manager; reload produces a brand new snapshot
// rather than mutating this one in place.
type Config struct {
	Actions []Action `json:"actions"`

	PreSuspendCommand string `json:"pre_suspend_command,omitempty"`

	MonitorMedia      bool     `json:"monitor_media"`
	IgnoreRemoteMedia bool     `json:"ignore_remote_media"`
	MediaBlacklist    []string `json:"media_blacklist,omitempty"`

	RespectWaylandInhibitors bool                `json:"respect_wayland_inhibitors"`
	InhibitApps              []AppInhibitPattern `json:"-"`
	InhibitAppPatterns       []string            `json:"inhibit_apps,omitempty"`

	DebounceSeconds uint32 `json:"debounce_seconds"`

	LidCloseAction LidAction `json:"lid_close_action"`
	LidOpenAction  LidAction `json:"lid_open_action"`

	NotifyBeforeAction  bool   `json:"notify_before_action"`
	NotifySecondsBefore uint32 `json:"notify_seconds_before"`

	IPCSocketPath string `json:"ipc_socket_path,omitempty"`
}
