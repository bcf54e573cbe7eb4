package core

import (
	"time"

	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/supervisor"
)

// ChassisKind distinguishes the two power-topology shapes Stasis cares
// about: a laptop's ac/battery blocks are meaningless on a desktop.
type ChassisKind int

const (
	ChassisDesktop ChassisKind = iota
	ChassisLaptop
)

// Chassis is the detected machine shape plus, for laptops, the live AC
// power state polled from sysfs.
type Chassis struct {
	Kind      ChassisKind
	OnBattery bool
}

// LockState tracks the supervised screen-lock process and whatever the
// lock supervisor knows about the session's lock status independent of
// that process (logind's LockedHint can say "locked" even if Stasis
// didn't spawn the locker itself, e.g. a manual loginctl lock-session).
type LockState struct {
	IsLocked bool
	Process  *supervisor.ProcessInfo
	// LockedAt is when IsLocked last transitioned to true.
	LockedAt time.Time
	// Command is the probe string (a LockScreen action's lock_command,
	// when one is configured) used as a process-name fallback identity
	// when Process is nil, e.g. a lock detected via logind rather than
	// spawned by Stasis itself.
	Command string
	// PostAdvanced and LastAdvanced record the lightweight
	// advance_past_lock operation (set by LockScreenDetected/
	// LoginctlLock-style events): true/stamped once the queue has been
	// bumped past the lock stage, independent of the heavier
	// unlock-triggered reset the lock supervisor performs.
	PostAdvanced bool
	LastAdvanced time.Time
}

// MediaBridgeState holds browser-tab media state for the media_bridge
// local socket. Only Snapshot reads it (BrowserPlaying); the media
// adapter reports bridge tabs as inhibitor events and does not write
// these fields.
type MediaBridgeState struct {
	Reachable       bool
	BrowserPlaying  bool
	PlayingTabCount int
	LastPolled      time.Time
}

// ManagerState is the full mutable state of the orchestration core. All
// fields are guarded by Manager's mutex; nothing here is safe to read
// or write without holding it.
type ManagerState struct {
	Config *config.Config
	Queue  *ActionQueue

	Chassis Chassis
	Lock    LockState
	Media   MediaBridgeState

	LastActivity  time.Time
	DebounceUntil time.Time
	StartTime     time.Time

	Paused         bool
	ManuallyPaused bool
	PausedUntil    time.Time

	ActiveInhibitorCount uint32
	MPRISPlaying         bool

	// PreviousBrightness holds the value read before a brightness
	// action dimmed the display, restored verbatim on resume rather
	// than recomputed, so repeated dim/resume cycles don't drift.
	PreviousBrightness *int
}

// NewManagerState builds the initial state for a freshly started
// daemon: queue built from cfg, clocks anchored to now, nothing paused
// or locked.
func NewManagerState(cfg *config.Config, chassis Chassis) *ManagerState {
	now := time.Now()
	return &ManagerState{
		Config:        cfg,
		Queue:         NewActionQueue(cfg),
		Chassis:       chassis,
		LastActivity:  now,
		DebounceUntil: now,
		StartTime:     now,
	}
}

// EffectivelyPaused reports whether the scheduler should skip timeout
// checks entirely: either an explicit pause (manual, or timed and not
// yet expired) or an active inhibitor.
func (s *ManagerState) EffectivelyPaused(now time.Time) bool {
	if s.ManuallyPaused {
		return true
	}
	if s.Paused && now.Before(s.PausedUntil) {
		return true
	}
	if s.ActiveInhibitorCount > 0 {
		return true
	}
	return false
}
