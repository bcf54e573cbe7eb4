package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stasis-project/stasis/internal/brightness"
	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/log"
	"github.com/stasis-project/stasis/internal/supervisor"
)

// Manager is the mutex-guarded orchestration core. The Event Router
// (events.go) is the only path that mutates State in response to
// adapter input; the IPC server drives the same exported methods so
// both entry points serialize through the same lock.
type Manager struct {
	mu    sync.Mutex
	State *ManagerState

	super *supervisor.Supervisor

	manualInhibitHeld bool

	// ActivityNotify wakes the scheduler's idle loop whenever activity
	// resets the clock, a pause toggles, or a block switch changes the
	// next deadline; LockNotify wakes the lock supervisor when the
	// session becomes locked.
	ActivityNotify *Notifier
	LockNotify     *Notifier
	Shutdown       *Notifier
}

// NewManager constructs a Manager from an initial config and chassis,
// ready to be driven by the event router and scheduler.
func NewManager(cfg *config.Config, chassis Chassis, super *supervisor.Supervisor) *Manager {
	return &Manager{
		State:          NewManagerState(cfg, chassis),
		super:          super,
		ActivityNotify: NewNotifier(),
		LockNotify:     NewNotifier(),
		Shutdown:       NewNotifier(),
	}
}

// Lock acquires the manager mutex. Callers must pair every Lock with
// Unlock; exported State-mutating methods below assume the caller
// already holds it.
func (m *Manager) Lock() { m.mu.Lock() }

// Unlock releases the manager mutex.
func (m *Manager) Unlock() { m.mu.Unlock() }

// TryLock attempts to acquire the manager mutex without blocking, used
// by the IPC "info" handler so a slow action invocation never stalls a
// status query indefinitely.
func (m *Manager) TryLock() bool { return m.mu.TryLock() }

// Info is the snapshot shape returned by the IPC "info" command.
type Info struct {
	Uptime            time.Duration          `json:"uptime_secs"`
	CurrentBlock      string                 `json:"current_block"`
	ActionIndex       int                    `json:"action_index"`
	Actions           []config.Action        `json:"actions"`
	Locked            bool                   `json:"locked"`
	Paused            bool                   `json:"paused"`
	ManuallyPaused    bool                   `json:"manually_paused"`
	InhibitorCount    uint32                 `json:"inhibitor_count"`
	MediaPlaying      bool                   `json:"media_playing"`
	OnBattery         bool                   `json:"on_battery"`
	Laptop            bool                   `json:"laptop"`
	LastActivity      time.Time              `json:"last_activity"`
}

// Snapshot returns a point-in-time copy of the state relevant to the
// IPC "info" command. Caller must hold the lock.
func (m *Manager) Snapshot(now time.Time) Info {
	s := m.State
	actions := make([]config.Action, len(s.Queue.ActiveActions()))
	copy(actions, s.Queue.ActiveActions())
	return Info{
		Uptime:         now.Sub(s.StartTime),
		CurrentBlock:   s.Queue.CurrentBlock(),
		ActionIndex:    s.Queue.Index(),
		Actions:        actions,
		Locked:         s.Lock.IsLocked,
		Paused:         s.EffectivelyPaused(now),
		ManuallyPaused: s.ManuallyPaused,
		InhibitorCount: s.ActiveInhibitorCount,
		MediaPlaying:   s.MPRISPlaying || s.Media.BrowserPlaying,
		OnBattery:      s.Chassis.OnBattery,
		Laptop:         s.Chassis.Kind == ChassisLaptop,
		LastActivity:   s.LastActivity,
	}
}

// RunAction executes action's command (or, for LockScreen, spawns it
// detached and supervises it), recording LastTriggered and, if a
// non-LockScreen action defines one, queuing its resume_command (a
// LockScreen action's resume_command is run by AdvancePastLock
// instead). Caller must hold the
// lock for the state mutation; the actual command runs without it.
func (m *Manager) RunAction(ctx context.Context, idx int, action config.Action) {
	now := time.Now()
	m.State.Queue.MarkTriggered(idx, now)

	switch action.Kind {
	case config.ActionLockScreen:
		if strings.Contains(action.Command, "loginctl lock-session") {
			m.super.RunBackground(ctx, action.Command)
			return
		}
		if m.State.Lock.IsLocked {
			return
		}
		if locked, ok := m.super.IsSessionLockedViaLogind(); ok && locked {
			m.State.Lock.IsLocked = true
			m.State.Lock.LockedAt = now
			m.State.Queue.ClearTriggeredBeforeLock(idx)
			return
		}
		info, err := supervisor.SpawnDetached(action.Command)
		if err != nil {
			log.Error("lock_screen action %q failed to spawn: %v", action.Name, err)
			return
		}
		if action.LockCommand != "" {
			info.ExpectedProcessName = action.LockCommand
			m.State.Lock.Command = action.LockCommand
		}
		m.State.Lock.Process = info
		m.State.Lock.IsLocked = true
		m.State.Lock.LockedAt = now
		m.State.Queue.ClearTriggeredBeforeLock(idx)
		m.LockNotify.Notify()
	case config.ActionBrightness:
		if m.State.PreviousBrightness == nil {
			if cur, err := brightness.Current(); err == nil {
				m.State.PreviousBrightness = &cur
			} else {
				log.Warn("brightness action %q: could not read current brightness: %v", action.Name, err)
			}
		}
		m.super.RunBackground(ctx, action.Command)
	case config.ActionSuspend:
		pre := m.State.Config.PreSuspendCommand
		cmd := action.Command
		go func() {
			if pre != "" {
				m.super.RunBackground(ctx, pre)
			}
			time.Sleep(500 * time.Millisecond)
			m.super.RunBackground(ctx, cmd)
		}()
	default:
		m.super.RunBackground(ctx, action.Command)
	}

	if action.ResumeCommand != "" && action.Kind != config.ActionLockScreen {
		m.State.Queue.QueueResume(action)
	}
}

// FireInstantActions runs every instant action in the active block that
// hasn't fired since the block was entered.
func (m *Manager) FireInstantActions(ctx context.Context) {
	if !m.State.Queue.InstantsPending() {
		return
	}
	for _, a := range m.State.Queue.InstantActions() {
		m.super.RunBackground(ctx, a.Command)
		if a.ResumeCommand != "" {
			m.State.Queue.QueueResume(a)
		}
	}
	m.State.Queue.MarkInstantsFired()
}

// DrainResumes fires every queued resume_command (e.g. after an
// unlock) and clears them.
func (m *Manager) DrainResumes(ctx context.Context) {
	for _, a := range m.State.Queue.DrainResumeQueue() {
		m.super.RunBackground(ctx, a.ResumeCommand)
	}
}

// ReconcileBlock switches the active block if the chassis/power state
// demands it, firing the newly active block's instant actions. Returns
// true if the block changed.
func (m *Manager) ReconcileBlock(ctx context.Context) bool {
	want := DetermineBlock(m.State.Queue, m.State.Chassis.Kind == ChassisLaptop, m.State.Chassis.OnBattery)
	changed := m.State.Queue.SwitchBlock(want)
	if changed {
		m.FireInstantActions(ctx)
		m.ActivityNotify.Notify()
	}
	return changed
}

// ResetOnActivity resets the activity clock and debounce window and,
// if any stage had fired (index > 0), clears last_triggered, rewinds
// the queue to the start of the current block and drains the queued
// resume commands. It does nothing while the session is locked.
func (m *Manager) ResetOnActivity(ctx context.Context, now time.Time) {
	s := m.State
	if s.Lock.IsLocked {
		return
	}
	if s.PreviousBrightness != nil {
		pct := *s.PreviousBrightness
		go func() {
			if err := brightness.SetPercent(pct); err != nil {
				log.Warn("restoring brightness to %d%%: %v", pct, err)
			}
		}()
		s.PreviousBrightness = nil
	}
	wasAdvanced := s.Queue.Index() > 0
	s.LastActivity = now
	s.DebounceUntil = now.Add(time.Duration(s.Config.DebounceSeconds) * time.Second)
	if wasAdvanced {
		s.Queue.ClearTriggeredBeforeLock(len(s.Queue.ActiveActions()))
		s.Queue.ResetIndex()
		m.DrainResumes(ctx)
	}
	m.ActivityNotify.Notify()
}

// AdvancePastLock is called by the lock supervisor once a supervised
// session unlocks: it fires any queued resume commands, resets the
// lock state, and rewinds the queue so the next activity cycle starts
// clean.
func (m *Manager) AdvancePastLock(ctx context.Context) {
	s := m.State
	if resume := findLockResumeCommand(s.Queue); resume != "" {
		m.super.RunBackground(ctx, resume)
	}
	s.Lock = LockState{}
	m.ResetOnActivity(ctx, time.Now())
}

// findLockResumeCommand searches every block, not just the active one,
// for a LockScreen action with a resume_command: the block that was
// active when the lock fired may no longer be active by the time it
// unlocks (e.g. an AC/battery switch happened while locked).
func findLockResumeCommand(q *ActionQueue) string {
	for _, actions := range q.AllBlocks() {
		for _, a := range actions {
			if a.Kind == config.ActionLockScreen && a.ResumeCommand != "" {
				return a.ResumeCommand
			}
		}
	}
	return ""
}

// findLockProbeCommand searches every block for a LockScreen action's
// lock_command, used as LockState.Command: the probe-string fallback
// identity the lock supervisor matches by process name when no
// ProcessInfo is available (e.g. a lock detected via logind rather
// than spawned by Stasis itself).
func findLockProbeCommand(q *ActionQueue) string {
	for _, actions := range q.AllBlocks() {
		for _, a := range actions {
			if a.Kind == config.ActionLockScreen && a.LockCommand != "" {
				return a.LockCommand
			}
		}
	}
	return ""
}

// advancePastLockMarker implements the lightweight advance_past_lock
// operation (spec §4.4/§4.6): it only stamps that the queue has been
// bumped past the lock stage. It is distinct from AdvancePastLock,
// which the Lock Supervisor runs on an actual unlock transition and
// which performs the full resume-command/index-reset sequence.
func (m *Manager) advancePastLockMarker(now time.Time) {
	m.State.Lock.PostAdvanced = true
	m.State.Lock.LastAdvanced = now
}

// Pause suspends timeout checking. manual pauses indefinitely until
// Resume; a non-manual pause with dur > 0 auto-expires.
func (m *Manager) Pause(manual bool, dur time.Duration) {
	s := m.State
	if manual {
		s.ManuallyPaused = true
	} else {
		s.Paused = true
		s.PausedUntil = time.Now().Add(dur)
	}
	m.ActivityNotify.Notify()
}

// Resume clears both manual and timed pause state.
func (m *Manager) Resume() {
	s := m.State
	s.ManuallyPaused = false
	s.Paused = false
	m.ActivityNotify.Notify()
}
