package core

import (
	"context"
	"strings"
	"time"

	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/log"
	"github.com/stasis-project/stasis/internal/supervisor"
)

// Scheduler sleep bounds: never sleep longer than a minute (so a
// config reload or chassis change is never more than a minute from
// being noticed even if nothing else wakes the loop first) and never
// busy-loop on a deadline that's already past.
const (
	maxIdleSleep = 60 * time.Second
	minIdleSleep = 50 * time.Millisecond
)

// RunScheduler drives the staged-action timeline: it sleeps until the
// next action (or its pre-fire notification) is due, wakes early on
// activity/pause/shutdown, and on each wakeup lets checkTimeoutsLocked
// fire at most one due stage before sleeping again. It owns no state of its own; every read
// and mutation goes through Manager under its lock, mirroring the
// original tokio::select! idle loop one iteration at a time.
func RunScheduler(ctx context.Context, m *Manager) {
	for {
		sleepDur, skip := nextSleep(m)
		if skip {
			continue
		}

		timer := time.NewTimer(sleepDur)
		select {
		case <-timer.C:
		case <-m.ActivityNotify.Wait():
			timer.Stop()
		case <-m.Shutdown.Wait():
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}

		m.Lock()
		m.checkTimeoutsLocked(ctx)
		m.Unlock()
	}
}

// nextSleep computes how long the loop should sleep before its next
// wakeup: maxIdleSleep while paused or with nothing left to fire,
// otherwise the time to the next deadline clamped to
// [minIdleSleep, maxIdleSleep]. The second result is always false.
func nextSleep(m *Manager) (time.Duration, bool) {
	m.Lock()
	defer m.Unlock()

	now := time.Now()
	s := m.State

	if s.EffectivelyPaused(now) {
		return maxIdleSleep, false
	}

	deadline, ok := earliestDeadlineLocked(s, now)
	if !ok {
		return maxIdleSleep, false
	}

	d := deadline.Sub(now)
	if d < minIdleSleep {
		d = minIdleSleep
	}
	if d > maxIdleSleep {
		d = maxIdleSleep
	}
	return d, false
}

// skipLockedLockScreen advances idx past any LockScreen actions while
// the session is locked: spec §4.4 excludes LockScreen entirely from
// the timeline once locked, letting later stages (dpms, suspend) keep
// progressing on their own schedule instead of freezing the whole
// queue for the duration of the lock. It also steps over instant
// actions (timeout_secs == 0), locked or not: those fire through
// FireInstantActions, not through the staged timeline.
func skipLockedLockScreen(s *ManagerState, idx int) int {
	actions := s.Queue.ActiveActions()
	for idx < len(actions) && (actions[idx].IsInstant() ||
		(s.Lock.IsLocked && actions[idx].Kind == config.ActionLockScreen)) {
		idx++
	}
	return idx
}

func earliestDeadlineLocked(s *ManagerState, now time.Time) (time.Time, bool) {
	idx := skipLockedLockScreen(s, s.Queue.Index())
	return s.Queue.WakeTime(idx, s.LastActivity, s.DebounceUntil, s.Config.NotifyBeforeAction, s.Config.NotifySecondsBefore)
}

// checkTimeoutsLocked evaluates the single action staged at
// action_index (stepping over the actions skipLockedLockScreen skips,
// the same way earliestDeadlineLocked does): fires its pre-warn notification if due and not yet
// sent, or fires the action itself once its own original_fire_time (or,
// if notified, original_fire_time+notify_secs) has passed. At most one
// action fires per call; the scheduler's outer loop re-evaluates
// immediately after on a 50ms floor, so a caught-up timeline still
// drains one stage per tick rather than all at once. Caller must hold
// the lock.
func (m *Manager) checkTimeoutsLocked(ctx context.Context) {
	s := m.State
	now := time.Now()

	if s.EffectivelyPaused(now) {
		return
	}

	idx := skipLockedLockScreen(s, s.Queue.Index())
	if idx >= len(s.Queue.ActiveActions()) {
		return
	}

	action := s.Queue.ActiveActions()[idx]

	fireAt, ok := s.Queue.OriginalFireTime(idx, s.LastActivity, s.DebounceUntil)
	if !ok {
		return
	}

	notifySecs := time.Duration(s.Config.NotifySecondsBefore) * time.Second
	notifyApplies := s.Config.NotifyBeforeAction && action.Notification != ""
	notified := s.Queue.NotifiedForIndex(idx)

	if notifyApplies && !notified {
		if now.Before(fireAt) {
			return
		}
		s.Queue.MarkNotified(idx)
		m.scheduleNotification(ctx, action, fireAt, notifySecs)
		return
	}

	if notifyApplies && notified {
		if now.Before(fireAt.Add(notifySecs)) {
			return
		}
	} else if now.Before(fireAt) {
		return
	}

	log.Debug("firing action %q (block %s, index %d)", action.Name, s.Queue.CurrentBlock(), idx)
	m.RunAction(ctx, idx, action)
	s.Queue.SetIndex(idx + 1)
}

// scheduleNotification runs the one-shot pre-warn task: it sends the
// notification through the Process Supervisor's blocking-with-timeout
// variant, sleeps until the action's actual fire time
// (originalFireTime+notifySecs), then wakes the scheduler so it
// re-evaluates this stage immediately instead of waiting for the next
// 60s periodic recheck. Best-effort: a missing notification daemon
// must never block the timeline.
func (m *Manager) scheduleNotification(ctx context.Context, action config.Action, originalFireTime time.Time, notifySecs time.Duration) {
	go func() {
		if err := supervisor.SpawnBlocking(ctx, "notify-send "+shellQuote("Stasis")+" "+shellQuote(action.Notification), 30*time.Second); err != nil {
			log.Warn("notify-send for action %q failed: %v", action.Name, err)
		}

		wakeAt := originalFireTime.Add(notifySecs)
		timer := time.NewTimer(time.Until(wakeAt))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-m.Shutdown.Wait():
			return
		case <-ctx.Done():
			return
		}
		m.ActivityNotify.Notify()
	}()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
