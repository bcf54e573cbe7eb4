package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/supervisor"
)

func newTestManager() *Manager {
	cfg := testConfig()
	return NewManager(cfg, Chassis{Kind: ChassisDesktop}, supervisor.New(nil, ""))
}

func TestResetOnActivityRewindsIndexAndDebounces(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.State.Queue.SetIndex(2)
	before := time.Now()
	m.ResetOnActivity(ctx, before)

	assert.Equal(t, 0, m.State.Queue.Index())
	assert.True(t, m.State.DebounceUntil.After(before) || m.State.DebounceUntil.Equal(before))
}

func TestResetOnActivityNoopsWhileLocked(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.State.Lock.IsLocked = true
	m.State.Queue.SetIndex(1)

	m.ResetOnActivity(ctx, time.Now())
	assert.Equal(t, 1, m.State.Queue.Index(), "activity must not rewind the timeline while locked")
}

func TestPauseManualBlocksEffectivePause(t *testing.T) {
	m := newTestManager()
	now := time.Now()
	assert.False(t, m.State.EffectivelyPaused(now))

	m.Pause(true, 0)
	assert.True(t, m.State.EffectivelyPaused(now))

	m.Resume()
	assert.False(t, m.State.EffectivelyPaused(now))
}

func TestPauseTimedExpires(t *testing.T) {
	m := newTestManager()
	now := time.Now()
	m.Pause(false, 10*time.Millisecond)
	assert.True(t, m.State.EffectivelyPaused(now))
	assert.False(t, m.State.EffectivelyPaused(now.Add(20*time.Millisecond)))
}

func TestInhibitCounterSaturatesAtZero(t *testing.T) {
	m := newTestManager()
	m.DecrInhibitor()
	assert.EqualValues(t, 0, m.State.ActiveInhibitorCount)

	m.IncrInhibitor()
	m.IncrInhibitor()
	assert.EqualValues(t, 2, m.State.ActiveInhibitorCount)
	m.DecrInhibitor()
	assert.EqualValues(t, 1, m.State.ActiveInhibitorCount)
	assert.True(t, m.State.EffectivelyPaused(time.Now()))
	m.DecrInhibitor()
	assert.False(t, m.State.EffectivelyPaused(time.Now()))
}

func TestRunActionLockScreenSetsLockState(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	idx, action, ok := m.State.Queue.FindByName("lock_screen")
	require.True(t, ok)
	action.Command = "true"
	m.RunAction(ctx, idx, *action)

	assert.True(t, m.State.Lock.IsLocked)
	require.NotNil(t, m.State.Lock.Process)
}

// TestHandleEventSessionUnlockedIsLightweightActivity verifies the
// D-Bus Unlock signal (routed as EventSessionUnlocked, Stasis's
// analogue of LoginctlUnlock) only treats the moment as activity; it
// must not perform the Lock Supervisor's full post-unlock sequence
// (resume commands, clearing is_locked) — that stays the supervisor's
// job once its own probe confirms the session actually unlocked.
func TestHandleEventSessionUnlockedIsLightweightActivity(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.State.Lock.IsLocked = true
	m.State.Lock.LockedAt = time.Now()
	m.State.Queue.SetIndex(2)

	m.HandleEvent(ctx, Event{Kind: EventSessionUnlocked})
	assert.True(t, m.State.Lock.IsLocked, "only the lock supervisor clears is_locked")
	assert.Equal(t, 2, m.State.Queue.Index(), "reset_on_activity no-ops while still locked")
}

// TestAdvancePastLockRunsFullUnlockSequence exercises the Lock
// Supervisor's heavier post-unlock operation directly: resume command
// fired, lock state cleared, queue rewound.
func TestAdvancePastLockRunsFullUnlockSequence(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	idx, action, ok := m.State.Queue.FindByName("lock_screen")
	require.True(t, ok)
	action.ResumeCommand = "true"
	m.State.Queue.effective[m.State.Queue.current][idx] = *action

	m.State.Lock.IsLocked = true
	m.State.Lock.LockedAt = time.Now()
	m.State.Lock.PostAdvanced = true
	m.State.Queue.SetIndex(2)

	m.AdvancePastLock(ctx)
	assert.False(t, m.State.Lock.IsLocked)
	assert.False(t, m.State.Lock.PostAdvanced)
	assert.Equal(t, 0, m.State.Queue.Index())
}

// TestHandleEventSessionLockedStampsAdvanceMarker verifies the D-Bus
// Lock signal (Stasis's analogue of LoginctlLock) runs the lightweight
// advance_past_lock marker rather than the supervisor's full sequence.
func TestHandleEventSessionLockedStampsAdvanceMarker(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.HandleEvent(ctx, Event{Kind: EventSessionLocked})
	assert.True(t, m.State.Lock.IsLocked)
	assert.True(t, m.State.Lock.PostAdvanced)
	assert.False(t, m.State.Lock.LastAdvanced.IsZero())
}

func TestSchedulerSkipsLockScreenButProgressesLaterStagesWhileLocked(t *testing.T) {
	m := newTestManager()

	m.State.Lock.IsLocked = true
	m.State.Queue.SetIndex(1) // past dim, sitting on lock_screen
	lockIdx, _, ok := m.State.Queue.FindByName("lock_screen")
	require.True(t, ok)
	lockFiredAt := time.Now().Add(-400 * time.Second)
	m.State.Queue.MarkTriggered(lockIdx, lockFiredAt)

	// suspend's timeout is 300s; lock fired 400s ago, so it's overdue
	// even though the session is still locked.
	deadline, ok := earliestDeadlineLocked(m.State, time.Now())
	require.True(t, ok)
	assert.True(t, deadline.Before(time.Now()), "suspend (anchored on lock_screen's last_triggered) should already be due")
}

func TestHandleEventConfigReloadedSwitchesQueue(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	newCfg := &config.Config{Actions: []config.Action{{Name: "only", Command: "true", TimeoutSecs: 5}}}
	m.HandleEvent(ctx, Event{Kind: EventConfigReloaded, NewConfig: newCfg})

	assert.Len(t, m.State.Queue.ActiveActions(), 1)
	assert.Equal(t, "only", m.State.Queue.ActiveActions()[0].Name)
}
