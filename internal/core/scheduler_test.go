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

func notifyTestConfig() *config.Config {
	return &config.Config{
		Actions: []config.Action{
			{Name: "dim", Kind: config.ActionBrightness, TimeoutSecs: 60, Command: "true", Notification: "Dimming"},
			{Name: "lock_screen", Kind: config.ActionLockScreen, TimeoutSecs: 120, Command: "true"},
		},
		NotifyBeforeAction:  true,
		NotifySecondsBefore: 5,
	}
}

// TestCheckTimeoutsNotifiesBeforeFiringPerS1 exercises spec S1's worked
// example: once original_fire_time has passed, check_timeouts sends
// the pre-warn and returns without firing the action; the action only
// actually fires once notify_secs has additionally elapsed.
func TestCheckTimeoutsNotifiesBeforeFiringPerS1(t *testing.T) {
	cfg := notifyTestConfig()
	m := NewManager(cfg, Chassis{Kind: ChassisDesktop}, supervisor.New(nil, ""))
	ctx := context.Background()

	idx, _, ok := m.State.Queue.FindByName("dim")
	require.True(t, ok)

	// t=60: original_fire_time has just passed.
	m.State.LastActivity = time.Now().Add(-60 * time.Second)
	m.State.DebounceUntil = m.State.LastActivity

	m.Lock()
	m.checkTimeoutsLocked(ctx)
	m.Unlock()

	assert.True(t, m.State.Queue.NotifiedForIndex(idx), "original_fire_time due: pre-warn should be marked sent")
	assert.Equal(t, idx, m.State.Queue.Index(), "action must not fire at original_fire_time, only the notification")
	assert.Nil(t, m.State.Queue.ActiveActions()[idx].LastTriggered)

	// Simulate notify_secs having elapsed (t=65): recompute as if the
	// notification fired at t=60 and 5s have since passed.
	m.State.LastActivity = time.Now().Add(-65 * time.Second)
	m.State.DebounceUntil = m.State.LastActivity

	m.Lock()
	m.checkTimeoutsLocked(ctx)
	m.Unlock()

	assert.Equal(t, idx+1, m.State.Queue.Index(), "action should fire once original_fire_time+notify_secs has elapsed")
	require.NotNil(t, m.State.Queue.ActiveActions()[idx].LastTriggered)
}

func TestCheckTimeoutsSkipsNotificationWhenActionHasNone(t *testing.T) {
	cfg := notifyTestConfig()
	m := NewManager(cfg, Chassis{Kind: ChassisDesktop}, supervisor.New(nil, ""))
	ctx := context.Background()

	idx, _, ok := m.State.Queue.FindByName("lock_screen")
	require.True(t, ok)
	m.State.Queue.SetIndex(idx)

	m.State.LastActivity = time.Now().Add(-120 * time.Second)
	m.State.DebounceUntil = m.State.LastActivity

	m.Lock()
	m.checkTimeoutsLocked(ctx)
	m.Unlock()

	assert.False(t, m.State.Queue.NotifiedForIndex(idx))
	assert.Equal(t, idx+1, m.State.Queue.Index(), "action with no notification fires immediately at original_fire_time")
}
