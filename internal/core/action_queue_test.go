package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasis-project/stasis/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Actions: []config.Action{
			{Name: "dim", Kind: config.ActionBrightness, TimeoutSecs: 100, Command: "dim", ResumeCommand: "undim"},
			{Name: "lock_screen", Kind: config.ActionLockScreen, TimeoutSecs: 150, Command: "lock"},
			{Name: "suspend", Kind: config.ActionSuspend, TimeoutSecs: 300, Command: "suspend"},
			{Name: "battery.dim", Kind: config.ActionBrightness, TimeoutSecs: 30, Command: "dim-harder"},
		},
	}
}

func TestActionQueueDefaultBlockExcludesPrefixedActions(t *testing.T) {
	q := NewActionQueue(testConfig())
	names := make([]string, 0)
	for _, a := range q.ActiveActions() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"dim", "lock_screen", "suspend"}, names)
}

func TestActionQueueBatteryBlockIsALiteralPartition(t *testing.T) {
	q := NewActionQueue(testConfig())
	q.SwitchBlock(BlockBattery)
	actions := q.ActiveActions()
	require.Len(t, actions, 1)
	assert.Equal(t, "battery.dim", actions[0].Name)
	assert.EqualValues(t, 30, actions[0].TimeoutSecs)
	assert.Equal(t, "dim-harder", actions[0].Command)
}

func TestDetermineBlockFallsBackWithoutOverrides(t *testing.T) {
	cfg := &config.Config{Actions: []config.Action{{Name: "dim", Command: "x", TimeoutSecs: 10}}}
	q := NewActionQueue(cfg)
	assert.Equal(t, BlockDefault, DetermineBlock(q, true, true))
	assert.Equal(t, BlockDefault, DetermineBlock(q, false, true))
}

func TestDetermineBlockUsesBatteryOverrideOnLaptop(t *testing.T) {
	q := NewActionQueue(testConfig())
	assert.Equal(t, BlockBattery, DetermineBlock(q, true, true))
	assert.Equal(t, BlockDefault, DetermineBlock(q, true, false))
	assert.Equal(t, BlockDefault, DetermineBlock(q, false, true))
}

func TestSwitchBlockResetsIndexAndResumeQueue(t *testing.T) {
	q := NewActionQueue(testConfig())
	q.SetIndex(2)
	q.QueueResume(q.ActiveActions()[0])

	changed := q.SwitchBlock(BlockBattery)
	assert.True(t, changed)
	assert.Equal(t, 0, q.Index())
	assert.Empty(t, q.DrainResumeQueue())
}

func TestSwitchBlockToSameBlockIsNoop(t *testing.T) {
	q := NewActionQueue(testConfig())
	q.SetIndex(1)
	assert.False(t, q.SwitchBlock(BlockDefault))
	assert.Equal(t, 1, q.Index())
}

func TestAdvanceIndexStopsAtEnd(t *testing.T) {
	q := NewActionQueue(testConfig())
	n := len(q.ActiveActions())
	for i := 0; i < n+3; i++ {
		q.AdvanceIndex()
	}
	assert.Equal(t, n, q.Index())
	assert.True(t, q.AtEnd())
}

func TestOriginalFireTimeUsesDebounceFloor(t *testing.T) {
	q := NewActionQueue(testConfig())
	now := time.Now()
	lastActivity := now.Add(-10 * time.Minute)
	debounceUntil := now.Add(5 * time.Second)

	fire, ok := q.OriginalFireTime(0, lastActivity, debounceUntil)
	require.True(t, ok)
	assert.True(t, fire.Equal(debounceUntil.Add(100*time.Second)))
}

func TestOriginalFireTimeAnchorsOnPreviousStageFire(t *testing.T) {
	q := NewActionQueue(testConfig())
	now := time.Now()
	lastActivity := now.Add(-10 * time.Minute)

	dimFiredAt := now.Add(-5 * time.Second)
	q.MarkTriggered(0, dimFiredAt)

	fire, ok := q.OriginalFireTime(1, lastActivity, lastActivity)
	require.True(t, ok)
	assert.True(t, fire.Equal(dimFiredAt.Add(150*time.Second)),
		"lock_screen's fire time should anchor on dim's last_triggered, not last_activity")
}

func TestWakeTimeAddsNotifySecsOnceNotified(t *testing.T) {
	cfg := &config.Config{
		Actions: []config.Action{
			{Name: "dim", Kind: config.ActionBrightness, TimeoutSecs: 60, Command: "dim", Notification: "Dimming"},
			{Name: "lock_screen", Kind: config.ActionLockScreen, TimeoutSecs: 120, Command: "lock"},
		},
	}
	q := NewActionQueue(cfg)
	now := time.Now()

	before, ok := q.WakeTime(0, now, now, true, 5)
	require.True(t, ok)
	assert.True(t, before.Equal(now.Add(60*time.Second)),
		"before the notification is sent, wake_time is original_fire_time")

	q.MarkNotified(0)
	after, ok := q.WakeTime(0, now, now, true, 5)
	require.True(t, ok)
	assert.True(t, after.Equal(now.Add(65*time.Second)),
		"once notified, wake_time is original_fire_time+notify_secs")
}

func TestClearTriggeredBeforeLock(t *testing.T) {
	q := NewActionQueue(testConfig())
	now := time.Now()
	q.MarkTriggered(0, now)
	q.ClearTriggeredBeforeLock(1)
	assert.Nil(t, q.effective[q.current][0].LastTriggered)
}

func TestFindByNameIsScopedToActiveBlock(t *testing.T) {
	q := NewActionQueue(testConfig())
	_, _, ok := q.FindByName("battery.dim")
	assert.False(t, ok, "battery-only name shouldn't resolve from the default block")

	q.SwitchBlock(BlockBattery)
	_, a, ok := q.FindByName("battery.dim")
	require.True(t, ok)
	assert.Equal(t, "dim-harder", a.Command)

	_, _, ok = q.FindByName("dim")
	assert.False(t, ok, "default-block-only name shouldn't resolve from the battery block")
}
