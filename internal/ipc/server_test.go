package ipc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/supervisor"
)

func testConfig() *config.Config {
	return &config.Config{
		Actions: []config.Action{
			{Name: "dim", Kind: config.ActionBrightness, TimeoutSecs: 100, Command: "true"},
			{Name: "lock_screen", Kind: config.ActionLockScreen, TimeoutSecs: 150, Command: "true"},
		},
	}
}

func newTestServer(reload ReloadFunc) *Server {
	m := core.NewManager(testConfig(), core.Chassis{Kind: core.ChassisDesktop}, supervisor.New(nil, ""))
	return New("", m, reload)
}

func TestDispatchUnknownCommand(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "bogus")
	assert.True(t, strings.HasPrefix(reply, "ERROR:"))
	assert.Contains(t, reply, "unknown command")
}

func TestDispatchListActions(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "list_actions")
	assert.Contains(t, reply, "dim")
	assert.Contains(t, reply, "lock_screen")
}

// TestDispatchListActionsUsesDefaultBlockNotActiveBlock verifies
// list_actions always answers from the default block's action names,
// per spec §4.8, even when a different block (e.g. ac) is currently
// active.
func TestDispatchListActionsUsesDefaultBlockNotActiveBlock(t *testing.T) {
	s := newTestServer(nil)
	s.m.Lock()
	s.m.State.Queue.SwitchBlock(core.BlockAC)
	s.m.Unlock()

	reply := s.dispatch(context.Background(), "list_actions")
	assert.Contains(t, reply, "dim")
	assert.Contains(t, reply, "lock_screen")
}

func TestDispatchListActionsIncludesPreSuspend(t *testing.T) {
	s := newTestServer(nil)
	s.m.State.Config.PreSuspendCommand = "notify-send suspending"

	reply := s.dispatch(context.Background(), "list_actions")
	assert.Contains(t, reply, "pre_suspend")
}

func TestDispatchPauseAndResume(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "pause")
	assert.Equal(t, "Idle manager paused", reply)
	assert.True(t, s.m.State.ManuallyPaused)

	reply = s.dispatch(context.Background(), "resume")
	assert.Equal(t, "Idle manager resumed", reply)
	assert.False(t, s.m.State.ManuallyPaused)
}

func TestDispatchPauseWithDuration(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "pause 1h 30m")
	assert.Equal(t, "Paused for 1h 30m", reply)
	assert.True(t, s.m.State.Paused)
}

func TestDispatchPauseRejectsBadDuration(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "pause not-a-number")
	assert.True(t, strings.HasPrefix(reply, "ERROR:"))
}

func TestDispatchPauseRejectsZeroDuration(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "pause 0s")
	assert.True(t, strings.HasPrefix(reply, "ERROR:"))
}

func TestDispatchPauseHelp(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "pause help")
	assert.Contains(t, reply, "Duration format:")

	reply = s.dispatch(context.Background(), "pause --help")
	assert.Contains(t, reply, "Duration format:")
}

func TestDispatchTriggerByName(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "trigger dim")
	assert.Contains(t, reply, "triggered successfully")

	reply = s.dispatch(context.Background(), "trigger nonexistent")
	assert.True(t, strings.HasPrefix(reply, "ERROR:"))
}

func TestDispatchTriggerAll(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "trigger all")
	assert.Equal(t, "All idle actions triggered", reply)
}

func TestDispatchReloadSurfacesError(t *testing.T) {
	s := newTestServer(func() (*config.Config, error) {
		return nil, errors.New("boom")
	})
	reply := s.dispatch(context.Background(), "reload")
	assert.True(t, strings.HasPrefix(reply, "ERROR:"))
	assert.Contains(t, reply, "boom")
}

func TestDispatchReloadAppliesNewConfig(t *testing.T) {
	s := newTestServer(func() (*config.Config, error) {
		return &config.Config{Actions: []config.Action{{Name: "only", Command: "true", TimeoutSecs: 5}}}, nil
	})
	reply := s.dispatch(context.Background(), "reload")
	require.Equal(t, "ok", reply)
	assert.Equal(t, "only", s.m.State.Queue.ActiveActions()[0].Name)
}

func TestDispatchInfoJSON(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "info --json")
	assert.True(t, strings.HasPrefix(reply, "{"))
	assert.Contains(t, reply, `"text"`)
	assert.Contains(t, reply, `"alt":"idle_active"`)
	assert.Contains(t, reply, `"tooltip"`)
}

func TestDispatchInfoJSONReflectsManualInhibit(t *testing.T) {
	s := newTestServer(nil)
	s.m.Lock()
	s.m.Pause(true, 0)
	s.m.Unlock()

	reply := s.dispatch(context.Background(), "info --json")
	assert.Contains(t, reply, `"alt":"manually_inhibited"`)
	assert.Contains(t, reply, `"text":"Inhibited"`)
}

func TestDispatchInfoPlainText(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "info")
	assert.Contains(t, reply, "block=")
	assert.Contains(t, reply, "locked=")
}

func TestDispatchToggleInhibit(t *testing.T) {
	s := newTestServer(nil)
	first := s.dispatch(context.Background(), "toggle_inhibit")
	assert.Contains(t, first, `"alt":"manually_inhibited"`)
	assert.Contains(t, first, `"text":"Inhibited"`)

	second := s.dispatch(context.Background(), "toggle_inhibit")
	assert.Contains(t, second, `"alt":"idle_active"`)
	assert.Contains(t, second, `"text":"Active"`)
}

func TestDispatchStop(t *testing.T) {
	s := newTestServer(nil)
	reply := s.dispatch(context.Background(), "stop")
	assert.Equal(t, "Stopping Stasis...", reply)
}

func TestParseDurationSumsMultipleUnits(t *testing.T) {
	d, err := parseDuration("2h 15m 30s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour+15*time.Minute+30*time.Second, d)
}

func TestParseDurationAcceptsConcatenatedTokens(t *testing.T) {
	d, err := parseDuration("1h30m")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+30*time.Minute, d)
}

func TestParseDurationAcceptsUnitAliases(t *testing.T) {
	d, err := parseDuration("5 minutes")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
}

func TestParseDurationRejectsUnknownUnit(t *testing.T) {
	_, err := parseDuration("10x")
	assert.Error(t, err)
}

func TestParseDurationRejectsEmpty(t *testing.T) {
	_, err := parseDuration("")
	assert.Error(t, err)
}

func TestFormatDurationOmitsZeroComponents(t *testing.T) {
	assert.Equal(t, "1h", formatDuration(time.Hour))
	assert.Equal(t, "30m", formatDuration(30*time.Minute))
	assert.Equal(t, "15s", formatDuration(15*time.Second))
	assert.Equal(t, "1h 30m", formatDuration(90*time.Minute))
	assert.Equal(t, "1h 15s", formatDuration(time.Hour+15*time.Second))
	assert.Equal(t, "30m 15s", formatDuration(30*time.Minute+15*time.Second))
	assert.Equal(t, "2h 15m 30s", formatDuration(2*time.Hour+15*time.Minute+30*time.Second))
}
