package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))
	assert.NotEmpty(t, cfg.Actions)
	assert.Equal(t, LidSuspend, cfg.LidCloseAction.Kind)
}

func TestLoadLayeredAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	overlay := map[string]any{
		"debounce_seconds": 42,
		"monitor_media":    false,
		"inhibit_apps":     []string{"mpv", "vlc.*"},
	}
	data, err := json.Marshal(overlay)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadLayered(path)
	require.NoError(t, err)

	assert.EqualValues(t, 42, cfg.DebounceSeconds)
	assert.False(t, cfg.MonitorMedia)
	require.Len(t, cfg.InhibitApps, 2)
	assert.Equal(t, PatternLiteral, cfg.InhibitApps[0].Kind)
	assert.Equal(t, PatternRegex, cfg.InhibitApps[1].Kind)
}

func TestLoadLayeredMissingFileIsSkipped(t *testing.T) {
	cfg, err := LoadLayered(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DebounceSeconds, cfg.DebounceSeconds)
}

func TestLoadLayeredRejectsInvalidOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"actions":[{"name":"","command":"x"}]}`), 0o644))

	_, err := LoadLayered(path)
	assert.Error(t, err)
}

func TestResolveActionKindsIsCaseAndSeparatorInsensitive(t *testing.T) {
	cfg := Config{Actions: []Action{
		{Name: "a", Kind: "Lock-Screen", Command: "x"},
		{Name: "b", Kind: "dpms", Command: "x"},
		{Name: "c", Kind: "unknown-thing", Command: "x"},
	}}
	resolveActionKinds(&cfg)
	assert.Equal(t, ActionLockScreen, cfg.Actions[0].Kind)
	assert.Equal(t, ActionDpms, cfg.Actions[1].Kind)
	assert.Equal(t, ActionCustom, cfg.Actions[2].Kind)
}
