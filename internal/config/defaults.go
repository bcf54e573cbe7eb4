package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns a configuration with sensible defaults, the
// same way fancylock's DefaultConfig() seeds a working Configuration
// before any file is read.
func DefaultConfig() Config {
	return Config{
		Actions: []Action{
			{Name: "dim", Kind: ActionBrightness, TimeoutSecs: 150, Command: "brightnessctl -s set 10%-", ResumeCommand: "brightnessctl -r"},
			{Name: "lock_screen", Kind: ActionLockScreen, TimeoutSecs: 180, Command: "loginctl lock-session"},
			{Name: "dpms", Kind: ActionDpms, TimeoutSecs: 210, Command: "niri msg action power-off-monitors"},
			{Name: "suspend", Kind: ActionSuspend, TimeoutSecs: 900, Command: "systemctl suspend"},
		},
		MonitorMedia:             true,
		IgnoreRemoteMedia:        false,
		MediaBlacklist:           nil,
		RespectWaylandInhibitors: true,
		InhibitAppPatterns:       nil,
		DebounceSeconds:          5,
		LidCloseAction:           LidAction{Kind: LidSuspend},
		LidOpenAction:            LidAction{Kind: LidWake},
		NotifyBeforeAction:       true,
		NotifySecondsBefore:      15,
		IPCSocketPath:            defaultSocketPath(),
	}
}

// defaultSocketPath mirrors the $XDG_RUNTIME_DIR convention the rest
// of the session stack (Wayland, PulseAudio, D-Bus) already uses.
func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "stasis.sock")
	}
	return "/tmp/stasis.sock"
}
