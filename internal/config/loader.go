package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// overlay is the JSON shape on disk: a sparse subset of Config fields.
// Using a pointer-typed mirror lets us tell "absent" from "zero value"
// when merging layers, the same problem fancylock's LoadConfig avoids
// by only ever applying one file at a time.
type overlay struct {
	Actions                  []Action   `json:"actions"`
	PreSuspendCommand        *string    `json:"pre_suspend_command"`
	MonitorMedia             *bool      `json:"monitor_media"`
	IgnoreRemoteMedia        *bool      `json:"ignore_remote_media"`
	MediaBlacklist           []string   `json:"media_blacklist"`
	RespectWaylandInhibitors *bool      `json:"respect_wayland_inhibitors"`
	InhibitApps              []string   `json:"inhibit_apps"`
	DebounceSeconds          *uint32    `json:"debounce_seconds"`
	LidCloseAction           *LidAction `json:"lid_close_action"`
	LidOpenAction            *LidAction `json:"lid_open_action"`
	NotifyBeforeAction       *bool      `json:"notify_before_action"`
	NotifySecondsBefore      *uint32    `json:"notify_seconds_before"`
	IPCSocketPath            *string    `json:"ipc_socket_path"`
}

func applyOverlay(cfg *Config, o overlay) {
	if o.Actions != nil {
		cfg.Actions = o.Actions
	}
	if o.PreSuspendCommand != nil {
		cfg.PreSuspendCommand = *o.PreSuspendCommand
	}
	if o.MonitorMedia != nil {
		cfg.MonitorMedia = *o.MonitorMedia
	}
	if o.IgnoreRemoteMedia != nil {
		cfg.IgnoreRemoteMedia = *o.IgnoreRemoteMedia
	}
	if o.MediaBlacklist != nil {
		cfg.MediaBlacklist = o.MediaBlacklist
	}
	if o.RespectWaylandInhibitors != nil {
		cfg.RespectWaylandInhibitors = *o.RespectWaylandInhibitors
	}
	if o.InhibitApps != nil {
		cfg.InhibitAppPatterns = o.InhibitApps
	}
	if o.DebounceSeconds != nil {
		cfg.DebounceSeconds = *o.DebounceSeconds
	}
	if o.LidCloseAction != nil {
		cfg.LidCloseAction = *o.LidCloseAction
	}
	if o.LidOpenAction != nil {
		cfg.LidOpenAction = *o.LidOpenAction
	}
	if o.NotifyBeforeAction != nil {
		cfg.NotifyBeforeAction = *o.NotifyBeforeAction
	}
	if o.NotifySecondsBefore != nil {
		cfg.NotifySecondsBefore = *o.NotifySecondsBefore
	}
	if o.IPCSocketPath != nil {
		cfg.IPCSocketPath = *o.IPCSocketPath
	}
}

// LayeredPaths returns the fallback chain searched by LoadLayered,
// highest priority last, mirroring the original implementation's
// internal-defaults -> shipped -> /etc -> $HOME cascade.
func LayeredPaths(explicit string) []string {
	paths := []string{
		"/usr/share/stasis/config.json",
		"/etc/stasis/config.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "stasis", "config.json"))
	}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	return paths
}

// LoadLayered builds the effective Config by starting from
// DefaultConfig and overlaying every file in LayeredPaths that exists,
// in order. A missing file is silently skipped; a malformed one
// returns an error so the caller (reload included) can surface a
// ConfigReloadError-shaped message without touching prior state.
func LoadLayered(explicit string) (Config, error) {
	cfg := DefaultConfig()

	for _, path := range LayeredPaths(explicit) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return cfg, fmt.Errorf("reading %s: %w", path, err)
		}

		var o overlay
		if err := json.Unmarshal(data, &o); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
		applyOverlay(&cfg, o)
	}

	resolveActionKinds(&cfg)
	if err := compileInhibitPatterns(&cfg); err != nil {
		return cfg, err
	}
	lowercaseBlacklist(&cfg)

	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// resolveActionKinds fills in Kind for actions loaded from JSON where
// the kind string needs canonicalizing (accepts the same "lock-screen"
// vs "lock_screen" spelling looseness as the original parser).
func resolveActionKinds(cfg *Config) {
	for i := range cfg.Actions {
		k := strings.ReplaceAll(strings.ToLower(string(cfg.Actions[i].Kind)), "-", "_")
		switch k {
		case "lock_screen":
			cfg.Actions[i].Kind = ActionLockScreen
		case "suspend":
			cfg.Actions[i].Kind = ActionSuspend
		case "dpms":
			cfg.Actions[i].Kind = ActionDpms
		case "brightness":
			cfg.Actions[i].Kind = ActionBrightness
		default:
			cfg.Actions[i].Kind = ActionCustom
		}
	}
}

var regexMetaChars = regexp.MustCompile(`[.*+?()\[\]{}|\\^$]`)

// compileInhibitPatterns classifies each inhibit_apps entry as literal
// or regex the way parse_app_pattern does in the original config
// parser: any regex metacharacter promotes it to a compiled pattern.
func compileInhibitPatterns(cfg *Config) error {
	cfg.InhibitApps = nil
	for _, p := range cfg.InhibitAppPatterns {
		if regexMetaChars.MatchString(p) {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("invalid regex in inhibit_apps %q: %w", p, err)
			}
			cfg.InhibitApps = append(cfg.InhibitApps, AppInhibitPattern{Kind: PatternRegex, Pattern: p})
		} else {
			cfg.InhibitApps = append(cfg.InhibitApps, AppInhibitPattern{Kind: PatternLiteral, Pattern: p})
		}
	}
	return nil
}

func lowercaseBlacklist(cfg *Config) {
	for i := range cfg.MediaBlacklist {
		cfg.MediaBlacklist[i] = strings.ToLower(cfg.MediaBlacklist[i])
	}
}

// GenerateDefaultConfigFile writes a default config into
// ~/.config/stasis/config.json if one doesn't already exist, the same
// bootstrap fancylock's GenerateDefaultConfigFile performs.
func GenerateDefaultConfigFile() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".config", "stasis")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
