package config

import "fmt"

// Validate checks the invariants spec.md §3 requires of every Action:
// kind LockScreen implies identity-probability (it always is, since a
// command string is mandatory), and timeout_secs is either 0 (instant)
// or strictly positive — never used as a "disabled" sentinel.
func Validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Actions))
	for _, a := range cfg.Actions {
		if a.Name == "" {
			return fmt.Errorf("action has empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate action name %q", a.Name)
		}
		seen[a.Name] = true

		if a.Command == "" {
			return fmt.Errorf("action %q has no command", a.Name)
		}
	}

	if cfg.NotifyBeforeAction && cfg.NotifySecondsBefore == 0 {
		return fmt.Errorf("notify_before_action is set but notify_seconds_before is 0")
	}

	switch cfg.LidCloseAction.Kind {
	case LidIgnore, LidLockScreen, LidSuspend, LidCustom:
	default:
		return fmt.Errorf("invalid lid_close_action %q", cfg.LidCloseAction.Kind)
	}
	if cfg.LidCloseAction.Kind == LidCustom && cfg.LidCloseAction.Command == "" {
		return fmt.Errorf("lid_close_action custom requires a command")
	}

	switch cfg.LidOpenAction.Kind {
	case LidIgnore, LidWake, LidCustom:
	default:
		return fmt.Errorf("invalid lid_open_action %q", cfg.LidOpenAction.Kind)
	}
	if cfg.LidOpenAction.Kind == LidCustom && cfg.LidOpenAction.Command == "" {
		return fmt.Errorf("lid_open_action custom requires a command")
	}

	return nil
}
