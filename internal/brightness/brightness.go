// Package brightness reads and writes the kernel backlight interface
// under /sys/class/backlight, falling back to shelling out to
// brightnessctl when no sysfs backlight device is present (some eDP
// panels are only writable through it due to ACPI quirks).
package brightness

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const backlightRoot = "/sys/class/backlight"

// device returns the first backlight device directory found, or "" if
// none exists.
func device() string {
	entries, err := os.ReadDir(backlightRoot)
	if err != nil || len(entries) == 0 {
		return ""
	}
	return filepath.Join(backlightRoot, entries[0].Name())
}

// Current returns the current brightness as a value in [0, 100], read
// from sysfs when available.
func Current() (int, error) {
	dev := device()
	if dev == "" {
		return currentViaBrightnessctl()
	}

	cur, err := readInt(filepath.Join(dev, "brightness"))
	if err != nil {
		return 0, err
	}
	max, err := readInt(filepath.Join(dev, "max_brightness"))
	if err != nil || max == 0 {
		return 0, err
	}
	return cur * 100 / max, nil
}

// SetPercent sets brightness to pct (0-100), writing sysfs directly
// when possible since that avoids spawning a process for every dim
// step, and falling back to brightnessctl otherwise.
func SetPercent(pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	dev := device()
	if dev == "" {
		return exec.Command("brightnessctl", "-s", "set", fmt.Sprintf("%d%%", pct)).Run()
	}

	max, err := readInt(filepath.Join(dev, "max_brightness"))
	if err != nil || max == 0 {
		return err
	}
	target := max * pct / 100
	return os.WriteFile(filepath.Join(dev, "brightness"), []byte(strconv.Itoa(target)), 0o644)
}

func currentViaBrightnessctl() (int, error) {
	out, err := exec.Command("brightnessctl", "-m").Output()
	if err != nil {
		return 0, err
	}
	fields := strings.Split(strings.TrimSpace(string(out)), ",")
	if len(fields) < 4 {
		return 0, fmt.Errorf("unexpected brightnessctl -m output")
	}
	pct := strings.TrimSuffix(fields[3], "%")
	return strconv.Atoi(pct)
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
