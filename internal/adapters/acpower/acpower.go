// Package acpower polls the sysfs power_supply class to detect the
// machine's chassis shape and, on laptops, whether it's running on AC
// or battery. There is no inotify-friendly event source for this in
// the kernel, so periodic polling is the idiomatic approach here, the
// same way fancylock polls X11 idle time rather than waiting on a
// push notification.
package acpower

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/log"
)

const powerSupplyRoot = "/sys/class/power_supply"
const pollInterval = 10 * time.Second

// DetectChassis inspects /sys/class/power_supply for any device of
// type "Battery"; its presence is the standard heuristic for "this is
// a laptop" on Linux (desktops normally expose only Mains/UPS supplies,
// if anything).
func DetectChassis() core.Chassis {
	entries, err := os.ReadDir(powerSupplyRoot)
	if err != nil {
		return core.Chassis{Kind: core.ChassisDesktop}
	}
	for _, e := range entries {
		t, err := os.ReadFile(filepath.Join(powerSupplyRoot, e.Name(), "type"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(t)) == "Battery" {
			return core.Chassis{Kind: core.ChassisLaptop, OnBattery: onBatteryNow()}
		}
	}
	return core.Chassis{Kind: core.ChassisDesktop}
}

// onBatteryNow reports true if at least one Mains/USB power supply
// exists and none of them reports online=1; with no Mains/USB supply
// at all it reports false.
func onBatteryNow() bool {
	entries, err := os.ReadDir(powerSupplyRoot)
	if err != nil {
		return false
	}
	sawMains := false
	for _, e := range entries {
		t, err := os.ReadFile(filepath.Join(powerSupplyRoot, e.Name(), "type"))
		if err != nil {
			continue
		}
		typ := strings.TrimSpace(string(t))
		if typ != "Mains" && typ != "USB" {
			continue
		}
		sawMains = true
		online, err := os.ReadFile(filepath.Join(powerSupplyRoot, e.Name(), "online"))
		if err == nil && strings.TrimSpace(string(online)) == "1" {
			return false
		}
	}
	return sawMains
}

// Run polls the AC/battery state every pollInterval and routes a
// EventPowerSourceChanged event through m whenever it flips, until ctx
// is cancelled. On desktop chassis it returns immediately.
func Run(ctx context.Context, m *core.Manager, chassis core.Chassis) {
	if chassis.Kind != core.ChassisLaptop {
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := chassis.OnBattery
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := onBatteryNow()
			if cur != last {
				last = cur
				log.Info("power source changed: on_battery=%v", cur)
				m.HandleEvent(ctx, core.Event{Kind: core.EventPowerSourceChanged, OnBattery: cur})
			}
		}
	}
}
