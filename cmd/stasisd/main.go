// Command stasisd is the Stasis idle-orchestration daemon: it loads
// the layered configuration, starts every source adapter, and runs the
// scheduler, lock supervisor and IPC server until told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stasis-project/stasis/internal/adapters/acpower"
	"github.com/stasis-project/stasis/internal/adapters/appinhibit"
	"github.com/stasis-project/stasis/internal/adapters/compositor"
	"github.com/stasis-project/stasis/internal/adapters/input"
	"github.com/stasis-project/stasis/internal/adapters/media"
	"github.com/stasis-project/stasis/internal/adapters/power"
	"github.com/stasis-project/stasis/internal/adapters/x11idle"
	"github.com/stasis-project/stasis/internal/config"
	"github.com/stasis-project/stasis/internal/core"
	"github.com/stasis-project/stasis/internal/ipc"
	"github.com/stasis-project/stasis/internal/log"
	"github.com/stasis-project/stasis/internal/supervisor"
)

func main() {
	configPath := flag.String("c", "", "Path to configuration file")
	flag.StringVar(configPath, "config", "", "Path to configuration file")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flagVersion := flag.Bool("v", false, "Show version info")
	flag.BoolVar(flagVersion, "version", false, "Show version info")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Stasis: idle-session orchestration daemon\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  -c, --config string\n    	Path to configuration file\n")
		fmt.Fprintf(os.Stderr, "  --debug\n    	Enable debug logging\n")
		fmt.Fprintf(os.Stderr, "  -v, --version\n    	Show version info\n")
	}
	flag.Parse()

	if *flagVersion {
		fmt.Println("stasisd 0.1.0")
		return
	}

	if *debugMode {
		log.Init(log.LevelDebug, true)
	} else {
		log.Init(log.LevelInfo, false)
	}

	if err := run(*configPath); err != nil {
		log.Fatal("stasisd: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadLayered(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	chassis := acpower.DetectChassis()
	log.Info("chassis detected: laptop=%v on_battery=%v", chassis.Kind == core.ChassisLaptop, chassis.OnBattery)

	super := supervisor.New(nil, "")
	m := core.NewManager(&cfg, chassis, super)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Instant actions (timeout_secs == 0) fire once at startup.
	m.Lock()
	m.FireInstantActions(ctx)
	m.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				log.Info("SIGHUP received, reloading configuration")
				newCfg, err := config.LoadLayered(configPath)
				if err != nil {
					log.Warn("config reload failed: %v", err)
					continue
				}
				m.HandleEvent(ctx, core.Event{Kind: core.EventConfigReloaded, NewConfig: &newCfg})
			default:
				log.Info("shutdown signal received")
				m.Shutdown.Notify()
				cancel()
				return
			}
		}
	}()

	cfgSnapshot := func() *config.Config {
		m.Lock()
		defer m.Unlock()
		return m.State.Config
	}

	go input.Run(ctx, m)
	go acpower.Run(ctx, m, chassis)
	go power.Run(ctx, m, super)
	go media.Run(ctx, m, cfgSnapshot, cfg.MonitorMedia)
	go appinhibit.Run(ctx, m, cfgSnapshot)
	go compositor.Run(ctx, m)
	go x11idle.Run(ctx, m)

	go core.RunScheduler(ctx, m)
	go core.RunLockSupervisor(ctx, m, super)

	srv := ipc.New(cfg.IPCSocketPath, m, func() (*config.Config, error) {
		c, err := config.LoadLayered(configPath)
		return &c, err
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case <-m.Shutdown.Wait():
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Warn("IPC server exited: %v", err)
		}
	case <-ctx.Done():
	}

	log.Info("stasisd shutting down")
	return nil
}
