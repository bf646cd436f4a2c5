// Wristpad bridges a smartwatch's inertial sensor stream to keyboard
// game input: windowed gesture classification plus a threshold reflex
// fast path, arbitrated into key presses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-wristpad/internal/config"
	"github.com/teslashibe/go-wristpad/internal/log"
	"github.com/teslashibe/go-wristpad/pkg/actor"
	"github.com/teslashibe/go-wristpad/pkg/collector"
	"github.com/teslashibe/go-wristpad/pkg/discovery"
	"github.com/teslashibe/go-wristpad/pkg/model"
	"github.com/teslashibe/go-wristpad/pkg/pipeline"
	"github.com/teslashibe/go-wristpad/pkg/sensor"
)

// checkListen is how long preflight mode watches the sensor socket.
const checkListen = 5 * time.Second

func main() {
	cfg, check := parseFlags()

	if check {
		if err := runCheck(cfg); err != nil {
			fmt.Printf("⚠️  %v\n", err)
			os.Exit(1)
		}
		return
	}

	app, err := pipeline.New(cfg)
	if err != nil {
		log.Error("configuration error", "err", err)
		os.Exit(1)
	}
	if err := app.Init(); err != nil {
		log.Error("initialization failed", "err", err)
		os.Exit(1)
	}

	printBanner(cfg, app)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Error("pipeline failed", "err", err)
		os.Exit(1)
	}
}

// parseFlags loads the configuration with command-line overrides
// applied on top.
func parseFlags() (config.Config, bool) {
	configPath := flag.String("config", "config.json", "Path to the JSON config file")
	listen := flag.String("listen", "", "UDP listen address override")
	dashboard := flag.String("dashboard", "", "Dashboard address override")
	backend := flag.String("backend", "", "Key injector backend override: auto, uinput or log")
	level := flag.String("level", "info", "Log level: debug, info, warn, error")
	check := flag.Bool("check", false, "Validate config, models and key map, then exit")
	flag.Parse()

	log.Init(*level)

	// An explicitly named config file must exist; the default path
	// falling back to stock settings is the expected first-run path.
	configFlagSet := false
	flag.Visit(func(f *flag.Flag) { configFlagSet = configFlagSet || f.Name == "config" })

	var cfg config.Config
	var err error
	if configFlagSet {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadOrDefault(*configPath)
	}
	if err != nil {
		log.Error("loading configuration", "err", err)
		os.Exit(1)
	}

	if *listen != "" {
		cfg.Network.ListenAddr = *listen
	}
	if *dashboard != "" {
		cfg.Network.DashboardAddr = *dashboard
	}
	if *backend != "" {
		cfg.Actor.Backend = *backend
	}
	return cfg, *check
}

// runCheck is the preflight mode: verify everything the pipeline needs
// without binding the socket or touching the keyboard for real.
func runCheck(cfg config.Config) error {
	fmt.Println("⌚ wristpad preflight")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	fmt.Println("   config ✅")

	for _, m := range []struct{ name, path string }{
		{"locomotion", cfg.Models.Locomotion},
		{"action", cfg.Models.Action},
	} {
		clf, err := model.Load(m.path)
		if err != nil {
			return fmt.Errorf("%s model: %w", m.name, err)
		}
		fmt.Printf("   %s model ✅ (%d features, classes: %v)\n", m.name, len(clf.FeatureNames()), clf.Classes())
	}

	keymap := actor.Keymap{
		Left:   cfg.Actor.Keys.Left,
		Right:  cfg.Actor.Keys.Right,
		Jump:   cfg.Actor.Keys.Jump,
		Attack: cfg.Actor.Keys.Attack,
	}
	if cfg.Actor.Backend != actor.BackendLog {
		if err := keymap.Validate(); err != nil {
			return fmt.Errorf("key map: %w", err)
		}
	}
	injector, err := actor.NewInjector(cfg.Actor.Backend, cfg.Actor.Device)
	if err != nil {
		return fmt.Errorf("key injector: %w", err)
	}
	injector.Close()
	fmt.Printf("   key injector ✅ (backend: %s)\n", cfg.Actor.Backend)

	return checkFeed(cfg)
}

// checkFeed binds the sensor socket and reports what actually arrives,
// so a misconfigured watch app shows up here instead of as a silent
// daemon.
func checkFeed(cfg config.Config) error {
	col, err := collector.New(cfg.Network.ListenAddr, cfg.Network.IdleTimeout.Duration())
	if err != nil {
		return err
	}
	sub := col.Subscribe("preflight", 1024)

	if ip, err := discovery.LocalIP(); err == nil {
		fmt.Printf("   listening on %s:%d for %s...\n", ip, col.Addr().Port, checkListen)
	} else {
		fmt.Printf("   listening on %s for %s...\n", col.Addr(), checkListen)
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkListen)
	defer cancel()
	go col.Run(ctx)

	counts := make(map[sensor.Kind]int)
	total := 0
	start := time.Now()
	for watching := true; watching; {
		select {
		case <-ctx.Done():
			watching = false
		case r := <-sub.Readings():
			counts[r.Kind]++
			total++
		}
	}

	if total == 0 {
		fmt.Println("   no packets received ⚠️  (is the watch app streaming?)")
		return nil
	}
	fmt.Printf("   %d packets (%.0f/s)\n", total, float64(total)/time.Since(start).Seconds())
	for _, kind := range []sensor.Kind{sensor.Acceleration, sensor.AngularVelocity, sensor.Orientation} {
		fmt.Printf("     %-20s %d\n", kind.String(), counts[kind])
	}
	st := col.Status()
	if st.Malformed > 0 || st.Unknown > 0 {
		fmt.Printf("     dropped: %d malformed, %d unknown kind\n", st.Malformed, st.Unknown)
	}
	fmt.Println("   ready to run")
	return nil
}

// printBanner tells the user where to point the watch app.
func printBanner(cfg config.Config, app *pipeline.App) {
	fmt.Println("⌚ wristpad - gesture keyboard bridge")
	if ip, err := discovery.LocalIP(); err == nil {
		fmt.Printf("   stream sensors to %s:%d\n", ip, app.Addr().Port)
	} else {
		fmt.Printf("   listening on %s\n", app.Addr())
	}
	if cfg.Network.Discovery {
		fmt.Printf("   advertised over mDNS as %s\n", discovery.ServiceType)
	}
	if cfg.Network.DashboardAddr != "" {
		fmt.Printf("   dashboard on %s\n", cfg.Network.DashboardAddr)
	}
	fmt.Println("   (Ctrl+C to exit)")
}
