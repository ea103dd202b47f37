// Package daemon runs the long-lived deskveil process: an overlay registry
// fed by X root events, D-Bus signals, the IPC socket and global hotkeys,
// all under one suture supervisor.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/deskveil/internal/config"
	"github.com/1broseidon/deskveil/internal/hotkeys"
	"github.com/1broseidon/deskveil/internal/ipc"
	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/1broseidon/deskveil/internal/platform"
	"github.com/1broseidon/deskveil/internal/probe"
	"github.com/1broseidon/deskveil/internal/runtimepath"
	"github.com/1broseidon/deskveil/internal/sysevents"
	"github.com/1broseidon/deskveil/internal/x11"
	"github.com/thejerf/suture/v4"
)

// StartHiddenDelay is how long after launch start_hidden takes effect.
const StartHiddenDelay = time.Second

type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  *platform.LinuxBackend
	registry *overlay.Registry
	prober   *probe.Prober
	server   *ipc.Server
	keys     *hotkeys.Handler
}

// New connects to the display and builds every component. Nothing runs
// until Run is called.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to display: %w", err)
	}

	prober := probe.New(backend, ProbeConfig(cfg, logger.With("component", "probe")))
	registry := overlay.New(RegistryOptions(cfg, backend, prober, logger.With("component", "overlay")))

	server, err := ipc.NewServer(registry, logger.With("component", "ipc"))
	if err != nil {
		backend.Disconnect()
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		registry: registry,
		prober:   prober,
		server:   server,
	}

	if err := backend.Connection().WatchRoot(func(change x11.RootChange) {
		ev, ok := eventForRootChange(change)
		if !ok {
			return
		}
		if err := registry.Notify(ev); err != nil {
			logger.Debug("root event dropped", "change", change, "error", err)
		}
	}); err != nil {
		backend.Disconnect()
		return nil, fmt.Errorf("failed to watch root window: %w", err)
	}

	if cfg.ToggleHotkey != "" || cfg.RefreshHotkey != "" {
		keys, err := hotkeys.NewHandler(backend, registry, logger.With("component", "hotkeys"))
		if err != nil {
			backend.Disconnect()
			return nil, err
		}
		if cfg.ToggleHotkey != "" {
			if err := keys.RegisterToggle(cfg.ToggleHotkey); err != nil {
				backend.Disconnect()
				return nil, err
			}
		}
		if err := keys.RegisterRefresh(cfg.RefreshHotkey); err != nil {
			logger.Warn("refresh hotkey unavailable", "error", err)
		}
		d.keys = keys
	}

	return d, nil
}

// Registry exposes the overlay registry, mainly for tests and tooling.
func (d *Daemon) Registry() *overlay.Registry {
	return d.registry
}

// Run supervises every service until ctx is cancelled or the registry fails
// fatally. The X connection is closed on return.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.backend.Disconnect()
	if d.keys != nil {
		defer d.keys.Unregister()
	}

	pidPath, err := runtimepath.PIDPath()
	if err == nil {
		err = writePIDFile(pidPath, os.Getpid())
	}
	if err != nil {
		d.logger.Warn("failed to write pid file", "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	reg := &registryService{registry: d.registry}

	sup := suture.New("deskveil", suture.Spec{
		EventHook: eventHook(d.logger),
	})
	sup.Add(reg)
	sup.Add(&rootEventLoop{conn: d.backend.Connection(), logger: d.logger})
	sup.Add(sysevents.NewSystemWatcher(d.registry, d.logger.With("component", "dbus")))
	sup.Add(sysevents.NewSessionWatcher(d.registry, d.logger.With("component", "dbus")))
	sup.Add(d.server)
	if d.cfg.StartHidden {
		sup.Add(&startHidden{actions: d.registry, delay: StartHiddenDelay, logger: d.logger})
	}

	d.logger.Info("deskveil daemon started",
		"toggle_hotkey", d.cfg.ToggleHotkey,
		"refresh_interval", config.FormatInterval(time.Duration(d.cfg.RefreshInterval)),
		"socket", d.server.SocketPath())

	err = sup.Serve(ctx)
	if fatal := reg.Err(); fatal != nil {
		return fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Reload applies the parts of cfg that can change at runtime and warns about
// the ones that need a restart.
func (d *Daemon) Reload(cfg *config.Config) error {
	if err := d.registry.SetRefreshInterval(time.Duration(cfg.RefreshInterval)); err != nil {
		return err
	}
	if err := d.registry.SetContentMode(overlay.AllSpaces(), ModeFromConfig(cfg.ContentMode)); err != nil {
		return err
	}
	for desktop, mode := range cfg.SpaceModes {
		if err := d.registry.SetContentMode(overlay.OneDesktop(desktop), ModeFromConfig(mode)); err != nil {
			return err
		}
	}
	if err := d.registry.SetTuning(TuningFromConfig(cfg)); err != nil {
		return err
	}
	if d.prober != nil {
		d.prober.Reconfigure(ProbeConfig(cfg, nil))
	}

	for _, key := range RestartRequired(d.cfg, cfg) {
		d.logger.Warn("setting changed; restart the daemon to apply it", "key", key)
	}
	d.cfg = cfg
	d.logger.Info("configuration reloaded")
	return nil
}

// RestartRequired lists the keys that differ between old and cfg but are
// only read at startup.
func RestartRequired(old, cfg *config.Config) []string {
	if old == nil {
		return nil
	}
	var keys []string
	check := func(key string, changed bool) {
		if changed {
			keys = append(keys, key)
		}
	}
	check("toggle_hotkey", old.ToggleHotkey != cfg.ToggleHotkey)
	check("refresh_hotkey", old.RefreshHotkey != cfg.RefreshHotkey)
	check("log_level", old.LogLevel != cfg.LogLevel)
	check("display", old.Display != cfg.Display)
	check("xauthority", old.XAuthority != cfg.XAuthority)
	return keys
}

// ProbeConfig maps the probe settings. A nil logger keeps the prober's own
// when passed to Reconfigure.
func ProbeConfig(cfg *config.Config, logger *slog.Logger) probe.Config {
	return probe.Config{
		MaxAttempts: cfg.Probe.MaxAttempts,
		Backoff:     time.Duration(cfg.Probe.Backoff),
		MaxBackoff:  time.Duration(cfg.Probe.MaxBackoff),
		Logger:      logger,
	}
}

// TuningFromConfig maps the settings the registry can change while running.
func TuningFromConfig(cfg *config.Config) overlay.Tuning {
	return overlay.Tuning{
		FillerColor:     cfg.FillerRGB(),
		WakeSettleDelay: time.Duration(cfg.WakeSettleDelay),
		AppearanceDelay: time.Duration(cfg.AppearanceDelay),
	}
}

// RegistryOptions maps the configuration onto registry options.
func RegistryOptions(cfg *config.Config, backend platform.Backend, prober overlay.Prober, logger *slog.Logger) overlay.Options {
	spaceModes := make(map[int]overlay.Mode, len(cfg.SpaceModes))
	for desktop, mode := range cfg.SpaceModes {
		spaceModes[desktop] = ModeFromConfig(mode)
	}
	return overlay.Options{
		Backend:         backend,
		Prober:          prober,
		Logger:          logger,
		RefreshInterval: time.Duration(cfg.RefreshInterval),
		DefaultMode:     ModeFromConfig(cfg.ContentMode),
		SpaceModes:      spaceModes,
		FillerColor:     cfg.FillerRGB(),
		WakeSettleDelay: time.Duration(cfg.WakeSettleDelay),
		AppearanceDelay: time.Duration(cfg.AppearanceDelay),
	}
}

// ModeFromConfig converts a validated config content mode.
func ModeFromConfig(m config.ContentMode) overlay.Mode {
	if m.Mode != config.ModeColor {
		return overlay.ImageMode()
	}
	rgb, err := m.RGB()
	if err != nil {
		return overlay.ColorMode(platform.RGB{})
	}
	return overlay.ColorMode(rgb)
}

func writePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID() (int, error) {
	path, err := runtimepath.PIDPath()
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return pid, nil
}
