package daemon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/deskveil/internal/config"
	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/1broseidon/deskveil/internal/platform"
	"github.com/1broseidon/deskveil/internal/x11"
	"github.com/thejerf/suture/v4"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	err error
}

func (f fakeRunner) Run(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRegistryServiceTerminatesTreeOnExhaustion(t *testing.T) {
	svc := &registryService{registry: fakeRunner{err: overlay.ErrResourceExhausted}}
	err := svc.Serve(context.Background())
	if !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		t.Fatalf("expected tree termination, got %v", err)
	}
	if !errors.Is(err, overlay.ErrResourceExhausted) {
		t.Fatalf("expected exhaustion to be wrapped, got %v", err)
	}
	if !errors.Is(svc.Err(), overlay.ErrResourceExhausted) {
		t.Fatalf("expected Err to report exhaustion, got %v", svc.Err())
	}
}

func TestRegistryServiceCancellation(t *testing.T) {
	svc := &registryService{registry: fakeRunner{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if svc.Err() != nil {
		t.Fatalf("cancellation is not fatal, got %v", svc.Err())
	}
}

type fakeLoop struct {
	mu      sync.Mutex
	quit    chan struct{}
	quitted bool
}

func (f *fakeLoop) EventLoop() {
	<-f.quit
}

func (f *fakeLoop) QuitEventLoop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.quitted {
		f.quitted = true
		close(f.quit)
	}
}

func TestRootEventLoopStopsOnCancel(t *testing.T) {
	loop := &fakeLoop{quit: make(chan struct{})}
	svc := &rootEventLoop{conn: loop, logger: discardLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return")
	}
}

func TestRootEventLoopExitIsFatal(t *testing.T) {
	loop := &fakeLoop{quit: make(chan struct{})}
	loop.QuitEventLoop()
	svc := &rootEventLoop{conn: loop, logger: discardLogger()}

	err := svc.Serve(context.Background())
	if !errors.Is(err, suture.ErrTerminateSupervisorTree) || !errors.Is(err, errEventLoopExited) {
		t.Fatalf("expected fatal loop exit, got %v", err)
	}
}

type fakeActions struct {
	mu      sync.Mutex
	hidden  bool
	toggles int
}

func (f *fakeActions) IsHidden() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hidden
}

func (f *fakeActions) Toggle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = !f.hidden
	f.toggles++
	return nil
}

func TestStartHidden(t *testing.T) {
	tests := []struct {
		name        string
		hidden      bool
		wantToggles int
	}{
		{"visible at start", false, 1},
		{"already hidden", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := &fakeActions{hidden: tt.hidden}
			svc := &startHidden{actions: actions, delay: time.Millisecond, logger: discardLogger()}
			if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
				t.Fatalf("expected ErrDoNotRestart, got %v", err)
			}
			if actions.toggles != tt.wantToggles {
				t.Fatalf("expected %d toggles, got %d", tt.wantToggles, actions.toggles)
			}
			if !actions.hidden {
				t.Fatalf("expected icons hidden afterwards")
			}
		})
	}
}

func TestStartHiddenCancelledBeforeDelay(t *testing.T) {
	actions := &fakeActions{}
	svc := &startHidden{actions: actions, delay: time.Hour, logger: discardLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if actions.toggles != 0 {
		t.Fatalf("expected no toggle, got %d", actions.toggles)
	}
}

func TestEventForRootChange(t *testing.T) {
	tests := []struct {
		change x11.RootChange
		want   overlay.Event
	}{
		{x11.RootDesktopSwitched, overlay.SpaceChanged{}},
		{x11.RootTopologyChanged, overlay.ScreenSetChanged{}},
		{x11.RootWallpaperChanged, overlay.WallpaperChanged{}},
	}
	for _, tt := range tests {
		got, ok := eventForRootChange(tt.change)
		if !ok || got != tt.want {
			t.Fatalf("change %d: got %#v, want %#v", tt.change, got, tt.want)
		}
	}
	if _, ok := eventForRootChange(x11.RootChange(99)); ok {
		t.Fatalf("expected unknown change to be ignored")
	}
}

func TestModeFromConfig(t *testing.T) {
	tests := []struct {
		in   config.ContentMode
		want overlay.Mode
	}{
		{config.ContentMode{Mode: config.ModeImage, Color: "#ffffff"}, overlay.ImageMode()},
		{config.ContentMode{Mode: config.ModeColor, Color: "#102030"}, overlay.ColorMode(platform.RGB{R: 0x10, G: 0x20, B: 0x30})},
		{config.ContentMode{Mode: config.ModeColor}, overlay.ColorMode(platform.RGB{})},
	}
	for _, tt := range tests {
		if got := ModeFromConfig(tt.in); got != tt.want {
			t.Fatalf("ModeFromConfig(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestRegistryOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RefreshInterval = config.Interval(30 * time.Second)
	cfg.SpaceModes[2] = config.ContentMode{Mode: config.ModeColor, Color: "#ff0000"}
	cfg.FillerColor = "#010101"

	opts := RegistryOptions(cfg, nil, nil, discardLogger())
	if opts.RefreshInterval != 30*time.Second {
		t.Fatalf("expected 30s interval, got %v", opts.RefreshInterval)
	}
	if opts.DefaultMode != overlay.ImageMode() {
		t.Fatalf("expected image default, got %#v", opts.DefaultMode)
	}
	if opts.SpaceModes[2] != overlay.ColorMode(platform.RGB{R: 0xff}) {
		t.Fatalf("unexpected space mode %#v", opts.SpaceModes[2])
	}
	if opts.FillerColor != (platform.RGB{R: 1, G: 1, B: 1}) {
		t.Fatalf("unexpected filler color %#v", opts.FillerColor)
	}
	if opts.WakeSettleDelay != config.DefaultWakeSettleDelay || opts.AppearanceDelay != config.DefaultAppearanceDelay {
		t.Fatalf("unexpected delays %v %v", opts.WakeSettleDelay, opts.AppearanceDelay)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	if _, err := ReadPID(); err == nil {
		t.Fatalf("expected error without a pid file")
	}
	if err := writePIDFile(dir+"/deskveil.pid", 4242); err != nil {
		t.Fatalf("write: %v", err)
	}
	pid, err := ReadPID()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid != 4242 {
		t.Fatalf("expected 4242, got %d", pid)
	}
}

func TestRestartRequired(t *testing.T) {
	old := config.DefaultConfig()
	cfg := config.DefaultConfig()
	cfg.FillerColor = "#ffffff"
	cfg.RefreshInterval = config.Interval(time.Minute)
	if got := RestartRequired(old, cfg); len(got) != 0 {
		t.Fatalf("runtime settings flagged for restart: %v", got)
	}

	cfg.ToggleHotkey = "Super-h"
	cfg.LogLevel = "debug"
	want := []string{"toggle_hotkey", "log_level"}
	if got := RestartRequired(old, cfg); !reflect.DeepEqual(got, want) {
		t.Fatalf("RestartRequired() = %v, want %v", got, want)
	}
	if got := RestartRequired(nil, cfg); got != nil {
		t.Fatalf("RestartRequired(nil) = %v", got)
	}
}

func TestReloadAppliesRuntimeSettings(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	old := config.DefaultConfig()
	registry := overlay.New(RegistryOptions(old, nil, nil, discardLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = registry.Run(ctx) }()

	d := &Daemon{cfg: old, logger: logger, registry: registry}

	cfg := config.DefaultConfig()
	cfg.RefreshInterval = config.Interval(45 * time.Second)
	cfg.FillerColor = "#202020"
	cfg.ToggleHotkey = "Super-F12"
	if err := d.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	snap, err := registry.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.RefreshInterval != 45*time.Second {
		t.Fatalf("refresh interval = %v, want 45s", snap.RefreshInterval)
	}
	if d.cfg != cfg {
		t.Fatal("reloaded config not retained")
	}
	if out := logs.String(); !strings.Contains(out, "key=toggle_hotkey") {
		t.Fatalf("restart-only change not reported:\n%s", out)
	}
}
