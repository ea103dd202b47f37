package ipc

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/1broseidon/deskveil/internal/platform"
)

type fakeController struct {
	mu        sync.Mutex
	hidden    bool
	interval  time.Duration
	refreshes int
	target    overlay.Target
	mode      overlay.Mode
	preview   overlay.Preview
	snapshot  overlay.Snapshot
	err       error
}

func (f *fakeController) Toggle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.hidden = !f.hidden
	return nil
}

func (f *fakeController) ForceFullReconcile() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.err
}

func (f *fakeController) SetRefreshInterval(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d <= 0 {
		d = overlay.Never
	}
	f.interval = d
	return nil
}

func (f *fakeController) SetContentMode(target overlay.Target, mode overlay.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target, f.mode = target, mode
	return nil
}

func (f *fakeController) state() (int, overlay.Target, overlay.Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.target, f.mode
}

func (f *fakeController) IsHidden() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hidden
}

func (f *fakeController) SurfaceCount() int { return len(f.snapshot.Resources) }
func (f *fakeController) FillerCount() int  { return len(f.snapshot.Fillers) }

func (f *fakeController) RefreshInterval() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interval
}

func (f *fakeController) Preview(ctx context.Context, x, y int) (overlay.Preview, error) {
	return f.preview, nil
}

func (f *fakeController) Snapshot(ctx context.Context) (overlay.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot
	snap.Hidden = f.hidden
	snap.RefreshInterval = f.interval
	return snap, nil
}

func startServer(t *testing.T, ctl Controller) *Client {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	srv, err := NewServer(ctl, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return NewClient()
}

func TestToggleReturnsNewState(t *testing.T) {
	ctl := &fakeController{interval: overlay.Never}
	client := startServer(t, ctl)

	status, err := client.Toggle()
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !status.Hidden || !status.DaemonRunning {
		t.Fatalf("expected hidden after toggle, got %#v", status)
	}
	if status.RefreshInterval != "never" {
		t.Fatalf("expected never interval, got %q", status.RefreshInterval)
	}

	status, err = client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.Hidden {
		t.Fatalf("expected status to report hidden")
	}
}

func TestToggleErrorIsReported(t *testing.T) {
	ctl := &fakeController{err: overlay.ErrStopped}
	client := startServer(t, ctl)

	_, err := client.Toggle()
	if err == nil || !strings.Contains(err.Error(), "registry stopped") {
		t.Fatalf("expected stopped error, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	ctl := &fakeController{}
	client := startServer(t, ctl)

	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshes, _, _ := ctl.state(); refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes)
	}
}

func TestSetRefreshInterval(t *testing.T) {
	ctl := &fakeController{}
	client := startServer(t, ctl)

	if err := client.SetRefreshInterval("45s"); err != nil {
		t.Fatalf("SetRefreshInterval: %v", err)
	}
	if ctl.RefreshInterval() != 45*time.Second {
		t.Fatalf("expected 45s, got %v", ctl.RefreshInterval())
	}

	if err := client.SetRefreshInterval("never"); err != nil {
		t.Fatalf("SetRefreshInterval never: %v", err)
	}
	if ctl.RefreshInterval() != overlay.Never {
		t.Fatalf("expected never, got %v", ctl.RefreshInterval())
	}

	if err := client.SetRefreshInterval("whenever"); err == nil {
		t.Fatalf("expected invalid interval to be rejected")
	}
}

func TestSetContentMode(t *testing.T) {
	ctl := &fakeController{}
	client := startServer(t, ctl)

	if err := client.SetContentMode("desktop:2", "color", "#ff0000"); err != nil {
		t.Fatalf("SetContentMode: %v", err)
	}
	_, target, mode := ctl.state()
	if target != overlay.OneDesktop(2) {
		t.Fatalf("unexpected target %#v", target)
	}
	if mode != overlay.ColorMode(platform.RGB{R: 0xff}) {
		t.Fatalf("unexpected mode %#v", mode)
	}

	if err := client.SetContentMode("window:1", "image", ""); err == nil {
		t.Fatalf("expected bad target to be rejected")
	}
	if err := client.SetContentMode("all", "sepia", ""); err == nil {
		t.Fatalf("expected bad mode to be rejected")
	}
}

func TestPreviewEncodesThumbnail(t *testing.T) {
	thumb := image.NewRGBA(image.Rect(0, 0, 4, 2))
	thumb.Set(0, 0, color.RGBA{R: 9, A: 255})
	ctl := &fakeController{preview: overlay.Preview{
		Found:     true,
		Screen:    platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		Thumbnail: thumb,
		Color:     platform.RGB{R: 1, G: 2, B: 3},
	}}
	client := startServer(t, ctl)

	data, err := client.Preview(10, 10)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !data.Found || data.Width != 4 || data.Height != 2 {
		t.Fatalf("unexpected preview %#v", data)
	}
	if data.Color != "#010203" {
		t.Fatalf("expected #010203, got %q", data.Color)
	}
	raw, err := base64.StdEncoding.DecodeString(data.PNG)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if !strings.HasPrefix(string(raw), "\x89PNG") {
		t.Fatalf("expected PNG payload")
	}
}

func TestListSurfaces(t *testing.T) {
	ctl := &fakeController{snapshot: overlay.Snapshot{
		Resources: []overlay.ResourceInfo{{
			Surface: 0x400001,
			Overlay: 0x800002,
			Bounds:  platform.Rect{Width: 1920, Height: 1080},
			Desktop: 1,
			State:   overlay.StatePinned,
			Layer:   platform.LayerPinned,
		}},
		Fillers: []overlay.FillerInfo{{Overlay: 0x800003, Bounds: platform.Rect{X: 1920, Width: 1280, Height: 1024}}},
	}}
	client := startServer(t, ctl)

	data, err := client.ListSurfaces()
	if err != nil {
		t.Fatalf("ListSurfaces: %v", err)
	}
	if len(data.Surfaces) != 1 || len(data.Fillers) != 1 {
		t.Fatalf("unexpected listing %#v", data)
	}
	if data.Surfaces[0].ID != 0x400001 || data.Surfaces[0].State != overlay.StatePinned.String() {
		t.Fatalf("unexpected surface %#v", data.Surfaces[0])
	}
}

func TestUnknownCommand(t *testing.T) {
	srv := &Server{ctl: &fakeController{}, logger: slog.Default()}
	resp := srv.handleCommand(&Request{Command: "RELOAD"})
	if resp.Status != "ERROR" {
		t.Fatalf("expected error response, got %#v", resp)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	srv, err := NewServer(&fakeController{}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	client := NewClient()
	deadline := time.Now().Add(2 * time.Second)
	for client.Ping() != nil {
		if time.Now().After(deadline) {
			t.Fatalf("server never came up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return")
	}
	if client.Ping() == nil {
		t.Fatalf("expected socket to be gone after stop")
	}
}
