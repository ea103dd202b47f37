package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/deskveil/internal/ipc"
)

type fakeDaemon struct {
	hidden   bool
	interval string
	mode     string
	refresh  int
	down     bool
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if f.down {
		return nil, errors.New("failed to connect to daemon")
	}
	return &ipc.StatusData{Hidden: f.hidden, SurfaceCount: 1, RefreshInterval: "never", DaemonRunning: true}, nil
}

func (f *fakeDaemon) Toggle() (*ipc.StatusData, error) {
	f.hidden = !f.hidden
	return f.GetStatus()
}

func (f *fakeDaemon) Refresh() error {
	f.refresh++
	return nil
}

func (f *fakeDaemon) SetRefreshInterval(interval string) error {
	f.interval = interval
	return nil
}

func (f *fakeDaemon) SetContentMode(target, mode, color string) error {
	f.mode = mode
	return nil
}

func (f *fakeDaemon) ListSurfaces() (*ipc.SurfacesData, error) {
	return &ipc.SurfacesData{
		Hidden:   f.hidden,
		Surfaces: []ipc.SurfaceInfo{{ID: 0x400001, Geometry: "1920x1080+0+0", State: "pinned", Mode: "image"}},
	}, nil
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting action command.
func press(t *testing.T, m model, s string) model {
	t.Helper()
	next, cmd := m.Update(key(s))
	m = next.(model)
	if cmd == nil {
		t.Fatalf("key %q produced no command", s)
	}
	next, _ = m.Update(cmd())
	return next.(model)
}

func refresh(m model) model {
	next, _ := m.Update(m.fetch()())
	return next.(model)
}

func TestToggleKey(t *testing.T) {
	d := &fakeDaemon{}
	m := refresh(newModel(d))

	m = press(t, m, "t")
	if !d.hidden {
		t.Fatalf("expected daemon toggled")
	}
	if m.statusText != "toggled" {
		t.Fatalf("statusText = %q", m.statusText)
	}

	m = refresh(m)
	if !strings.Contains(m.View(), "hidden") {
		t.Fatalf("view does not report hidden:\n%s", m.View())
	}
}

func TestCycleKeys(t *testing.T) {
	d := &fakeDaemon{}
	m := newModel(d)

	m = press(t, m, "i")
	if d.interval != intervalPresets[1] {
		t.Fatalf("interval = %q, want %q", d.interval, intervalPresets[1])
	}
	m = press(t, m, "m")
	if d.mode != "color" {
		t.Fatalf("mode = %q, want color", d.mode)
	}
	m = press(t, m, "m")
	if d.mode != "image" {
		t.Fatalf("mode = %q, want image", d.mode)
	}
	_ = press(t, m, "r")
	if d.refresh != 1 {
		t.Fatalf("refresh count = %d", d.refresh)
	}
}

func TestQuitKey(t *testing.T) {
	m := newModel(&fakeDaemon{})
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestDaemonDownView(t *testing.T) {
	m := refresh(newModel(&fakeDaemon{down: true}))
	if m.connected {
		t.Fatalf("expected disconnected")
	}
	view := m.View()
	if !strings.Contains(view, "daemon not running") || !strings.Contains(view, "failed to connect") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}
