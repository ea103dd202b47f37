package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/deskveil/internal/ipc"
)

const pollInterval = 2 * time.Second

// intervalPresets is the cycle used by the "i" key.
var intervalPresets = []string{"never", "30s", "1m", "5m", "15m"}

// contentModes is the cycle used by the "m" key.
var contentModes = []string{"image", "color"}

// snapshotMsg carries a fresh daemon view.
type snapshotMsg struct {
	status   *ipc.StatusData
	surfaces *ipc.SurfacesData
	err      error
}

// statusMsg is sent after an IPC action completes.
type statusMsg struct {
	text string
	err  error
}

// clearStatusMsg clears the status line after a delay.
type clearStatusMsg struct{}

type pollMsg struct{}

// model is the root bubbletea model.
type model struct {
	daemon Daemon

	connected bool
	status    *ipc.StatusData
	surfaces  *ipc.SurfacesData
	lastErr   error

	intervalIdx int
	modeIdx     int

	statusText string

	width  int
	height int
}

func newModel(d Daemon) model {
	return model{daemon: d}
}

func (m model) fetch() tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		status, err := d.GetStatus()
		if err != nil {
			return snapshotMsg{err: err}
		}
		surfaces, err := d.ListSurfaces()
		return snapshotMsg{status: status, surfaces: surfaces, err: err}
	}
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

// action runs fn off the UI goroutine and reports text on success.
func action(text string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: text}
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), poll())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.lastErr = msg.err
		m.connected = msg.status != nil
		if msg.status != nil {
			m.status = msg.status
		}
		if msg.surfaces != nil {
			m.surfaces = msg.surfaces
		}
		return m, nil

	case pollMsg:
		return m, tea.Batch(m.fetch(), poll())

	case statusMsg:
		if msg.err != nil {
			m.statusText = "error: " + msg.err.Error()
		} else {
			m.statusText = msg.text
		}
		return m, tea.Batch(m.fetch(), tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		}))

	case clearStatusMsg:
		m.statusText = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.daemon
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "t", " ":
		return m, action("toggled", func() error {
			_, err := d.Toggle()
			return err
		})

	case "r":
		return m, action("refreshed", d.Refresh)

	case "i":
		m.intervalIdx = (m.intervalIdx + 1) % len(intervalPresets)
		interval := intervalPresets[m.intervalIdx]
		return m, action("refresh interval "+interval, func() error {
			return d.SetRefreshInterval(interval)
		})

	case "m":
		m.modeIdx = (m.modeIdx + 1) % len(contentModes)
		mode := contentModes[m.modeIdx]
		return m, action(fmt.Sprintf("content mode %s", mode), func() error {
			return d.SetContentMode("all", mode, "")
		})
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	return renderScreen(m, width)
}
