// Package tui is an interactive control panel for a running daemon.
package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/deskveil/internal/ipc"
)

// Daemon is the subset of *ipc.Client the panel drives.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	Toggle() (*ipc.StatusData, error)
	Refresh() error
	SetRefreshInterval(interval string) error
	SetContentMode(target, mode, color string) error
	ListSurfaces() (*ipc.SurfacesData, error)
}

// Run opens the panel and blocks until the user quits.
func Run(d Daemon) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	_, err := tea.NewProgram(newModel(d), tea.WithAltScreen()).Run()
	return err
}
