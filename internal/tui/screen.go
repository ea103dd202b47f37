package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(18)

	hiddenStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	visibleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	sectionStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 1)
)

func renderScreen(m model, width int) string {
	parts := []string{
		titleStyle.Render("deskveil"),
		renderStatusBar(m.connected, width),
	}
	if m.connected && m.status != nil {
		parts = append(parts, sectionStyle.Render(renderStatus(m)))
		if m.surfaces != nil {
			parts = append(parts, sectionStyle.Render(renderSurfaces(m)))
		}
	} else if m.lastErr != nil {
		parts = append(parts, sectionStyle.Render(errorStyle.Render(m.lastErr.Error())))
	}
	if m.statusText != "" {
		parts = append(parts, sectionStyle.Render(m.statusText))
	}
	parts = append(parts, renderHelpBar(width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderStatus(m model) string {
	st := m.status
	state := visibleStyle.Render("visible")
	if st.Hidden {
		state = hiddenStyle.Render("hidden")
	}
	rows := []string{
		row("icons", state),
		row("surfaces", fmt.Sprintf("%d", st.SurfaceCount)),
		row("fillers", fmt.Sprintf("%d", st.FillerCount)),
		row("refresh interval", st.RefreshInterval),
		row("uptime", fmt.Sprintf("%ds", st.UptimeSeconds)),
	}
	return strings.Join(rows, "\n")
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

var surfaceColumns = []table.Column{
	{Title: "Surface", Width: 12},
	{Title: "Geometry", Width: 20},
	{Title: "Desktop", Width: 8},
	{Title: "State", Width: 10},
	{Title: "Content", Width: 10},
}

func renderSurfaces(m model) string {
	rows := make([]table.Row, 0, len(m.surfaces.Surfaces)+len(m.surfaces.Fillers))
	for _, s := range m.surfaces.Surfaces {
		rows = append(rows, table.Row{
			fmt.Sprintf("0x%08x", s.ID),
			s.Geometry,
			fmt.Sprintf("%d", s.Desktop),
			s.State,
			s.Mode,
		})
	}
	for _, f := range m.surfaces.Fillers {
		state := "idle"
		if f.Active {
			state = "active"
		}
		rows = append(rows, table.Row{"filler", f.Geometry, "-", state, f.Color})
	}
	if len(rows) == 0 {
		return "no desktop surfaces tracked"
	}

	t := table.New(
		table.WithColumns(surfaceColumns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
		table.WithFocused(false),
	)
	return t.View()
}

// renderStatusBar renders the connection line.
func renderStatusBar(connected bool, width int) string {
	var status string
	if connected {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		status = dot + " daemon connected"
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		status = dot + " daemon not running"
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(status)
}

// renderHelpBar renders the bottom keybinding bar.
func renderHelpBar(width int) string {
	help := "t/space: toggle  r: refresh  i: cycle interval  m: cycle mode  q: quit"
	style := lipgloss.NewStyle().
		Width(width).
		MarginTop(1).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}
