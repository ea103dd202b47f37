// Package mcp exposes the daemon's control surface as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/deskveil/internal/ipc"
)

const (
	ServerName    = "deskveil"
	ServerVersion = "0.1.0"
)

// Daemon is the subset of *ipc.Client the tools call.
type Daemon interface {
	Toggle() (*ipc.StatusData, error)
	GetStatus() (*ipc.StatusData, error)
	Refresh() error
	SetRefreshInterval(interval string) error
	SetContentMode(target, mode, color string) error
	ListSurfaces() (*ipc.SurfacesData, error)
}

// Server is the MCP server for driving a running deskveil daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
}

// NewServer builds a server that forwards every tool call to daemon.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		daemon: daemon,
		logger: logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "toggle_icons",
		Description: "Hide the desktop icons if they are visible, or show them if they are hidden. Returns the resulting status.",
	}, s.handleToggle)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report whether icons are hidden, how many desktop surfaces and filler overlays are tracked, and the refresh interval.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "refresh",
		Description: "Re-scan desktop surfaces and recapture overlay content immediately.",
	}, s.handleRefresh)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_refresh_interval",
		Description: "Set how often overlays are recaptured while icons are hidden. Accepts a Go duration such as 30s or 5m, or \"never\" to disable periodic refresh.",
	}, s.handleSetRefreshInterval)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_content_mode",
		Description: "Choose whether overlays show a captured wallpaper image or a solid color, for every desktop or for one target.",
	}, s.handleSetContentMode)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_surfaces",
		Description: "List every tracked desktop surface and filler overlay with its geometry, state and layer.",
	}, s.handleListSurfaces)
}
