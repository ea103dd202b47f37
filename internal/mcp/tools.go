package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/deskveil/internal/config"
	"github.com/1broseidon/deskveil/internal/ipc"
)

func statusOutput(st *ipc.StatusData) StatusOutput {
	return StatusOutput{
		Hidden:          st.Hidden,
		SurfaceCount:    st.SurfaceCount,
		FillerCount:     st.FillerCount,
		RefreshInterval: st.RefreshInterval,
		UptimeSeconds:   st.UptimeSeconds,
	}
}

func (s *Server) handleToggle(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.daemon.Toggle()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("toggle_icons: %w", err)
	}
	s.logger.Info("mcp: toggled", "hidden", st.Hidden)
	return nil, statusOutput(st), nil
}

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("get_status: %w", err)
	}
	return nil, statusOutput(st), nil
}

func (s *Server) handleRefresh(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	if err := s.daemon.Refresh(); err != nil {
		return nil, OKOutput{}, fmt.Errorf("refresh: %w", err)
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleSetRefreshInterval(_ context.Context, _ *mcpsdk.CallToolRequest, args SetRefreshIntervalInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	// Reject locally so the caller sees the parse error instead of a daemon round trip.
	if _, err := config.ParseInterval(args.Interval); err != nil {
		return nil, OKOutput{}, fmt.Errorf("set_refresh_interval: %w", err)
	}
	if err := s.daemon.SetRefreshInterval(args.Interval); err != nil {
		return nil, OKOutput{}, fmt.Errorf("set_refresh_interval: %w", err)
	}
	s.logger.Info("mcp: refresh interval set", "interval", args.Interval)
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleSetContentMode(_ context.Context, _ *mcpsdk.CallToolRequest, args SetContentModeInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	target := strings.TrimSpace(args.Target)
	if target == "" {
		target = "all"
	}
	if _, err := ipc.ParseTarget(target); err != nil {
		return nil, OKOutput{}, fmt.Errorf("set_content_mode: %w", err)
	}
	if _, err := ipc.ParseMode(args.Mode, args.Color); err != nil {
		return nil, OKOutput{}, fmt.Errorf("set_content_mode: %w", err)
	}
	if err := s.daemon.SetContentMode(target, args.Mode, args.Color); err != nil {
		return nil, OKOutput{}, fmt.Errorf("set_content_mode: %w", err)
	}
	s.logger.Info("mcp: content mode set", "target", target, "mode", args.Mode)
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleListSurfaces(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ListSurfacesOutput, error) {
	data, err := s.daemon.ListSurfaces()
	if err != nil {
		return nil, ListSurfacesOutput{}, fmt.Errorf("list_surfaces: %w", err)
	}

	out := ListSurfacesOutput{
		Hidden:   data.Hidden,
		Surfaces: make([]SurfaceOutput, 0, len(data.Surfaces)),
		Fillers:  make([]FillerOutput, 0, len(data.Fillers)),
	}
	for _, sf := range data.Surfaces {
		out.Surfaces = append(out.Surfaces, SurfaceOutput{
			ID:       sf.ID,
			Geometry: sf.Geometry,
			Desktop:  sf.Desktop,
			State:    sf.State,
			Layer:    sf.Layer,
			Mode:     sf.Mode,
		})
	}
	for _, f := range data.Fillers {
		out.Fillers = append(out.Fillers, FillerOutput{
			Geometry: f.Geometry,
			Active:   f.Active,
			Color:    f.Color,
		})
	}
	return nil, out, nil
}
