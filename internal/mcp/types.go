package mcp

// EmptyInput is used by tools that take no arguments.
type EmptyInput struct{}

// StatusOutput is returned by toggle_icons and get_status.
type StatusOutput struct {
	Hidden          bool   `json:"is_hidden"`
	SurfaceCount    int    `json:"surface_count"`
	FillerCount     int    `json:"filler_count"`
	RefreshInterval string `json:"refresh_interval"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

// OKOutput acknowledges a command that returns no data.
type OKOutput struct {
	OK bool `json:"ok"`
}

// SetRefreshIntervalInput is the input for the set_refresh_interval tool.
type SetRefreshIntervalInput struct {
	Interval string `json:"interval" jsonschema:"required,Go duration (e.g. 30s, 5m) or never"`
}

// SetContentModeInput is the input for the set_content_mode tool.
type SetContentModeInput struct {
	Mode   string `json:"mode" jsonschema:"required,Either image or color"`
	Target string `json:"target,omitempty" jsonschema:"all (default), desktop:<index> or surface:<window id>"`
	Color  string `json:"color,omitempty" jsonschema:"Hex color such as #1e1e2e, used with mode color"`
}

// SurfaceOutput describes one tracked desktop surface.
type SurfaceOutput struct {
	ID       uint32 `json:"id"`
	Geometry string `json:"geometry"`
	Desktop  int    `json:"desktop"`
	State    string `json:"state"`
	Layer    string `json:"layer"`
	Mode     string `json:"mode"`
}

// FillerOutput describes one filler overlay.
type FillerOutput struct {
	Geometry string `json:"geometry"`
	Active   bool   `json:"active"`
	Color    string `json:"color"`
}

// ListSurfacesOutput is the output for the list_surfaces tool.
type ListSurfacesOutput struct {
	Hidden   bool            `json:"is_hidden"`
	Surfaces []SurfaceOutput `json:"surfaces"`
	Fillers  []FillerOutput  `json:"fillers"`
}
