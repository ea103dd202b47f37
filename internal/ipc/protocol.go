package ipc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/1broseidon/deskveil/internal/platform"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandToggle             CommandType = "TOGGLE"
	CommandGetStatus          CommandType = "GET_STATUS"
	CommandRefresh            CommandType = "REFRESH"
	CommandSetRefreshInterval CommandType = "SET_REFRESH_INTERVAL"
	CommandSetContentMode     CommandType = "SET_CONTENT_MODE"
	CommandPreview            CommandType = "PREVIEW"
	CommandListSurfaces       CommandType = "LIST_SURFACES"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS and TOGGLE
type StatusData struct {
	Hidden          bool   `json:"is_hidden"`
	SurfaceCount    int    `json:"surface_count"`
	FillerCount     int    `json:"filler_count"`
	RefreshInterval string `json:"refresh_interval"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	DaemonRunning   bool   `json:"daemon_running"`
}

type SetRefreshIntervalPayload struct {
	Interval string `json:"interval"` // Go duration or "never"
}

type SetContentModePayload struct {
	Target string `json:"target"` // "all", "surface:<id>" or "desktop:<index>"
	Mode   string `json:"mode"`   // "image" or "color"
	Color  string `json:"color,omitempty"`
}

type PreviewPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PreviewData describes what covers the screen under a point.
type PreviewData struct {
	Found     bool   `json:"found"`
	Screen    string `json:"screen,omitempty"`
	ColorMode bool   `json:"is_color_mode"`
	Color     string `json:"color"`
	PNG       string `json:"png,omitempty"` // base64 thumbnail
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

type SurfaceInfo struct {
	ID       uint32 `json:"id"`
	Overlay  uint32 `json:"overlay"`
	Geometry string `json:"geometry"`
	Desktop  int    `json:"desktop"`
	State    string `json:"state"`
	Layer    string `json:"layer"`
	OnScreen bool   `json:"on_screen"`
	Mode     string `json:"mode"`
}

type FillerInfo struct {
	Overlay  uint32 `json:"overlay"`
	Geometry string `json:"geometry"`
	Active   bool   `json:"active"`
	Layer    string `json:"layer"`
	Color    string `json:"color"`
}

type SurfacesData struct {
	Hidden          bool          `json:"is_hidden"`
	RefreshInterval string        `json:"refresh_interval"`
	Surfaces        []SurfaceInfo `json:"surfaces"`
	Fillers         []FillerInfo  `json:"fillers"`
}

// ParseTarget parses "all", "surface:<id>" or "desktop:<index>". A bare
// number is a desktop index.
func ParseTarget(s string) (overlay.Target, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return overlay.AllSpaces(), nil
	}
	kind, value, hasKind := strings.Cut(s, ":")
	if !hasKind {
		kind, value = "desktop", s
	}
	switch kind {
	case "surface":
		id, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), surfaceBase(value), 32)
		if err != nil {
			return overlay.Target{}, fmt.Errorf("invalid surface id %q", value)
		}
		return overlay.OneSurface(platform.SurfaceID(id)), nil
	case "desktop":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return overlay.Target{}, fmt.Errorf("invalid desktop index %q", value)
		}
		return overlay.OneDesktop(n), nil
	default:
		return overlay.Target{}, fmt.Errorf("invalid target %q: want all, surface:<id> or desktop:<index>", s)
	}
}

func surfaceBase(v string) int {
	if strings.HasPrefix(v, "0x") {
		return 16
	}
	return 10
}

// ParseMode parses a content mode name and its color.
func ParseMode(mode, color string) (overlay.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "image":
		return overlay.ImageMode(), nil
	case "color":
		if color == "" {
			color = "#000000"
		}
		rgb, err := platform.ParseRGB(color)
		if err != nil {
			return overlay.Mode{}, err
		}
		return overlay.ColorMode(rgb), nil
	default:
		return overlay.Mode{}, fmt.Errorf("invalid mode %q: want image or color", mode)
	}
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
