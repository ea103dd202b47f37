package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/deskveil/internal/config"
	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/1broseidon/deskveil/internal/runtimepath"
)

// requestTimeout bounds round trips into the registry.
const requestTimeout = 3 * time.Second

// Controller is the daemon surface the IPC server drives. *overlay.Registry
// satisfies it.
type Controller interface {
	Toggle() error
	ForceFullReconcile() error
	SetRefreshInterval(d time.Duration) error
	SetContentMode(target overlay.Target, mode overlay.Mode) error
	IsHidden() bool
	SurfaceCount() int
	FillerCount() int
	RefreshInterval() time.Duration
	Preview(ctx context.Context, x, y int) (overlay.Preview, error)
	Snapshot(ctx context.Context) (overlay.Snapshot, error)
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	ctl          Controller
	logger       *slog.Logger
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(ctl Controller, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		ctl:        ctl,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// SocketPath is where the server listens.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go s.acceptLoop()
	return nil
}

// Serve runs the server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.shuttingDown = false
	s.shutdownMu.Unlock()

	os.Remove(s.socketPath)
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *Server) String() string {
	return "ipc-server"
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection serves one JSON line request with one JSON line reply.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal IPC response", "error", err)
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send IPC response", "error", err)
	}
}

func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)

	switch req.Command {
	case CommandToggle:
		return s.handleToggle()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandRefresh:
		return s.handleRefresh()
	case CommandSetRefreshInterval:
		return s.handleSetRefreshInterval(req.Payload)
	case CommandSetContentMode:
		return s.handleSetContentMode(req.Payload)
	case CommandPreview:
		return s.handlePreview(req.Payload)
	case CommandListSurfaces:
		return s.handleListSurfaces()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleToggle() *Response {
	if err := s.ctl.Toggle(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to toggle: %v", err))
	}
	// The snapshot is answered after the toggle has been applied.
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	snap, err := s.ctl.Snapshot(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to read state after toggle: %v", err))
	}
	s.logger.Info("IPC: toggled", "hidden", snap.Hidden)

	resp, _ := NewOKResponse(StatusData{
		Hidden:          snap.Hidden,
		SurfaceCount:    len(snap.Resources),
		FillerCount:     len(snap.Fillers),
		RefreshInterval: overlay.FormatInterval(snap.RefreshInterval),
		UptimeSeconds:   s.uptime(),
		DaemonRunning:   true,
	})
	return resp
}

func (s *Server) handleGetStatus() *Response {
	resp, _ := NewOKResponse(StatusData{
		Hidden:          s.ctl.IsHidden(),
		SurfaceCount:    s.ctl.SurfaceCount(),
		FillerCount:     s.ctl.FillerCount(),
		RefreshInterval: overlay.FormatInterval(s.ctl.RefreshInterval()),
		UptimeSeconds:   s.uptime(),
		DaemonRunning:   true,
	})
	return resp
}

func (s *Server) handleRefresh() *Response {
	if err := s.ctl.ForceFullReconcile(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to refresh: %v", err))
	}
	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleSetRefreshInterval(payload json.RawMessage) *Response {
	var req SetRefreshIntervalPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid interval payload: %v", err))
	}
	d, err := config.ParseInterval(req.Interval)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if err := s.ctl.SetRefreshInterval(d); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set refresh interval: %v", err))
	}
	s.logger.Info("IPC: refresh interval set", "interval", config.FormatInterval(d))

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleSetContentMode(payload json.RawMessage) *Response {
	var req SetContentModePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid mode payload: %v", err))
	}
	target, err := ParseTarget(req.Target)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	mode, err := ParseMode(req.Mode, req.Color)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if err := s.ctl.SetContentMode(target, mode); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set content mode: %v", err))
	}
	s.logger.Info("IPC: content mode set", "target", target.String(), "mode", mode.String())

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handlePreview(payload json.RawMessage) *Response {
	var req PreviewPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid preview payload: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	p, err := s.ctl.Preview(ctx, req.X, req.Y)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to preview: %v", err))
	}

	data := PreviewData{
		Found:     p.Found,
		ColorMode: p.ColorMode,
		Color:     p.Color.Hex(),
	}
	if p.Found {
		data.Screen = p.Screen.String()
	}
	if p.Thumbnail != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, p.Thumbnail); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to encode thumbnail: %v", err))
		}
		b := p.Thumbnail.Bounds()
		data.PNG = base64.StdEncoding.EncodeToString(buf.Bytes())
		data.Width = b.Dx()
		data.Height = b.Dy()
	}

	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleListSurfaces() *Response {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	snap, err := s.ctl.Snapshot(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to list surfaces: %v", err))
	}

	data := SurfacesData{
		Hidden:          snap.Hidden,
		RefreshInterval: overlay.FormatInterval(snap.RefreshInterval),
		Surfaces:        make([]SurfaceInfo, 0, len(snap.Resources)),
		Fillers:         make([]FillerInfo, 0, len(snap.Fillers)),
	}
	for _, r := range snap.Resources {
		data.Surfaces = append(data.Surfaces, SurfaceInfo{
			ID:       uint32(r.Surface),
			Overlay:  uint32(r.Overlay),
			Geometry: r.Bounds.String(),
			Desktop:  r.Desktop,
			State:    r.State.String(),
			Layer:    r.Layer.String(),
			OnScreen: r.OnScreen,
			Mode:     r.Mode.String(),
		})
	}
	for _, f := range snap.Fillers {
		data.Fillers = append(data.Fillers, FillerInfo{
			Overlay:  uint32(f.Overlay),
			Geometry: f.Bounds.String(),
			Active:   f.Active,
			Layer:    f.Layer.String(),
			Color:    f.Color.Hex(),
		})
	}

	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) uptime() int64 {
	return int64(time.Since(s.startTime).Seconds())
}

func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop shuts the listener down and removes the socket.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
