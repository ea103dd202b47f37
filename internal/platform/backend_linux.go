//go:build linux

package platform

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/1broseidon/deskveil/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection

	mu       sync.Mutex
	overlays map[xproto.Window]bool
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn, overlays: make(map[xproto.Window]bool)}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// Connection exposes the X11 connection for the root watcher and hotkeys.
func (b *LinuxBackend) Connection() *x11.Connection {
	if b == nil {
		return nil
	}
	return b.conn
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}
	awake := conn.ScreensAwake()

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, Display{
			ID:   m.ID,
			Name: m.Name,
			Bounds: Rect{
				X:      m.X,
				Y:      m.Y,
				Width:  m.Width,
				Height: m.Height,
			},
			Awake: awake,
		})
	}

	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})

	return displays, nil
}

// Surfaces lists desktop windows, excluding deskveil's own overlays.
func (b *LinuxBackend) Surfaces(scope Scope) ([]Surface, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	current, desktopErr := conn.GetCurrentDesktop()
	hasCurrent := desktopErr == nil

	windows, err := conn.DesktopWindows(b.overlaySet())
	if err != nil {
		return nil, err
	}

	surfaces := make([]Surface, 0, len(windows))
	for _, w := range windows {
		onScreen := w.Viewable && (w.Desktop == AllDesktops || !hasCurrent || w.Desktop == current)
		if scope == ScopeOnScreen && !onScreen {
			continue
		}
		surfaces = append(surfaces, Surface{
			ID:       SurfaceID(w.Window),
			Bounds:   Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height},
			Desktop:  w.Desktop,
			OnScreen: onScreen,
		})
	}

	sort.Slice(surfaces, func(i, j int) bool {
		return surfaces[i].ID < surfaces[j].ID
	})

	return surfaces, nil
}

// Capture prefers the root background pixmap under region and falls back to
// reading the surface window. An empty region captures the whole surface.
func (b *LinuxBackend) Capture(id SurfaceID, region Rect) (image.Image, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	x, y, w, h, ok := conn.WindowRect(xproto.Window(id))
	if !ok {
		return nil, fmt.Errorf("capture %d: %w", id, ErrNoSurface)
	}
	if region.Empty() {
		region = Rect{X: x, Y: y, Width: w, Height: h}
	}

	if img, err := conn.CaptureBackground(region.X, region.Y, region.Width, region.Height); err == nil {
		return img, nil
	}
	// Window pixels are relative to the surface origin.
	return conn.CaptureWindowRegion(xproto.Window(id), region.X-x, region.Y-y, region.Width, region.Height)
}

// CreateOverlay creates an unmapped overlay window.
func (b *LinuxBackend) CreateOverlay(bounds Rect) (OverlayID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}

	wid, err := conn.CreateOverlayWindow(bounds.X, bounds.Y, bounds.Width, bounds.Height)
	if err != nil {
		return 0, fmt.Errorf("create overlay: %w", err)
	}

	b.mu.Lock()
	b.overlays[wid] = true
	b.mu.Unlock()

	return OverlayID(wid), nil
}

// ConfigureOverlay applies geometry and stacking depth.
func (b *LinuxBackend) ConfigureOverlay(id OverlayID, bounds Rect, layer Layer, anchor SurfaceID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	wid := xproto.Window(id)

	switch layer {
	case LayerHidden:
		return conn.HideOverlayWindow(wid)
	case LayerFloating:
		return conn.ShowOverlayAtBottom(wid, bounds.X, bounds.Y, bounds.Width, bounds.Height)
	case LayerPinned:
		sibling, ok := b.anchorFrame(anchor, bounds)
		if !ok {
			// Nothing to sit above: the root background is the only thing
			// under this rectangle.
			return conn.ShowOverlayAtBottom(wid, bounds.X, bounds.Y, bounds.Width, bounds.Height)
		}
		return conn.ShowOverlayAbove(wid, bounds.X, bounds.Y, bounds.Width, bounds.Height, sibling)
	default:
		return fmt.Errorf("unknown layer %d", layer)
	}
}

// PaintImage sets img as the overlay background.
func (b *LinuxBackend) PaintImage(id OverlayID, img image.Image) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.PaintOverlayWindow(xproto.Window(id), img)
}

// PaintColor fills the overlay with c.
func (b *LinuxBackend) PaintColor(id OverlayID, c RGB) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FillOverlayWindow(xproto.Window(id), c.Pixel())
}

// DestroyOverlay destroys the overlay window.
func (b *LinuxBackend) DestroyOverlay(id OverlayID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.overlays, xproto.Window(id))
	b.mu.Unlock()

	return conn.DestroyOverlayWindow(xproto.Window(id))
}

// anchorFrame resolves the root child an overlay should be stacked above.
func (b *LinuxBackend) anchorFrame(anchor SurfaceID, bounds Rect) (xproto.Window, bool) {
	conn := b.conn
	if anchor != 0 {
		if frame, ok := conn.TopLevel(xproto.Window(anchor)); ok {
			return frame, true
		}
	}

	windows, err := conn.DesktopWindows(b.overlaySet())
	if err != nil {
		return 0, false
	}
	for _, w := range windows {
		if !w.Viewable {
			continue
		}
		if intersects(bounds, Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height}) {
			if frame, ok := conn.TopLevel(w.Window); ok {
				return frame, true
			}
		}
	}
	return 0, false
}

func (b *LinuxBackend) overlaySet() map[xproto.Window]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[xproto.Window]bool, len(b.overlays))
	for wid := range b.overlays {
		out[wid] = true
	}
	return out
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}
