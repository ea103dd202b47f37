package platform

import (
	"errors"
	"fmt"
	"image"
	"strconv"
)

// ErrNoSurface is returned by Capture when the surface no longer exists.
var ErrNoSurface = errors.New("surface not found")

// SurfaceID is the window-system identifier of a desktop background surface.
type SurfaceID uint32

// OverlayID identifies an overlay window owned by deskveil.
type OverlayID uint32

// AllDesktops marks a surface or overlay that belongs to every desktop.
const AllDesktops = -1

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

func intersects(a, b Rect) bool {
	return a.X < b.X+b.Width &&
		a.X+a.Width > b.X &&
		a.Y < b.Y+b.Height &&
		a.Y+a.Height > b.Y
}

// Covers reports whether r fully contains other.
func (r Rect) Covers(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.X+other.Width <= r.X+r.Width &&
		other.Y+other.Height <= r.Y+r.Height
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Display describes a physical screen.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Awake  bool
}

// Surface is one desktop background surface as reported by the window system.
type Surface struct {
	ID       SurfaceID
	Bounds   Rect
	Desktop  int // AllDesktops for sticky surfaces
	OnScreen bool
}

// Scope selects which surfaces a query reports.
type Scope int

const (
	// ScopeAll reports every desktop surface on every desktop.
	ScopeAll Scope = iota
	// ScopeOnScreen reports only surfaces visible on the current desktop.
	ScopeOnScreen
)

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeOnScreen:
		return "on-screen"
	default:
		return "unknown"
	}
}

// Layer is the stacking depth of an overlay window.
type Layer int

const (
	// LayerHidden keeps the overlay out of the visible stack.
	LayerHidden Layer = iota
	// LayerFloating maps the overlay beneath the desktop surface.
	LayerFloating
	// LayerPinned maps the overlay directly above the desktop surface.
	LayerPinned
)

func (l Layer) String() string {
	switch l {
	case LayerHidden:
		return "hidden"
	case LayerFloating:
		return "floating"
	case LayerPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// RGB is a 24-bit color.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// Pixel returns the color packed as 0xRRGGBB.
func (c RGB) Pixel() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Hex formats the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseRGB parses #rrggbb or rrggbb.
func ParseRGB(s string) (RGB, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Backend abstracts the window-system operations the overlay registry needs.
type Backend interface {
	// Displays lists active screens with their awake state.
	Displays() ([]Display, error)
	// Surfaces enumerates desktop background surfaces for the scope.
	Surfaces(scope Scope) ([]Surface, error)
	// Capture snapshots the wallpaper a desktop surface shows inside region,
	// given in screen coordinates.
	Capture(id SurfaceID, region Rect) (image.Image, error)

	CreateOverlay(bounds Rect) (OverlayID, error)
	// ConfigureOverlay moves the overlay to bounds and places it at layer.
	// anchor is the surface a pinned overlay is stacked above; zero lets the
	// backend pick the desktop surface under bounds.
	ConfigureOverlay(id OverlayID, bounds Rect, layer Layer, anchor SurfaceID) error
	PaintImage(id OverlayID, img image.Image) error
	PaintColor(id OverlayID, c RGB) error
	DestroyOverlay(id OverlayID) error
}
