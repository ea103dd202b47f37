package overlay

import (
	"image"
	"math"
	"time"

	"github.com/1broseidon/deskveil/internal/platform"
)

// Never disables periodic refresh.
const Never time.Duration = math.MaxInt64

// NeverThreshold is the interval from which refresh counts as disabled.
const NeverThreshold = 200 * time.Hour

// Finite reports whether d schedules periodic refreshes.
func Finite(d time.Duration) bool {
	return d > 0 && d < NeverThreshold
}

// State is the lifecycle position of an overlay resource.
type State int

const (
	// StateUnbound: created, not yet matched against a probe report.
	StateUnbound State = iota
	// StateFloating: matched, never seen on the active space.
	StateFloating
	// StatePinned: matched and bound to the space it was seen on.
	StatePinned
	// StateRetired: surface disappeared; the resource is gone.
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateFloating:
		return "floating"
	case StatePinned:
		return "pinned"
	case StateRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Mode selects what an overlay shows.
type Mode struct {
	Color bool
	RGB   platform.RGB
}

// ImageMode shows a live capture of the wallpaper.
func ImageMode() Mode { return Mode{} }

// ColorMode shows a flat fill.
func ColorMode(c platform.RGB) Mode { return Mode{Color: true, RGB: c} }

func (m Mode) String() string {
	if m.Color {
		return "color(" + m.RGB.Hex() + ")"
	}
	return "image"
}

// TargetKind selects which surfaces a content-mode change applies to.
type TargetKind int

const (
	TargetAll TargetKind = iota
	TargetSurface
	TargetDesktop
)

// Target names the space(s) a content mode applies to.
type Target struct {
	Kind    TargetKind
	Surface platform.SurfaceID
	Desktop int
}

// AllSpaces targets every surface and resets per-space overrides.
func AllSpaces() Target { return Target{Kind: TargetAll} }

// OneSurface targets a single surface identifier.
func OneSurface(id platform.SurfaceID) Target { return Target{Kind: TargetSurface, Surface: id} }

// OneDesktop targets every surface on a desktop index.
func OneDesktop(desktop int) Target { return Target{Kind: TargetDesktop, Desktop: desktop} }

// resourceKey identifies the part of a desktop surface that covers one
// screen. A surface spanning several screens is tracked once per screen.
type resourceKey struct {
	surface platform.SurfaceID
	bounds  platform.Rect
}

// resource is an overlay window backing one screen's share of a desktop
// surface.
type resource struct {
	surface platform.SurfaceID
	overlay platform.OverlayID
	bounds  platform.Rect
	desktop int
	state   State

	onScreen bool

	// Last values pushed to the backend, to skip redundant configure calls.
	applied       bool
	appliedLayer  platform.Layer
	appliedBounds platform.Rect
	lastImage     image.Image
}

func (rs *resource) key() resourceKey {
	return resourceKey{surface: rs.surface, bounds: rs.bounds}
}

// filler covers a screen no pinned resource is currently showing on.
type filler struct {
	overlay platform.OverlayID
	bounds  platform.Rect
	color   platform.RGB
	donated *platform.RGB
	active  bool

	applied      bool
	appliedLayer platform.Layer
	painted      bool
	paintedColor platform.RGB
}

func desktopsOverlap(a, b int) bool {
	return a == b || a == platform.AllDesktops || b == platform.AllDesktops
}

// ResourceInfo is a read-only view of one tracked resource.
type ResourceInfo struct {
	Surface  platform.SurfaceID
	Overlay  platform.OverlayID
	Bounds   platform.Rect
	Desktop  int
	State    State
	Layer    platform.Layer
	OnScreen bool
	Mode     Mode
}

// FillerInfo is a read-only view of one filler.
type FillerInfo struct {
	Overlay platform.OverlayID
	Bounds  platform.Rect
	Active  bool
	Layer   platform.Layer
	Color   platform.RGB
}

// Snapshot is a consistent view of the registry taken on its own goroutine.
type Snapshot struct {
	Hidden          bool
	RefreshInterval time.Duration
	Resources       []ResourceInfo
	Fillers         []FillerInfo
}

// Preview describes what covers the screen under a point.
type Preview struct {
	Found     bool
	Screen    platform.Rect
	Thumbnail image.Image // nil in color mode or before the first capture
	Color     platform.RGB
	ColorMode bool
}
