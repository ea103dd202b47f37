package overlay

import (
	"image"
	"sort"

	"github.com/1broseidon/deskveil/internal/platform"
	"golang.org/x/image/draw"
)

// ThumbnailWidth bounds the width of preview thumbnails.
const ThumbnailWidth = 256

type thumbnail struct {
	img   *image.RGBA
	color platform.RGB
}

// preview answers a Preview request without touching any overlay.
func (r *Registry) preview(x, y int) Preview {
	var screen platform.Rect
	found := false
	for _, s := range r.screens {
		if s.Contains(x, y) {
			screen, found = s, true
			break
		}
	}
	if !found {
		return Preview{Color: r.fillerColor, ColorMode: r.defaultMode.Color}
	}

	if rs := r.coveringResource(screen); rs != nil {
		mode := r.modeFor(rs)
		if mode.Color {
			return Preview{Found: true, Screen: screen, Color: mode.RGB, ColorMode: true}
		}
		if rs.lastImage == nil {
			return Preview{Found: true, Screen: screen, Color: r.fillerColor}
		}
		th := r.thumbnailFor(rs)
		return Preview{Found: true, Screen: screen, Thumbnail: th.img, Color: th.color}
	}

	if f, ok := r.fillers[screen]; ok {
		return Preview{Found: true, Screen: screen, Color: r.fillerColorFor(f), ColorMode: r.defaultMode.Color}
	}
	return Preview{Found: true, Screen: screen, Color: r.fillerColor, ColorMode: r.defaultMode.Color}
}

// coveringResource prefers the pinned on-screen resource for screen, then any
// on-screen one.
func (r *Registry) coveringResource(screen platform.Rect) *resource {
	var fallback *resource
	for _, rs := range r.resources {
		if rs.bounds != screen || !rs.onScreen {
			continue
		}
		if rs.state == StatePinned {
			return rs
		}
		if fallback == nil {
			fallback = rs
		}
	}
	return fallback
}

func (r *Registry) thumbnailFor(rs *resource) thumbnail {
	if th, ok := r.thumbs.Get(rs.key()); ok {
		return th
	}
	th := thumbnail{img: scaleToWidth(rs.lastImage, ThumbnailWidth), color: meanColor(rs.lastImage)}
	r.thumbs.Add(rs.key(), th)
	return th
}

func scaleToWidth(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > width {
		h = max(h*width/w, 1)
		w = width
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func (r *Registry) snapshot() Snapshot {
	snap := Snapshot{
		Hidden:          r.hidden,
		RefreshInterval: r.interval,
		Resources:       make([]ResourceInfo, 0, len(r.resources)),
		Fillers:         make([]FillerInfo, 0, len(r.fillers)),
	}
	for _, rs := range r.resources {
		snap.Resources = append(snap.Resources, ResourceInfo{
			Surface:  rs.surface,
			Overlay:  rs.overlay,
			Bounds:   rs.bounds,
			Desktop:  rs.desktop,
			State:    rs.state,
			Layer:    r.layerFor(rs),
			OnScreen: rs.onScreen,
			Mode:     r.modeFor(rs),
		})
	}
	for _, f := range r.fillers {
		layer := platform.LayerHidden
		if r.hidden && f.active {
			layer = platform.LayerPinned
		}
		snap.Fillers = append(snap.Fillers, FillerInfo{
			Overlay: f.overlay,
			Bounds:  f.bounds,
			Active:  f.active,
			Layer:   layer,
			Color:   r.fillerColorFor(f),
		})
	}
	sort.Slice(snap.Resources, func(i, j int) bool {
		a, b := snap.Resources[i], snap.Resources[j]
		if a.Surface != b.Surface {
			return a.Surface < b.Surface
		}
		if a.Bounds.X != b.Bounds.X {
			return a.Bounds.X < b.Bounds.X
		}
		return a.Bounds.Y < b.Bounds.Y
	})
	sort.Slice(snap.Fillers, func(i, j int) bool {
		a, b := snap.Fillers[i].Bounds, snap.Fillers[j].Bounds
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return snap
}
