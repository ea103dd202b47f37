package overlay

import (
	"image"
	"strconv"

	"github.com/1broseidon/deskveil/internal/platform"
)

// modeFor resolves the content mode for rs: a surface override, then the
// space override, then the default.
func (r *Registry) modeFor(rs *resource) Mode {
	if m, ok := r.surfaceModes[rs.surface]; ok {
		return m
	}
	if m, ok := r.spaceModes[rs.desktop]; ok {
		return m
	}
	return r.defaultMode
}

// refreshContent captures or fills rs. A failed capture leaves the previous
// image in place until the next pass.
func (r *Registry) refreshContent(rs *resource) bool {
	mode := r.modeFor(rs)

	if mode.Color {
		if err := r.backend.PaintColor(rs.overlay, mode.RGB); err != nil {
			r.logger.Debug("overlay: fill failed", "surface", rs.surface, "error", err)
			return false
		}
		return true
	}

	img, err := r.backend.Capture(rs.surface, rs.bounds)
	if err != nil {
		r.logger.Debug("overlay: capture failed, keeping previous content", "surface", rs.surface, "error", err)
		return false
	}
	if err := r.backend.PaintImage(rs.overlay, img); err != nil {
		r.logger.Debug("overlay: paint failed", "surface", rs.surface, "error", err)
		return false
	}
	rs.lastImage = img
	r.thumbs.Remove(rs.key())
	return true
}

// applyMode records mode for target and repaints the affected resources.
func (r *Registry) applyMode(target Target, mode Mode) {
	switch target.Kind {
	case TargetAll:
		r.defaultMode = mode
		clear(r.spaceModes)
		clear(r.surfaceModes)
	case TargetDesktop:
		r.spaceModes[target.Desktop] = mode
		// A desktop choice overrides earlier per-surface choices on it.
		for _, rs := range r.resources {
			if rs.desktop == target.Desktop {
				delete(r.surfaceModes, rs.surface)
			}
		}
	case TargetSurface:
		r.surfaceModes[target.Surface] = mode
	}
	r.logger.Info("overlay: content mode changed", "target", target.String(), "mode", mode.String())

	for _, rs := range r.resources {
		if !target.matches(rs) {
			continue
		}
		r.refreshContent(rs)
	}
	for _, f := range r.fillers {
		if f.active {
			r.paintFiller(f)
		}
	}
}

func (t Target) matches(rs *resource) bool {
	switch t.Kind {
	case TargetSurface:
		return rs.surface == t.Surface
	case TargetDesktop:
		return rs.desktop == t.Desktop
	default:
		return true
	}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetSurface:
		return "surface:" + strconv.FormatUint(uint64(t.Surface), 10)
	case TargetDesktop:
		return "desktop:" + strconv.Itoa(t.Desktop)
	default:
		return "all"
	}
}

// meanColor averages img on a sparse grid.
func meanColor(img image.Image) platform.RGB {
	b := img.Bounds()
	if b.Empty() {
		return platform.RGB{}
	}
	stepX := max(b.Dx()/32, 1)
	stepY := max(b.Dy()/32, 1)

	var sr, sg, sb, n uint64
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += uint64(cr >> 8)
			sg += uint64(cg >> 8)
			sb += uint64(cb >> 8)
			n++
		}
	}
	return platform.RGB{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n)}
}
