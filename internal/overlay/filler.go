package overlay

import "github.com/1broseidon/deskveil/internal/platform"

// updateFillers activates one filler per screen that no pinned, on-screen
// resource covers. Fillers are kept per geometry and parked when idle.
func (r *Registry) updateFillers(screens []platform.Rect, stats *passStats) {
	covered := make(map[platform.Rect]bool, len(r.resources))
	for _, rs := range r.resources {
		if rs.state == StatePinned && rs.onScreen {
			covered[rs.bounds] = true
		}
	}

	needed := make(map[platform.Rect]bool, len(screens))
	for _, screen := range screens {
		if !covered[screen] {
			needed[screen] = true
		}
	}

	for bounds, f := range r.fillers {
		if !needed[bounds] {
			if f.active {
				r.logger.Debug("overlay: parking filler", "bounds", bounds)
			}
			f.active = false
		}
	}

	for _, screen := range screens {
		if !needed[screen] {
			continue
		}
		f, ok := r.fillers[screen]
		if !ok {
			stats.attempts++
			id, err := r.backend.CreateOverlay(screen)
			if err != nil {
				stats.failures++
				r.logger.Warn("overlay: filler create failed", "bounds", screen, "error", err)
				continue
			}
			f = &filler{overlay: id, bounds: screen}
			r.fillers[screen] = f
			r.logger.Debug("overlay: created filler", "bounds", screen, "overlay", id)
		}
		if !f.active {
			r.logger.Debug("overlay: activating filler", "bounds", screen)
		}
		f.active = true
		r.paintFiller(f)
	}
}

// fillerColorFor picks a filler's color: the global flat color when the
// default mode is color, else a donated color, else the configured one.
func (r *Registry) fillerColorFor(f *filler) platform.RGB {
	if r.defaultMode.Color {
		return r.defaultMode.RGB
	}
	if f.donated != nil {
		return *f.donated
	}
	return r.fillerColor
}

func (r *Registry) paintFiller(f *filler) {
	f.color = r.fillerColorFor(f)
	if f.painted && f.paintedColor == f.color {
		return
	}
	if err := r.backend.PaintColor(f.overlay, f.color); err != nil {
		r.logger.Debug("overlay: filler paint failed", "bounds", f.bounds, "error", err)
		return
	}
	f.painted = true
	f.paintedColor = f.color
}
