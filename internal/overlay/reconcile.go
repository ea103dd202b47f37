package overlay

import (
	"fmt"

	"github.com/1broseidon/deskveil/internal/platform"
)

type passStats struct {
	surfaces  int
	created   int
	retired   int
	attempts  int
	failures  int
	refreshed int
}

// reconcile runs one pass against the prober. A full pass retires surfaces
// that are no longer reported; a visible-only pass only marks them
// off-screen.
func (r *Registry) reconcile(scope platform.Scope) error {
	r.stopTimer()

	if r.asleep {
		r.logger.Debug("overlay: skipping pass while asleep", "scope", scope)
		return nil
	}
	displays, ok := r.prober.Screens()
	if !ok {
		// DPMS blanking has no wake notification, so keep the refresh
		// cycle alive until the screens come back.
		r.logger.Debug("overlay: no awake screens, skipping pass", "scope", scope)
		r.armTimer()
		return nil
	}
	screens := screenRects(displays)
	r.screens = screens

	result := r.prober.Query(scope, screens)
	stats := passStats{surfaces: len(result.Surfaces)}
	full := scope == platform.ScopeAll

	seen := make(map[resourceKey]bool, len(result.Surfaces))
	reported := make(map[platform.SurfaceID]bool, len(result.Surfaces))
	matched := make([]*resource, 0, len(result.Surfaces))
	for _, s := range result.Surfaces {
		if scope == platform.ScopeOnScreen && !s.OnScreen {
			continue
		}
		reported[s.ID] = true

		covered := coveredScreens(screens, s.Bounds)
		if len(covered) == 0 {
			r.logger.Debug("overlay: surface covers no whole screen", "surface", s.ID, "bounds", s.Bounds)
			continue
		}
		for _, bounds := range covered {
			key := resourceKey{surface: s.ID, bounds: bounds}
			rs, exists := r.resources[key]
			if exists && rs.state == StatePinned && !desktopsOverlap(rs.desktop, s.Desktop) {
				// The space this resource was pinned to no longer exists.
				// Pins are never released, so the surface starts over.
				r.logger.Debug("overlay: pinned space changed identity",
					"surface", s.ID, "bounds", bounds, "desktop", rs.desktop, "new_desktop", s.Desktop)
				r.retire(rs)
				stats.retired++
				exists = false
			}
			if !exists {
				stats.attempts++
				created, err := r.track(s.ID, bounds, s.Desktop)
				if err != nil {
					stats.failures++
					r.logger.Warn("overlay: create failed", "surface", s.ID, "bounds", bounds, "error", err)
					continue
				}
				rs = created
				stats.created++
			}

			seen[key] = true
			rs.desktop = s.Desktop
			rs.onScreen = s.OnScreen
			matched = append(matched, rs)
		}
	}

	// Retire before advancing so a freed pin can be claimed in this pass.
	// A resource whose surface moved to other screens is unseen too.
	for key, rs := range r.resources {
		if seen[key] {
			continue
		}
		if full {
			r.retire(rs)
			stats.retired++
			continue
		}
		rs.onScreen = false
	}
	if full {
		r.forgetSurfaceModes(reported)
	}

	for _, rs := range matched {
		r.advance(rs)
		if full || rs.onScreen {
			if r.refreshContent(rs) {
				stats.refreshed++
			}
		}
	}

	r.updateFillers(screens, &stats)
	r.applyLayers(full)
	r.publish()

	r.logger.Debug("overlay: pass complete",
		"scope", scope,
		"consistent", result.Consistent,
		"probe_attempts", result.Attempts,
		"surfaces", stats.surfaces,
		"tracked", len(r.resources),
		"created", stats.created,
		"retired", stats.retired,
		"refreshed", stats.refreshed,
		"fillers", len(r.fillers))

	if full {
		if err := r.checkExhaustion(stats); err != nil {
			return err
		}
	}

	r.armTimer()
	return nil
}

func (r *Registry) track(id platform.SurfaceID, bounds platform.Rect, desktop int) (*resource, error) {
	overlay, err := r.backend.CreateOverlay(bounds)
	if err != nil {
		return nil, err
	}
	rs := &resource{
		surface: id,
		overlay: overlay,
		bounds:  bounds,
		desktop: desktop,
		state:   StateUnbound,
	}
	r.resources[rs.key()] = rs
	r.logger.Debug("overlay: tracking surface", "surface", id, "overlay", overlay, "bounds", bounds, "desktop", desktop)
	return rs, nil
}

// forgetSurfaceModes drops per-surface overrides for surfaces a full pass no
// longer reports, so a reused window ID starts from the defaults.
func (r *Registry) forgetSurfaceModes(reported map[platform.SurfaceID]bool) {
	for id := range r.surfaceModes {
		if !reported[id] {
			delete(r.surfaceModes, id)
			r.logger.Debug("overlay: dropped mode override for vanished surface", "surface", id)
		}
	}
}

// advance moves rs forward through Unbound -> Floating -> Pinned. Pinned is
// terminal until retirement.
func (r *Registry) advance(rs *resource) {
	prev := rs.state
	switch rs.state {
	case StateUnbound, StateFloating:
		if rs.onScreen && r.canPin(rs) {
			rs.state = StatePinned
		} else {
			rs.state = StateFloating
		}
	case StatePinned:
	}
	if rs.state != prev {
		r.logger.Debug("overlay: state transition", "surface", rs.surface, "from", prev, "to", rs.state, "desktop", rs.desktop)
	}
}

// canPin enforces a single pin per (space, geometry). The first holder wins.
func (r *Registry) canPin(rs *resource) bool {
	for _, other := range r.resources {
		if other == rs || other.state != StatePinned {
			continue
		}
		if other.bounds == rs.bounds && desktopsOverlap(other.desktop, rs.desktop) {
			r.logger.Debug("overlay: pin held by another surface", "surface", rs.surface, "holder", other.surface)
			return false
		}
	}
	return true
}

// retire orders rs out and drops it. Its window becomes the filler for its
// geometry when none exists yet; otherwise its last capture's mean color is
// donated to that filler.
func (r *Registry) retire(rs *resource) {
	prev := rs.state
	rs.state = StateRetired
	delete(r.resources, rs.key())
	r.thumbs.Remove(rs.key())

	if err := r.backend.ConfigureOverlay(rs.overlay, rs.bounds, platform.LayerHidden, 0); err != nil {
		r.logger.Debug("overlay: hide failed", "overlay", rs.overlay, "error", err)
	}

	var donated *platform.RGB
	if rs.lastImage != nil {
		c := meanColor(rs.lastImage)
		donated = &c
	}

	if f, ok := r.fillers[rs.bounds]; ok {
		if donated != nil {
			f.donated = donated
		}
		r.destroy(rs.overlay)
	} else {
		r.fillers[rs.bounds] = &filler{
			overlay:      rs.overlay,
			bounds:       rs.bounds,
			donated:      donated,
			applied:      true,
			appliedLayer: platform.LayerHidden,
		}
	}
	r.logger.Debug("overlay: retired surface", "surface", rs.surface, "from", prev, "bounds", rs.bounds)
}

func (r *Registry) checkExhaustion(stats passStats) error {
	if stats.attempts == 0 || stats.failures < stats.attempts {
		r.failedRuns = 0
		return nil
	}
	r.failedRuns++
	if r.failedRuns >= exhaustionPasses {
		return fmt.Errorf("%w: %d creations failed in %d consecutive passes", ErrResourceExhausted, stats.failures, r.failedRuns)
	}
	return nil
}

// layerFor is the depth rs should be at right now.
func (r *Registry) layerFor(rs *resource) platform.Layer {
	if !r.hidden {
		return platform.LayerHidden
	}
	switch rs.state {
	case StatePinned:
		if rs.onScreen {
			return platform.LayerPinned
		}
	case StateFloating:
		return platform.LayerFloating
	}
	return platform.LayerHidden
}

// applyLayers pushes depth changes to the backend. force re-stacks even
// unchanged overlays, since other clients may have restacked the desktop.
func (r *Registry) applyLayers(force bool) {
	for _, rs := range r.resources {
		layer := r.layerFor(rs)
		if !force && rs.applied && rs.appliedLayer == layer && rs.appliedBounds == rs.bounds {
			continue
		}
		if rs.applied && rs.appliedLayer == platform.LayerHidden && layer == platform.LayerHidden && rs.appliedBounds == rs.bounds {
			continue
		}
		if err := r.backend.ConfigureOverlay(rs.overlay, rs.bounds, layer, rs.surface); err != nil {
			r.logger.Debug("overlay: configure failed", "surface", rs.surface, "layer", layer, "error", err)
			continue
		}
		rs.applied = true
		rs.appliedLayer = layer
		rs.appliedBounds = rs.bounds
	}
	for _, f := range r.fillers {
		layer := platform.LayerHidden
		if r.hidden && f.active {
			layer = platform.LayerPinned
		}
		if !force && f.applied && f.appliedLayer == layer {
			continue
		}
		if f.applied && f.appliedLayer == platform.LayerHidden && layer == platform.LayerHidden {
			continue
		}
		if err := r.backend.ConfigureOverlay(f.overlay, f.bounds, layer, 0); err != nil {
			r.logger.Debug("overlay: filler configure failed", "bounds", f.bounds, "layer", layer, "error", err)
			continue
		}
		f.applied = true
		f.appliedLayer = layer
	}
}

func screenRects(displays []platform.Display) []platform.Rect {
	out := make([]platform.Rect, 0, len(displays))
	for _, d := range displays {
		if !containsRect(out, d.Bounds) {
			out = append(out, d.Bounds)
		}
	}
	return out
}

// coveredScreens lists the screens bounds fully covers. A desktop window
// spanning every monitor covers each of them.
func coveredScreens(screens []platform.Rect, bounds platform.Rect) []platform.Rect {
	var out []platform.Rect
	for _, screen := range screens {
		if bounds.Covers(screen) {
			out = append(out, screen)
		}
	}
	return out
}

func containsRect(rects []platform.Rect, want platform.Rect) bool {
	for _, r := range rects {
		if r == want {
			return true
		}
	}
	return false
}
