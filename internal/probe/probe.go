// Package probe queries the window system for desktop background surfaces.
//
// The window system can report a half-updated snapshot right after a desktop
// switch or screen reconfiguration, and offers no notification that the
// topology has settled. Query therefore validates each snapshot against the
// known screens and retries with backoff for a bounded number of attempts
// before returning whatever it has.
package probe

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/1broseidon/deskveil/internal/platform"
)

const (
	DefaultMaxAttempts = 20
	DefaultBackoff     = 25 * time.Millisecond
	DefaultMaxBackoff  = 200 * time.Millisecond
)

// Source is the read-only part of the window system the prober needs.
type Source interface {
	Displays() ([]platform.Display, error)
	Surfaces(scope platform.Scope) ([]platform.Surface, error)
}

// Config controls the retry loop.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration // first sleep; doubled after every attempt
	MaxBackoff  time.Duration
	Logger      *slog.Logger
	// Sleep replaces time.Sleep in tests.
	Sleep func(time.Duration)
}

// Result is the outcome of one Query.
type Result struct {
	Surfaces   []platform.Surface
	Attempts   int
	Consistent bool
}

// Prober is stateless apart from the baseline it learns for screen layouts
// that never validate (for example a desktop manager drawing one window
// across every monitor).
type Prober struct {
	src         Source
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
	sleep       func(time.Duration)

	// mu guards the retry limits and baseline.
	mu       sync.Mutex
	baseline map[string]int // screen layout signature -> accepted geometry count
}

// New creates a prober reading from src.
func New(src Source, cfg Config) *Prober {
	p := &Prober{
		src:      src,
		logger:   cfg.Logger,
		sleep:    cfg.Sleep,
		baseline: make(map[string]int),
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sleep == nil {
		p.sleep = time.Sleep
	}
	p.setLimits(cfg)
	return p
}

// Reconfigure replaces the retry limits. Logger and Sleep are kept.
func (p *Prober) Reconfigure(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLimits(cfg)
}

func (p *Prober) setLimits(cfg Config) {
	p.maxAttempts = cfg.MaxAttempts
	p.backoff = cfg.Backoff
	p.maxBackoff = cfg.MaxBackoff
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.backoff <= 0 {
		p.backoff = DefaultBackoff
	}
	if p.maxBackoff < p.backoff {
		p.maxBackoff = DefaultMaxBackoff
		if p.maxBackoff < p.backoff {
			p.maxBackoff = p.backoff
		}
	}
}

func (p *Prober) limits() (maxAttempts int, backoff, maxBackoff time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxAttempts, p.backoff, p.maxBackoff
}

// Screens returns the awake displays. ok is false when every display is
// asleep (or none are reported), in which case callers should skip work.
func (p *Prober) Screens() (awake []platform.Display, ok bool) {
	displays, err := p.src.Displays()
	if err != nil {
		p.logger.Debug("probe: display query failed", "error", err)
		return nil, false
	}
	for _, d := range displays {
		if d.Awake && !d.Bounds.Empty() {
			awake = append(awake, d)
		}
	}
	return awake, len(awake) > 0
}

// Query enumerates surfaces for scope and validates them against screens.
// It never fails: after the last attempt the latest snapshot is returned
// with Consistent=false.
func (p *Prober) Query(scope platform.Scope, screens []platform.Rect) Result {
	want := distinct(screens)
	sig := signature(scope, want)
	maxAttempts, delay, maxBackoff := p.limits()

	var last []platform.Surface

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		surfaces, err := p.src.Surfaces(scope)
		if err != nil {
			p.logger.Debug("probe: surface query failed", "attempt", attempt, "error", err)
		} else {
			last = surfaces
			if p.consistent(sig, surfaces, want) {
				if attempt > 1 {
					p.logger.Debug("probe: topology settled", "scope", scope, "attempts", attempt)
				}
				return Result{Surfaces: surfaces, Attempts: attempt, Consistent: true}
			}
		}

		if attempt == maxAttempts {
			break
		}
		p.sleep(delay)
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}

	if last != nil {
		p.learn(sig, len(geometries(last)))
	}
	p.logger.Debug("probe: returning unsettled topology",
		"scope", scope,
		"attempts", maxAttempts,
		"surfaces", len(last),
		"screens", len(want))
	return Result{Surfaces: last, Attempts: maxAttempts, Consistent: false}
}

func (p *Prober) consistent(sig string, surfaces []platform.Surface, want map[platform.Rect]bool) bool {
	// An empty answer is stable: nothing draws the desktop.
	if len(want) == 0 || len(surfaces) == 0 {
		return true
	}
	got := geometries(surfaces)
	if len(got) == len(want) && matchesAll(got, want) {
		return true
	}

	p.mu.Lock()
	n, ok := p.baseline[sig]
	p.mu.Unlock()
	return ok && n == len(got)
}

func (p *Prober) learn(sig string, n int) {
	p.mu.Lock()
	p.baseline[sig] = n
	p.mu.Unlock()
}

func geometries(surfaces []platform.Surface) map[platform.Rect]bool {
	out := make(map[platform.Rect]bool, len(surfaces))
	for _, s := range surfaces {
		out[s.Bounds] = true
	}
	return out
}

func matchesAll(got, want map[platform.Rect]bool) bool {
	for g := range got {
		if !want[g] {
			return false
		}
	}
	return true
}

func distinct(rects []platform.Rect) map[platform.Rect]bool {
	out := make(map[platform.Rect]bool, len(rects))
	for _, r := range rects {
		out[r] = true
	}
	return out
}

func signature(scope platform.Scope, screens map[platform.Rect]bool) string {
	parts := make([]string, 0, len(screens)+1)
	for r := range screens {
		parts = append(parts, r.String())
	}
	sort.Strings(parts)
	return scope.String() + "|" + strings.Join(parts, ",")
}
