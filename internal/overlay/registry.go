// Package overlay owns the overlay windows that cover desktop surfaces.
//
// A Registry is an actor: every mutation of the resource map and filler pool
// happens on the goroutine running Run. OS notifications, timer fires and
// user commands are posted to it as typed events through a single channel.
// Other goroutines only see the atomics behind IsHidden, SurfaceCount and
// FillerCount, or request/reply snapshots.
package overlay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/deskveil/internal/platform"
	"github.com/1broseidon/deskveil/internal/probe"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrResourceExhausted is returned by Run when overlay creation failed
	// for every attempt in consecutive full passes.
	ErrResourceExhausted = errors.New("overlay: window system refused to create overlays")
	// ErrStopped is returned by requests made after Run has returned.
	ErrStopped = errors.New("overlay: registry stopped")
)

const (
	DefaultWakeSettleDelay  = 2 * time.Second
	DefaultAppearanceDelay  = 3 * time.Second
	DefaultPreviewCacheSize = 16

	// exhaustionPasses is how many consecutive all-failing full passes
	// turn creation failures fatal.
	exhaustionPasses = 2
	eventBuffer      = 64
)

// Prober is the topology query the registry reconciles against.
type Prober interface {
	Screens() ([]platform.Display, bool)
	Query(scope platform.Scope, screens []platform.Rect) probe.Result
}

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through
// StdAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// StdAfterFunc wraps time.AfterFunc.
func StdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Registry.
type Options struct {
	Backend platform.Backend
	Prober  Prober
	Logger  *slog.Logger

	RefreshInterval time.Duration
	DefaultMode     Mode
	SpaceModes      map[int]Mode
	FillerColor     platform.RGB

	WakeSettleDelay  time.Duration
	AppearanceDelay  time.Duration
	PreviewCacheSize int

	// AfterFunc replaces time.AfterFunc in tests.
	AfterFunc AfterFunc
}

// Tuning holds the settings that can change while the registry runs without
// re-deriving any overlay.
type Tuning struct {
	FillerColor     platform.RGB
	WakeSettleDelay time.Duration
	AppearanceDelay time.Duration
}

// Registry tracks one overlay per desktop surface and screen, plus a filler
// per screen.
type Registry struct {
	backend platform.Backend
	prober  Prober
	logger  *slog.Logger

	afterFunc       AfterFunc
	wakeSettleDelay time.Duration
	appearanceDelay time.Duration

	events   chan Event
	done     chan struct{}
	stopOnce sync.Once

	// Observables, readable from any goroutine.
	hiddenFlag   atomic.Bool
	surfaceCount atomic.Int64
	fillerCount  atomic.Int64
	intervalNs   atomic.Int64

	// Everything below is owned by the Run goroutine.
	hidden       bool
	asleep       bool
	interval     time.Duration
	defaultMode  Mode
	spaceModes   map[int]Mode
	surfaceModes map[platform.SurfaceID]Mode
	fillerColor  platform.RGB

	resources map[resourceKey]*resource
	fillers   map[platform.Rect]*filler
	screens   []platform.Rect

	timer      Timer
	timerGen   uint64
	delay      Timer
	delayGen   uint64
	failedRuns int

	thumbs *lru.Cache[resourceKey, thumbnail]
}

// New creates a registry. Call Run to start processing events.
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = StdAfterFunc
	}
	wake := opts.WakeSettleDelay
	if wake <= 0 {
		wake = DefaultWakeSettleDelay
	}
	appearance := opts.AppearanceDelay
	if appearance <= 0 {
		appearance = DefaultAppearanceDelay
	}
	cacheSize := opts.PreviewCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultPreviewCacheSize
	}
	// Only fails for a non-positive size.
	thumbs, _ := lru.New[resourceKey, thumbnail](cacheSize)

	spaceModes := make(map[int]Mode, len(opts.SpaceModes))
	for desktop, mode := range opts.SpaceModes {
		spaceModes[desktop] = mode
	}

	r := &Registry{
		backend:         opts.Backend,
		prober:          opts.Prober,
		logger:          logger,
		afterFunc:       afterFunc,
		wakeSettleDelay: wake,
		appearanceDelay: appearance,
		events:          make(chan Event, eventBuffer),
		done:            make(chan struct{}),
		defaultMode:     opts.DefaultMode,
		spaceModes:      spaceModes,
		surfaceModes:    make(map[platform.SurfaceID]Mode),
		fillerColor:     opts.FillerColor,
		resources:       make(map[resourceKey]*resource),
		fillers:         make(map[platform.Rect]*filler),
		thumbs:          thumbs,
	}
	r.setInterval(opts.RefreshInterval)
	return r
}

// Run processes events until ctx is cancelled or a fatal error occurs. All
// overlays are destroyed before it returns. Run must only be called once.
func (r *Registry) Run(ctx context.Context) error {
	defer r.shutdown()

	r.logger.Info("overlay registry started", "refresh_interval", FormatInterval(r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("overlay registry stopped")
			return ctx.Err()
		case ev := <-r.events:
			if err := r.dispatch(ev); err != nil {
				r.logger.Error("overlay registry failed", "event", ev.eventName(), "error", err)
				return err
			}
		}
	}
}

// Notify posts an OS signal. It blocks while the queue is full and returns
// ErrStopped once the registry has shut down.
func (r *Registry) Notify(ev Event) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// Toggle flips the global hidden state.
func (r *Registry) Toggle() error {
	return r.Notify(ToggleRequested{})
}

// ForceFullReconcile re-derives every overlay from the current topology.
func (r *Registry) ForceFullReconcile() error {
	return r.Notify(RefreshRequested{})
}

// SetRefreshInterval changes the periodic refresh. Values <= 0 or >=
// NeverThreshold disable it.
func (r *Registry) SetRefreshInterval(d time.Duration) error {
	return r.Notify(intervalRequest{interval: d})
}

// SetContentMode selects image or flat color for target.
func (r *Registry) SetContentMode(target Target, mode Mode) error {
	return r.Notify(modeRequest{target: target, mode: mode})
}

// SetTuning replaces the filler color and settle delays. Active fillers are
// repainted; pending delayed passes keep their original deadline.
func (r *Registry) SetTuning(t Tuning) error {
	return r.Notify(tuningRequest{tuning: t})
}

// IsHidden reports whether icons are currently being covered.
func (r *Registry) IsHidden() bool {
	return r.hiddenFlag.Load()
}

// SurfaceCount is the number of overlays currently backing a surface.
func (r *Registry) SurfaceCount() int {
	return int(r.surfaceCount.Load())
}

// FillerCount is the number of filler overlays, active or parked.
func (r *Registry) FillerCount() int {
	return int(r.fillerCount.Load())
}

// RefreshInterval returns the current periodic refresh interval.
func (r *Registry) RefreshInterval() time.Duration {
	return time.Duration(r.intervalNs.Load())
}

// Preview describes the overlay content on the screen containing (x, y).
func (r *Registry) Preview(ctx context.Context, x, y int) (Preview, error) {
	reply := make(chan Preview, 1)
	if err := r.Notify(previewRequest{x: x, y: y, reply: reply}); err != nil {
		return Preview{}, err
	}
	return await(ctx, r.done, reply)
}

// Snapshot returns a copy of the tracked resources and fillers.
func (r *Registry) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := r.Notify(snapshotRequest{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, r.done, reply)
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *Registry) dispatch(ev Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("overlay: panic recovered", "event", ev.eventName(), "panic", rec)
			err = nil
		}
	}()

	switch ev := ev.(type) {
	case ToggleRequested:
		return r.toggle()
	case RefreshRequested, ScreenSetChanged, WallpaperChanged:
		return r.reconcile(platform.ScopeAll)
	case SpaceChanged:
		return r.reconcile(platform.ScopeOnScreen)
	case timerFired:
		if ev.gen != r.timerGen {
			return nil
		}
		return r.reconcile(platform.ScopeOnScreen)
	case WentToSleep:
		r.asleep = true
		r.stopTimer()
		r.cancelDelay()
		r.logger.Debug("overlay: displays asleep, refresh paused")
	case WokeUp:
		r.asleep = false
		r.scheduleDelay(r.wakeSettleDelay, "wake")
	case AppearanceChanged:
		if r.hidden {
			r.scheduleDelay(r.appearanceDelay, "appearance")
		}
	case delayedReconcile:
		if ev.gen != r.delayGen {
			return nil
		}
		r.delay = nil
		r.logger.Debug("overlay: delayed reconcile", "reason", ev.reason)
		return r.reconcile(platform.ScopeAll)
	case intervalRequest:
		r.setInterval(ev.interval)
		r.logger.Info("overlay: refresh interval changed", "interval", FormatInterval(r.interval))
		r.stopTimer()
		r.armTimer()
	case modeRequest:
		r.applyMode(ev.target, ev.mode)
	case tuningRequest:
		r.applyTuning(ev.tuning)
	case previewRequest:
		ev.reply <- r.preview(ev.x, ev.y)
	case snapshotRequest:
		ev.reply <- r.snapshot()
	default:
		r.logger.Warn("overlay: unknown event", "event", ev.eventName())
	}
	return nil
}

func (r *Registry) toggle() error {
	r.hidden = !r.hidden
	r.hiddenFlag.Store(r.hidden)
	r.logger.Info("overlay: hidden state changed", "hidden", r.hidden)

	if !r.hidden {
		r.stopTimer()
		r.cancelDelay()
		r.applyLayers(false)
		return nil
	}
	// Show what we already have, then re-derive topology.
	r.applyLayers(false)
	return r.reconcile(platform.ScopeAll)
}

func (r *Registry) applyTuning(t Tuning) {
	if t.WakeSettleDelay > 0 {
		r.wakeSettleDelay = t.WakeSettleDelay
	}
	if t.AppearanceDelay > 0 {
		r.appearanceDelay = t.AppearanceDelay
	}
	r.fillerColor = t.FillerColor
	for _, f := range r.fillers {
		if f.active {
			r.paintFiller(f)
		}
	}
	r.logger.Info("overlay: tuning changed",
		"filler_color", r.fillerColor.Hex(),
		"wake_settle_delay", r.wakeSettleDelay,
		"appearance_delay", r.appearanceDelay)
}

func (r *Registry) setInterval(d time.Duration) {
	if !Finite(d) {
		d = Never
	}
	r.interval = d
	r.intervalNs.Store(int64(d))
}

// armTimer schedules the next visible-only refresh.
func (r *Registry) armTimer() {
	if !r.hidden || r.asleep || !Finite(r.interval) {
		return
	}
	r.timerGen++
	gen := r.timerGen
	r.timer = r.afterFunc(r.interval, func() {
		_ = r.Notify(timerFired{gen: gen})
	})
}

// stopTimer invalidates any pending fire, including one already queued.
func (r *Registry) stopTimer() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// scheduleDelay replaces any pending delayed reconcile.
func (r *Registry) scheduleDelay(d time.Duration, reason string) {
	r.cancelDelay()
	gen := r.delayGen
	r.delay = r.afterFunc(d, func() {
		_ = r.Notify(delayedReconcile{gen: gen, reason: reason})
	})
}

func (r *Registry) cancelDelay() {
	r.delayGen++
	if r.delay != nil {
		r.delay.Stop()
		r.delay = nil
	}
}

func (r *Registry) publish() {
	r.surfaceCount.Store(int64(len(r.resources)))
	r.fillerCount.Store(int64(len(r.fillers)))
}

func (r *Registry) shutdown() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.stopTimer()
		r.cancelDelay()
		for id, rs := range r.resources {
			r.destroy(rs.overlay)
			delete(r.resources, id)
		}
		for key, f := range r.fillers {
			r.destroy(f.overlay)
			delete(r.fillers, key)
		}
		r.thumbs.Purge()
		r.publish()
	})
}

func (r *Registry) destroy(id platform.OverlayID) {
	if err := r.backend.DestroyOverlay(id); err != nil {
		r.logger.Debug("overlay: destroy failed", "overlay", id, "error", err)
	}
}

// FormatInterval renders an interval, "never" when refresh is disabled.
func FormatInterval(d time.Duration) string {
	if !Finite(d) {
		return "never"
	}
	return d.String()
}
