package probe

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/1broseidon/deskveil/internal/platform"
)

var (
	left  = platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	right = platform.Rect{X: 1920, Y: 0, Width: 2560, Height: 1440}
)

// flakySource returns snapshots in order, repeating the last one.
type flakySource struct {
	displays  []platform.Display
	snapshots [][]platform.Surface
	errs      []error
	calls     int
	scopes    []platform.Scope
}

func (f *flakySource) Displays() ([]platform.Display, error) {
	return f.displays, nil
}

func (f *flakySource) Surfaces(scope platform.Scope) ([]platform.Surface, error) {
	idx := f.calls
	f.calls++
	f.scopes = append(f.scopes, scope)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx >= len(f.snapshots) {
		idx = len(f.snapshots) - 1
	}
	return f.snapshots[idx], nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.calls = append(s.calls, d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProber(src Source, rec *sleepRecorder, attempts int) *Prober {
	return New(src, Config{
		MaxAttempts: attempts,
		Backoff:     10 * time.Millisecond,
		MaxBackoff:  40 * time.Millisecond,
		Logger:      quietLogger(),
		Sleep:       rec.sleep,
	})
}

func TestQueryConsistentFirstTry(t *testing.T) {
	src := &flakySource{snapshots: [][]platform.Surface{{
		{ID: 1, Bounds: left, OnScreen: true},
		{ID: 2, Bounds: right, OnScreen: true},
	}}}
	rec := &sleepRecorder{}
	p := newTestProber(src, rec, 5)

	res := p.Query(platform.ScopeAll, []platform.Rect{left, right})
	if !res.Consistent || res.Attempts != 1 {
		t.Fatalf("expected consistent result on first attempt, got %+v", res)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("expected no sleeps, got %v", rec.calls)
	}
	if src.scopes[0] != platform.ScopeAll {
		t.Fatalf("scope not forwarded: %v", src.scopes)
	}
}

func TestQueryRetriesUntilGeometrySettles(t *testing.T) {
	// A freshly created desktop first reports a stale geometry.
	stale := platform.Rect{X: 0, Y: 0, Width: 1024, Height: 768}
	src := &flakySource{snapshots: [][]platform.Surface{
		{{ID: 1, Bounds: left}, {ID: 2, Bounds: stale}},
		{{ID: 1, Bounds: left}},
		{{ID: 1, Bounds: left}, {ID: 2, Bounds: right}},
	}}
	rec := &sleepRecorder{}
	p := newTestProber(src, rec, 10)

	res := p.Query(platform.ScopeAll, []platform.Rect{left, right})
	if !res.Consistent {
		t.Fatalf("expected consistent result, got %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(rec.calls) != len(want) {
		t.Fatalf("sleeps = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", rec.calls, want)
		}
	}
}

func TestQueryBackoffIsCapped(t *testing.T) {
	src := &flakySource{snapshots: [][]platform.Surface{{{ID: 1, Bounds: left}}}}
	rec := &sleepRecorder{}
	p := newTestProber(src, rec, 6)

	res := p.Query(platform.ScopeAll, []platform.Rect{left, right})
	if res.Consistent {
		t.Fatalf("expected inconsistent result, got %+v", res)
	}
	if res.Attempts != 6 || src.calls != 6 {
		t.Fatalf("attempts = %d calls = %d, want 6", res.Attempts, src.calls)
	}
	if len(rec.calls) != 5 {
		t.Fatalf("expected 5 sleeps between 6 attempts, got %v", rec.calls)
	}
	for _, d := range rec.calls[2:] {
		if d != 40*time.Millisecond {
			t.Fatalf("backoff not capped: %v", rec.calls)
		}
	}
	if len(res.Surfaces) != 1 {
		t.Fatalf("expected best-effort snapshot, got %v", res.Surfaces)
	}
}

func TestQueryLearnsBaselineForPermanentMismatch(t *testing.T) {
	// One desktop window spanning both monitors never matches either screen.
	span := platform.Rect{X: 0, Y: 0, Width: 4480, Height: 1440}
	src := &flakySource{snapshots: [][]platform.Surface{{{ID: 9, Bounds: span}}}}
	rec := &sleepRecorder{}
	p := newTestProber(src, rec, 4)

	first := p.Query(platform.ScopeAll, []platform.Rect{left, right})
	if first.Consistent || first.Attempts != 4 {
		t.Fatalf("first query = %+v, want exhausted retries", first)
	}

	second := p.Query(platform.ScopeAll, []platform.Rect{left, right})
	if !second.Consistent || second.Attempts != 1 {
		t.Fatalf("second query = %+v, want baseline accepted immediately", second)
	}
}

func TestQueryEmptyAnswerIsStable(t *testing.T) {
	src := &flakySource{snapshots: [][]platform.Surface{{}}}
	rec := &sleepRecorder{}
	p := newTestProber(src, rec, 5)

	res := p.Query(platform.ScopeOnScreen, []platform.Rect{left})
	if !res.Consistent || res.Attempts != 1 {
		t.Fatalf("expected immediate stable result, got %+v", res)
	}
}

func TestQueryToleratesSourceErrors(t *testing.T) {
	src := &flakySource{
		errs:      []error{errors.New("BadWindow"), nil},
		snapshots: [][]platform.Surface{nil, {{ID: 1, Bounds: left}}},
	}
	rec := &sleepRecorder{}
	p := newTestProber(src, rec, 5)

	res := p.Query(platform.ScopeAll, []platform.Rect{left})
	if !res.Consistent || res.Attempts != 2 {
		t.Fatalf("expected recovery on second attempt, got %+v", res)
	}
}

func TestScreensFiltersSleepingDisplays(t *testing.T) {
	src := &flakySource{displays: []platform.Display{
		{ID: 0, Bounds: left, Awake: true},
		{ID: 1, Bounds: right, Awake: false},
	}}
	p := newTestProber(src, &sleepRecorder{}, 1)

	awake, ok := p.Screens()
	if !ok || len(awake) != 1 || awake[0].ID != 0 {
		t.Fatalf("Screens() = %v, %v", awake, ok)
	}

	src.displays[0].Awake = false
	if _, ok := p.Screens(); ok {
		t.Fatal("expected ok=false when every display sleeps")
	}
}

func TestReconfigureChangesRetryLimits(t *testing.T) {
	src := &flakySource{snapshots: [][]platform.Surface{{{ID: 1, Bounds: left}}}}
	rec := &sleepRecorder{}
	p := newTestProber(src, rec, 6)

	p.Reconfigure(Config{MaxAttempts: 2, Backoff: 5 * time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	res := p.Query(platform.ScopeAll, []platform.Rect{left, right})
	if res.Attempts != 2 || src.calls != 2 {
		t.Fatalf("attempts = %d calls = %d, want 2", res.Attempts, src.calls)
	}
	if len(rec.calls) != 1 || rec.calls[0] != 5*time.Millisecond {
		t.Fatalf("sleeps = %v, want [5ms]", rec.calls)
	}

	// Zero values fall back to the defaults.
	p.Reconfigure(Config{})
	if attempts, backoff, maxBackoff := p.limits(); attempts != DefaultMaxAttempts || backoff != DefaultBackoff || maxBackoff != DefaultMaxBackoff {
		t.Fatalf("limits = %d %v %v, want defaults", attempts, backoff, maxBackoff)
	}
}
