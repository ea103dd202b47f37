package overlay

import "time"

// Event is a signal delivered to the registry's goroutine. Every OS
// notification, timer fire and user command becomes one of these.
type Event interface {
	eventName() string
}

// SpaceChanged reports a switch of the active desktop.
type SpaceChanged struct{}

// ScreenSetChanged reports added, removed or resized screens or desktops.
type ScreenSetChanged struct{}

// WentToSleep reports that the displays are going to sleep.
type WentToSleep struct{}

// WokeUp reports that the displays woke up.
type WokeUp struct{}

// AppearanceChanged reports a light/dark switch.
type AppearanceChanged struct{}

// WallpaperChanged reports a new root background.
type WallpaperChanged struct{}

// ToggleRequested flips the global hidden state.
type ToggleRequested struct{}

// RefreshRequested forces a full reconciliation.
type RefreshRequested struct{}

type timerFired struct{ gen uint64 }

type delayedReconcile struct {
	gen    uint64
	reason string
}

type intervalRequest struct{ interval time.Duration }

type modeRequest struct {
	target Target
	mode   Mode
}

type tuningRequest struct{ tuning Tuning }

type previewRequest struct {
	x, y  int
	reply chan Preview
}

type snapshotRequest struct {
	reply chan Snapshot
}

func (SpaceChanged) eventName() string      { return "space-changed" }
func (ScreenSetChanged) eventName() string  { return "screen-set-changed" }
func (WentToSleep) eventName() string       { return "went-to-sleep" }
func (WokeUp) eventName() string            { return "woke-up" }
func (AppearanceChanged) eventName() string { return "appearance-changed" }
func (WallpaperChanged) eventName() string  { return "wallpaper-changed" }
func (ToggleRequested) eventName() string   { return "toggle" }
func (RefreshRequested) eventName() string  { return "refresh" }
func (timerFired) eventName() string        { return "timer" }
func (delayedReconcile) eventName() string  { return "delayed-reconcile" }
func (intervalRequest) eventName() string   { return "set-interval" }
func (modeRequest) eventName() string       { return "set-mode" }
func (tuningRequest) eventName() string     { return "set-tuning" }
func (previewRequest) eventName() string    { return "preview" }
func (snapshotRequest) eventName() string   { return "snapshot" }
