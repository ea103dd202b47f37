package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/1broseidon/deskveil/internal/x11"
	"github.com/thejerf/suture/v4"
)

// errEventLoopExited is returned when the X connection stops delivering events.
var errEventLoopExited = errors.New("X event loop exited")

// runner is the part of the registry the supervisor drives.
type runner interface {
	Run(ctx context.Context) error
}

// registryService runs the registry once. Any exit other than cancellation
// tears the whole tree down: a stopped registry cannot be restarted.
type registryService struct {
	registry runner

	mu  sync.Mutex
	err error
}

func (s *registryService) Serve(ctx context.Context) error {
	err := s.registry.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = overlay.ErrStopped
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, err)
}

// Err is the fatal error that stopped the registry, if any.
func (s *registryService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *registryService) String() string {
	return "overlay-registry"
}

// eventLoop is the X connection's event pump.
type eventLoop interface {
	EventLoop()
	QuitEventLoop()
}

// rootEventLoop pumps X events so root property changes and hotkeys are
// delivered.
type rootEventLoop struct {
	conn   eventLoop
	logger *slog.Logger
}

func (s *rootEventLoop) Serve(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.conn.EventLoop()
	}()

	select {
	case <-ctx.Done():
		// The loop notices the quit flag on its next event; closing the
		// connection on shutdown wakes it.
		s.conn.QuitEventLoop()
		return ctx.Err()
	case <-done:
		s.logger.Error("X event loop exited, display connection lost")
		return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, errEventLoopExited)
	}
}

func (s *rootEventLoop) String() string {
	return "x-event-loop"
}

// hideActions is what start_hidden needs from the registry.
type hideActions interface {
	IsHidden() bool
	Toggle() error
}

// startHidden hides icons once, shortly after launch.
type startHidden struct {
	actions hideActions
	delay   time.Duration
	logger  *slog.Logger
}

func (s *startHidden) Serve(ctx context.Context) error {
	t := time.NewTimer(s.delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	if s.actions.IsHidden() {
		return suture.ErrDoNotRestart
	}
	if err := s.actions.Toggle(); err != nil {
		s.logger.Warn("start hidden failed", "error", err)
	} else {
		s.logger.Info("icons hidden at startup")
	}
	return suture.ErrDoNotRestart
}

func (s *startHidden) String() string {
	return "start-hidden"
}

// eventForRootChange maps a root window change onto a registry event.
func eventForRootChange(change x11.RootChange) (overlay.Event, bool) {
	switch change {
	case x11.RootDesktopSwitched:
		return overlay.SpaceChanged{}, true
	case x11.RootTopologyChanged:
		return overlay.ScreenSetChanged{}, true
	case x11.RootWallpaperChanged:
		return overlay.WallpaperChanged{}, true
	default:
		return nil, false
	}
}

// eventHook logs supervisor events through slog.
func eventHook(logger *slog.Logger) suture.EventHook {
	return func(ev suture.Event) {
		switch ev.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate:
			logger.Warn("supervisor: "+ev.String(), "details", ev.Map())
		case suture.EventTypeBackoff, suture.EventTypeStopTimeout:
			logger.Warn("supervisor: " + ev.String())
		default:
			logger.Debug("supervisor: " + ev.String())
		}
	}
}
