// Package sysevents turns D-Bus signals about sleep, screen locking and the
// desktop color scheme into overlay registry events.
package sysevents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/godbus/dbus/v5"
	"github.com/thejerf/suture/v4"
)

const (
	login1Interface      = "org.freedesktop.login1.Manager"
	screenSaverInterface = "org.freedesktop.ScreenSaver"
	portalInterface      = "org.freedesktop.portal.Settings"

	appearanceNamespace = "org.freedesktop.appearance"
	colorSchemeKey      = "color-scheme"
)

// Sink receives translated events.
type Sink interface {
	Notify(ev overlay.Event) error
}

// Watcher subscribes to a set of signals on one bus.
type Watcher struct {
	name    string
	connect func(opts ...dbus.ConnOption) (*dbus.Conn, error)
	matches [][]dbus.MatchOption
	sink    Sink
	logger  *slog.Logger
}

// NewSystemWatcher listens for logind PrepareForSleep.
func NewSystemWatcher(sink Sink, logger *slog.Logger) *Watcher {
	return &Watcher{
		name:    "system",
		connect: dbus.ConnectSystemBus,
		matches: [][]dbus.MatchOption{
			{dbus.WithMatchInterface(login1Interface), dbus.WithMatchMember("PrepareForSleep")},
		},
		sink:   sink,
		logger: logger,
	}
}

// NewSessionWatcher listens for screen saver activation and color scheme
// changes.
func NewSessionWatcher(sink Sink, logger *slog.Logger) *Watcher {
	return &Watcher{
		name:    "session",
		connect: dbus.ConnectSessionBus,
		matches: [][]dbus.MatchOption{
			{dbus.WithMatchInterface(screenSaverInterface), dbus.WithMatchMember("ActiveChanged")},
			{dbus.WithMatchInterface(portalInterface), dbus.WithMatchMember("SettingChanged")},
		},
		sink:   sink,
		logger: logger,
	}
}

// Serve forwards signals until ctx is done. A missing bus is not retried.
func (w *Watcher) Serve(ctx context.Context) error {
	conn, err := w.connect()
	if err != nil {
		w.logger.Warn("sysevents: bus unavailable, signals disabled", "bus", w.name, "error", err)
		return fmt.Errorf("%w: %s bus: %v", suture.ErrDoNotRestart, w.name, err)
	}
	defer conn.Close()

	for _, match := range w.matches {
		if err := conn.AddMatchSignalContext(ctx, match...); err != nil {
			return fmt.Errorf("%s bus: add match: %w", w.name, err)
		}
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	w.logger.Info("sysevents: watching", "bus", w.name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return errors.New(w.name + " bus: connection closed")
			}
			ev, ok := Translate(sig)
			if !ok {
				continue
			}
			w.logger.Debug("sysevents: signal", "bus", w.name, "signal", sig.Name, "event", fmt.Sprintf("%T", ev))
			if err := w.sink.Notify(ev); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) String() string {
	return "dbus-" + w.name
}

// Translate maps a D-Bus signal to a registry event.
func Translate(sig *dbus.Signal) (overlay.Event, bool) {
	if sig == nil {
		return nil, false
	}
	switch sig.Name {
	case login1Interface + ".PrepareForSleep", screenSaverInterface + ".ActiveChanged":
		if len(sig.Body) < 1 {
			return nil, false
		}
		active, ok := sig.Body[0].(bool)
		if !ok {
			return nil, false
		}
		if active {
			return overlay.WentToSleep{}, true
		}
		return overlay.WokeUp{}, true
	case portalInterface + ".SettingChanged":
		if len(sig.Body) < 2 {
			return nil, false
		}
		namespace, _ := sig.Body[0].(string)
		key, _ := sig.Body[1].(string)
		if namespace == appearanceNamespace && key == colorSchemeKey {
			return overlay.AppearanceChanged{}, true
		}
	}
	return nil, false
}
