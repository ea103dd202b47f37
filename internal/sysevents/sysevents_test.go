package sysevents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/1broseidon/deskveil/internal/overlay"
	"github.com/godbus/dbus/v5"
	"github.com/thejerf/suture/v4"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		sig    *dbus.Signal
		want   overlay.Event
		wantOK bool
	}{
		{
			name:   "logind going to sleep",
			sig:    &dbus.Signal{Name: "org.freedesktop.login1.Manager.PrepareForSleep", Body: []interface{}{true}},
			want:   overlay.WentToSleep{},
			wantOK: true,
		},
		{
			name:   "logind resumed",
			sig:    &dbus.Signal{Name: "org.freedesktop.login1.Manager.PrepareForSleep", Body: []interface{}{false}},
			want:   overlay.WokeUp{},
			wantOK: true,
		},
		{
			name:   "screen saver active",
			sig:    &dbus.Signal{Name: "org.freedesktop.ScreenSaver.ActiveChanged", Body: []interface{}{true}},
			want:   overlay.WentToSleep{},
			wantOK: true,
		},
		{
			name:   "screen saver dismissed",
			sig:    &dbus.Signal{Name: "org.freedesktop.ScreenSaver.ActiveChanged", Body: []interface{}{false}},
			want:   overlay.WokeUp{},
			wantOK: true,
		},
		{
			name: "color scheme",
			sig: &dbus.Signal{
				Name: "org.freedesktop.portal.Settings.SettingChanged",
				Body: []interface{}{"org.freedesktop.appearance", "color-scheme", dbus.MakeVariant(uint32(1))},
			},
			want:   overlay.AppearanceChanged{},
			wantOK: true,
		},
		{
			name: "unrelated portal setting",
			sig: &dbus.Signal{
				Name: "org.freedesktop.portal.Settings.SettingChanged",
				Body: []interface{}{"org.gnome.desktop.interface", "font-name", dbus.MakeVariant("Sans")},
			},
		},
		{
			name: "malformed body",
			sig:  &dbus.Signal{Name: "org.freedesktop.login1.Manager.PrepareForSleep", Body: []interface{}{"yes"}},
		},
		{
			name: "empty body",
			sig:  &dbus.Signal{Name: "org.freedesktop.ScreenSaver.ActiveChanged"},
		},
		{
			name: "unknown signal",
			sig:  &dbus.Signal{Name: "org.freedesktop.DBus.NameOwnerChanged", Body: []interface{}{"a", "b", "c"}},
		},
		{name: "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.sig)
			if ok != tt.wantOK {
				t.Fatalf("Translate() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("Translate() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

type nopSink struct{}

func (nopSink) Notify(overlay.Event) error { return nil }

func TestServeWithoutBusDoesNotRestart(t *testing.T) {
	w := NewSessionWatcher(nopSink{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.connect = func(...dbus.ConnOption) (*dbus.Conn, error) {
		return nil, errors.New("no DBUS_SESSION_BUS_ADDRESS")
	}

	err := w.Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve() = %v, want ErrDoNotRestart", err)
	}
	if w.String() != "dbus-session" {
		t.Fatalf("String() = %q", w.String())
	}
}
