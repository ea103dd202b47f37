package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/deskveil/internal/config"
)

func TestFormatSource(t *testing.T) {
	tests := []struct {
		src  config.Source
		want string
	}{
		{config.Source{Kind: config.SourceDefault}, "default"},
		{config.Source{Kind: config.SourceDefault, Name: "start_hidden"}, "default:start_hidden"},
		{config.Source{Kind: config.SourceFile}, "file"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml"}, "file:/c.yaml"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml", Line: 3, Column: 5}, "file:/c.yaml:3:5"},
	}
	for _, tt := range tests {
		if got := formatSource(tt.src); got != tt.want {
			t.Errorf("formatSource(%#v) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestApplyMode(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := applyMode(cfg, "desktop:2", "color", "#102030"); err != nil {
		t.Fatalf("applyMode desktop: %v", err)
	}
	if got := cfg.SpaceModes[2]; got.Mode != config.ModeColor || got.Color != "#102030" {
		t.Fatalf("space mode = %#v", got)
	}

	if err := applyMode(cfg, "all", "IMAGE", ""); err != nil {
		t.Fatalf("applyMode all: %v", err)
	}
	if cfg.ContentMode.Mode != config.ModeImage {
		t.Fatalf("content mode = %#v", cfg.ContentMode)
	}
	if len(cfg.SpaceModes) != 0 {
		t.Fatalf("expected all target to clear space overrides, got %#v", cfg.SpaceModes)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid after applyMode: %v", err)
	}

	if err := applyMode(cfg, "surface:0x400001", "image", ""); err == nil {
		t.Fatalf("expected surface target to be rejected")
	}
}

func TestUpdateConfigFileWritesDefaultLocation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := updateConfigFile(func(cfg *config.Config) {
		applyInterval(cfg, 45*time.Second)
	}); err != nil {
		t.Fatalf("updateConfigFile: %v", err)
	}

	res, err := config.LoadFromPath(filepath.Join(dir, "deskveil", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if time.Duration(res.Config.RefreshInterval) != 45*time.Second {
		t.Fatalf("refresh_interval = %v, want 45s", time.Duration(res.Config.RefreshInterval))
	}
}
