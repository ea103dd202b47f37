package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/deskveil/internal/platform"
	"gopkg.in/yaml.v3"
)

const (
	ModeImage = "image"
	ModeColor = "color"

	DefaultToggleHotkey    = "Mod4-Mod1-h"
	DefaultProbeAttempts   = 20
	DefaultProbeBackoff    = 25 * time.Millisecond
	DefaultProbeMaxBackoff = 200 * time.Millisecond
	DefaultWakeSettleDelay = 2 * time.Second
	DefaultAppearanceDelay = 3 * time.Second

	// NeverThreshold is the refresh interval from which refresh is disabled.
	NeverThreshold = 200 * time.Hour
)

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string like \"2s\"")
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Interval is a refresh interval; zero means never.
type Interval time.Duration

func (i *Interval) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("refresh_interval must be a duration or \"never\"")
	}
	d, err := ParseInterval(value.Value)
	if err != nil {
		return err
	}
	*i = Interval(d)
	return nil
}

func (i Interval) MarshalYAML() (interface{}, error) {
	return FormatInterval(time.Duration(i)), nil
}

// ParseInterval accepts a Go duration or "never"/"off". Intervals at or
// beyond NeverThreshold collapse to 0 (never).
func ParseInterval(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "never", "off", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: want a duration like 30s or \"never\"", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid interval %q: must not be negative", s)
	}
	if d >= NeverThreshold {
		return 0, nil
	}
	return d, nil
}

// FormatInterval renders d the way ParseInterval reads it.
func FormatInterval(d time.Duration) string {
	if d <= 0 || d >= NeverThreshold {
		return "never"
	}
	return d.String()
}

type ContentMode struct {
	Mode  string `yaml:"mode"`
	Color string `yaml:"color,omitempty"`
}

// RGB returns the fill color, black when unset.
func (m ContentMode) RGB() (platform.RGB, error) {
	if m.Color == "" {
		return platform.RGB{}, nil
	}
	return platform.ParseRGB(m.Color)
}

func (m ContentMode) validate() error {
	switch m.Mode {
	case ModeImage, ModeColor:
	default:
		return fmt.Errorf("mode must be one of: image, color")
	}
	if _, err := m.RGB(); err != nil {
		return err
	}
	return nil
}

type ProbeConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Backoff     Duration `yaml:"backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
}

type Config struct {
	StartHidden     bool                `yaml:"start_hidden"`
	RefreshInterval Interval            `yaml:"refresh_interval"`
	ContentMode     ContentMode         `yaml:"content_mode"`
	SpaceModes      map[int]ContentMode `yaml:"space_modes,omitempty"`
	FillerColor     string              `yaml:"filler_color"`
	ToggleHotkey    string              `yaml:"toggle_hotkey"`
	RefreshHotkey   string              `yaml:"refresh_hotkey,omitempty"`
	Probe           ProbeConfig         `yaml:"probe"`
	WakeSettleDelay Duration            `yaml:"wake_settle_delay"`
	AppearanceDelay Duration            `yaml:"appearance_delay"`
	LogLevel        string              `yaml:"log_level"`
	Display         string              `yaml:"display,omitempty"`
	XAuthority      string              `yaml:"xauthority,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		StartHidden:     true,
		RefreshInterval: 0, // never
		ContentMode:     ContentMode{Mode: ModeImage, Color: "#000000"},
		SpaceModes:      make(map[int]ContentMode),
		FillerColor:     "#000000",
		ToggleHotkey:    DefaultToggleHotkey,
		Probe: ProbeConfig{
			MaxAttempts: DefaultProbeAttempts,
			Backoff:     Duration(DefaultProbeBackoff),
			MaxBackoff:  Duration(DefaultProbeMaxBackoff),
		},
		WakeSettleDelay: Duration(DefaultWakeSettleDelay),
		AppearanceDelay: Duration(DefaultAppearanceDelay),
		LogLevel:        "info",
	}
}

// FillerRGB returns the parsed filler color.
func (c *Config) FillerRGB() platform.RGB {
	rgb, err := platform.ParseRGB(c.FillerColor)
	if err != nil {
		return platform.RGB{}
	}
	return rgb
}

// SlogLevel maps log_level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and does not preserve comments.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.ContentMode.validate(); err != nil {
		return &ValidationError{Path: "content_mode", Err: err}
	}
	for desktop, mode := range c.SpaceModes {
		if desktop < 0 {
			return &ValidationError{Path: "space_modes", Err: fmt.Errorf("desktop index %d must be >= 0", desktop)}
		}
		if err := mode.validate(); err != nil {
			return &ValidationError{Path: fmt.Sprintf("space_modes.%d", desktop), Err: err}
		}
	}
	if _, err := platform.ParseRGB(c.FillerColor); err != nil {
		return &ValidationError{Path: "filler_color", Err: err}
	}
	if c.Probe.MaxAttempts <= 0 {
		return &ValidationError{Path: "probe.max_attempts", Err: fmt.Errorf("max_attempts must be > 0")}
	}
	if c.Probe.Backoff <= 0 {
		return &ValidationError{Path: "probe.backoff", Err: fmt.Errorf("backoff must be > 0")}
	}
	if c.Probe.MaxBackoff < c.Probe.Backoff {
		return &ValidationError{Path: "probe.max_backoff", Err: fmt.Errorf("max_backoff must be >= backoff")}
	}
	if c.WakeSettleDelay < 0 {
		return &ValidationError{Path: "wake_settle_delay", Err: fmt.Errorf("wake_settle_delay must be >= 0")}
	}
	if c.AppearanceDelay < 0 {
		return &ValidationError{Path: "appearance_delay", Err: fmt.Errorf("appearance_delay must be >= 0")}
	}
	if c.ToggleHotkey != "" && c.ToggleHotkey == c.RefreshHotkey {
		return &ValidationError{Path: "refresh_hotkey", Err: fmt.Errorf("refresh_hotkey must differ from toggle_hotkey")}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	return nil
}

func durationOf[T Duration | Interval](v T) time.Duration {
	return time.Duration(v)
}
