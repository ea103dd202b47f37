package config

import "fmt"

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig overlays raw onto the defaults.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	if raw.StartHidden != nil {
		cfg.StartHidden = *raw.StartHidden
	}
	if raw.RefreshInterval != nil {
		cfg.RefreshInterval = *raw.RefreshInterval
	}
	if raw.ContentMode != nil {
		cfg.ContentMode = raw.ContentMode.apply(cfg.ContentMode)
	}
	for desktop, mode := range raw.SpaceModes {
		// A space override inherits the global color when it only names a mode.
		cfg.SpaceModes[desktop] = mode.apply(ContentMode{Mode: ModeColor, Color: cfg.ContentMode.Color})
	}
	if raw.FillerColor != nil {
		cfg.FillerColor = *raw.FillerColor
	}
	if raw.ToggleHotkey != nil {
		cfg.ToggleHotkey = *raw.ToggleHotkey
	}
	if raw.RefreshHotkey != nil {
		cfg.RefreshHotkey = *raw.RefreshHotkey
	}
	if raw.Probe != nil {
		if raw.Probe.MaxAttempts != nil {
			cfg.Probe.MaxAttempts = *raw.Probe.MaxAttempts
		}
		if raw.Probe.Backoff != nil {
			cfg.Probe.Backoff = *raw.Probe.Backoff
		}
		if raw.Probe.MaxBackoff != nil {
			cfg.Probe.MaxBackoff = *raw.Probe.MaxBackoff
		}
	}
	if raw.WakeSettleDelay != nil {
		cfg.WakeSettleDelay = *raw.WakeSettleDelay
	}
	if raw.AppearanceDelay != nil {
		cfg.AppearanceDelay = *raw.AppearanceDelay
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.XAuthority != nil {
		cfg.XAuthority = *raw.XAuthority
	}

	return cfg
}
