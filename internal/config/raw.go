package config

// Raw types mirror Config with pointer fields so that only keys present in
// the YAML override defaults.

type RawContentMode struct {
	Mode  *string `yaml:"mode"`
	Color *string `yaml:"color"`
}

type RawProbeConfig struct {
	MaxAttempts *int      `yaml:"max_attempts"`
	Backoff     *Duration `yaml:"backoff"`
	MaxBackoff  *Duration `yaml:"max_backoff"`
}

type RawConfig struct {
	StartHidden     *bool                  `yaml:"start_hidden"`
	RefreshInterval *Interval              `yaml:"refresh_interval"`
	ContentMode     *RawContentMode        `yaml:"content_mode"`
	SpaceModes      map[int]RawContentMode `yaml:"space_modes"`
	FillerColor     *string                `yaml:"filler_color"`
	ToggleHotkey    *string                `yaml:"toggle_hotkey"`
	RefreshHotkey   *string                `yaml:"refresh_hotkey"`
	Probe           *RawProbeConfig        `yaml:"probe"`
	WakeSettleDelay *Duration              `yaml:"wake_settle_delay"`
	AppearanceDelay *Duration              `yaml:"appearance_delay"`
	LogLevel        *string                `yaml:"log_level"`
	Display         *string                `yaml:"display"`
	XAuthority      *string                `yaml:"xauthority"`
}

// apply fills unset fields of mode from base.
func (m RawContentMode) apply(base ContentMode) ContentMode {
	if m.Mode != nil {
		base.Mode = *m.Mode
	}
	if m.Color != nil {
		base.Color = *m.Color
	}
	return base
}
