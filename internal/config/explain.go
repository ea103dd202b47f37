package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	start_hidden
//	refresh_interval
//	content_mode.mode
//	space_modes.<desktop>.color
//	filler_color
//	toggle_hotkey
//	probe.max_attempts
//	wake_settle_delay
//	log_level
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	leaf := func(v any) (any, error) {
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return v, nil
	}

	switch parts[0] {
	case "start_hidden":
		return leaf(cfg.StartHidden)
	case "refresh_interval":
		return leaf(FormatInterval(durationOf(cfg.RefreshInterval)))
	case "filler_color":
		return leaf(cfg.FillerColor)
	case "toggle_hotkey":
		return leaf(cfg.ToggleHotkey)
	case "refresh_hotkey":
		return leaf(cfg.RefreshHotkey)
	case "wake_settle_delay":
		return leaf(durationOf(cfg.WakeSettleDelay).String())
	case "appearance_delay":
		return leaf(durationOf(cfg.AppearanceDelay).String())
	case "log_level":
		return leaf(cfg.LogLevel)
	case "display":
		return leaf(cfg.Display)
	case "xauthority":
		return leaf(cfg.XAuthority)
	case "content_mode":
		return lookupMode(cfg.ContentMode, parts[1:], path)
	case "space_modes":
		if len(parts) == 1 {
			return cfg.SpaceModes, nil
		}
		desktop, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		mode, ok := cfg.SpaceModes[desktop]
		if !ok {
			return nil, fmt.Errorf("unknown space_modes entry %d", desktop)
		}
		return lookupMode(mode, parts[2:], path)
	case "probe":
		if len(parts) == 1 {
			return cfg.Probe, nil
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		switch parts[1] {
		case "max_attempts":
			return cfg.Probe.MaxAttempts, nil
		case "backoff":
			return durationOf(cfg.Probe.Backoff).String(), nil
		case "max_backoff":
			return durationOf(cfg.Probe.MaxBackoff).String(), nil
		}
		return nil, fmt.Errorf("unknown path: %s", path)
	default:
		return nil, fmt.Errorf("unknown path: %s", path)
	}
}

func lookupMode(mode ContentMode, rest []string, path string) (any, error) {
	if len(rest) == 0 {
		return mode, nil
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	switch rest[0] {
	case "mode":
		return mode.Mode, nil
	case "color":
		return mode.Color, nil
	default:
		return nil, fmt.Errorf("unknown path: %s", path)
	}
}
