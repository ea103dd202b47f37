package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// stickyDesktop is the _NET_WM_DESKTOP value of windows shown on all desktops.
const stickyDesktop = 0xFFFFFFFF

// GetCurrentDesktop returns the current virtual desktop number (0-indexed).
// Uses _NET_CURRENT_DESKTOP atom. Returns 0 with an error if detection fails.
func (c *Connection) GetCurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// GetWindowDesktop returns the desktop number a window is on.
// Uses _NET_WM_DESKTOP atom. Returns -1 for "sticky" windows (visible on all desktops).
// Windows without the property are treated as sticky: desktop managers that
// draw one background window per monitor frequently omit it.
func (c *Connection) GetWindowDesktop(windowID xproto.Window) int {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID)
	if err != nil || desktop == stickyDesktop {
		return -1
	}
	return int(desktop)
}
