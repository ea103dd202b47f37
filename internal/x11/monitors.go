package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/dpms"
	"github.com/BurntSushi/xgb/randr"
)

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	// Query each CRTC for active monitors
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:     i,
			Name:   outputName,
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		})
	}

	// Servers without RandR CRTCs (Xvfb, some VNC servers) still have one screen.
	if len(monitors) == 0 {
		screen := c.XUtil.Screen()
		monitors = append(monitors, Monitor{
			ID:     0,
			Name:   "default",
			Width:  int(screen.WidthInPixels),
			Height: int(screen.HeightInPixels),
		})
	}

	return monitors, nil
}

// ScreensAwake reports whether the displays are powered on according to DPMS.
// DPMS is server-wide, so the answer applies to every monitor. Servers without
// the extension, or with DPMS disabled, are always awake.
func (c *Connection) ScreensAwake() bool {
	conn := c.XUtil.Conn()
	if err := dpms.Init(conn); err != nil {
		return true
	}
	info, err := dpms.Info(conn).Reply()
	if err != nil || !info.State {
		return true
	}
	return info.PowerLevel == dpms.DPMSModeOn
}
