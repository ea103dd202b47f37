package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

const desktopWindowType = "_NET_WM_WINDOW_TYPE_DESKTOP"

// DesktopWindow is a window drawn by a desktop manager (xfdesktop,
// nautilus-desktop, pcmanfm --desktop, ...) to show wallpaper and icons.
type DesktopWindow struct {
	Window   xproto.Window
	X        int
	Y        int
	Width    int
	Height   int
	Desktop  int // -1 when sticky
	Viewable bool
}

// DesktopWindows lists windows whose _NET_WM_WINDOW_TYPE is DESKTOP.
// Candidates come from the EWMH client list plus the root's direct children,
// because some desktop managers are never added to _NET_CLIENT_LIST. Windows
// in skip are ignored.
func (c *Connection) DesktopWindows(skip map[xproto.Window]bool) ([]DesktopWindow, error) {
	seen := make(map[xproto.Window]bool)
	var candidates []xproto.Window

	if clients, err := ewmh.ClientListGet(c.XUtil); err == nil {
		for _, win := range clients {
			if !seen[win] {
				seen[win] = true
				candidates = append(candidates, win)
			}
		}
	}

	tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, err
	}
	for _, win := range tree.Children {
		if !seen[win] {
			seen[win] = true
			candidates = append(candidates, win)
		}
	}

	var out []DesktopWindow
	for _, win := range candidates {
		if skip[win] || !c.IsDesktopWindow(win) {
			continue
		}

		x, y, w, h, ok := c.WindowRect(win)
		if !ok {
			continue
		}

		viewable := false
		if attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), win).Reply(); err == nil {
			viewable = attrs.MapState == xproto.MapStateViewable
		}

		out = append(out, DesktopWindow{
			Window:   win,
			X:        x,
			Y:        y,
			Width:    w,
			Height:   h,
			Desktop:  c.GetWindowDesktop(win),
			Viewable: viewable,
		})
	}

	return out, nil
}

// IsDesktopWindow compares the window type atom rather than the window name,
// which differs across desktop managers and locales.
func (c *Connection) IsDesktopWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, t := range types {
		if t == desktopWindowType {
			return true
		}
	}
	return false
}

// WindowRect returns the window geometry in root coordinates.
func (c *Connection) WindowRect(windowID xproto.Window) (x, y, width, height int, ok bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, false
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return 0, 0, 0, 0, false
	}

	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), true
}

// TopLevel walks up the tree to the root's direct child containing windowID,
// which is the WM frame for reparented clients.
func (c *Connection) TopLevel(windowID xproto.Window) (xproto.Window, bool) {
	current := windowID
	for i := 0; i < 16; i++ {
		tree, err := xproto.QueryTree(c.XUtil.Conn(), current).Reply()
		if err != nil {
			return 0, false
		}
		if tree.Parent == c.Root || tree.Parent == 0 {
			return current, true
		}
		current = tree.Parent
	}
	return 0, false
}
