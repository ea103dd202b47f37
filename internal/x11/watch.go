package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// RootChange classifies a change observed on the root window.
type RootChange int

const (
	// RootDesktopSwitched fires when _NET_CURRENT_DESKTOP changes.
	RootDesktopSwitched RootChange = iota
	// RootTopologyChanged fires when screens, desktops or the set of desktop
	// windows change.
	RootTopologyChanged
	// RootWallpaperChanged fires when the root background pixmap is replaced.
	RootWallpaperChanged
)

// rootProperties maps watched root properties to the change they signal.
var rootProperties = map[string]RootChange{
	"_NET_CURRENT_DESKTOP":    RootDesktopSwitched,
	"_NET_NUMBER_OF_DESKTOPS": RootTopologyChanged,
	"_NET_DESKTOP_GEOMETRY":   RootTopologyChanged,
	"_XROOTPMAP_ID":           RootWallpaperChanged,
	"ESETROOT_PMAP_ID":        RootWallpaperChanged,
}

// WatchRoot subscribes to root property and structure events and reports them
// through onChange. Callbacks run on the EventLoop goroutine.
func (c *Connection) WatchRoot(onChange func(RootChange)) error {
	root := xwindow.New(c.XUtil, c.Root)
	if err := root.Listen(xproto.EventMaskPropertyChange, xproto.EventMaskStructureNotify); err != nil {
		return err
	}

	clients := newDesktopClients()
	if list, err := ewmh.ClientListGet(c.XUtil); err == nil {
		clients.update(list, c.IsDesktopWindow)
	}

	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil {
			return
		}
		if name == "_NET_CLIENT_LIST" {
			// Ordinary application windows come and go constantly; only a
			// change in desktop windows alters the topology.
			list, err := ewmh.ClientListGet(xu)
			if err != nil {
				return
			}
			if clients.update(list, c.IsDesktopWindow) {
				onChange(RootTopologyChanged)
			}
			return
		}
		change, ok := rootProperties[name]
		if !ok {
			return
		}
		if change == RootWallpaperChanged {
			c.InvalidateBackground()
		}
		onChange(change)
	}).Connect(c.XUtil, c.Root)

	// The root is resized whenever RandR reconfigures the screen layout.
	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		onChange(RootTopologyChanged)
	}).Connect(c.XUtil, c.Root)

	return nil
}

// desktopClients remembers the window type of every EWMH client so a client
// list update only queries windows it has not seen before.
type desktopClients struct {
	known map[xproto.Window]bool
}

func newDesktopClients() *desktopClients {
	return &desktopClients{known: make(map[xproto.Window]bool)}
}

// update replaces the client set with list and reports whether a desktop
// window appeared or disappeared.
func (d *desktopClients) update(list []xproto.Window, isDesktop func(xproto.Window) bool) bool {
	changed := false
	current := make(map[xproto.Window]bool, len(list))
	for _, win := range list {
		desktop, seen := d.known[win]
		if !seen {
			desktop = isDesktop(win)
			if desktop {
				changed = true
			}
		}
		current[win] = desktop
	}
	for win, desktop := range d.known {
		if _, ok := current[win]; !ok && desktop {
			changed = true
		}
	}
	d.known = current
	return changed
}
