package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"golang.org/x/image/draw"
)

// OverlayName is set as _NET_WM_NAME on every overlay window.
const OverlayName = "deskveil overlay"

// CreateOverlayWindow creates an unmapped override-redirect window covering
// the given rectangle.
func (c *Connection) CreateOverlayWindow(x, y, width, height int) (xproto.Window, error) {
	conn := c.XUtil.Conn()
	screen := c.XUtil.Screen()

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, err
	}

	width, height = clampSize(width, height)

	// Create window with override_redirect=true
	// This makes it bypass the window manager
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		c.Root,
		int16(x), int16(y),
		uint16(width), uint16(height),
		0, // border_width
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect,
		// Value list order follows the bit positions of the mask (low -> high).
		[]uint32{0, 1}, // back_pixel=black, override_redirect=true
	).Check()
	if err != nil {
		return 0, err
	}

	if err := c.makeInputTransparent(wid); err != nil {
		_ = xproto.DestroyWindowChecked(conn, wid).Check()
		return 0, fmt.Errorf("clear input shape: %w", err)
	}

	// Best effort; only used to recognise our windows in xprop/xwininfo.
	_ = ewmh.WmNameSet(c.XUtil, wid, OverlayName)

	return wid, nil
}

// makeInputTransparent sets an empty input shape so pointer events fall
// through to the desktop window underneath. Servers without SHAPE leave the
// overlay opaque to input.
func (c *Connection) makeInputTransparent(wid xproto.Window) error {
	conn := c.XUtil.Conn()
	if err := shape.Init(conn); err != nil {
		return nil
	}
	return shape.RectanglesChecked(
		conn,
		shape.SoSet,
		shape.SkInput,
		xproto.ClipOrderingUnsorted,
		wid,
		0, 0,
		nil,
	).Check()
}

// HideOverlayWindow unmaps the window without destroying it.
func (c *Connection) HideOverlayWindow(wid xproto.Window) error {
	return xproto.UnmapWindowChecked(c.XUtil.Conn(), wid).Check()
}

// ShowOverlayAbove maps the window at the given geometry and stacks it
// directly above sibling, which must be a child of the root.
func (c *Connection) ShowOverlayAbove(wid xproto.Window, x, y, width, height int, sibling xproto.Window) error {
	conn := c.XUtil.Conn()
	width, height = clampSize(width, height)

	if err := xproto.MapWindowChecked(conn, wid).Check(); err != nil {
		return fmt.Errorf("map overlay: %w", err)
	}

	return xproto.ConfigureWindowChecked(
		conn,
		wid,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|
			xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode,
		[]uint32{
			uint32(x),
			uint32(y),
			uint32(width),
			uint32(height),
			uint32(sibling),
			xproto.StackModeAbove,
		},
	).Check()
}

// ShowOverlayAtBottom maps the window at the given geometry below every
// other child of the root.
func (c *Connection) ShowOverlayAtBottom(wid xproto.Window, x, y, width, height int) error {
	conn := c.XUtil.Conn()
	width, height = clampSize(width, height)

	if err := xproto.MapWindowChecked(conn, wid).Check(); err != nil {
		return fmt.Errorf("map overlay: %w", err)
	}

	return xproto.ConfigureWindowChecked(
		conn,
		wid,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|xproto.ConfigWindowStackMode,
		[]uint32{
			uint32(x),
			uint32(y),
			uint32(width),
			uint32(height),
			xproto.StackModeBelow,
		},
	).Check()
}

// FillOverlayWindow sets a solid background pixel and repaints.
func (c *Connection) FillOverlayWindow(wid xproto.Window, pixel uint32) error {
	conn := c.XUtil.Conn()
	if err := xproto.ChangeWindowAttributesChecked(conn, wid, xproto.CwBackPixel, []uint32{pixel}).Check(); err != nil {
		return err
	}
	return xproto.ClearAreaChecked(conn, false, wid, 0, 0, 0, 0).Check()
}

// PaintOverlayWindow uploads img as the window background, scaled to the
// window size.
func (c *Connection) PaintOverlayWindow(wid xproto.Window, img image.Image) error {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(wid)).Reply()
	if err != nil {
		return fmt.Errorf("overlay geometry: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(geom.Width), int(geom.Height)))
	if img.Bounds().Dx() == dst.Bounds().Dx() && img.Bounds().Dy() == dst.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	}

	ximg := xgraphics.NewConvert(c.XUtil, dst)
	if err := ximg.XSurfaceSet(wid); err != nil {
		ximg.Destroy()
		return fmt.Errorf("overlay surface: %w", err)
	}
	ximg.XDraw()
	ximg.XPaint(wid)
	// The server keeps its own reference to the background pixmap.
	ximg.Destroy()
	return nil
}

// DestroyOverlayWindow releases the window.
func (c *Connection) DestroyOverlayWindow(wid xproto.Window) error {
	return xproto.DestroyWindowChecked(c.XUtil.Conn(), wid).Check()
}

func clampSize(width, height int) (int, int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}
