package x11

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xprop"
	"golang.org/x/image/draw"
)

// Properties wallpaper setters (feh, nitrogen, xsetroot, desktop managers)
// use to publish the root background pixmap.
var rootPixmapAtoms = []string{"_XROOTPMAP_ID", "ESETROOT_PMAP_ID"}

// backgroundCache holds the decoded root pixmap so that several surfaces
// captured in one pass share a single GetImage round trip.
type backgroundCache struct {
	mu     sync.Mutex
	pixmap xproto.Pixmap
	img    *xgraphics.Image
}

var bgCache backgroundCache

// InvalidateBackground drops the cached root pixmap image.
func (c *Connection) InvalidateBackground() {
	bgCache.mu.Lock()
	defer bgCache.mu.Unlock()
	bgCache.pixmap = 0
	bgCache.img = nil
}

// RootBackgroundPixmap returns the pixmap published by the wallpaper setter.
func (c *Connection) RootBackgroundPixmap() (xproto.Pixmap, bool) {
	for _, name := range rootPixmapAtoms {
		id, err := xprop.PropValNum(xprop.GetProperty(c.XUtil, c.Root, name))
		if err == nil && id != 0 {
			return xproto.Pixmap(id), true
		}
	}
	return 0, false
}

// CaptureBackground copies the wallpaper under the given rectangle from the
// root background pixmap. The pixmap never contains desktop icons, which is
// why it is preferred over reading the desktop window itself.
func (c *Connection) CaptureBackground(x, y, width, height int) (image.Image, error) {
	pixmap, ok := c.RootBackgroundPixmap()
	if !ok {
		return nil, fmt.Errorf("no root background pixmap")
	}

	bgCache.mu.Lock()
	defer bgCache.mu.Unlock()

	if bgCache.img == nil || bgCache.pixmap != pixmap {
		img, err := xgraphics.NewDrawable(c.XUtil, xproto.Drawable(pixmap))
		if err != nil {
			return nil, fmt.Errorf("read root pixmap: %w", err)
		}
		bgCache.pixmap = pixmap
		bgCache.img = img
	}

	return cropRegion(bgCache.img, image.Rect(x, y, x+width, y+height))
}

// CaptureWindowRegion reads part of the window contents directly, with the
// rectangle relative to the window origin. Only used when no root pixmap is
// published, since desktop windows also paint their icons.
func (c *Connection) CaptureWindowRegion(windowID xproto.Window, x, y, width, height int) (image.Image, error) {
	img, err := xgraphics.NewDrawable(c.XUtil, xproto.Drawable(windowID))
	if err != nil {
		return nil, fmt.Errorf("read window %d: %w", windowID, err)
	}
	b := img.Bounds()
	region := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+width, b.Min.Y+y+height)
	if region == b {
		return img, nil
	}
	return cropRegion(img, region)
}

func cropRegion(src image.Image, region image.Rectangle) (image.Image, error) {
	region = region.Intersect(src.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("region outside background")
	}
	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(dst, dst.Bounds(), src, region.Min, draw.Src)
	return dst, nil
}
