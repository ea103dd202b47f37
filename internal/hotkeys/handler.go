package hotkeys

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/deskveil/internal/platform"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Actions are what the global shortcuts trigger.
type Actions interface {
	Toggle() error
	ForceFullReconcile() error
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	actions Actions
	logger  *slog.Logger
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler. It fails when the backend does
// not expose an X connection.
func NewHandler(backend platform.Backend, actions Actions, logger *slog.Logger) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, fmt.Errorf("hotkeys need an X11 backend")
	}
	if logger == nil {
		logger = slog.Default()
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:      xu,
		root:    accessor.RootWindow(),
		actions: actions,
		logger:  logger,
	}, nil
}

// RegisterToggle binds the show/hide shortcut.
func (h *Handler) RegisterToggle(keySequence string) error {
	return h.register("toggle", keySequence, h.actions.Toggle)
}

// RegisterRefresh binds the full-refresh shortcut. An empty sequence is a no-op.
func (h *Handler) RegisterRefresh(keySequence string) error {
	if keySequence == "" {
		return nil
	}
	return h.register("refresh", keySequence, h.actions.ForceFullReconcile)
}

func (h *Handler) register(name, keySequence string, action func() error) error {
	err := h.RegisterFunc(keySequence, func() {
		h.logger.Debug("hotkey triggered", "action", name, "keys", keySequence)
		if err := action(); err != nil {
			h.logger.Warn("hotkey action failed", "action", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register %s hotkey %q: %w", name, keySequence, err)
	}
	h.logger.Info("hotkey registered", "action", name, "keys", keySequence)
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

// Unregister drops every grab on the root window.
func (h *Handler) Unregister() {
	keybind.Detach(h.xu, h.root)
}

// configureIgnoreMods makes shortcuts fire regardless of lock keys.
func configureIgnoreMods(xu *xgbutil.XUtil) {
	caps := uint16(xproto.ModMaskLock)
	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}
	xevent.IgnoreMods = lockCombinations(base)
}

// lockCombinations returns every OR of a subset of masks, including 0.
func lockCombinations(masks []uint16) []uint16 {
	seen := make(map[uint16]bool)
	out := []uint16{0}
	seen[0] = true
	for subset := 1; subset < (1 << len(masks)); subset++ {
		var mask uint16
		for bit := range masks {
			if subset&(1<<bit) != 0 {
				mask |= masks[bit]
			}
		}
		if !seen[mask] {
			seen[mask] = true
			out = append(out, mask)
		}
	}
	return out
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
