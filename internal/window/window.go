// Package window tracks the automation target: whether it is still a live,
// visible window, where its client area is on screen, and how to deliver a
// click to it without moving the real pointer.
package window

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
)

// Handle is a native window identifier (HWND on Windows, XID on X11).
type Handle uint64

// ParseHandle accepts decimal or 0x-prefixed hexadecimal.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, apperr.New(apperr.CodeConfigMissing, "no target window selected")
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil || v == 0 {
		return 0, apperr.Newf(apperr.CodeConfigInvalid, "invalid window handle %q", s)
	}
	return Handle(v), nil
}

func (h Handle) String() string { return fmt.Sprintf("0x%x", uint64(h)) }

// Snapshot is the target's state at one instant. It is a value and is
// passed by copy to every stage of a capture cycle.
type Snapshot struct {
	Handle Handle
	Rect   image.Rectangle // client area in screen coordinates
}

// Origin returns the client area's top-left corner on screen.
func (s Snapshot) Origin() image.Point { return s.Rect.Min }

// Target is a live window the pipeline captures from and clicks into.
type Target interface {
	Handle() Handle
	// Inspect re-validates the window and returns its current client rect.
	// A closed, minimised, hidden or replaced window yields CodeWindowLost.
	Inspect() (Snapshot, error)
	// Click delivers a left click at window-relative (x, y).
	Click(x, y int) error
	Close() error
}

// Opener opens a Target by handle.
type Opener func(Handle) (Target, error)

// Open attaches to the native window h.
func Open(h Handle) (Target, error) {
	if h == 0 {
		return nil, apperr.New(apperr.CodeConfigMissing, "no target window selected")
	}
	return open(h)
}

func lost(h Handle, reason string) error {
	return apperr.Newf(apperr.CodeWindowLost, "window %s %s", h, reason).
		WithMetadata("handle", h.String())
}
