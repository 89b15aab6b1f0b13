//go:build windows

package window

import (
	"image"
	"unsafe"

	"golang.org/x/sys/windows"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procIsWindow        = user32.NewProc("IsWindow")
	procIsWindowVisible = user32.NewProc("IsWindowVisible")
	procIsIconic        = user32.NewProc("IsIconic")
	procGetClientRect   = user32.NewProc("GetClientRect")
	procClientToScreen  = user32.NewProc("ClientToScreen")
	procPostMessageW    = user32.NewProc("PostMessageW")
)

const (
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	mkLButton     = 0x0001
)

type point struct{ X, Y int32 }

// win32Target posts mouse messages straight to the window's queue; the
// system cursor is untouched.
type win32Target struct {
	handle Handle
	hwnd   windows.HWND
	pid    uint32
}

func open(h Handle) (Target, error) {
	t := &win32Target{handle: h, hwnd: windows.HWND(h)}
	if _, err := windows.GetWindowThreadProcessId(t.hwnd, &t.pid); err != nil {
		return nil, lost(h, "is closed or invalid")
	}
	if _, err := t.Inspect(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *win32Target) Handle() Handle { return t.handle }

func boolCall(p *windows.LazyProc, args ...uintptr) bool {
	r, _, _ := p.Call(args...)
	return r != 0
}

func (t *win32Target) Inspect() (Snapshot, error) {
	hwnd := uintptr(t.hwnd)
	if !boolCall(procIsWindow, hwnd) {
		return Snapshot{}, lost(t.handle, "is closed or invalid")
	}
	if boolCall(procIsIconic, hwnd) || !boolCall(procIsWindowVisible, hwnd) {
		return Snapshot{}, lost(t.handle, "is minimised or hidden")
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(t.hwnd, &pid); err != nil || pid != t.pid {
		return Snapshot{}, lost(t.handle, "now belongs to a different process")
	}

	var rc windows.Rect
	if !boolCall(procGetClientRect, hwnd, uintptr(unsafe.Pointer(&rc))) {
		return Snapshot{}, lost(t.handle, "has no client area")
	}
	var origin point
	if !boolCall(procClientToScreen, hwnd, uintptr(unsafe.Pointer(&origin))) {
		return Snapshot{}, lost(t.handle, "cannot be located on screen")
	}

	rect := image.Rect(int(origin.X), int(origin.Y),
		int(origin.X)+int(rc.Right-rc.Left), int(origin.Y)+int(rc.Bottom-rc.Top))
	return Snapshot{Handle: t.handle, Rect: rect}, nil
}

func (t *win32Target) Click(x, y int) error {
	lParam := uintptr(uint32(y)<<16 | uint32(x)&0xFFFF)
	hwnd := uintptr(t.hwnd)
	if r, _, err := procPostMessageW.Call(hwnd, wmLButtonDown, mkLButton, lParam); r == 0 {
		return apperr.Wrap(err, apperr.CodeClickFailed, "post WM_LBUTTONDOWN")
	}
	if r, _, err := procPostMessageW.Call(hwnd, wmLButtonUp, 0, lParam); r == 0 {
		return apperr.Wrap(err, apperr.CodeClickFailed, "post WM_LBUTTONUP")
	}
	return nil
}

func (t *win32Target) Close() error { return nil }
