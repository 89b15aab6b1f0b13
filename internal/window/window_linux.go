//go:build linux

package window

import (
	"image"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/syncx"
)

// x11Target talks to the X server directly. Clicks are synthetic
// ButtonPress/ButtonRelease events sent to the window, so the server's
// pointer never moves.
type x11Target struct {
	handle Handle
	conn   *xgb.Conn
	win    xproto.Window
	root   xproto.Window
	pidAtm xproto.Atom
	pid    uint32

	last *syncx.RWGuard[image.Rectangle]
}

func open(h Handle) (Target, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "connect to X server")
	}
	t := &x11Target{
		handle: h,
		conn:   conn,
		win:    xproto.Window(h),
		root:   xproto.Setup(conn).DefaultScreen(conn).Root,
		last:   syncx.NewGuard(image.Rectangle{}),
	}

	const pidProp = "_NET_WM_PID"
	if reply, err := xproto.InternAtom(conn, true, uint16(len(pidProp)), pidProp).Reply(); err == nil && reply != nil {
		t.pidAtm = reply.Atom
	}
	t.pid = t.windowPID()

	if _, err := t.Inspect(); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *x11Target) Handle() Handle { return t.handle }

func (t *x11Target) Inspect() (Snapshot, error) {
	attrs, err := xproto.GetWindowAttributes(t.conn, t.win).Reply()
	if err != nil || attrs == nil {
		return Snapshot{}, lost(t.handle, "is closed or invalid")
	}
	if attrs.MapState != xproto.MapStateViewable {
		return Snapshot{}, lost(t.handle, "is minimised or hidden")
	}
	if t.pid != 0 && t.windowPID() != t.pid {
		return Snapshot{}, lost(t.handle, "now belongs to a different process")
	}

	geom, err := xproto.GetGeometry(t.conn, xproto.Drawable(t.win)).Reply()
	if err != nil || geom == nil {
		return Snapshot{}, lost(t.handle, "has no geometry")
	}
	pos, err := xproto.TranslateCoordinates(t.conn, t.win, t.root, 0, 0).Reply()
	if err != nil || pos == nil {
		return Snapshot{}, lost(t.handle, "cannot be located on screen")
	}

	rect := image.Rect(int(pos.DstX), int(pos.DstY), int(pos.DstX)+int(geom.Width), int(pos.DstY)+int(geom.Height))
	t.last.Set(rect)
	return Snapshot{Handle: t.handle, Rect: rect}, nil
}

func (t *x11Target) windowPID() uint32 {
	if t.pidAtm == 0 {
		return 0
	}
	reply, err := xproto.GetProperty(t.conn, false, t.win, t.pidAtm, xproto.AtomCardinal, 0, 1).Reply()
	if err != nil || reply == nil || reply.Format != 32 || len(reply.Value) < 4 {
		return 0
	}
	return xgb.Get32(reply.Value)
}

func (t *x11Target) Click(x, y int) error {
	origin := t.last.Get().Min
	press := xproto.ButtonPressEvent{
		Detail:     xproto.ButtonIndex1,
		Time:       xproto.TimeCurrentTime,
		Root:       t.root,
		Event:      t.win,
		Child:      xproto.WindowNone,
		RootX:      int16(origin.X + x),
		RootY:      int16(origin.Y + y),
		EventX:     int16(x),
		EventY:     int16(y),
		SameScreen: true,
	}
	if err := xproto.SendEvent(t.conn, true, t.win, xproto.EventMaskButtonPress, string(press.Bytes())).Check(); err != nil {
		return apperr.Wrap(err, apperr.CodeClickFailed, "send button press")
	}

	release := xproto.ButtonReleaseEvent(press)
	release.State = xproto.ButtonMask1
	if err := xproto.SendEvent(t.conn, true, t.win, xproto.EventMaskButtonRelease, string(release.Bytes())).Check(); err != nil {
		return apperr.Wrap(err, apperr.CodeClickFailed, "send button release")
	}
	return nil
}

func (t *x11Target) Close() error {
	t.conn.Close()
	return nil
}
