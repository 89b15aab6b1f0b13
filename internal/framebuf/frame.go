package framebuf

import (
	"errors"
	"fmt"
	"image"

	"github.com/GriffinCanCode/apexclick/internal/syncx"
)

// ErrReleased is returned by operations on a released Buffer.
var ErrReleased = errors.New("frame buffer released")

func errSizeMismatch(got image.Rectangle, width, height int) error {
	return fmt.Errorf("image %dx%d does not match buffer %dx%d", got.Dx(), got.Dy(), width, height)
}

// Frame is one published generation. Its pixels stay valid until every
// reference taken at Publish has been released.
type Frame struct {
	Width      int
	Height     int
	Generation uint64

	pix  []byte
	gate *syncx.RefGate
}

// Pix returns the packed RGB pixels, row-major, no padding.
func (f *Frame) Pix() []byte { return f.pix }

// RGB returns the sample at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * Channels
	return f.pix[i], f.pix[i+1], f.pix[i+2]
}

// Release drops one reader reference.
func (f *Frame) Release() {
	if f == nil || f.gate == nil {
		return
	}
	f.gate.Release()
}

