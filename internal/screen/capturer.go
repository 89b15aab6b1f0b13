// Package screen grabs the pixels of a window's client area.
package screen

import (
	"image"
	"sync/atomic"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
)

// Capturer grabs a screen rectangle.
type Capturer interface {
	Capture(rect image.Rectangle) (*image.RGBA, error)
	Close()
}

// backend implements the raw grab.
type backend interface {
	captureRect(rect image.Rectangle) (*image.RGBA, error)
	cleanup()
}

// baseCapturer validates requests and classifies backend errors.
type baseCapturer struct {
	backend
	captures atomic.Uint64
	failures atomic.Uint64
}

func newBase(b backend) *baseCapturer {
	return &baseCapturer{backend: b}
}

func (c *baseCapturer) Capture(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, apperr.Newf(apperr.CodeCaptureFailed, "empty capture rectangle %v", rect)
	}
	img, err := c.captureRect(rect)
	if err != nil {
		c.failures.Add(1)
		return nil, apperr.Wrapf(err, apperr.CodeCaptureFailed, "capture %v", rect)
	}
	if img == nil || img.Bounds().Dx() != rect.Dx() || img.Bounds().Dy() != rect.Dy() {
		c.failures.Add(1)
		return nil, apperr.Newf(apperr.CodeCaptureFailed, "capture %v returned wrong size", rect)
	}
	c.captures.Add(1)
	return img, nil
}

// Stats returns successful and failed capture counts.
func (c *baseCapturer) Stats() (captures, failures uint64) {
	return c.captures.Load(), c.failures.Load()
}

func (c *baseCapturer) Close() {
	c.cleanup()
}
