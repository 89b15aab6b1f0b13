package framebuf

import (
	"context"
	"image"
	"sync"
	"time"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/syncx"
	"github.com/GriffinCanCode/apexclick/internal/trace"
)

// segment is the raw memory behind a Buffer. Unlink removes the name while
// leaving existing mappings usable; Close unmaps and unlinks.
type segment interface {
	Bytes() []byte
	Name() string
	Unlink() error
	Close() error
}

type slot struct {
	pix  []byte
	gate *syncx.RefGate
}

// Buffer is a ring of frame slots over one memory segment. Exactly one
// goroutine writes (Publish/Resize); any number read published Frames.
// A slot is rewritten only after every reader of its previous Frame has
// released it.
type Buffer struct {
	writeMu sync.Mutex // serialises Publish, Resize and Release

	mu         sync.Mutex
	seg        segment
	width      int
	height     int
	slots      []*slot
	next       int
	generation uint64
	released   bool

	releaseTimeout time.Duration
}

// Allocate reserves width*height*3 bytes per slot.
func Allocate(ctx context.Context, width, height, slots int) (*Buffer, error) {
	if slots < DefaultSlots {
		slots = DefaultSlots
	}
	b := &Buffer{slots: make([]*slot, slots), releaseTimeout: ReleaseTimeout}
	if err := b.alloc(ctx, width, height); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) alloc(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return apperr.Newf(apperr.CodeBufferAlloc, "invalid frame size %dx%d", width, height)
	}
	frameSize := width * height * Channels
	seg, err := allocSegment(ctx, frameSize*len(b.slots))
	if err != nil {
		return apperr.Wrapf(err, apperr.CodeBufferAlloc, "allocate %dx%d frame buffer", width, height)
	}

	data := seg.Bytes()
	for i := range b.slots {
		b.slots[i] = &slot{
			pix:  data[i*frameSize : (i+1)*frameSize : (i+1)*frameSize],
			gate: syncx.NewRefGate(),
		}
	}

	b.mu.Lock()
	b.seg, b.width, b.height, b.next = seg, width, height, 0
	b.mu.Unlock()

	trace.Logger(ctx).Debug("frame buffer allocated",
		"segment", seg.Name(), "width", width, "height", height, "slots", len(b.slots))
	return nil
}

// Size returns the current frame dimensions.
func (b *Buffer) Size() (width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// Name returns the backing segment name.
func (b *Buffer) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seg == nil {
		return ""
	}
	return b.seg.Name()
}

// Generation returns the last published generation.
func (b *Buffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// Publish copies img into the next slot and returns it as a Frame held by
// readers references. It blocks while the slot's previous readers are
// still active.
func (b *Buffer) Publish(ctx context.Context, img *image.RGBA, readers int) (*Frame, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil, ErrReleased
	}
	bounds := img.Bounds()
	if bounds.Dx() != b.width || bounds.Dy() != b.height {
		b.mu.Unlock()
		return nil, errSizeMismatch(bounds, b.width, b.height)
	}
	s := b.slots[b.next]
	width, height := b.width, b.height
	b.mu.Unlock()

	if err := s.gate.Wait(ctx); err != nil {
		return nil, err
	}

	packRGB(s.pix, img)

	b.mu.Lock()
	b.next = (b.next + 1) % len(b.slots)
	b.generation++
	gen := b.generation
	b.mu.Unlock()

	s.gate.Acquire(readers)
	return &Frame{Width: width, Height: height, Generation: gen, pix: s.pix, gate: s.gate}, nil
}

// Resize reallocates the buffer for new dimensions once all readers are done.
func (b *Buffer) Resize(ctx context.Context, width, height int) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return ErrReleased
	}
	if width == b.width && height == b.height {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.waitReaders(ctx); err != nil {
		return err
	}
	if err := b.closeSegment(); err != nil {
		trace.Logger(ctx).Warn("closing frame segment", "error", err)
	}
	return b.alloc(ctx, width, height)
}

// Release frees the buffer and is a no-op on an already released buffer.
// If readers outlast ReleaseTimeout the segment name is removed at once, the
// memory is unmapped after the last reader releases, and a BufferAlloc error
// is returned.
func (b *Buffer) Release() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil
	}
	b.released = true
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), b.releaseTimeout)
	defer cancel()
	if err := b.waitReaders(ctx); err != nil {
		// Unmapping now would fault the readers still holding slices.
		b.mu.Lock()
		seg := b.seg
		b.mu.Unlock()
		if seg != nil {
			if uerr := seg.Unlink(); uerr != nil {
				trace.Logger(ctx).Warn("unlinking frame segment", "segment", seg.Name(), "error", uerr)
			}
		}
		go b.closeWhenIdle()
		return apperr.Wrap(err, apperr.CodeBufferAlloc, "frame readers still active at release")
	}
	return b.closeSegment()
}

// closeWhenIdle unmaps the segment once every outstanding Frame is released.
func (b *Buffer) closeWhenIdle() {
	_ = b.waitReaders(context.Background())
	if err := b.closeSegment(); err != nil {
		trace.Logger(context.Background()).Warn("closing frame segment", "error", err)
	}
}

func (b *Buffer) waitReaders(ctx context.Context) error {
	for _, s := range b.slots {
		if s == nil {
			continue
		}
		if err := s.gate.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffer) closeSegment() error {
	b.mu.Lock()
	seg := b.seg
	b.seg = nil
	b.width, b.height = 0, 0
	for _, s := range b.slots {
		if s != nil {
			s.pix = nil
		}
	}
	b.mu.Unlock()
	if seg == nil {
		return nil
	}
	return seg.Close()
}

// packRGB copies an RGBA image into a tightly packed RGB slice.
func packRGB(dst []byte, img *image.RGBA) {
	bounds := img.Bounds()
	w := bounds.Dx()
	for y := 0; y < bounds.Dy(); y++ {
		src := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		row := dst[y*w*Channels : (y+1)*w*Channels]
		for x := 0; x < w; x++ {
			row[x*3] = src[x*4]
			row[x*3+1] = src[x*4+1]
			row[x*3+2] = src[x*4+2]
		}
	}
}
