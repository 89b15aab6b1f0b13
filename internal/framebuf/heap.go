package framebuf

import "github.com/google/uuid"

// heapSegment backs a Buffer with ordinary memory. Goroutines share the
// process address space, so readers still see the frame without a copy.
type heapSegment struct {
	name string
	data []byte
}

func newHeapSegment(size int) *heapSegment {
	return &heapSegment{name: SegmentPrefix + uuid.NewString(), data: make([]byte, size)}
}

func (h *heapSegment) Bytes() []byte { return h.data }
func (h *heapSegment) Name() string  { return h.name }

func (h *heapSegment) Unlink() error { return nil }

func (h *heapSegment) Close() error {
	h.data = nil
	return nil
}
