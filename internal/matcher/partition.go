package matcher

import "image"

// Rect is a chunk of a frame: origin (Row, Col) and extent (H, W).
type Rect struct {
	Row, Col int
	H, W     int
}

// Empty reports whether the chunk covers no pixels.
func (r Rect) Empty() bool { return r.H <= 0 || r.W <= 0 }

// Bounds returns the chunk as an image rectangle in frame coordinates.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.Col, r.Row, r.Col+r.W, r.Row+r.H)
}

// Partition splits a height x width frame for the given worker count into
// rows = ceil(sqrt(workers)) by cols = ceil(workers/rows) chunks. The last
// row and column absorb the remainder, so the chunks tile the frame exactly.
// The result is a pure function of its arguments, row-major ordered.
func Partition(workers, height, width int) []Rect {
	if workers < 1 {
		workers = 1
	}
	if height < 0 {
		height = 0
	}
	if width < 0 {
		width = 0
	}
	rows := ceilSqrt(workers)
	cols := (workers + rows - 1) / rows
	chunkH, chunkW := height/rows, width/cols

	chunks := make([]Rect, 0, rows*cols)
	for i := 0; i < rows; i++ {
		h := chunkH
		if i == rows-1 {
			h = height - chunkH*(rows-1)
		}
		for j := 0; j < cols; j++ {
			w := chunkW
			if j == cols-1 {
				w = width - chunkW*(cols-1)
			}
			chunks = append(chunks, Rect{Row: i * chunkH, Col: j * chunkW, H: h, W: w})
		}
	}
	return chunks
}

// ceilSqrt returns the smallest r with r*r >= n, for n >= 1.
func ceilSqrt(n int) int {
	r := 1
	for r*r < n {
		r++
	}
	return r
}
