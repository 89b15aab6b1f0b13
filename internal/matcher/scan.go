package matcher

import (
	"image"

	"github.com/google/uuid"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/framebuf"
)

// Task is one chunk of one frame generation. Tasks are values; the only
// shared state they reference is the read-only Frame.
type Task struct {
	Session     uuid.UUID
	Frame       *framebuf.Frame
	Chunk       Rect
	Origin      image.Point // window client origin in screen space at capture time
	Colors      []Color
	Tolerance   int
	MinDistance int

	// Done aborts the scan between rows when closed.
	Done <-chan struct{}
}

// Result is the filtered match set for one Task.
type Result struct {
	Session    uuid.UUID
	Generation uint64
	Chunk      Rect
	Origin     image.Point
	Points     []Point
	Err        error
}

// errAborted marks a scan cut short by Task.Done.
var errAborted = apperr.New(apperr.CodeCancelled, "scan aborted")

// Match scans the task's chunk for every target color, color by color in
// row-major order, and applies the minimum-distance filter.
func Match(t Task) ([]Point, error) {
	points, err := Scan(t.Frame, t.Chunk, t.Colors, t.Tolerance, t.Done)
	if err != nil {
		return nil, err
	}
	return FilterByDistance(points, t.MinDistance), nil
}

// Scan returns frame-global coordinates of every pixel in chunk within
// tolerance of some color. Points are grouped by color, in the order given.
func Scan(f *framebuf.Frame, chunk Rect, colors []Color, tolerance int, done <-chan struct{}) ([]Point, error) {
	if chunk.Empty() || len(colors) == 0 {
		return nil, nil
	}
	if chunk.Row < 0 || chunk.Col < 0 || chunk.Row+chunk.H > f.Height || chunk.Col+chunk.W > f.Width {
		return nil, apperr.Newf(apperr.CodeInvalidArgument,
			"chunk %v outside %dx%d frame", chunk.Bounds(), f.Width, f.Height)
	}

	pix := f.Pix()
	stride := f.Width * framebuf.Channels
	var points []Point
	for _, c := range colors {
		for y := chunk.Row; y < chunk.Row+chunk.H; y++ {
			select {
			case <-done:
				return nil, errAborted
			default:
			}
			row := pix[y*stride : (y+1)*stride]
			for x := chunk.Col; x < chunk.Col+chunk.W; x++ {
				i := x * framebuf.Channels
				if c.Within(row[i], row[i+1], row[i+2], tolerance) {
					points = append(points, Point{X: x, Y: y})
				}
			}
		}
	}
	return points, nil
}
