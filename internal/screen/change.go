package screen

import (
	"image"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"
)

// Change detection constants
const (
	// MaxHashDistance is the pHash Hamming distance at or below which two
	// frames count as unchanged.
	MaxHashDistance = 0

	// MaxConsecutiveSkips forces a frame through after this many skips so a
	// small change the hash cannot see is never ignored for long.
	MaxConsecutiveSkips = 10
)

// ChangeFilter drops frames perceptually identical to the last one kept.
type ChangeFilter struct {
	mu          sync.Mutex
	maxDistance int
	maxSkips    int
	lastHash    *goimagehash.ImageHash
	skips       int
}

// NewChangeFilter creates a filter with the given thresholds.
func NewChangeFilter(maxDistance, maxSkips int) *ChangeFilter {
	if maxSkips < 1 {
		maxSkips = MaxConsecutiveSkips
	}
	return &ChangeFilter{maxDistance: maxDistance, maxSkips: maxSkips}
}

// Unchanged reports whether img can be skipped. Frames that cannot be hashed
// are never skipped.
func (f *ChangeFilter) Unchanged(img image.Image) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lastHash == nil || f.skips >= f.maxSkips {
		f.keep(hash)
		return false
	}

	dist, err := f.lastHash.Distance(hash)
	if err != nil || dist > f.maxDistance {
		f.keep(hash)
		return false
	}

	f.skips++
	slog.Debug("skipping unchanged frame", "distance", dist, "skips", f.skips)
	return true
}

// Reset forgets the reference frame.
func (f *ChangeFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHash = nil
	f.skips = 0
}

func (f *ChangeFilter) keep(hash *goimagehash.ImageHash) {
	f.lastHash = hash
	f.skips = 0
}
