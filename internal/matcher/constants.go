// Package matcher finds target colors in published frames. A frame is split
// into near-square chunks, each scanned by one worker of a persistent pool.
package matcher

// Defaults for color matching.
const (
	DefaultTolerance   = 10
	DefaultMinDistance = 10

	// MaxTolerance is the largest meaningful per-channel difference.
	MaxTolerance = 255

	// TaskQueueFactor sizes the pool's task queue per worker.
	TaskQueueFactor = 2
)
