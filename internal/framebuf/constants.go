// Package framebuf holds captured window pixels in a shared, slot-rotated
// buffer that matcher workers read without copying.
package framebuf

import "time"

const (
	// Channels per pixel in the packed frame layout.
	Channels = 3

	// DefaultSlots gives one slot being written while one is read.
	DefaultSlots = 2

	// SegmentPrefix names shared-memory segments.
	SegmentPrefix = "autoclicker_screenshot_"

	// ReleaseTimeout bounds how long Release waits for readers.
	ReleaseTimeout = 2 * time.Second
)
