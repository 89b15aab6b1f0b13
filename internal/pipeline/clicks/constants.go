// Package clicks reports click counts to a collaborator in batches.
package clicks

import "time"

const (
	// DefaultMaxBatch flushes early once this many clicks are pending.
	DefaultMaxBatch = 500

	// DefaultFlushDelay is the longest a click waits before being reported.
	DefaultFlushDelay = 200 * time.Millisecond
)
