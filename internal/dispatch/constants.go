// Package dispatch turns match results into queued window coordinates and
// clicks them from a single dispatcher goroutine.
package dispatch

// DefaultQueueCapacity bounds pending coordinates.
const DefaultQueueCapacity = 2000
