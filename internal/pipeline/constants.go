// Package pipeline runs one capture, match and click session at a time
package pipeline

// Pipeline configuration constants
const (
	// Event store configuration
	EventMaxEntries  = 50
	EventChannelSize = 32

	// Fatal errors buffered for the collaborator before new ones are dropped
	ErrorChannelSize = 4

	// Click report batch threshold
	ClickReportMaxBatch = 500
)

// Status messages shown to the operator
const (
	MsgEnabled    = "Autoclicker enabled."
	MsgDisabled   = "Autoclicker disabled."
	MsgWindowLost = "Target window is closed or invalid. Stopping."

	MsgClicksPaused  = "Clicks are failing, pausing dispatch."
	MsgClicksResumed = "Clicks recovered, dispatch resumed."

	msgCaptureErr = "Capture error: %v. Stopping."
)
