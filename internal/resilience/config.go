package resilience

import "time"

// Breaker settings for the click backend. Clicks arrive at hundreds per
// second, so the breaker trips fast and retries quickly.
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 2 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Shared-memory allocation: a handful of quick attempts.
	AllocThreshold         = 3
	AllocResetTimeout      = 10 * time.Second
	AllocHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // reported in state-change logs
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns settings for the click backend.
func DefaultConfig() Config {
	return Config{
		Name:              "click",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// AllocConfig returns settings for buffer allocation.
func AllocConfig() Config {
	return Config{
		Name:              "alloc",
		Threshold:         AllocThreshold,
		ResetTimeout:      AllocResetTimeout,
		HalfOpenSuccesses: AllocHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "breaker"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
