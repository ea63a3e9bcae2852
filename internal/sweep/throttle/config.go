package throttle

import "time"

// Config holds configuration for adaptive throttling behavior.
type Config struct {
	// Enabled controls whether adaptive throttling is active
	Enabled bool

	// Floors the controller never steps below
	MinWorkers   int
	MinBatchSize int

	// HighRetryRate is the wave-level retryable/attempted ratio above which
	// the controller steps concurrency down (default: 0.15)
	HighRetryRate float64

	// StepPause is added to the next wave's backoff after a step-down,
	// giving the remote service extra breathing room (default: 5s)
	StepPause time.Duration
}

// DefaultConfig returns sensible defaults for adaptive throttling.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		MinWorkers:    1,
		MinBatchSize:  5,
		HighRetryRate: 0.15,
		StepPause:     5 * time.Second,
	}
}
