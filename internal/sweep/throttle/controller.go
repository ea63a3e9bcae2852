package throttle

import (
	"log/slog"
	"sync"
	"time"
)

// State is the live worker/batch-size pair the scheduler runs a wave with.
// It changes only between waves, never while batches are in flight.
type State struct {
	Workers   int
	BatchSize int
}

// Controller owns the throttle state and shrinks it when a wave reports a
// high retryable rate. Adjustments are monotonic-decreasing for the life of
// a run: scaling back up near a rate limit just reproduces the throttling
// that forced the step-down in the first place.
type Controller struct {
	config Config
	log    *slog.Logger

	mu    sync.Mutex
	state State
}

// NewController creates a controller starting from the configured
// worker count and batch size.
func NewController(workers, batchSize int, config Config) *Controller {
	if workers < config.MinWorkers {
		workers = config.MinWorkers
	}
	if batchSize < config.MinBatchSize {
		batchSize = config.MinBatchSize
	}
	return &Controller{
		config: config,
		log:    slog.Default().With("component", "throttle"),
		state:  State{Workers: workers, BatchSize: batchSize},
	}
}

// Snapshot returns the state the next wave should run with. The scheduler
// reads it once at wave start so in-flight batch shapes stay stable.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe consumes one wave's outcome and steps the state down when the
// retryable rate crossed the threshold. It reports whether a step-down
// happened so the wave manager can extend the next backoff by StepPause.
func (c *Controller) Observe(attempted, retryable int) bool {
	if !c.config.Enabled || attempted <= 0 {
		return false
	}

	rate := float64(retryable) / float64(attempted)
	if rate < c.config.HighRetryRate {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := State{
		Workers:   halveToward(c.state.Workers, c.config.MinWorkers),
		BatchSize: halveToward(c.state.BatchSize, c.config.MinBatchSize),
	}
	if next == c.state {
		return false
	}

	c.log.Info("high retry rate, reducing concurrency",
		"rate", rate,
		"workers", c.state.Workers, "new_workers", next.Workers,
		"batch_size", c.state.BatchSize, "new_batch_size", next.BatchSize)
	c.state = next
	return true
}

// StepPause returns the extra pause to apply after a step-down.
func (c *Controller) StepPause() time.Duration {
	return c.config.StepPause
}

// halveToward halves n rounding up, clamped at floor.
func halveToward(n, floor int) int {
	next := (n + 1) / 2
	if next < floor {
		return floor
	}
	return next
}
