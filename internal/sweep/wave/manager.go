package wave

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/sweep/metrics"
	"github.com/vietddude/mailsweep/internal/sweep/progress"
	"github.com/vietddude/mailsweep/internal/sweep/scheduler"
	"github.com/vietddude/mailsweep/internal/sweep/throttle"
)

// maxBackoffExponent caps the exponential growth of inter-wave waits.
const maxBackoffExponent = 6

// jitterSpread is the width of the uniform jitter added to every backoff.
const jitterSpread = 1500 * time.Millisecond

// Runner executes one wave of batch submissions. Satisfied by
// scheduler.Scheduler.
type Runner interface {
	RunWave(ctx context.Context, ids []domain.MessageID, state throttle.State) scheduler.Outcome
}

// Checkpoint persists the pending id set between waves so an interrupted
// run can be inspected or resumed. A nil checkpoint disables persistence.
type Checkpoint interface {
	SavePending(ctx context.Context, runID string, wave int, ids []domain.MessageID) error
	Clear(ctx context.Context, runID string) error
}

// Config holds retry-wave settings.
type Config struct {
	// MaxRetryWaves bounds retry waves after the initial submission.
	MaxRetryWaves int
	// RetryBaseWait is the base of the exponential inter-wave backoff.
	RetryBaseWait time.Duration
	// Jitter is the width of the uniform jitter added to each backoff.
	// Zero selects the default spread.
	Jitter time.Duration
}

// Result is the terminal accounting of a run's delete phase.
type Result struct {
	Deleted      int
	Failed       []domain.FailedMessage
	NotProcessed int
	Waves        int
	Cancelled    bool
}

// Manager drives the generational retry loop: submit everything, collect
// the retryable residue, back off, and resubmit it as the next wave until
// the residue drains, the wave budget runs out, or the run is cancelled.
type Manager struct {
	runner  Runner
	ctrl    *throttle.Controller
	tracker *progress.Tracker
	cp      Checkpoint
	cfg     Config
	log     *slog.Logger
}

// NewManager creates a wave manager. cp may be nil.
func NewManager(
	runner Runner,
	ctrl *throttle.Controller,
	tracker *progress.Tracker,
	cp Checkpoint,
	cfg Config,
) *Manager {
	if cfg.Jitter == 0 {
		cfg.Jitter = jitterSpread
	}
	return &Manager{
		runner:  runner,
		ctrl:    ctrl,
		tracker: tracker,
		cp:      cp,
		cfg:     cfg,
		log:     slog.Default().With("component", "wave"),
	}
}

// Run processes ids to completion and returns the run's accounting.
// Wave 0 is the initial submission; waves 1..MaxRetryWaves retry the
// residue. Cancellation between waves stops cleanly: the remaining
// pending set is reported as not processed, never silently dropped.
// A fatal wave error, such as a rejected credential, aborts the loop
// immediately and is returned alongside the partial accounting.
func (m *Manager) Run(ctx context.Context, runID string, ids []domain.MessageID) (Result, error) {
	var res Result
	pending := ids

	for k := 0; ; k++ {
		m.tracker.SetWave(k)
		state := m.ctrl.Snapshot()
		m.log.Info("starting wave",
			"wave", k, "pending", len(pending),
			"workers", state.Workers, "batch_size", state.BatchSize)

		out := m.runner.RunWave(ctx, pending, state)
		res.Waves = k + 1
		res.Deleted += out.Succeeded
		res.NotProcessed += len(out.Unprocessed)
		for _, sub := range out.Permanent {
			res.Failed = append(res.Failed, domain.FailedMessage{
				ID:         sub.ID,
				StatusCode: sub.StatusCode,
				Reason:     fmt.Sprintf("HTTP %d", sub.StatusCode),
			})
		}

		if out.Fatal != nil {
			res.NotProcessed += len(out.Retryable)
			m.log.Error("aborting run",
				"wave", k, "not_processed", res.NotProcessed, "error", out.Fatal)
			return res, out.Fatal
		}

		stepped := m.ctrl.Observe(out.Attempted, len(out.Retryable))
		if stepped {
			metrics.ThrottleStepdowns.Inc()
		}

		pending = out.Retryable
		if ctx.Err() != nil {
			res.Cancelled = true
			res.NotProcessed += len(pending)
			m.log.Warn("run cancelled",
				"wave", k, "not_processed", res.NotProcessed)
			return res, nil
		}
		if len(pending) == 0 {
			m.clearCheckpoint(ctx, runID)
			return res, nil
		}
		if k >= m.cfg.MaxRetryWaves {
			m.log.Warn("retry waves exhausted",
				"wave", k, "remaining", len(pending))
			m.tracker.AddPermanent(len(pending))
			for _, id := range pending {
				res.Failed = append(res.Failed, domain.FailedMessage{
					ID:     id,
					Reason: "still throttled after final retry wave",
				})
			}
			m.clearCheckpoint(ctx, runID)
			return res, nil
		}

		m.saveCheckpoint(ctx, runID, k+1, pending)
		metrics.RetryWaves.Inc()

		wait := m.backoff(k+1, stepped)
		m.log.Info("backing off before retry wave",
			"next_wave", k+1, "pending", len(pending), "wait", wait)
		select {
		case <-ctx.Done():
			res.Cancelled = true
			res.NotProcessed += len(pending)
			return res, nil
		case <-time.After(wait):
		}
	}
}

// backoff computes the pre-wave wait: exponential in the wave number with
// uniform jitter, plus the throttle pause when the last wave stepped down.
func (m *Manager) backoff(wave int, stepped bool) time.Duration {
	exp := wave - 1
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	wait := m.cfg.RetryBaseWait * (1 << exp)
	wait += time.Duration(rand.Float64() * float64(m.cfg.Jitter))
	if stepped {
		wait += m.ctrl.StepPause()
	}
	return wait
}

func (m *Manager) saveCheckpoint(ctx context.Context, runID string, wave int, ids []domain.MessageID) {
	if m.cp == nil {
		return
	}
	if err := m.cp.SavePending(ctx, runID, wave, ids); err != nil {
		m.log.Warn("failed to save pending checkpoint", "error", err)
	}
}

func (m *Manager) clearCheckpoint(ctx context.Context, runID string) {
	if m.cp == nil {
		return
	}
	if err := m.cp.Clear(ctx, runID); err != nil {
		m.log.Warn("failed to clear pending checkpoint", "error", err)
	}
}
