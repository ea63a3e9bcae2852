package progress

import (
	"log/slog"
	"sync/atomic"

	"github.com/vietddude/mailsweep/internal/core/domain"
)

// Tracker accumulates shared sweep counters. Writers increment atomically
// from worker goroutines; readers get an eventually-consistent snapshot.
type Tracker struct {
	selected  atomic.Int64
	submitted atomic.Int64
	succeeded atomic.Int64
	retried   atomic.Int64
	permanent atomic.Int64
	wave      atomic.Int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) AddSelected(n int)  { t.selected.Add(int64(n)) }
func (t *Tracker) AddSubmitted(n int) { t.submitted.Add(int64(n)) }
func (t *Tracker) AddSucceeded(n int) { t.succeeded.Add(int64(n)) }
func (t *Tracker) AddRetried(n int)   { t.retried.Add(int64(n)) }
func (t *Tracker) AddPermanent(n int) { t.permanent.Add(int64(n)) }
func (t *Tracker) SetWave(k int)      { t.wave.Store(int64(k)) }

// Wave returns the current retry wave number.
func (t *Tracker) Wave() int { return int(t.wave.Load()) }

// Snapshot returns current counters as a Progress value.
func (t *Tracker) Snapshot() domain.Progress {
	succeeded := t.succeeded.Load()
	permanent := t.permanent.Load()
	remaining := t.selected.Load() - succeeded - permanent
	if remaining < 0 {
		remaining = 0
	}
	return domain.Progress{
		Processed:          succeeded + permanent,
		Succeeded:          succeeded,
		Retried:            t.retried.Load(),
		PermanentlyFailed:  permanent,
		EstimatedRemaining: remaining,
	}
}

// Reporter receives periodic progress snapshots.
type Reporter interface {
	Report(p domain.Progress)
}

// LogReporter writes progress snapshots to the log.
type LogReporter struct {
	log *slog.Logger
}

// NewLogReporter creates a reporter backed by the default logger.
func NewLogReporter() *LogReporter {
	return &LogReporter{log: slog.Default().With("component", "progress")}
}

func (r *LogReporter) Report(p domain.Progress) {
	r.log.Info("sweep progress",
		"processed", p.Processed,
		"succeeded", p.Succeeded,
		"retried", p.Retried,
		"permanent", p.PermanentlyFailed,
		"remaining", p.EstimatedRemaining)
}
