package health

import (
	"context"

	"github.com/vietddude/mailsweep/internal/sweep/progress"
	"github.com/vietddude/mailsweep/internal/sweep/throttle"
)

// Pinger reports backing-store connectivity. Satisfied by the run
// archive database; nil means no store is configured.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor assembles a health report from the live run counters, the
// current throttle state and the run archive connection.
type Monitor struct {
	tracker *progress.Tracker
	ctrl    *throttle.Controller
	db      Pinger

	initial throttle.State
}

// NewMonitor creates a monitor. The controller's state at construction
// time is remembered as the baseline: any later reduction means the run
// has been throttled and reports degraded. db may be nil.
func NewMonitor(tracker *progress.Tracker, ctrl *throttle.Controller, db Pinger) *Monitor {
	return &Monitor{
		tracker: tracker,
		ctrl:    ctrl,
		db:      db,
		initial: ctrl.Snapshot(),
	}
}

// CheckHealth returns the current run health.
func (m *Monitor) CheckHealth(ctx context.Context) RunHealth {
	snap := m.tracker.Snapshot()
	state := m.ctrl.Snapshot()

	status := StatusHealthy
	if state.Workers < m.initial.Workers || state.BatchSize < m.initial.BatchSize {
		status = StatusDegraded
	}

	database := ""
	if m.db != nil {
		if err := m.db.Health(ctx); err != nil {
			status = StatusDegraded
			database = "unavailable: " + err.Error()
		} else {
			database = "ok"
		}
	}

	return RunHealth{
		Status:            status,
		Wave:              m.tracker.Wave(),
		Processed:         snap.Processed,
		Succeeded:         snap.Succeeded,
		Retried:           snap.Retried,
		PermanentlyFailed: snap.PermanentlyFailed,
		Remaining:         snap.EstimatedRemaining,
		Workers:           state.Workers,
		BatchSize:         state.BatchSize,
		Database:          database,
	}
}
