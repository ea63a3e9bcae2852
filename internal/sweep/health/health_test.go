package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/mailsweep/internal/sweep/progress"
	"github.com/vietddude/mailsweep/internal/sweep/throttle"
)

func newController(workers, batch int) *throttle.Controller {
	return throttle.NewController(workers, batch, throttle.Config{
		Enabled:       true,
		MinWorkers:    1,
		MinBatchSize:  5,
		HighRetryRate: 0.15,
	})
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Health(ctx context.Context) error { return f.err }

func TestMonitorHealthy(t *testing.T) {
	tracker := progress.NewTracker()
	tracker.AddSelected(100)
	tracker.AddSucceeded(40)

	m := NewMonitor(tracker, newController(6, 20), nil)
	report := m.CheckHealth(context.Background())

	if report.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", report.Status)
	}
	if report.Succeeded != 40 || report.Remaining != 60 {
		t.Errorf("report = %+v", report)
	}
	if report.Database != "" {
		t.Errorf("database = %q, want omitted without a store", report.Database)
	}
}

func TestMonitorDegradedAfterStepDown(t *testing.T) {
	ctrl := newController(6, 20)
	m := NewMonitor(progress.NewTracker(), ctrl, nil)

	// 50% retry rate forces a step-down.
	ctrl.Observe(20, 10)

	report := m.CheckHealth(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", report.Status)
	}
	if report.Workers != 3 || report.BatchSize != 10 {
		t.Errorf("state = %d/%d, want 3/10", report.Workers, report.BatchSize)
	}
}

func TestMonitorReportsDatabase(t *testing.T) {
	m := NewMonitor(progress.NewTracker(), newController(4, 20), &fakePinger{})

	report := m.CheckHealth(context.Background())
	if report.Status != StatusHealthy || report.Database != "ok" {
		t.Errorf("report = %+v, want healthy with database ok", report)
	}
}

func TestMonitorDegradedOnDatabaseFailure(t *testing.T) {
	pinger := &fakePinger{err: errors.New("connection refused")}
	m := NewMonitor(progress.NewTracker(), newController(4, 20), pinger)

	report := m.CheckHealth(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", report.Status)
	}
	if report.Database != "unavailable: connection refused" {
		t.Errorf("database = %q", report.Database)
	}
}

func TestHandleDetailed(t *testing.T) {
	tracker := progress.NewTracker()
	tracker.AddSelected(10)
	tracker.AddSucceeded(10)
	tracker.SetWave(2)

	s := NewServer(NewMonitor(tracker, newController(4, 20), nil), 0)

	rec := httptest.NewRecorder()
	s.handleDetailed(rec, httptest.NewRequest("GET", "/health/detailed", nil))

	var report RunHealth
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Wave != 2 || report.Succeeded != 10 || report.Remaining != 0 {
		t.Errorf("report = %+v", report)
	}
}
