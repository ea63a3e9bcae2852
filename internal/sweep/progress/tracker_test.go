package progress

import (
	"sync"
	"testing"
)

func TestSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.AddSelected(100)
	tr.AddSubmitted(40)
	tr.AddSucceeded(30)
	tr.AddRetried(8)
	tr.AddPermanent(2)

	p := tr.Snapshot()
	if p.Processed != 32 {
		t.Errorf("Processed = %d, want 32", p.Processed)
	}
	if p.Succeeded != 30 {
		t.Errorf("Succeeded = %d, want 30", p.Succeeded)
	}
	if p.Retried != 8 {
		t.Errorf("Retried = %d, want 8", p.Retried)
	}
	if p.PermanentlyFailed != 2 {
		t.Errorf("PermanentlyFailed = %d, want 2", p.PermanentlyFailed)
	}
	if p.EstimatedRemaining != 68 {
		t.Errorf("EstimatedRemaining = %d, want 68", p.EstimatedRemaining)
	}
}

func TestSnapshotRemainingNeverNegative(t *testing.T) {
	tr := NewTracker()
	tr.AddSelected(5)
	// Retried successes can push processed past selected mid-wave.
	tr.AddSucceeded(5)
	tr.AddPermanent(2)

	if p := tr.Snapshot(); p.EstimatedRemaining != 0 {
		t.Errorf("EstimatedRemaining = %d, want 0", p.EstimatedRemaining)
	}
}

func TestConcurrentWriters(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.AddSucceeded(1)
			}
		}()
	}
	wg.Wait()

	if p := tr.Snapshot(); p.Succeeded != 1000 {
		t.Errorf("Succeeded = %d, want 1000", p.Succeeded)
	}
}
