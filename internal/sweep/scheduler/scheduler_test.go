package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/sweep/progress"
	"github.com/vietddude/mailsweep/internal/sweep/throttle"
)

type fakeDeleter struct {
	mu       sync.Mutex
	batches  [][]domain.MessageID
	inFlight map[domain.MessageID]struct{}
	overlap  bool

	// respond decides per-id status; nil means 204 for everything.
	respond func(id domain.MessageID) int
	// fail makes every call return a transport error.
	fail error
	// onBatch runs while the batch is in flight.
	onBatch func(batch []domain.MessageID)
}

func (f *fakeDeleter) DeleteBatch(ctx context.Context, ids []domain.MessageID, mode domain.DeleteMode) ([]domain.SubResult, error) {
	f.mu.Lock()
	if f.inFlight == nil {
		f.inFlight = make(map[domain.MessageID]struct{})
	}
	for _, id := range ids {
		if _, dup := f.inFlight[id]; dup {
			f.overlap = true
		}
		f.inFlight[id] = struct{}{}
	}
	f.batches = append(f.batches, append([]domain.MessageID(nil), ids...))
	f.mu.Unlock()

	if f.onBatch != nil {
		f.onBatch(ids)
	}

	f.mu.Lock()
	for _, id := range ids {
		delete(f.inFlight, id)
	}
	f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}
	results := make([]domain.SubResult, 0, len(ids))
	for _, id := range ids {
		status := 204
		if f.respond != nil {
			status = f.respond(id)
		}
		results = append(results, domain.SubResult{
			ID:         id,
			StatusCode: status,
			Class:      domain.Classify(status),
		})
	}
	return results, nil
}

func makeIDs(n int) []domain.MessageID {
	ids := make([]domain.MessageID, n)
	for i := range ids {
		ids[i] = domain.MessageID(fmt.Sprintf("msg-%03d", i))
	}
	return ids
}

func TestRunWaveChunksAndSucceeds(t *testing.T) {
	deleter := &fakeDeleter{}
	s := New(deleter, progress.NewTracker(), Config{Mode: domain.DeleteModeSoft})

	out := s.RunWave(context.Background(), makeIDs(25), throttle.State{Workers: 1, BatchSize: 10})

	if out.Attempted != 25 || out.Succeeded != 25 {
		t.Fatalf("attempted=%d succeeded=%d, want 25/25", out.Attempted, out.Succeeded)
	}
	if len(out.Retryable) != 0 || len(out.Permanent) != 0 || len(out.Unprocessed) != 0 {
		t.Fatalf("unexpected leftovers: %+v", out)
	}
	var sizes []int
	for _, b := range deleter.batches {
		sizes = append(sizes, len(b))
	}
	sort.Ints(sizes)
	want := []int{5, 10, 10}
	for i, n := range want {
		if sizes[i] != n {
			t.Fatalf("batch sizes %v, want %v", sizes, want)
		}
	}
}

func TestRunWaveClassifiesSubResults(t *testing.T) {
	throttled := map[domain.MessageID]bool{"msg-001": true, "msg-004": true}
	deleter := &fakeDeleter{
		respond: func(id domain.MessageID) int {
			if throttled[id] {
				return 429
			}
			if id == "msg-007" {
				return 404
			}
			return 200
		},
	}
	s := New(deleter, progress.NewTracker(), Config{Mode: domain.DeleteModeSoft})

	out := s.RunWave(context.Background(), makeIDs(10), throttle.State{Workers: 2, BatchSize: 5})

	if out.Succeeded != 7 {
		t.Fatalf("succeeded = %d, want 7", out.Succeeded)
	}
	if len(out.Retryable) != 2 {
		t.Fatalf("retryable = %v, want 2 ids", out.Retryable)
	}
	for _, id := range out.Retryable {
		if !throttled[id] {
			t.Fatalf("unexpected retryable id %s", id)
		}
	}
	if len(out.Permanent) != 1 || out.Permanent[0].ID != "msg-007" {
		t.Fatalf("permanent = %+v, want msg-007", out.Permanent)
	}
}

func TestRunWaveTransportFailureRetriesWholeBatch(t *testing.T) {
	deleter := &fakeDeleter{fail: errors.New("connection reset")}
	s := New(deleter, progress.NewTracker(), Config{Mode: domain.DeleteModeSoft})

	out := s.RunWave(context.Background(), makeIDs(8), throttle.State{Workers: 1, BatchSize: 20})

	if out.Succeeded != 0 {
		t.Fatalf("succeeded = %d, want 0", out.Succeeded)
	}
	if len(out.Retryable) != 8 {
		t.Fatalf("retryable = %d ids, want all 8", len(out.Retryable))
	}
}

func TestRunWaveAuthFailureHaltsPool(t *testing.T) {
	deleter := &fakeDeleter{fail: fmt.Errorf("batch request: %w", domain.ErrAuth)}
	s := New(deleter, progress.NewTracker(), Config{Mode: domain.DeleteModeSoft})

	out := s.RunWave(context.Background(), makeIDs(40), throttle.State{Workers: 1, BatchSize: 10})

	if !errors.Is(out.Fatal, domain.ErrAuth) {
		t.Fatalf("fatal = %v, want ErrAuth", out.Fatal)
	}
	// A rejected credential must not be resubmitted.
	if len(deleter.batches) != 1 {
		t.Fatalf("batches submitted = %d, want 1", len(deleter.batches))
	}
	if len(out.Retryable) != 0 {
		t.Fatalf("retryable = %v, want none", out.Retryable)
	}
	if out.Succeeded != 0 || len(out.Unprocessed) != 40 {
		t.Fatalf("succeeded=%d unprocessed=%d, want 0/40", out.Succeeded, len(out.Unprocessed))
	}
}

func TestRunWaveUnreportedIDsAreRetryable(t *testing.T) {
	// Deleter drops msg-002 from its response entirely.
	d := &droppingDeleter{inner: &fakeDeleter{}, drop: "msg-002"}
	s := New(d, progress.NewTracker(), Config{Mode: domain.DeleteModeSoft})

	out := s.RunWave(context.Background(), makeIDs(5), throttle.State{Workers: 1, BatchSize: 5})
	if out.Succeeded != 4 {
		t.Fatalf("succeeded = %d, want 4", out.Succeeded)
	}
	if len(out.Retryable) != 1 || out.Retryable[0] != "msg-002" {
		t.Fatalf("retryable = %v, want [msg-002]", out.Retryable)
	}
}

type droppingDeleter struct {
	inner *fakeDeleter
	drop  domain.MessageID
}

func (d *droppingDeleter) DeleteBatch(ctx context.Context, ids []domain.MessageID, mode domain.DeleteMode) ([]domain.SubResult, error) {
	results, err := d.inner.DeleteBatch(ctx, ids, mode)
	if err != nil {
		return nil, err
	}
	kept := results[:0]
	for _, r := range results {
		if r.ID != d.drop {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func TestRunWaveNoIDInTwoBatchesConcurrently(t *testing.T) {
	deleter := &fakeDeleter{
		onBatch: func([]domain.MessageID) { time.Sleep(5 * time.Millisecond) },
	}
	s := New(deleter, progress.NewTracker(), Config{Mode: domain.DeleteModeSoft})

	out := s.RunWave(context.Background(), makeIDs(60), throttle.State{Workers: 6, BatchSize: 5})

	if deleter.overlap {
		t.Fatal("same id observed in two in-flight batches")
	}
	if out.Succeeded != 60 {
		t.Fatalf("succeeded = %d, want 60", out.Succeeded)
	}
}

func TestRunWaveCancellationStopsNewClaims(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	deleter := &fakeDeleter{
		onBatch: func([]domain.MessageID) { cancel() },
	}
	s := New(deleter, progress.NewTracker(), Config{Mode: domain.DeleteModeSoft})

	out := s.RunWave(ctx, makeIDs(40), throttle.State{Workers: 1, BatchSize: 10})

	// The claimed batch still completed and was recorded.
	if out.Attempted != 10 || out.Succeeded != 10 {
		t.Fatalf("attempted=%d succeeded=%d, want 10/10", out.Attempted, out.Succeeded)
	}
	if len(out.Unprocessed) != 30 {
		t.Fatalf("unprocessed = %d ids, want 30", len(out.Unprocessed))
	}
	if len(deleter.batches) != 1 {
		t.Fatalf("batches submitted after cancel: %d, want 1", len(deleter.batches))
	}
}
