package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/infra/storage"
)

// RunRepo implements storage.RunRepository in memory. Used when no
// database is configured and by tests.
type RunRepo struct {
	mu       sync.RWMutex
	runs     map[string]*domain.RunRecord
	failures map[string][]domain.FailedMessage
}

func NewRunRepo() *RunRepo {
	return &RunRepo{
		runs:     make(map[string]*domain.RunRecord),
		failures: make(map[string][]domain.FailedMessage),
	}
}

func (r *RunRepo) SaveRun(ctx context.Context, summary *domain.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[summary.RunID] = summary.Record()
	r.failures[summary.RunID] = append([]domain.FailedMessage(nil), summary.Failed...)
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.runs[runID]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs := make([]*domain.RunRecord, 0, len(r.runs))
	for _, rec := range r.runs {
		cp := *rec
		recs = append(recs, &cp)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].StartedAt.After(recs[j].StartedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (r *RunRepo) ListFailures(ctx context.Context, runID string) ([]domain.FailedMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.FailedMessage(nil), r.failures[runID]...), nil
}
