package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/sweep/metrics"
	"github.com/vietddude/mailsweep/internal/sweep/progress"
	"github.com/vietddude/mailsweep/internal/sweep/throttle"
)

// Deleter is the narrow batch-delete surface the scheduler needs.
type Deleter interface {
	DeleteBatch(ctx context.Context, ids []domain.MessageID, mode domain.DeleteMode) ([]domain.SubResult, error)
}

// Config holds scheduler settings fixed for the life of a run.
type Config struct {
	Mode domain.DeleteMode
	// SubmitSleep is the per-worker pause between successive batch
	// submissions, reducing burstiness against the rate limiter.
	SubmitSleep time.Duration
}

// Outcome is the aggregated result of one wave.
type Outcome struct {
	Attempted   int
	Succeeded   int
	Retryable   []domain.MessageID
	Permanent   []domain.SubResult
	Unprocessed []domain.MessageID
	// Fatal is set when a submission failed in a way no retry can fix,
	// such as a rejected credential. The rest of the wave is abandoned
	// and its ids land in Unprocessed.
	Fatal error
}

// Scheduler groups pending ids into batches and drives them through a
// fixed-size worker pool. Worker count and batch size are read once per
// wave so in-flight batch shapes stay stable.
type Scheduler struct {
	deleter Deleter
	tracker *progress.Tracker
	cfg     Config
	log     *slog.Logger
}

// New creates a scheduler.
func New(deleter Deleter, tracker *progress.Tracker, cfg Config) *Scheduler {
	return &Scheduler{
		deleter: deleter,
		tracker: tracker,
		cfg:     cfg,
		log:     slog.Default().With("component", "scheduler"),
	}
}

// RunWave submits ids in batches shaped by state and returns the wave's
// classified outcome. Cancellation is observed at the batch-claim
// boundary: a batch already claimed is still submitted and its results
// recorded, since the remote service applies it either way. A fatal
// submission error stops further claims and surfaces in Outcome.Fatal.
func (s *Scheduler) RunWave(
	ctx context.Context,
	ids []domain.MessageID,
	state throttle.State,
) Outcome {
	if len(ids) == 0 {
		return Outcome{}
	}

	metrics.Workers.Set(float64(state.Workers))
	metrics.BatchSize.Set(float64(state.BatchSize))

	batches := chunk(ids, state.BatchSize)
	work := make(chan []domain.MessageID, len(batches))
	for _, b := range batches {
		work <- b
	}
	close(work)

	workers := state.Workers
	if workers > len(batches) {
		workers = len(batches)
	}

	var (
		mu  sync.Mutex
		out Outcome
		wg  sync.WaitGroup
	)

	// In-flight submissions must outlive a cancelled run context; the
	// per-request timeout inside the deleter still bounds them.
	submitCtx := context.WithoutCancel(ctx)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				halted := out.Fatal != nil
				mu.Unlock()
				if halted || ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case batch, ok := <-work:
					if !ok {
						return
					}
					res := s.submit(submitCtx, batch)
					mu.Lock()
					out.Attempted += len(batch)
					out.Succeeded += res.succeeded
					out.Retryable = append(out.Retryable, res.retryable...)
					out.Permanent = append(out.Permanent, res.permanent...)
					if res.fatal != nil {
						if out.Fatal == nil {
							out.Fatal = res.fatal
						}
						out.Unprocessed = append(out.Unprocessed, batch...)
					}
					mu.Unlock()
					if res.fatal != nil {
						return
					}

					if s.cfg.SubmitSleep > 0 {
						select {
						case <-ctx.Done():
							return
						case <-time.After(s.cfg.SubmitSleep):
						}
					}
				}
			}
		}()
	}
	wg.Wait()

	// Whatever is still in the channel was never claimed.
	for batch := range work {
		out.Unprocessed = append(out.Unprocessed, batch...)
	}
	return out
}

type batchResult struct {
	succeeded int
	retryable []domain.MessageID
	permanent []domain.SubResult
	fatal     error
}

// submit sends one batch and classifies every sub-result. A transport-level
// failure taints the whole batch as retryable, same as a 429 on each id.
// An auth failure is fatal: retrying a rejected credential cannot succeed,
// so the batch is left unprocessed and the pool halts.
func (s *Scheduler) submit(ctx context.Context, batch []domain.MessageID) batchResult {
	s.tracker.AddSubmitted(len(batch))
	metrics.BatchesSubmitted.Inc()

	results, err := s.deleter.DeleteBatch(ctx, batch, s.cfg.Mode)
	if errors.Is(err, domain.ErrAuth) {
		s.log.Error("batch submission rejected, aborting", "error", err)
		return batchResult{fatal: err}
	}
	if err != nil {
		s.log.Warn("batch submission failed, will retry whole batch",
			"size", len(batch), "error", err)
		s.tracker.AddRetried(len(batch))
		metrics.DeleteResults.WithLabelValues(string(domain.ClassRetryable)).Add(float64(len(batch)))
		return batchResult{retryable: append([]domain.MessageID(nil), batch...)}
	}

	var res batchResult
	reported := make(map[domain.MessageID]struct{}, len(results))
	for _, sub := range results {
		reported[sub.ID] = struct{}{}
		metrics.DeleteResults.WithLabelValues(string(sub.Class)).Inc()
		switch sub.Class {
		case domain.ClassSuccess:
			res.succeeded++
			s.tracker.AddSucceeded(1)
		case domain.ClassRetryable:
			res.retryable = append(res.retryable, sub.ID)
			s.tracker.AddRetried(1)
		default:
			s.log.Warn("delete failed permanently",
				"id", sub.ID, "status", sub.StatusCode)
			res.permanent = append(res.permanent, sub)
			s.tracker.AddPermanent(1)
		}
	}

	// Ids the response never mentioned get another chance.
	for _, id := range batch {
		if _, ok := reported[id]; !ok {
			res.retryable = append(res.retryable, id)
			s.tracker.AddRetried(1)
		}
	}
	return res
}

// chunk splits ids into consecutive batches of at most size.
func chunk(ids []domain.MessageID, size int) [][]domain.MessageID {
	if size < 1 {
		size = 1
	}
	var batches [][]domain.MessageID
	for i := 0; i < len(ids); i += size {
		j := i + size
		if j > len(ids) {
			j = len(ids)
		}
		batches = append(batches, ids[i:j])
	}
	return batches
}
