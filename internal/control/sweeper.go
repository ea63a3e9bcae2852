package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/mailsweep/internal/core/config"
	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/infra/graph"
	redisclient "github.com/vietddude/mailsweep/internal/infra/redis"
	"github.com/vietddude/mailsweep/internal/infra/storage"
	"github.com/vietddude/mailsweep/internal/infra/storage/memory"
	"github.com/vietddude/mailsweep/internal/infra/storage/postgres"
	"github.com/vietddude/mailsweep/internal/report"
	"github.com/vietddude/mailsweep/internal/sweep/health"
	"github.com/vietddude/mailsweep/internal/sweep/progress"
	"github.com/vietddude/mailsweep/internal/sweep/scheduler"
	"github.com/vietddude/mailsweep/internal/sweep/selector"
	"github.com/vietddude/mailsweep/internal/sweep/throttle"
	"github.com/vietddude/mailsweep/internal/sweep/wave"
)

// ConfirmFunc is asked before deletion when the match count crosses the
// configured threshold. Returning false aborts the run without deleting.
type ConfirmFunc func(matched int) bool

// Options are per-invocation switches passed down from the CLI.
type Options struct {
	DryRun    bool
	AssumeYes bool
	Confirm   ConfirmFunc
	Notify    graph.Notify
}

// Sweeper is the main application struct that manages the sweep lifecycle.
type Sweeper struct {
	cfg          config.AppConfig
	opts         Options
	tracker      *progress.Tracker
	ctrl         *throttle.Controller
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	runRepo      storage.RunRepository
	checkpoint   wave.Checkpoint
	log          *slog.Logger
}

// NewSweeper creates a Sweeper with all dependencies initialized.
func NewSweeper(cfg config.AppConfig, opts Options) (*Sweeper, error) {
	// 1. Initialize Storage
	var runRepo storage.RunRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, err
		}
		runRepo = postgres.NewRunRepo(db)
		slog.Info("Using PostgreSQL run archive")
	} else {
		runRepo = memory.NewRunRepo()
		slog.Info("Using in-memory run archive")
	}

	// 2. Initialize Redis checkpoints
	var redisClient *redisclient.Client
	var checkpoint wave.Checkpoint
	if cfg.Redis.URL != "" && cfg.Sweep.CheckpointsEnabled {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, checkpoints disabled", "error", err)
		} else {
			checkpoint = redisclient.NewCheckpointStore(redisClient)
		}
	}

	// 3. Progress, throttle and health
	tracker := progress.NewTracker()
	ctrl := throttle.NewController(cfg.Sweep.MaxWorkers, cfg.Sweep.BatchSize, throttle.Config{
		Enabled:       cfg.Sweep.AdaptiveThrottle,
		MinWorkers:    cfg.Sweep.MinWorkers,
		MinBatchSize:  cfg.Sweep.MinBatchSize,
		HighRetryRate: cfg.Sweep.HighRetryRate,
		StepPause:     throttle.DefaultConfig().StepPause,
	})
	var pinger health.Pinger
	if db != nil {
		pinger = db
	}
	healthServer := health.NewServer(health.NewMonitor(tracker, ctrl, pinger), cfg.Server.Port)

	return &Sweeper{
		cfg:          cfg,
		opts:         opts,
		tracker:      tracker,
		ctrl:         ctrl,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		runRepo:      runRepo,
		checkpoint:   checkpoint,
		log:          slog.Default().With("component", "sweeper"),
	}, nil
}

// TestAuth runs the sign-in flow and lists a folder sample to verify the
// credential works, without touching any message.
func (s *Sweeper) TestAuth(ctx context.Context) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	folders, err := client.ListFolderSample(ctx)
	if err != nil {
		return fmt.Errorf("auth verification failed: %w", err)
	}
	for _, f := range folders {
		s.log.Info("folder visible", "name", f.DisplayName, "messages", f.TotalItemCount)
	}
	return nil
}

// Run executes one complete sweep: sign in, select, confirm, delete in
// retry waves, archive. Cancellation still returns a clean Summary; an
// error means either a failure before deletion could start, or a fatal
// mid-run failure such as a revoked credential. In the latter case the
// partial Summary is returned and archived alongside the error.
func (s *Sweeper) Run(ctx context.Context) (*domain.Summary, error) {
	started := time.Now()
	runID := uuid.NewString()
	s.log.Info("starting sweep run",
		"run_id", runID, "folder", s.cfg.Filter.Folder, "dry_run", s.opts.DryRun)

	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Debug("health server stopped", "error", err)
		}
	}()
	defer s.shutdownHealth()

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	folderID, err := client.ResolveFolder(ctx, s.cfg.Filter.Folder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder %q: %w", s.cfg.Filter.Folder, err)
	}

	spec := s.cfg.Filter.FilterSpec(started)
	candidates, err := selector.New(client, s.cfg.Sweep.PageSize).Select(ctx, folderID, spec)
	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}
	s.tracker.AddSelected(len(candidates))

	summary := &domain.Summary{
		RunID:   runID,
		Folder:  s.cfg.Filter.Folder,
		Mode:    s.cfg.Sweep.DeleteMode(),
		DryRun:  s.opts.DryRun,
		Matched: len(candidates),
		Started: started,
	}

	if s.cfg.Report.CSVPath != "" {
		if err := report.WriteCSV(s.cfg.Report.CSVPath, candidates, s.cfg.Report.RowLimit); err != nil {
			s.log.Warn("failed to write match report", "error", err)
		}
	}

	if len(candidates) == 0 {
		s.log.Info("no messages matched the filter")
		summary.Finished = time.Now()
		s.archive(ctx, summary)
		return summary, nil
	}

	if !s.confirmed(len(candidates)) {
		s.log.Info("run aborted at confirmation prompt", "matched", len(candidates))
		summary.Cancelled = true
		summary.NotProcessed = len(candidates)
		summary.Finished = time.Now()
		s.archive(ctx, summary)
		return summary, nil
	}

	ids := make([]domain.MessageID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	var deleter scheduler.Deleter = client
	if s.opts.DryRun {
		deleter = noopDeleter{}
	}

	reportCtx, stopReporting := context.WithCancel(ctx)
	defer stopReporting()
	go s.reportProgress(reportCtx, progress.NewLogReporter())

	sched := scheduler.New(deleter, s.tracker, scheduler.Config{
		Mode:        s.cfg.Sweep.DeleteMode(),
		SubmitSleep: s.cfg.Sweep.SubmitSleep(),
	})
	mgr := wave.NewManager(sched, s.ctrl, s.tracker, s.checkpoint, wave.Config{
		MaxRetryWaves: s.cfg.Sweep.MaxRetryWaves,
		RetryBaseWait: s.cfg.Sweep.RetryBaseWait(),
	})

	res, runErr := mgr.Run(ctx, runID, ids)

	summary.Deleted = res.Deleted
	summary.Failed = res.Failed
	summary.NotProcessed = res.NotProcessed
	summary.Waves = res.Waves
	summary.Cancelled = res.Cancelled
	summary.Finished = time.Now()

	s.archive(ctx, summary)
	if runErr != nil {
		s.log.Error("sweep run aborted",
			"run_id", runID,
			"deleted", summary.Deleted,
			"not_processed", summary.NotProcessed,
			"error", runErr)
		return summary, runErr
	}
	s.log.Info("sweep run finished",
		"run_id", runID,
		"deleted", summary.Deleted,
		"failed", len(summary.Failed),
		"not_processed", summary.NotProcessed,
		"waves", summary.Waves,
		"cancelled", summary.Cancelled)
	return summary, nil
}

// Close releases held connections.
func (s *Sweeper) Close() {
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// connect signs in and builds an authenticated client.
func (s *Sweeper) connect(ctx context.Context) (*graph.Client, error) {
	tokens, err := graph.Authenticate(ctx, graph.AuthOptions{
		ClientID: s.cfg.Auth.ClientID,
		Tenant:   s.cfg.Auth.Tenant,
		Timeout:  s.cfg.Auth.AuthTimeout(),
	}, s.opts.Notify)
	if err != nil {
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}
	return graph.NewClient(graph.Config{
		Timeout:    s.cfg.Sweep.RequestTimeout(),
		MaxRetries: 3,
	}, tokens), nil
}

// confirmed applies the pre-deletion confirmation policy.
func (s *Sweeper) confirmed(matched int) bool {
	if s.opts.AssumeYes || s.opts.DryRun {
		return true
	}
	if matched < s.cfg.Sweep.ConfirmThreshold {
		return true
	}
	if s.opts.Confirm == nil {
		return true
	}
	return s.opts.Confirm(matched)
}

// archive stores the summary even when the run context is cancelled.
func (s *Sweeper) archive(ctx context.Context, summary *domain.Summary) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.runRepo.SaveRun(saveCtx, summary); err != nil {
		s.log.Warn("failed to archive run", "run_id", summary.RunID, "error", err)
	}
}

// reportProgress emits a progress snapshot at a bounded cadence until the
// delete phase ends.
func (s *Sweeper) reportProgress(ctx context.Context, reporter progress.Reporter) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reporter.Report(s.tracker.Snapshot())
		}
	}
}

func (s *Sweeper) shutdownHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.healthServer.Stop(ctx)
}

// noopDeleter reports success for every id without calling the mailbox
// service. Selection and listing still hit the network in dry-run mode;
// only deletion is suppressed.
type noopDeleter struct{}

func (noopDeleter) DeleteBatch(ctx context.Context, ids []domain.MessageID, mode domain.DeleteMode) ([]domain.SubResult, error) {
	results := make([]domain.SubResult, len(ids))
	for i, id := range ids {
		results[i] = domain.SubResult{ID: id, StatusCode: 204, Class: domain.ClassSuccess}
	}
	return results, nil
}
