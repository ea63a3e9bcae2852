package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/infra/storage"
)

// RunRepo implements storage.RunRepository on PostgreSQL.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new PostgreSQL-backed run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// SaveRun archives a finished run and its permanent failures in one
// transaction.
func (r *RunRepo) SaveRun(ctx context.Context, summary *domain.Summary) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec := summary.Record()
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO sweep_runs (
			run_id, folder, mode, dry_run, matched, deleted, failed,
			not_processed, waves, cancelled, started_at, finished_at
		) VALUES (
			:run_id, :folder, :mode, :dry_run, :matched, :deleted, :failed,
			:not_processed, :waves, :cancelled, :started_at, :finished_at
		)`, rec)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, fm := range summary.Failed {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO failed_messages (run_id, message_id, status_code, reason)
			VALUES ($1, $2, $3, $4)`,
			summary.RunID, string(fm.ID), fm.StatusCode, fm.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert failed message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetRun retrieves a run record by id.
func (r *RunRepo) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT run_id, folder, mode, dry_run, matched, deleted, failed,
		       not_processed, waves, cancelled, started_at, finished_at
		FROM sweep_runs WHERE run_id = $1`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &rec, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []*domain.RunRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT run_id, folder, mode, dry_run, matched, deleted, failed,
		       not_processed, waves, cancelled, started_at, finished_at
		FROM sweep_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return recs, nil
}

// ListFailures retrieves the permanent failures recorded for a run.
func (r *RunRepo) ListFailures(ctx context.Context, runID string) ([]domain.FailedMessage, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT message_id, status_code, reason
		FROM failed_messages WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	var failures []domain.FailedMessage
	for rows.Next() {
		var (
			id     string
			status int
			reason string
		)
		if err := rows.Scan(&id, &status, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, domain.FailedMessage{
			ID:         domain.MessageID(id),
			StatusCode: status,
			Reason:     reason,
		})
	}
	return failures, rows.Err()
}
