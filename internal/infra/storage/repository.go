package storage

import (
	"context"
	"errors"

	"github.com/vietddude/mailsweep/internal/core/domain"
)

var (
	// ErrRunNotFound is returned when a run record doesn't exist
	ErrRunNotFound = errors.New("run not found")
)

// RunRepository archives completed sweep runs for later inspection.
type RunRepository interface {
	// SaveRun archives a finished run and its permanent failures
	SaveRun(ctx context.Context, summary *domain.Summary) error

	// GetRun retrieves a run record by id
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)

	// ListRuns retrieves the most recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error)

	// ListFailures retrieves the permanent failures recorded for a run
	ListFailures(ctx context.Context, runID string) ([]domain.FailedMessage, error)
}
