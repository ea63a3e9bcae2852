package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/mailsweep/internal/core/domain"
)

// checkpointTTL bounds how long an abandoned checkpoint lingers.
const checkpointTTL = 24 * time.Hour

// CheckpointStore persists the pending id set between retry waves so an
// interrupted run leaves an inspectable trail.
type CheckpointStore struct {
	rdb *redis.Client
}

// NewCheckpointStore creates a checkpoint store on an existing client.
func NewCheckpointStore(client *Client) *CheckpointStore {
	return &CheckpointStore{rdb: client.rdb}
}

type checkpointRecord struct {
	Wave    int                `json:"wave"`
	IDs     []domain.MessageID `json:"ids"`
	SavedAt time.Time          `json:"saved_at"`
}

func checkpointKey(runID string) string {
	return fmt.Sprintf("sweep:pending:%s", runID)
}

// SavePending overwrites the checkpoint for runID with the ids still
// awaiting the given wave.
func (s *CheckpointStore) SavePending(ctx context.Context, runID string, wave int, ids []domain.MessageID) error {
	data, err := json.Marshal(checkpointRecord{
		Wave:    wave,
		IDs:     ids,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.rdb.Set(ctx, checkpointKey(runID), data, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	return nil
}

// LoadPending returns the saved wave and pending ids for runID. A missing
// checkpoint returns wave 0 and no ids.
func (s *CheckpointStore) LoadPending(ctx context.Context, runID string) (int, []domain.MessageID, error) {
	data, err := s.rdb.Get(ctx, checkpointKey(runID)).Bytes()
	if err == redis.Nil {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	var rec checkpointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return rec.Wave, rec.IDs, nil
}

// Clear removes the checkpoint for runID.
func (s *CheckpointStore) Clear(ctx context.Context, runID string) error {
	if err := s.rdb.Del(ctx, checkpointKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
