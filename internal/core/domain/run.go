package domain

import "time"

// Progress is a point-in-time snapshot of sweep counters,
// forwarded to progress reporters at a bounded cadence.
type Progress struct {
	Processed          int64
	Succeeded          int64
	Retried            int64
	PermanentlyFailed  int64
	EstimatedRemaining int64
}

// FailedMessage records a message that ended up Permanent.
type FailedMessage struct {
	ID         MessageID
	StatusCode int
	Reason     string
}

// Summary is the final outcome of a sweep run. It is assembled exactly
// once, when the retry wave machine reaches its terminal state.
type Summary struct {
	RunID        string
	Folder       string
	Mode         DeleteMode
	DryRun       bool
	Matched      int
	Deleted      int
	Failed       []FailedMessage
	NotProcessed int
	Waves        int
	Cancelled    bool
	Started      time.Time
	Finished     time.Time
}

// RunRecord is the archived form of a Summary.
type RunRecord struct {
	RunID        string    `db:"run_id"`
	Folder       string    `db:"folder"`
	Mode         string    `db:"mode"`
	DryRun       bool      `db:"dry_run"`
	Matched      int       `db:"matched"`
	Deleted      int       `db:"deleted"`
	Failed       int       `db:"failed"`
	NotProcessed int       `db:"not_processed"`
	Waves        int       `db:"waves"`
	Cancelled    bool      `db:"cancelled"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
}

// Record flattens a Summary into its archived form.
func (s *Summary) Record() *RunRecord {
	return &RunRecord{
		RunID:        s.RunID,
		Folder:       s.Folder,
		Mode:         string(s.Mode),
		DryRun:       s.DryRun,
		Matched:      s.Matched,
		Deleted:      s.Deleted,
		Failed:       len(s.Failed),
		NotProcessed: s.NotProcessed,
		Waves:        s.Waves,
		Cancelled:    s.Cancelled,
		StartedAt:    s.Started,
		FinishedAt:   s.Finished,
	}
}
