// Package health provides run health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the run.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
)

// RunHealth contains health metrics for the active sweep run.
type RunHealth struct {
	Status            SystemStatus `json:"status"`
	Wave              int          `json:"wave"`
	Processed         int64        `json:"processed"`
	Succeeded         int64        `json:"succeeded"`
	Retried           int64        `json:"retried"`
	PermanentlyFailed int64        `json:"permanently_failed"`
	Remaining         int64        `json:"remaining"`
	Workers           int          `json:"workers"`
	BatchSize         int          `json:"batch_size"`
	Database          string       `json:"database,omitempty"`
}
