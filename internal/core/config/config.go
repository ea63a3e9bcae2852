package config

import (
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
	redisclient "github.com/vietddude/mailsweep/internal/infra/redis"
	"github.com/vietddude/mailsweep/internal/infra/storage/postgres"
)

// Protocol caps enforced regardless of configured values.
const (
	MaxBatchSize = 20
	MaxPageSize  = 100
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Auth     AuthConfig         `yaml:"auth"`
	Filter   FilterConfig       `yaml:"filter"`
	Sweep    SweepConfig        `yaml:"sweep"`
	Logging  LoggingConfig      `yaml:"logging"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Report   ReportConfig       `yaml:"report"`
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AuthConfig holds identity-platform settings for the mailbox service.
type AuthConfig struct {
	ClientID       string `yaml:"client_id"`
	Tenant         string `yaml:"tenant"` // "consumers", "common", or a tenant ID
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FilterConfig describes the message selection filter.
type FilterConfig struct {
	Senders            []string `yaml:"senders"`
	SenderFile         string   `yaml:"sender_file"`
	UnreadOnly         bool     `yaml:"unread_only"`
	OlderThanDays      int      `yaml:"older_than_days"`
	NewerThanDays      int      `yaml:"newer_than_days"`
	ExcludeAttachments bool     `yaml:"exclude_attachments"`
	Folder             string   `yaml:"folder"`
}

// SweepConfig holds throttling, batching and retry knobs.
type SweepConfig struct {
	MaxWorkers         int     `yaml:"max_workers"`
	BatchSize          int     `yaml:"batch_size"`
	PageSize           int     `yaml:"page_size"`
	MinWorkers         int     `yaml:"min_workers"`
	MinBatchSize       int     `yaml:"min_batch_size"`
	AdaptiveThrottle   bool    `yaml:"adaptive_throttle"`
	HighRetryRate      float64 `yaml:"high_retry_rate"`
	MaxRetryWaves      int     `yaml:"max_retry_waves"`
	RetryBaseWaitSec   int     `yaml:"retry_base_wait_sec"`
	SubmitSleepMS      int     `yaml:"submit_sleep_ms"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	HardDelete         bool    `yaml:"hard_delete"`
	ConfirmThreshold   int     `yaml:"confirm_threshold"`
	CheckpointsEnabled bool    `yaml:"checkpoints_enabled"`
}

// ReportConfig controls the optional CSV report of matched messages.
type ReportConfig struct {
	CSVPath  string `yaml:"csv_path"`
	RowLimit int    `yaml:"row_limit"` // 0 = unlimited
}

// RetryBaseWait returns the base wait for exponential backoff between waves.
func (s SweepConfig) RetryBaseWait() time.Duration {
	return time.Duration(s.RetryBaseWaitSec) * time.Second
}

// SubmitSleep returns the per-worker pause between batch submissions.
func (s SweepConfig) SubmitSleep() time.Duration {
	return time.Duration(s.SubmitSleepMS) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout.
func (s SweepConfig) RequestTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// AuthTimeout returns the maximum time to wait for interactive sign-in.
func (a AuthConfig) AuthTimeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DeleteMode returns the configured delete semantics.
func (s SweepConfig) DeleteMode() domain.DeleteMode {
	if s.HardDelete {
		return domain.DeleteModeHard
	}
	return domain.DeleteModeSoft
}

// FilterSpec materializes the immutable filter for a run starting at now.
func (f FilterConfig) FilterSpec(now time.Time) domain.FilterSpec {
	spec := domain.FilterSpec{
		Senders:            append([]string(nil), f.Senders...),
		UnreadOnly:         f.UnreadOnly,
		ExcludeAttachments: f.ExcludeAttachments,
		Folder:             f.Folder,
	}
	if f.OlderThanDays > 0 {
		spec.OlderThan = now.AddDate(0, 0, -f.OlderThanDays)
	}
	if f.NewerThanDays > 0 {
		spec.NewerThan = now.AddDate(0, 0, -f.NewerThanDays)
	}
	return spec
}
