package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	clamp(&cfg)

	if cfg.Filter.SenderFile != "" {
		senders, err := loadSenderFile(cfg.Filter.SenderFile)
		if err != nil {
			return nil, err
		}
		cfg.Filter.Senders = dedupe(append(cfg.Filter.Senders, senders...))
	} else {
		cfg.Filter.Senders = dedupe(cfg.Filter.Senders)
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.Tenant == "" {
		cfg.Auth.Tenant = "consumers"
	}
	if cfg.Auth.TimeoutSeconds == 0 {
		cfg.Auth.TimeoutSeconds = 600
	}
	if cfg.Filter.Folder == "" {
		cfg.Filter.Folder = "inbox"
	}
	s := &cfg.Sweep
	if s.MaxWorkers == 0 {
		s.MaxWorkers = 6
	}
	if s.BatchSize == 0 {
		s.BatchSize = MaxBatchSize
	}
	if s.PageSize == 0 {
		s.PageSize = MaxPageSize
	}
	if s.MinWorkers == 0 {
		s.MinWorkers = 1
	}
	if s.MinBatchSize == 0 {
		s.MinBatchSize = 5
	}
	if s.HighRetryRate == 0 {
		s.HighRetryRate = 0.15
	}
	if s.MaxRetryWaves == 0 {
		s.MaxRetryWaves = 6
	}
	if s.RetryBaseWaitSec == 0 {
		s.RetryBaseWaitSec = 5
	}
	if s.TimeoutSeconds == 0 {
		s.TimeoutSeconds = 30
	}
	if s.ConfirmThreshold == 0 {
		s.ConfirmThreshold = 500
	}
}

// clamp enforces the remote service's hard caps no matter what was supplied.
func clamp(cfg *AppConfig) {
	s := &cfg.Sweep
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.BatchSize > MaxBatchSize {
		s.BatchSize = MaxBatchSize
	}
	if s.PageSize < 1 || s.PageSize > MaxPageSize {
		s.PageSize = MaxPageSize
	}
	if s.MinBatchSize < 1 {
		s.MinBatchSize = 1
	}
	if s.MinBatchSize > MaxBatchSize {
		s.MinBatchSize = MaxBatchSize
	}
	if s.MinWorkers < 1 {
		s.MinWorkers = 1
	}
	if s.MaxWorkers < s.MinWorkers {
		s.MaxWorkers = s.MinWorkers
	}
	if s.MinBatchSize > s.BatchSize {
		s.MinBatchSize = s.BatchSize
	}
	if s.MaxRetryWaves < 1 {
		s.MaxRetryWaves = 1
	}
}

// Validate checks that a runnable sweep is described.
func (cfg *AppConfig) Validate() error {
	if cfg.Auth.ClientID == "" {
		return fmt.Errorf("auth.client_id is required (or set MAILSWEEP_CLIENT_ID)")
	}
	if len(cfg.Filter.Senders) == 0 && !cfg.Filter.UnreadOnly {
		return fmt.Errorf("filter: provide senders or set unread_only to target all unread")
	}
	return nil
}

// loadSenderFile reads one sender address per line; '#' and ';' lines are comments.
func loadSenderFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sender file: %w", err)
	}
	defer f.Close()

	var senders []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		senders = append(senders, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sender file: %w", err)
	}
	return senders, nil
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
