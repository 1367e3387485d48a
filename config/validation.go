package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"leaderbot/leaderboard"
)

// Validate checks the fields that are set. A missing leaderboard id or
// credentials fails the cycle at start instead, so the failure is reported.
func (b *BotConfig) Validate() error {
	var errs []string

	if b.LeaderboardID < 0 {
		errs = append(errs, "leaderboard_id cannot be negative")
	}

	if b.Year != 0 && b.Year < 2015 {
		errs = append(errs, "year must be 2015 or later")
	}

	if b.ViewKey != "" && b.SessionCookie != "" {
		errs = append(errs, "only one of view_key and session_cookie can be set")
	}

	if b.RequestInterval < 0 {
		errs = append(errs, "request_interval cannot be negative")
	}

	if b.RequestTimeout <= 0 {
		errs = append(errs, "request_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if s.ScheduleInterval < 0 {
		errs = append(errs, "schedule_interval cannot be negative")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

var validAdapters = []string{"memory", "file", "redis", "sql"}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	if !slices.Contains(validAdapters, s.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
		if s.SQL.DSN == "" {
			errs = append(errs, "sql config: dsn cannot be empty")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Dir == "" {
		return errors.New("dir cannot be empty")
	}
	return nil
}

var validReporters = []string{"console", "slack", "discord", "webhook"}

// Validate checks the reporter kinds and the settings of each enabled kind.
func (r *ReporterConfig) Validate() error {
	var errs []string

	if len(r.Kinds) == 0 {
		errs = append(errs, "at least one reporter kind is required")
	}

	if _, err := leaderboard.ParseSortOrder(string(r.SortOrder)); err != nil {
		errs = append(errs, err.Error())
	}

	seen := make(map[string]bool, len(r.Kinds))
	for _, kind := range r.Kinds {
		if seen[kind] {
			errs = append(errs, fmt.Sprintf("reporter %q listed twice", kind))
			continue
		}
		seen[kind] = true

		var err error
		switch kind {
		case "console":
		case "slack":
			err = r.Slack.Validate()
		case "discord":
			err = r.Discord.Validate()
		case "webhook":
			if len(r.Webhook.Endpoints) == 0 {
				err = errors.New("webhook endpoints cannot be empty")
			}
		default:
			err = fmt.Errorf("unknown reporter %q, must be one of: %s", kind, strings.Join(validReporters, ", "))
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	if !slices.Contains(validOutputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
