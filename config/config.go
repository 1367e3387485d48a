package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"leaderbot/adapters/redis"
	"leaderbot/adapters/sqlx"
	"leaderbot/core"
	"leaderbot/engine"
	"leaderbot/integrations/aoc"
	"leaderbot/integrations/discord"
	"leaderbot/integrations/slack"
	"leaderbot/leaderboard"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	Environment Environment `json:"environment" yaml:"environment" env:"LEADERBOT_ENV"`

	// Monitored leaderboard and how to reach it
	Bot BotConfig `json:"bot" yaml:"bot"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Where change sets and failures are announced
	Reporter ReporterConfig `json:"reporter" yaml:"reporter"`

	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security" yaml:"security"`

	// Cycle policy
	Policy PolicyConfig `json:"policy" yaml:"policy"`
}

// BotConfig identifies the leaderboard. Exactly one of ViewKey and SessionCookie is set.
type BotConfig struct {
	Year            int           `json:"year" yaml:"year" env:"LEADERBOT_YEAR"`
	LeaderboardID   int64         `json:"leaderboard_id" yaml:"leaderboard_id" env:"LEADERBOT_LEADERBOARD_ID"`
	ViewKey         string        `json:"view_key" yaml:"view_key" env:"LEADERBOT_VIEW_KEY"`
	SessionCookie   string        `json:"session_cookie" yaml:"session_cookie" env:"LEADERBOT_SESSION_COOKIE"`
	BaseURL         string        `json:"aoc_base_url" yaml:"aoc_base_url" env:"LEADERBOT_AOC_BASE_URL"`
	UserAgent       string        `json:"user_agent" yaml:"user_agent" env:"LEADERBOT_USER_AGENT"`
	RequestInterval time.Duration `json:"request_interval" yaml:"request_interval" env:"LEADERBOT_REQUEST_INTERVAL"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout" env:"LEADERBOT_REQUEST_TIMEOUT"`
}

// Credentials returns the configured access credentials.
func (b BotConfig) Credentials() core.Credentials {
	if b.SessionCookie != "" && b.ViewKey == "" {
		return core.SessionCookie(b.SessionCookie)
	}
	return core.ViewKey(b.ViewKey)
}

// Engine returns the cycle configuration. A zero year resolves to the current year.
func (b BotConfig) Engine() engine.StaticConfig {
	return engine.NewStaticConfig(b.Year, core.LeaderboardID(b.LeaderboardID), b.Credentials())
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" yaml:"adapter" env:"LEADERBOT_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" yaml:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty" yaml:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty" yaml:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Dir string `json:"dir" yaml:"dir" env:"LEADERBOT_STORAGE_FILE_DIR"`
}

// ReporterConfig lists the enabled reporters and their settings.
type ReporterConfig struct {
	Kinds     []string              `json:"kinds" yaml:"kinds" env:"LEADERBOT_REPORTERS"`
	SortOrder leaderboard.SortOrder `json:"sort_order" yaml:"sort_order" env:"LEADERBOT_SORT_ORDER"`
	Slack     slack.Config          `json:"slack,omitempty" yaml:"slack,omitempty"`
	Discord   discord.Config        `json:"discord,omitempty" yaml:"discord,omitempty"`
	Webhook   WebhookConfig         `json:"webhook,omitempty" yaml:"webhook,omitempty"`
}

// WebhookConfig holds the generic JSON webhook settings.
type WebhookConfig struct {
	Endpoints []string          `json:"endpoints" yaml:"endpoints" env:"LEADERBOT_WEBHOOK_ENDPOINTS"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" env:"LEADERBOT_WEBHOOK_HEADERS"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" env:"LEADERBOT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"LEADERBOT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" yaml:"cors_origin" env:"LEADERBOT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"LEADERBOT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"LEADERBOT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"LEADERBOT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"LEADERBOT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"LEADERBOT_SERVER_SHUTDOWN_TIMEOUT"`
	ScheduleInterval  time.Duration `json:"schedule_interval" yaml:"schedule_interval" env:"LEADERBOT_SCHEDULE_INTERVAL"`
	RunTimeout        time.Duration `json:"run_timeout" yaml:"run_timeout" env:"LEADERBOT_RUN_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"LEADERBOT_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"LEADERBOT_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"LEADERBOT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" env:"LEADERBOT_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	// Enabled serves /metrics next to the status API.
	Enabled bool `json:"enabled" yaml:"enabled" env:"LEADERBOT_METRICS_ENABLED"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"LEADERBOT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"LEADERBOT_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" env:"LEADERBOT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size" env:"LEADERBOT_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"LEADERBOT_SECURITY_RATE_LIMIT_CLEANUP"`
}

// PolicyConfig mirrors engine.Policy.
type PolicyConfig struct {
	SaveOnReportFailure bool `json:"save_on_report_failure" yaml:"save_on_report_failure" env:"LEADERBOT_SAVE_ON_REPORT_FAILURE"`
	ReportRegressions   bool `json:"report_regressions" yaml:"report_regressions" env:"LEADERBOT_REPORT_REGRESSIONS"`
}

// Engine converts to engine.Policy.
func (p PolicyConfig) Engine() engine.Policy {
	return engine.Policy{SaveOnReportFailure: p.SaveOnReportFailure, ReportRegressions: p.ReportRegressions}
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml":
	default:
		return errors.New("config file must have .json, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Environment
// variables override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Bot: BotConfig{
			BaseURL:         aoc.DefaultBaseURL,
			UserAgent:       aoc.DefaultUserAgent,
			RequestInterval: aoc.DefaultInterval,
			RequestTimeout:  30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Dir: "./data",
			},
		},
		Reporter: ReporterConfig{
			Kinds:     []string{"console"},
			SortOrder: leaderboard.SortByStars,
			Slack: slack.Config{
				Username: slack.DefaultUsername,
				IconURL:  slack.DefaultIconURL,
			},
		},
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			ScheduleInterval:  15 * time.Minute,
			RunTimeout:        2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Policy: PolicyConfig{
			SaveOnReportFailure: engine.DefaultPolicy().SaveOnReportFailure,
			ReportRegressions:   engine.DefaultPolicy().ReportRegressions,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		err  error
	}{
		{"bot", c.Bot.Validate()},
		{"server", c.Server.Validate()},
		{"storage", c.Storage.Validate()},
		{"reporter", c.Reporter.Validate()},
		{"logging", c.Logging.Validate()},
		{"security", c.Security.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, s.err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

const redacted = "[REDACTED]"

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	redact := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	redact(&cfg.Bot.ViewKey)
	redact(&cfg.Bot.SessionCookie)
	redact(&cfg.Storage.SQL.DSN)
	redact(&cfg.Storage.Redis.Password)
	redact(&cfg.Reporter.Slack.WebhookURL)
	redact(&cfg.Reporter.Discord.WebhookURL)
	if len(cfg.Reporter.Webhook.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Reporter.Webhook.Headers))
		for k := range cfg.Reporter.Webhook.Headers {
			headers[k] = redacted
		}
		cfg.Reporter.Webhook.Headers = headers
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{redacted}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
