package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/brandlens/brandlens/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Browser     BrowserConfig   `toml:"browser"`
	Captcha     CaptchaConfig   `toml:"captcha"`
	Session     SessionConfig   `toml:"session"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Auth        AuthConfig      `toml:"auth"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Sessions    string `toml:"sessions"`    // Directory for persisted browser session blobs
	Screenshots string `toml:"screenshots"` // Directory for evidence screenshots
	Exports     string `toml:"exports"`     // Directory for JSON/CSV exports
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// CrawlerConfig controls task execution and adapter behavior
type CrawlerConfig struct {
	APIModeEnabled bool     `toml:"api_mode_enabled"` // Prefer vendor HTTP APIs over browser automation
	APIModeEngines []string `toml:"api_mode_engines"` // Engines eligible for API mode
	MaxWorkers     int      `toml:"max_workers" validate:"gte=1"`
	// RateLimitGap is the minimum gap between queries on the same engine
	RateLimitGap time.Duration `toml:"rate_limit_gap"`
	// CompletionTimeout caps wait-for-completion per query
	CompletionTimeout time.Duration `toml:"completion_timeout"`
	// CompletionTimeoutWebSearch applies when engine web search is enabled
	CompletionTimeoutWebSearch time.Duration `toml:"completion_timeout_web_search"`
	MaxTurns                   int           `toml:"max_turns" validate:"gte=1"` // Clarification follow-up budget per query
	Screenshots                bool          `toml:"screenshots"`                // Capture a final screenshot per query
	// StaleTaskThreshold controls the heartbeat sweep for abandoned running tasks
	StaleTaskThreshold time.Duration `toml:"stale_task_threshold"`
}

// BrowserConfig controls the stealth Chrome contexts used by engine adapters
type BrowserConfig struct {
	Headless       bool          `toml:"headless"`
	NoSandbox      bool          `toml:"no_sandbox"`
	DisableGPU     bool          `toml:"disable_gpu"`
	NavigateTimeout time.Duration `toml:"navigate_timeout"`
	Locale         string        `toml:"locale"`
	Timezone       string        `toml:"timezone"`
}

// CaptchaConfig controls challenge resolution strategy selection
type CaptchaConfig struct {
	Strategy             string        `toml:"strategy" validate:"oneof=manual auto_wait api smart"`
	ManualTimeoutSeconds int           `toml:"manual_timeout_seconds" validate:"gte=1"`
	APIKey               string        `toml:"api_key"`         // External solver API key
	SolverBaseURL        string        `toml:"solver_base_url"` // External solver endpoint
	SolverPollTimeout    time.Duration `toml:"solver_poll_timeout"`
}

// SessionConfig controls browser session persistence
type SessionConfig struct {
	TTLHours int `toml:"ttl_hours" validate:"gte=1"`
}

// SchedulerConfig controls periodic sweep cadences
type SchedulerConfig struct {
	Enabled                 bool   `toml:"enabled"`
	AutoCheckupSchedule     string `toml:"auto_checkup_schedule"`
	DriftSweepSchedule      string `toml:"drift_sweep_schedule"`
	UsageResetSchedule      string `toml:"usage_reset_schedule"`
	ExpiryReminderSchedule  string `toml:"expiry_reminder_schedule"`
	RetestReminderSchedule  string `toml:"retest_reminder_schedule"`
	CleanupSchedule         string `toml:"cleanup_schedule"`
	AutoCheckupIntervalDays int    `toml:"auto_checkup_interval_days" validate:"gte=1"`
	RetestAfterDays         int    `toml:"retest_after_days" validate:"gte=1"`
	UsageResetAfterDays     int    `toml:"usage_reset_after_days" validate:"gte=1"`
	EventRetentionDays      int    `toml:"event_retention_days" validate:"gte=1"`
}

// AuthConfig carries gates surfaced to the API layer
type AuthConfig struct {
	InviteCodeRequired bool `toml:"invite_code_required"`
	// MasterSecret keys the credential vault. There is no default; the vault
	// refuses to start until it is set here or via BRANDLENS_MASTER_SECRET.
	// Changing it invalidates every stored ciphertext.
	MasterSecret string `toml:"master_secret"`
}

// WebSocketConfig contains configuration for the event broadcast hub
type WebSocketConfig struct {
	Enabled       bool     `toml:"enabled"`
	AllowedEvents []string `toml:"allowed_events"` // Empty list allows all events
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in brandlens.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Filesystem: FilesystemConfig{
				Sessions:    "./data/sessions",
				Screenshots: "./data/screenshots",
				Exports:     "./data/exports",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Crawler: CrawlerConfig{
			APIModeEnabled: true,
			APIModeEngines: []string{
				string(models.EngineDeepSeek),
				string(models.EngineQwen),
				string(models.EngineKimi),
				string(models.EnginePerplexity),
				string(models.EngineChatGPT),
			},
			MaxWorkers:                 3,
			RateLimitGap:               200 * time.Millisecond,
			CompletionTimeout:          120 * time.Second,
			CompletionTimeoutWebSearch: 180 * time.Second,
			MaxTurns:                   2,
			Screenshots:                true,
			StaleTaskThreshold:         15 * time.Minute,
		},
		Browser: BrowserConfig{
			Headless:        true,
			NoSandbox:       false,
			DisableGPU:      true,
			NavigateTimeout: 45 * time.Second,
			Locale:          "en-US",
			Timezone:        "America/New_York",
		},
		Captcha: CaptchaConfig{
			Strategy:             "smart",
			ManualTimeoutSeconds: 300,
			SolverBaseURL:        "https://2captcha.com",
			SolverPollTimeout:    2 * time.Minute,
		},
		Session: SessionConfig{
			TTLHours: 24,
		},
		Scheduler: SchedulerConfig{
			Enabled:                 true,
			AutoCheckupSchedule:     "0 * * * *",  // hourly
			DriftSweepSchedule:      "30 2 * * *", // daily
			UsageResetSchedule:      "0 3 * * *",  // daily
			ExpiryReminderSchedule:  "0 9 * * *",  // daily
			RetestReminderSchedule:  "30 9 * * *", // daily
			CleanupSchedule:         "0 4 * * 0",  // weekly
			AutoCheckupIntervalDays: 7,
			RetestAfterDays:         14,
			UsageResetAfterDays:     25,
			EventRetentionDays:      90,
		},
		Auth: AuthConfig{
			InviteCodeRequired: false,
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier files. Priority: env > last file > ... > first file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BRANDLENS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("BRANDLENS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BRANDLENS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("BRANDLENS_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("BRANDLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if secret := os.Getenv("BRANDLENS_MASTER_SECRET"); secret != "" {
		config.Auth.MasterSecret = secret
	}
	if key := os.Getenv("BRANDLENS_CAPTCHA_API_KEY"); key != "" {
		config.Captcha.APIKey = key
	}
	if v := os.Getenv("BRANDLENS_API_MODE"); v != "" {
		config.Crawler.APIModeEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("BRANDLENS_SESSION_TTL_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			config.Session.TTLHours = h
		}
	}
}

// ApplyFlagOverrides applies CLI flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks structural constraints on the loaded configuration
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, e := range c.Crawler.APIModeEngines {
		if _, err := models.ParseEngine(e); err != nil {
			return fmt.Errorf("invalid configuration: api_mode_engines: %w", err)
		}
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// SessionTTL returns the session freshness window as a duration
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// APIEligible reports whether an engine may use the vendor HTTP API
func (c *Config) APIEligible(engine models.Engine) bool {
	if !c.Crawler.APIModeEnabled {
		return false
	}
	for _, e := range c.Crawler.APIModeEngines {
		if strings.EqualFold(e, string(engine)) {
			return true
		}
	}
	return false
}
