// Package config provides centralized configuration for the funding archiver.
// Configuration is loaded from defaults, an optional JSON file, and
// environment variable overrides, in ascending priority, then validated.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format accepted by run parameters.
const DateLayout = "2006-01-02"

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Indexer configuration
	Indexer IndexerConfig `json:"indexer"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive"`

	// Run configuration
	Run RunConfig `json:"run"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// IndexerConfig configures the remote indexing service client.
type IndexerConfig struct {
	BaseURL           string   `json:"base_url" env:"INDEXER_BASE_URL"`                     // Indexer base URL
	RateLimitRequests int      `json:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS"`       // Requests allowed per window
	RateLimitWindow   string   `json:"rate_limit_window" env:"RATE_LIMIT_WINDOW"`           // Budget window duration
	Timeout           string   `json:"timeout" env:"HTTP_TIMEOUT"`                          // Per-request HTTP timeout
	FetchLimit        int      `json:"fetch_limit" env:"FETCH_LIMIT"`                       // Funding entries requested per market per day
	ActiveStatuses    []string `json:"active_statuses" env:"ACTIVE_STATUSES"`               // Market statuses treated as active
}

// ArchiveConfig configures the on-disk archive layout.
type ArchiveConfig struct {
	DestRoot string `json:"dest_root" env:"ARCHIVE_DEST_ROOT"` // Destination root for archive writes
	DataRoot string `json:"data_root" env:"ARCHIVE_DATA_ROOT"` // Optional separate root for the merge baseline
}

// RunConfig configures the processing date range.
type RunConfig struct {
	StartDate      string `json:"start_date" env:"RUN_START_DATE"`           // First day of the historical backfill range
	DeploymentDate string `json:"deployment_date" env:"RUN_DEPLOYMENT_DATE"` // Optional single-day filter
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`             // Log level: debug, info, warn, error
	Format     string `json:"format" env:"LOG_FORMAT"`           // Log format: json, text
	Output     string `json:"output" env:"LOG_OUTPUT"`           // Output: stdout, stderr, file
	FilePath   string `json:"file_path" env:"LOG_FILE_PATH"`     // Log file path when output is file
	MaxSize    int    `json:"max_size" env:"LOG_MAX_SIZE"`       // Maximum log file size in MB
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS"` // Maximum rotated files kept
	MaxAge     int    `json:"max_age" env:"LOG_MAX_AGE"`         // Maximum log file age in days
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`       // Compress rotated files
}

// Manager handles configuration loading and validation.
type Manager struct {
	config     *AppConfig
	configPath string
	logger     *slog.Logger
}

// NewManager creates a configuration manager. configPath may be empty, in
// which case only defaults and environment variables apply.
func NewManager(configPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{configPath: configPath, logger: logger}
}

// Load loads the configuration from defaults, file, and environment, then
// validates it.
func (m *Manager) Load() (*AppConfig, error) {
	config := DefaultConfig()

	if m.configPath != "" {
		if err := m.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	m.loadFromEnv(config)

	if err := m.validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	m.logger.Debug("configuration loaded",
		"config_path", m.configPath,
		"base_url", config.Indexer.BaseURL,
		"dest_root", config.Archive.DestRoot,
		"log_level", config.Logging.Level)
	return config, nil
}

// Config returns the last loaded configuration.
func (m *Manager) Config() *AppConfig {
	return m.config
}

func (m *Manager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.logger.Debug("config file does not exist, using defaults", "path", m.configPath)
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", m.configPath, err)
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", m.configPath, err)
	}
	return nil
}

func (m *Manager) loadFromEnv(config *AppConfig) {
	if val := os.Getenv("INDEXER_BASE_URL"); val != "" {
		config.Indexer.BaseURL = val
	}
	if val := os.Getenv("RATE_LIMIT_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil {
			config.Indexer.RateLimitRequests = requests
		}
	}
	if val := os.Getenv("RATE_LIMIT_WINDOW"); val != "" {
		config.Indexer.RateLimitWindow = val
	}
	if val := os.Getenv("HTTP_TIMEOUT"); val != "" {
		config.Indexer.Timeout = val
	}
	if val := os.Getenv("FETCH_LIMIT"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil {
			config.Indexer.FetchLimit = limit
		}
	}
	if val := os.Getenv("ACTIVE_STATUSES"); val != "" {
		config.Indexer.ActiveStatuses = strings.Split(val, ",")
	}
	if val := os.Getenv("ARCHIVE_DEST_ROOT"); val != "" {
		config.Archive.DestRoot = val
	}
	if val := os.Getenv("ARCHIVE_DATA_ROOT"); val != "" {
		config.Archive.DataRoot = val
	}
	if val := os.Getenv("RUN_START_DATE"); val != "" {
		config.Run.StartDate = val
	}
	if val := os.Getenv("RUN_DEPLOYMENT_DATE"); val != "" {
		config.Run.DeploymentDate = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}
	if val := os.Getenv("LOG_FILE_PATH"); val != "" {
		config.Logging.FilePath = val
	}
}

func (m *Manager) validate(config *AppConfig) error {
	var errors []string

	if config.Indexer.BaseURL == "" {
		errors = append(errors, "indexer.base_url is required")
	}
	if config.Indexer.RateLimitRequests <= 0 {
		errors = append(errors, "indexer.rate_limit_requests must be greater than 0")
	}
	if _, err := time.ParseDuration(config.Indexer.RateLimitWindow); err != nil {
		errors = append(errors, fmt.Sprintf("indexer.rate_limit_window is not a valid duration: %v", err))
	}
	if _, err := time.ParseDuration(config.Indexer.Timeout); err != nil {
		errors = append(errors, fmt.Sprintf("indexer.timeout is not a valid duration: %v", err))
	}
	if config.Indexer.FetchLimit <= 0 {
		errors = append(errors, "indexer.fetch_limit must be greater than 0")
	}

	if config.Archive.DestRoot == "" {
		errors = append(errors, "archive.dest_root is required")
	}

	if _, err := time.Parse(DateLayout, config.Run.StartDate); err != nil {
		errors = append(errors, fmt.Sprintf("run.start_date must be formatted as %s: %v", DateLayout, err))
	}
	if config.Run.DeploymentDate != "" {
		if _, err := time.Parse(DateLayout, config.Run.DeploymentDate); err != nil {
			errors = append(errors, fmt.Sprintf("run.deployment_date must be formatted as %s: %v", DateLayout, err))
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errors = append(errors, "logging.level must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errors = append(errors, "logging.format must be one of: json, text")
	}
	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errors = append(errors, "logging.file_path is required when logging.output is file")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Window returns the parsed budget window.
func (c IndexerConfig) Window() time.Duration {
	window, err := time.ParseDuration(c.RateLimitWindow)
	if err != nil {
		return 10 * time.Second
	}
	return window
}

// HTTPTimeout returns the parsed per-request timeout.
func (c IndexerConfig) HTTPTimeout() time.Duration {
	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return timeout
}

// Start returns the parsed backfill start date.
func (c RunConfig) Start() (time.Time, error) {
	return time.Parse(DateLayout, c.StartDate)
}

// Deployment returns the parsed single-day filter, or nil when unset.
func (c RunConfig) Deployment() (*time.Time, error) {
	if c.DeploymentDate == "" {
		return nil, nil
	}
	date, err := time.Parse(DateLayout, c.DeploymentDate)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Indexer: IndexerConfig{
			BaseURL:           "https://api.dydx.exchange/v3",
			RateLimitRequests: 25,
			RateLimitWindow:   "10s",
			Timeout:           "30s",
			FetchLimit:        24,
			ActiveStatuses:    []string{"ACTIVE"},
		},
		Archive: ArchiveConfig{
			DestRoot: "./data",
		},
		Run: RunConfig{
			StartDate: "2021-01-01",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
}
