package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	manager := NewManager("", nil)
	cfg, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.dydx.exchange/v3", cfg.Indexer.BaseURL)
	assert.Equal(t, 25, cfg.Indexer.RateLimitRequests)
	assert.Equal(t, 10*time.Second, cfg.Indexer.Window())
	assert.Equal(t, 24, cfg.Indexer.FetchLimit)
	assert.Equal(t, []string{"ACTIVE"}, cfg.Indexer.ActiveStatuses)
	assert.Equal(t, "2021-01-01", cfg.Run.StartDate)
	assert.Empty(t, cfg.Run.DeploymentDate)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"indexer": {"base_url": "https://indexer.example.com/v3", "rate_limit_requests": 10, "rate_limit_window": "5s", "timeout": "15s", "fetch_limit": 24, "active_statuses": ["ACTIVE"]},
		"archive": {"dest_root": "/var/data"},
		"run": {"start_date": "2022-06-01"},
		"logging": {"level": "debug", "format": "text", "output": "stderr"}
	}`), 0o644))

	cfg, err := NewManager(path, nil).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://indexer.example.com/v3", cfg.Indexer.BaseURL)
	assert.Equal(t, 10, cfg.Indexer.RateLimitRequests)
	assert.Equal(t, 5*time.Second, cfg.Indexer.Window())
	assert.Equal(t, "/var/data", cfg.Archive.DestRoot)
	assert.Equal(t, "2022-06-01", cfg.Run.StartDate)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("INDEXER_BASE_URL", "https://override.example.com")
	t.Setenv("RATE_LIMIT_REQUESTS", "7")
	t.Setenv("RUN_DEPLOYMENT_DATE", "2026-01-10")
	t.Setenv("ARCHIVE_DEST_ROOT", "/tmp/archive")

	cfg, err := NewManager("", nil).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.Indexer.BaseURL)
	assert.Equal(t, 7, cfg.Indexer.RateLimitRequests)
	assert.Equal(t, "/tmp/archive", cfg.Archive.DestRoot)

	deployment, err := cfg.Run.Deployment()
	require.NoError(t, err)
	require.NotNil(t, deployment)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), *deployment)
}

func TestValidationAggregatesErrors(t *testing.T) {
	t.Setenv("INDEXER_BASE_URL", "ignored") // keep other fields valid
	t.Setenv("RATE_LIMIT_REQUESTS", "-1")
	t.Setenv("RUN_START_DATE", "Jan 1 2021")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := NewManager("", nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_requests")
	assert.Contains(t, err.Error(), "start_date")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestRunConfigParsing(t *testing.T) {
	run := RunConfig{StartDate: "2021-01-01"}

	start, err := run.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), start)

	deployment, err := run.Deployment()
	require.NoError(t, err)
	assert.Nil(t, deployment)
}
