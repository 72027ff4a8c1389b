package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 4, cfg.Jobs.MaxWorkers)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.JobTimeout)
	assert.Equal(t, time.Hour, cfg.Jobs.ResultTTL)
	assert.Equal(t, "bundler.db", cfg.Storage.DatabasePath)
	assert.Equal(t, int64(100*1024*1024), cfg.Storage.MaxUploadSize)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, bundling.DefaultConfig(), cfg.Bundling)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BUNDLER_SERVER_ADDRESS", ":9999")
	t.Setenv("BUNDLER_JOBS_MAX_WORKERS", "2")
	t.Setenv("BUNDLER_CACHE_TTL", "90s")
	t.Setenv("BUNDLER_BUNDLING_MAX_ITERATIONS", "25")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 2, cfg.Jobs.MaxWorkers)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 25, cfg.Bundling.MaxIterations)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundler.yaml")
	content := `
server:
  address: ":7000"
jobs:
  job_timeout: 30s
cache:
  redis_url: redis://localhost:6379/0
bundling:
  initial_bandwidth: 0.2
  decay: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("BUNDLER_CONFIG", path)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Jobs.JobTimeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 0.2, cfg.Bundling.InitialBandwidth)
	assert.Equal(t, 0.5, cfg.Bundling.Decay)
	assert.Equal(t, 10, cfg.Bundling.MaxIterations)
}

func TestLoadInvalid(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("BUNDLER_JOBS_JOB_TIMEOUT", "soon")
		_, err := LoadFile("")
		assert.ErrorContains(t, err, "jobs.job_timeout")
	})
	t.Run("workers", func(t *testing.T) {
		t.Setenv("BUNDLER_JOBS_MAX_WORKERS", "0")
		_, err := LoadFile("")
		assert.Error(t, err)
	})
	t.Run("bundling", func(t *testing.T) {
		t.Setenv("BUNDLER_BUNDLING_DECAY", "1.5")
		_, err := LoadFile("")
		assert.ErrorIs(t, err, bundling.ErrInvalidConfig)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, SetupLogging(LoggingConfig{Level: "debug", Format: "json"}))
	assert.NoError(t, SetupLogging(LoggingConfig{Level: "INFO", Format: "console"}))
	assert.Error(t, SetupLogging(LoggingConfig{Level: "loud"}))
}
