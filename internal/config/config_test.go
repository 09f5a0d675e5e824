package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileDefaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, "eventclone", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Clone.StepConcurrency)
	assert.Equal(t, 3, cfg.Clone.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Clone.Retry.InitialInterval)
	assert.Equal(t, 5*time.Second, cfg.Clone.Retry.MaxInterval)
	assert.Equal(t, 30*time.Second, cfg.Worker.LeaseTTL)
	assert.Equal(t, "fs", cfg.Storage.Type)
	assert.Equal(t, 14*24*time.Hour, cfg.Maintenance.IdentityRetention)
	assert.Same(t, cfg, Get())

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, "localhost:6379", cfg.RedisOptions().Addr)
	assert.Equal(t, "./data/assets", cfg.StorageConfig().BasePath)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
}

func TestLoadFromFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  env: production
  debug: true
database:
  driver: sqlite
  dsn: "file:eventclone.db"
storage:
  type: s3
  s3:
    bucket: assets
    region: eu-west-1
    path_style: true
clone:
  step_concurrency: 4
  retry:
    max_attempts: 5
    initial_interval: 100ms
    max_interval: 2s
worker:
  count: 8
  lease_ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "sqlite", cfg.DatabaseOptions().Driver)
	assert.Equal(t, "file:eventclone.db", cfg.DatabaseOptions().DSN)
	assert.Equal(t, "assets", cfg.StorageConfig().S3.Bucket)
	assert.True(t, cfg.StorageConfig().S3.PathStyle)
	assert.Equal(t, 4, cfg.Clone.StepConcurrency)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryPolicy().InitialInterval)
	assert.Equal(t, 8, cfg.Worker.Count)
	assert.Equal(t, time.Minute, cfg.Worker.LeaseTTL)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval, "unset keys keep defaults")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("EVENTCLONE_WORKER_COUNT", "6")
	t.Setenv("EVENTCLONE_DATABASE_DRIVER", "mysql")
	t.Setenv("EVENTCLONE_CLONE_STEP_CONCURRENCY", "3")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Worker.Count)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Clone.StepConcurrency)
}

func TestValidate(t *testing.T) {
	base, err := LoadFromFile("")
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "unsupported database driver"},
		{"no workers", func(c *Config) { c.Worker.Count = 0 }, "worker.count"},
		{"short lease", func(c *Config) { c.Worker.LeaseTTL = 100 * time.Millisecond }, "worker.lease_ttl"},
		{"zero concurrency", func(c *Config) { c.Clone.StepConcurrency = 0 }, "clone.step_concurrency"},
		{"inverted backoff", func(c *Config) { c.Clone.Retry.MaxInterval = time.Millisecond }, "clone.retry intervals"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "s3 bucket"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, base.Validate())
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
