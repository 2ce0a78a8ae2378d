package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allfence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultNeedsOnlyASecret(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "s3cret"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.False(t, cfg.Ranking.AllowReset)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  shutdown_timeout: 3s
log:
  level: debug
storage:
  type: redis
  redis:
    url: redis://localhost:6379/2
    max_tx_retries: 10
auth:
  jwt_secret: from-file
  session_duration: 30m
ranking:
  allow_reset: true
export:
  type: s3
  s3:
    bucket: snapshots
    endpoint: http://localhost:9000
    use_path_style: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset fields keep defaults")
	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Storage.Redis.URL)
	assert.Equal(t, 10, cfg.Storage.Redis.MaxTxRetries)
	assert.Equal(t, 10, cfg.Storage.Redis.PoolSize)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionDuration)
	assert.True(t, cfg.Ranking.AllowReset)
	assert.Equal(t, "snapshots", cfg.Export.S3.Bucket)
	assert.True(t, cfg.Export.S3.UsePathStyle)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: from-file\n")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://allfence@localhost/allfence")
	t.Setenv("ALLOW_RANKING_RESET", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("SESSION_DURATION", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, StoragePostgres, cfg.Storage.Type)
	assert.Equal(t, "postgres://allfence@localhost/allfence", cfg.Storage.Postgres.URL)
	assert.True(t, cfg.Ranking.AllowReset)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, time.Hour, cfg.Auth.SessionDuration)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [unterminated"))
		require.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "x")
		t.Setenv("ALLOW_RANKING_RESET", "maybe")
		_, err := Load("")
		require.ErrorContains(t, err, "ALLOW_RANKING_RESET")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "redis without url", mutate: func(c *Config) { c.Storage.Type = StorageRedis }, wantErr: "storage.redis.url"},
		{name: "postgres without url", mutate: func(c *Config) { c.Storage.Type = StoragePostgres }, wantErr: "storage.postgres.url"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "sqlite" }, wantErr: "storage.type"},
		{name: "half an admin", mutate: func(c *Config) { c.Auth.AdminUsername = "admin" }, wantErr: "admin_password"},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, wantErr: "rate_limit"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Export.Type = ExportS3 }, wantErr: "export.s3.bucket"},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = "s3cret"
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
