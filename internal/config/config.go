// Package config loads server settings from a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Export targets
const (
	ExportDir = "dir"
	ExportS3  = "s3"
)

// Config is the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Ranking   RankingConfig   `yaml:"ranking"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Export    ExportConfig    `yaml:"export"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type     string         `yaml:"type"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL          string `yaml:"url"`
	PoolSize     int    `yaml:"pool_size"`
	MaxTxRetries int    `yaml:"max_tx_retries"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// AuthConfig holds admin authentication settings
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	SessionDuration time.Duration `yaml:"session_duration"`
	// The bootstrap admin is created on start when both are set
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// RankingConfig holds ranking maintenance settings
type RankingConfig struct {
	AllowReset    bool `yaml:"allow_reset"`
	VerifyWorkers int  `yaml:"verify_workers"`
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ExportConfig selects where leaderboard snapshots are written
type ExportConfig struct {
	Type string   `yaml:"type"`
	Dir  string   `yaml:"dir"`
	S3   S3Config `yaml:"s3"`
}

// S3Config holds object storage settings
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Default returns settings suitable for local development
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{Type: StorageMemory, Redis: RedisConfig{PoolSize: 10, MaxTxRetries: 50}, Postgres: PostgresConfig{MaxConns: 10}},
		Auth:    AuthConfig{SessionDuration: 12 * time.Hour},
		Ranking: RankingConfig{VerifyWorkers: 8},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Export: ExportConfig{Type: ExportDir, Dir: "exports"},
	}
}

// Load reads .env if present, then the YAML file at path (skipped when path is
// empty), then environment overrides, and validates the result
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	parse := func(key string, set func(string) error) {
		if v := getenv(key); v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
			}
		}
	}
	boolean := func(key string, dst *bool) {
		parse(key, func(v string) (err error) { *dst, err = strconv.ParseBool(v); return })
	}
	duration := func(key string, dst *time.Duration) {
		parse(key, func(v string) (err error) { *dst, err = time.ParseDuration(v); return })
	}

	str("ALLFENCE_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)

	str("STORAGE_TYPE", &c.Storage.Type)
	str("REDIS_URL", &c.Storage.Redis.URL)
	str("DATABASE_URL", &c.Storage.Postgres.URL)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	duration("SESSION_DURATION", &c.Auth.SessionDuration)
	str("ADMIN_USERNAME", &c.Auth.AdminUsername)
	str("ADMIN_PASSWORD", &c.Auth.AdminPassword)

	boolean("ALLOW_RANKING_RESET", &c.Ranking.AllowReset)

	boolean("RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	parse("RATE_LIMIT_RPS", func(v string) (err error) { c.RateLimit.RequestsPerSecond, err = strconv.ParseFloat(v, 64); return })
	parse("RATE_LIMIT_BURST", func(v string) (err error) { c.RateLimit.Burst, err = strconv.Atoi(v); return })

	str("EXPORT_TYPE", &c.Export.Type)
	str("EXPORT_DIR", &c.Export.Dir)
	str("S3_BUCKET", &c.Export.S3.Bucket)
	str("S3_REGION", &c.Export.S3.Region)
	str("S3_ENDPOINT", &c.Export.S3.Endpoint)
	str("S3_ACCESS_KEY_ID", &c.Export.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.Export.S3.SecretAccessKey)
	str("S3_PUBLIC_BASE_URL", &c.Export.S3.PublicBaseURL)

	return errors.Join(errs...)
}

// Validate reports every missing or inconsistent setting
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required for redis storage"))
		}
	case StoragePostgres:
		if c.Storage.Postgres.URL == "" {
			errs = append(errs, errors.New("storage.postgres.url is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be memory, redis or postgres, got %q", c.Storage.Type))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if (c.Auth.AdminUsername == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("auth.admin_username and auth.admin_password must be set together"))
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate_limit.requests_per_second and rate_limit.burst must be positive"))
	}

	switch c.Export.Type {
	case ExportDir:
		if c.Export.Dir == "" {
			errs = append(errs, errors.New("export.dir is required for dir export"))
		}
	case ExportS3:
		if c.Export.S3.Bucket == "" {
			errs = append(errs, errors.New("export.s3.bucket is required for s3 export"))
		}
	default:
		errs = append(errs, fmt.Errorf("export.type must be dir or s3, got %q", c.Export.Type))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel converts the configured level name
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
