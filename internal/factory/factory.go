package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mcoot/allfence/internal/api"
	"github.com/mcoot/allfence/internal/config"
	"github.com/mcoot/allfence/internal/dependencies/clock"
	"github.com/mcoot/allfence/internal/dependencies/random"
	"github.com/mcoot/allfence/internal/metrics"
	"github.com/mcoot/allfence/internal/middleware"
	"github.com/mcoot/allfence/internal/services/auth"
	"github.com/mcoot/allfence/internal/services/export"
	"github.com/mcoot/allfence/internal/services/ranking"
	"github.com/mcoot/allfence/internal/services/registration"
	"github.com/mcoot/allfence/internal/services/results"
	"github.com/mcoot/allfence/internal/services/roster"
	"github.com/mcoot/allfence/internal/services/tournament"
	"github.com/mcoot/allfence/internal/storage"
	"github.com/mcoot/allfence/internal/storage/memory"
	pgstorage "github.com/mcoot/allfence/internal/storage/postgres"
	redisstorage "github.com/mcoot/allfence/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage
	Storage storage.Storage

	// External dependencies
	Clock    clock.Clock
	Random   random.Random
	Uploader export.Uploader

	// Observability
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Services
	AuthService *auth.Service
	Roster      *roster.Service
	Tournaments *tournament.Controller
	Ledger      *registration.Ledger
	Recorder    *results.Recorder
	Ranking     *ranking.Service
	Exporter    *export.Exporter
	RateLimiter *middleware.IPRateLimiter

	closers []io.Closer
}

// New creates a new application with all dependencies wired from cfg.
// A nil logger discards output.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closer, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	uploader, err := newUploader(ctx, cfg.Export)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}

	app, err := newWithDependencies(store, clock.New(), random.New(), uploader, cfg, logger)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger.Info("application initialised",
		slog.String("storage", cfg.Storage.Type),
		slog.String("export", cfg.Export.Type),
		slog.Bool("rate_limit", cfg.RateLimit.Enabled),
		slog.Bool("ranking_reset_allowed", cfg.Ranking.AllowReset),
	)
	return app, nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, io.Closer, error) {
	switch cfg.Type {
	case "", config.StorageMemory:
		return memory.New(), nil, nil
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Redis.URL
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MaxTxRetries > 0 {
			redisCfg.MaxTxRetries = cfg.Redis.MaxTxRetries
		}
		s, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return s, s, nil
	case config.StoragePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = cfg.Postgres.URL
		if cfg.Postgres.MaxConns > 0 {
			pgCfg.MaxConns = cfg.Postgres.MaxConns
		}
		s, err := pgstorage.New(ctx, pgCfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("invalid storage type %q: must be memory, redis or postgres", cfg.Type)
	}
}

func newUploader(ctx context.Context, cfg config.ExportConfig) (export.Uploader, error) {
	switch cfg.Type {
	case "", config.ExportDir:
		return export.NewDirUploader(cfg.Dir), nil
	case config.ExportS3:
		return export.NewS3Uploader(ctx, export.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("invalid export type %q: must be dir or s3", cfg.Type)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, uploader export.Uploader, cfg *config.Config, logger *slog.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	authService, err := auth.New(store, clk, rnd, logger, auth.Config{
		Secret:          cfg.Auth.JWTSecret,
		SessionDuration: cfg.Auth.SessionDuration,
	})
	if err != nil {
		return nil, err
	}

	rankingService := ranking.New(store, clk, m, logger, ranking.Config{
		AllowReset:    cfg.Ranking.AllowReset,
		VerifyWorkers: cfg.Ranking.VerifyWorkers,
	})

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Uploader:    uploader,
		Registry:    registry,
		Metrics:     m,
		AuthService: authService,
		Roster:      roster.New(store, clk, rnd, logger),
		Tournaments: tournament.NewController(store, clk, rnd, logger),
		Ledger:      registration.NewLedger(store, clk, m, logger),
		Recorder:    results.NewRecorder(store, clk, rnd, m, logger),
		Ranking:     rankingService,
		Exporter:    export.New(rankingService, uploader, clk, logger),
		RateLimiter: limiter,
	}, nil
}

// Bootstrap creates the configured admin account if it does not exist yet
func (a *App) Bootstrap(ctx context.Context) error {
	if a.Config.Auth.AdminUsername == "" {
		return nil
	}
	if err := a.AuthService.EnsureAdmin(ctx, a.Config.Auth.AdminUsername, a.Config.Auth.AdminPassword); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	return nil
}

// Router builds the HTTP handler serving the API, health and metrics endpoints
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.Logger,
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
		Storage:     a.Storage,
		AuthService: a.AuthService,
		Roster:      a.Roster,
		Tournaments: a.Tournaments,
		Ledger:      a.Ledger,
		Recorder:    a.Recorder,
		Ranking:     a.Ranking,
		Exporter:    a.Exporter,
		RateLimiter: a.RateLimiter,
	})
}

// Close releases storage connections
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
