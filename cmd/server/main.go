package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/allfence/internal/api"
	"github.com/mcoot/allfence/internal/config"
	"github.com/mcoot/allfence/internal/factory"
)

func main() {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled. started, when non-nil, is called
// with the bound address once the listener is open.
func run(ctx context.Context, args []string, stdout io.Writer, started func(addr string)) error {
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := flags.String("config", os.Getenv("ALLFENCE_CONFIG"), "path to YAML config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level}))

	app, err := factory.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	if err := app.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	server := api.NewServer(app.Router(), cfg.Server, logger)
	if started != nil {
		started(ln.Addr().String())
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			return err
		}
		if err := <-errCh; err != nil {
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}
