package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/weekplan/internal/app"
	"github.com/rezkam/weekplan/internal/application/worker"
	"github.com/rezkam/weekplan/internal/auth"
	"github.com/rezkam/weekplan/internal/config"
	"github.com/rezkam/weekplan/internal/infrastructure/observability"
)

func main() {
	if err := run(); err != nil {
		// slog may not be initialized if config fails
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Root context, cancelled on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	providers, err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer func() {
		// Use a timeout to prevent hanging if collector is unreachable
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown observability providers", "error", err)
		}
	}()
	slog.SetDefault(providers.Logger)

	slog.InfoContext(ctx, "starting weekplan worker",
		"driver", cfg.Database.Driver,
		"dsn", maskPassword(cfg.Database.DataSource()),
		"archive", cfg.Archive.Type,
		"schedule", cfg.Schedule,
	)

	// The scheduler puts each user on the context, so the engine reads identity from there.
	application, err := app.New(ctx, app.Options{
		Database:       cfg.Database,
		Engine:         cfg.Engine,
		Archive:        cfg.Archive,
		Identity:       auth.ContextIdentity{},
		Logger:         providers.Logger,
		TracerProvider: providers.Tracer,
		MeterProvider:  providers.Meter,
	})
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer application.Close()

	scheduler := worker.New(application.Store, application.Engine,
		worker.WithSchedule(cfg.Schedule),
		worker.WithOperationTimeout(cfg.OperationTimeout),
		worker.WithLogger(providers.Logger),
	)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	slog.InfoContext(context.WithoutCancel(ctx), "worker shut down gracefully")
	return nil
}

// maskPassword hides the password in a postgres URL. Plain sqlite paths pass through.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
