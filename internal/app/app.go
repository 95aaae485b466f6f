// Package app assembles the lifecycle engine with the storage, archive and
// activity collaborators selected by configuration. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rezkam/weekplan/internal/application/planner"
	"github.com/rezkam/weekplan/internal/application/worker"
	"github.com/rezkam/weekplan/internal/config"
	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/infrastructure/activitylog"
	"github.com/rezkam/weekplan/internal/infrastructure/archive/fs"
	"github.com/rezkam/weekplan/internal/infrastructure/archive/gcs"
	"github.com/rezkam/weekplan/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/weekplan/internal/infrastructure/persistence/sqlite"
)

// Store is what both storage backends provide.
type Store interface {
	planner.Repository
	worker.UserSource
	activitylog.Repository
	FindActivities(ctx context.Context, userID, taskID string, limit int) ([]domain.Activity, error)
	io.Closer
}

// Archive is a week archive that can also be read back.
type Archive interface {
	planner.WeekArchiver
	LoadWeek(ctx context.Context, userID string, week int) (domain.WeekSnapshot, error)
	ListWeeks(ctx context.Context, userID string) ([]int, error)
}

// Options selects the collaborators to build.
type Options struct {
	Database config.DatabaseConfig
	Engine   config.EngineConfig
	Archive  config.ArchiveConfig

	Identity       planner.Identity
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// Clock overrides the engine clock.
	Clock func() time.Time
}

// App is a wired engine plus the collaborators behind it.
type App struct {
	Engine  *planner.Engine
	Store   Store
	Archive Archive // nil when archiving is disabled

	cleanup func()
}

// New opens storage and the archive and builds the engine.
// Call Close to release them.
func New(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(ctx, opts.Database)
	if err != nil {
		return nil, err
	}

	archive, archiveCloser, err := OpenArchive(ctx, opts.Archive)
	if err != nil {
		store.Close()
		return nil, err
	}

	calendar := opts.Engine.Calendar()
	engineOpts := []planner.Option{
		planner.WithLogger(logger),
		planner.WithActivityLog(activitylog.FanOut{
			activitylog.NewLogger(logger),
			activitylog.NewStore(store),
		}),
	}
	if archive != nil {
		engineOpts = append(engineOpts, planner.WithArchiver(archive))
	}
	if opts.TracerProvider != nil {
		engineOpts = append(engineOpts, planner.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		engineOpts = append(engineOpts, planner.WithMeterProvider(opts.MeterProvider))
	}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, planner.WithClock(opts.Clock))
	}

	engine := planner.New(store, opts.Identity, planner.Config{
		Calendar:         &calendar,
		DefaultSpanWeeks: opts.Engine.DefaultSpanWeeks,
		MaxSpanWeeks:     opts.Engine.MaxSpanWeeks,
	}, engineOpts...)

	return &App{
		Engine:  engine,
		Store:   store,
		Archive: archive,
		cleanup: newCleanup(logger, archiveCloser, store),
	}, nil
}

// Close releases the archive and then the store.
func (a *App) Close() {
	a.cleanup()
}

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTime) * time.Second,
			AutoMigrate:     cfg.AutoMigrate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.DataSource())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedDriver, cfg.Driver)
	}
}

// OpenArchive opens the configured archive. Both results are nil when
// archiving is disabled.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (Archive, io.Closer, error) {
	switch cfg.Type {
	case config.ArchiveNone, "":
		return nil, nil, nil
	case config.ArchiveFS:
		store, err := fs.NewStore(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open archive directory: %w", err)
		}
		return store, nil, nil
	case config.ArchiveGCS:
		store, err := gcs.NewStore(ctx, cfg.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open archive bucket: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

// newCleanup closes the archive client before the store.
func newCleanup(logger *slog.Logger, archive io.Closer, store io.Closer) func() {
	return func() {
		if archive != nil {
			if err := archive.Close(); err != nil {
				logger.Error("failed to close archive", slog.String("error", err.Error()))
			}
		}
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Error("failed to close store", slog.String("error", err.Error()))
			}
		}
	}
}
