// Command weekctl is the operator CLI for weekplan. It runs lifecycle
// operations for one user against the configured store and archive.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezkam/weekplan/internal/app"
	"github.com/rezkam/weekplan/internal/auth"
	"github.com/rezkam/weekplan/internal/config"
	"github.com/rezkam/weekplan/internal/infrastructure/observability"
)

var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	user    string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "weekctl",
		Short:         "weekctl - operate the weekly task lifecycle",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.user, "user", "u", os.Getenv("WEEKPLAN_USER"), "user to act as (default $WEEKPLAN_USER)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity to stderr")

	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(weekCmd(opts))
	rootCmd.AddCommand(addCmd(opts))
	rootCmd.AddCommand(rolloverCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(archiveCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))

	return rootCmd
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// withApp builds the application for the selected user, runs fn and releases
// everything afterwards.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if o.user == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	appOpts := app.Options{
		Database: cfg.Database,
		Engine:   cfg.Engine,
		Archive:  cfg.Archive,
		Identity: auth.Static(o.user),
		Logger:   o.logger(cmd),
	}

	// Operator runs show up next to the worker's traces when export is on.
	if cfg.Observability.OTelEnabled {
		providers, err := observability.Init(ctx, observability.Config{
			Enabled:     true,
			ServiceName: cfg.Observability.ServiceName,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = providers.Shutdown(shutdownCtx)
		}()
		appOpts.TracerProvider = providers.Tracer
		appOpts.MeterProvider = providers.Meter
	}

	a, err := app.New(ctx, appOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
