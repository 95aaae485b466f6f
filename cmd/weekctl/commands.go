package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezkam/weekplan/internal/app"
	"github.com/rezkam/weekplan/internal/config"
	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/infrastructure/persistence/postgres"
)

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch cfg.Database.Driver {
			case config.DriverPostgres:
				if err := postgres.Migrate(ctx, cfg.Database.DSN); err != nil {
					return err
				}
			default:
				// sqlite migrates whenever it is opened
				store, err := app.OpenStore(ctx, cfg.Database)
				if err != nil {
					return err
				}
				if err := store.Close(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
			return nil
		},
	})
	return cmd
}

func weekCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "week [number]",
		Short: "Show the tasks of a week, the current one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				week, err := a.Engine.CurrentWeek(ctx)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					if week, err = strconv.Atoi(args[0]); err != nil {
						return fmt.Errorf("invalid week number %q", args[0])
					}
				}

				views, err := a.Engine.WeekView(ctx, week)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Week %d\n", week)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCATEGORY\tSTATUS\tPROGRESS\tTITLE")
				for _, v := range views {
					status := string(v.State.Status)
					if v.Unconfirmed {
						status += "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n",
						v.Task.ID, v.Task.Category, status, v.State.ProgressCurrent, v.Task.Title)
				}
				return w.Flush()
			})
		},
	}
}

func addCmd(opts *options) *cobra.Command {
	var (
		category string
		priority string
		week     int
	)
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.NewCategory(category)
			if err != nil {
				return err
			}
			prio, err := domain.NewTaskPriority(priority)
			if err != nil {
				return err
			}
			params := domain.NewTaskParams{Title: args[0], Category: cat, Priority: prio}
			if week > 0 {
				params.WeekNumber = &week
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				task, err := a.Engine.CreateTask(ctx, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tweek %d\n", task.ID, task.WeekNumber)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", string(domain.CategoryWork), "work, personal or recurring")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium, high or urgent")
	cmd.Flags().IntVarP(&week, "week", "w", 0, "week number, the current week when omitted")
	return cmd
}

func rolloverCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Close the current week and carry unfinished tasks into the next one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Engine.RolloverIncompleteTasks(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled week %d -> %d: %d carried, %d materialized\n",
					result.FromWeek, result.ToWeek, len(result.Carried), len(result.Materialized))
				return nil
			})
		},
	}
}

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move open tasks into the calendar week after a gap",
		Long: `Move open tasks into the week the calendar says it is.

Todo tasks are reassigned to the new week. In-progress tasks are copied
with their subtasks and attachments, and the originals stay behind.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Engine.MigrateAllTasks(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated week %d -> %d: %d moved, %d forked, %d materialized\n",
					result.FromWeek, result.ToWeek, len(result.Moved), len(result.Forked), len(result.Materialized))
				return nil
			})
		},
	}
}

func archiveCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Read snapshots of closed weeks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archived weeks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Archive == nil {
					return errArchiveDisabled
				}
				weeks, err := a.Archive.ListWeeks(ctx, opts.user)
				if err != nil {
					return err
				}
				for _, week := range weeks {
					fmt.Fprintln(cmd.OutOrStdout(), week)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [week]",
		Short: "Print an archived week as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid week number %q", args[0])
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Archive == nil {
					return errArchiveDisabled
				}
				snapshot, err := a.Archive.LoadWeek(ctx, opts.user, week)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snapshot)
			})
		},
	})

	return cmd
}

var errArchiveDisabled = errors.New("archiving is disabled (set WEEKPLAN_ARCHIVE_TYPE)")

func historyCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [task-id]",
		Short: "Show the activity log of a task, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				activities, err := a.Store.FindActivities(ctx, opts.user, args[0], limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tTYPE\tOLD\tNEW")
				for _, activity := range activities {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						activity.CreatedAt.Format("2006-01-02 15:04:05"), activity.Type, activity.OldValue, activity.NewValue)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries")
	return cmd
}
