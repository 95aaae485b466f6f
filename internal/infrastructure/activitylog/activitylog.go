// Package activitylog provides sinks for the engine's activity records.
package activitylog

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/rezkam/weekplan/internal/application/planner"
	"github.com/rezkam/weekplan/internal/domain"
)

var (
	_ planner.ActivityLog = (*Logger)(nil)
	_ planner.ActivityLog = (*Store)(nil)
	_ planner.ActivityLog = FanOut(nil)
)

// Logger writes every activity as one structured log record.
type Logger struct {
	logger *slog.Logger
}

// NewLogger returns a sink that logs to logger, or slog.Default() when nil.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Record implements planner.ActivityLog.
func (l *Logger) Record(ctx context.Context, activity domain.Activity) error {
	attrs := []slog.Attr{
		slog.String("activity_id", activity.ID),
		slog.String("user_id", activity.UserID),
		slog.String("task_id", activity.TaskID),
		slog.String("type", string(activity.Type)),
	}
	if activity.OldValue != "" {
		attrs = append(attrs, slog.String("old_value", activity.OldValue))
	}
	if activity.NewValue != "" {
		attrs = append(attrs, slog.String("new_value", activity.NewValue))
	}
	if len(activity.Metadata) > 0 {
		meta := make([]any, 0, len(activity.Metadata))
		for _, k := range slices.Sorted(maps.Keys(activity.Metadata)) {
			meta = append(meta, slog.String(k, activity.Metadata[k]))
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "task activity", attrs...)
	return nil
}

// Repository persists activity records.
type Repository interface {
	InsertActivity(ctx context.Context, activity domain.Activity) error
}

// Store writes activities to a repository.
type Store struct {
	repo Repository
}

// NewStore returns a sink backed by repo.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Record implements planner.ActivityLog.
func (s *Store) Record(ctx context.Context, activity domain.Activity) error {
	return s.repo.InsertActivity(ctx, activity)
}

// FanOut records each activity to every sink. All sinks are attempted; the
// returned error joins the individual failures.
type FanOut []planner.ActivityLog

// Record implements planner.ActivityLog.
func (f FanOut) Record(ctx context.Context, activity domain.Activity) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Record(ctx, activity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
