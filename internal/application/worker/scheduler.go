package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rezkam/weekplan/internal/application/planner"
	"github.com/rezkam/weekplan/internal/auth"
	"github.com/rezkam/weekplan/internal/domain"
)

// DefaultSchedule runs the lifecycle pass five minutes past every hour.
const DefaultSchedule = "0 5 * * * *"

// UserSource enumerates the users whose weeks the scheduler maintains.
type UserSource interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Lifecycle is the part of the planner engine the scheduler drives.
// The acting user is taken from the context.
type Lifecycle interface {
	Calendar() domain.WeekCalendar
	CurrentWeek(ctx context.Context) (int, error)
	RolloverIncompleteTasks(ctx context.Context) (*planner.RolloverResult, error)
	TemplatesDue(ctx context.Context, now time.Time) ([]*domain.RecurringTaskTemplate, error)
	GenerateRecurringTasks(ctx context.Context, week int) ([]*domain.Task, error)
	Evict(userID string)
}

// Scheduler periodically closes finished weeks and materializes recurring
// tasks ahead of time for every known user.
type Scheduler struct {
	users            UserSource
	engine           Lifecycle
	schedule         string
	operationTimeout time.Duration
	now              func() time.Time
	logger           *slog.Logger
	wg               sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSchedule sets the cron expression (with seconds) the scheduler runs on.
func WithSchedule(expr string) Option {
	return func(s *Scheduler) {
		s.schedule = expr
	}
}

// WithOperationTimeout bounds a single pass over all users.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.operationTimeout = d
	}
}

// WithClock overrides the time source used to decide what is due.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a scheduler over the given users and engine.
func New(users UserSource, engine Lifecycle, opts ...Option) *Scheduler {
	s := &Scheduler{
		users:            users,
		engine:           engine,
		schedule:         DefaultSchedule,
		operationTimeout: 30 * time.Second,
		now:              func() time.Time { return time.Now().UTC() },
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs one pass immediately and then one per schedule tick until ctx
// is cancelled. On shutdown it stops the cron runner and waits for in-flight
// passes before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	runner := cron.New(cron.WithSeconds())
	_, err := runner.AddFunc(s.schedule, func() {
		s.wg.Go(func() {
			s.runWithTimeout(context.WithoutCancel(ctx))
		})
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	s.logger.InfoContext(ctx, "lifecycle scheduler started", "schedule", s.schedule)
	s.runWithTimeout(context.WithoutCancel(ctx))

	runner.Start()
	<-ctx.Done()

	s.logger.InfoContext(ctx, "shutdown requested, waiting for in-flight passes")
	<-runner.Stop().Done()
	s.wg.Wait()
	s.logger.InfoContext(ctx, "lifecycle scheduler stopped gracefully")
	return nil
}

func (s *Scheduler) runWithTimeout(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.operationTimeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "lifecycle pass failed", "error", err)
	}
}

// RunOnce processes every user once. A failure for one user does not stop
// the others; all failures are joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var errs []error
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.processUser(ctx, userID); err != nil {
			s.logger.ErrorContext(ctx, "failed to process user", "user_id", userID, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) processUser(ctx context.Context, userID string) error {
	ctx = auth.WithUser(ctx, userID)
	defer s.engine.Evict(userID)

	now := s.now()
	calendar := s.engine.Calendar()
	target := calendar.WeekOf(now)

	current, err := s.engine.CurrentWeek(ctx)
	if err != nil {
		return err
	}

	for current < target {
		result, err := s.engine.RolloverIncompleteTasks(ctx)
		if err != nil {
			return fmt.Errorf("rollover of week %d: %w", current, err)
		}
		s.logger.InfoContext(ctx, "closed week",
			"user_id", userID, "week", result.FromWeek, "carried", len(result.Carried))
		current = result.ToWeek
	}

	due, err := s.engine.TemplatesDue(ctx, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	for _, week := range generationWeeks(calendar, due, current) {
		created, err := s.engine.GenerateRecurringTasks(ctx, week)
		if err != nil {
			return fmt.Errorf("generation for week %d: %w", week, err)
		}
		if len(created) > 0 {
			s.logger.InfoContext(ctx, "materialized recurring tasks",
				"user_id", userID, "week", week, "count", len(created))
		}
	}
	return nil
}

// generationWeeks returns the weeks the due templates need rows in: the
// current week plus the week of each template's upcoming occurrence.
func generationWeeks(calendar domain.WeekCalendar, due []*domain.RecurringTaskTemplate, current int) []int {
	weeks := []int{current}
	for _, template := range due {
		if template.NextCreationAt == nil {
			continue
		}
		occurrence := template.NextCreationAt.AddDate(0, 0, max(template.AutoCreateDaysBefore, 0))
		if week := calendar.WeekOf(occurrence); week > current && !slices.Contains(weeks, week) {
			weeks = append(weeks, week)
		}
	}
	slices.Sort(weeks)
	return weeks
}
