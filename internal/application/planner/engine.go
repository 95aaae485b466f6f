// Package planner is the task lifecycle engine. It owns each user's in-memory
// workspace, applies every operation to it first and then writes through to
// the Repository.
//
// A write that fails to commit leaves the local change in place, marks the
// touched entities unconfirmed and returns a *domain.RemoteError. Sync
// reloads authoritative state and clears the marks.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/recurring"
)

const instrumentationName = "github.com/rezkam/weekplan/internal/application/planner"

// Config holds configuration for the Engine.
type Config struct {
	// Calendar maps dates to week numbers. The zero value uses domain.DefaultWeekAnchor.
	Calendar *domain.WeekCalendar

	// DefaultSpanWeeks is applied to recurring-category tasks created without a span.
	DefaultSpanWeeks int

	// MaxSpanWeeks caps the span of recurring-category tasks.
	MaxSpanWeeks int
}

// Engine runs lifecycle operations. Operations are serialized; the engine is
// safe for concurrent use but never runs two operations at once.
type Engine struct {
	repo      Repository
	identity  Identity
	activity  ActivityLog
	archiver  WeekArchiver
	presenter Presenter

	calendar    domain.WeekCalendar
	generator   *recurring.Generator
	defaultSpan int
	maxSpan     int
	now         func() time.Time

	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *metrics

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithActivityLog sets the sink activity records are emitted to.
func WithActivityLog(log ActivityLog) Option {
	return func(e *Engine) {
		e.activity = log
	}
}

// WithArchiver sets where snapshots of weeks closed by rollover are stored.
func WithArchiver(archiver WeekArchiver) Option {
	return func(e *Engine) {
		e.archiver = archiver
	}
}

// WithPresenter sets the collaborator that receives the current week after each change.
func WithPresenter(presenter Presenter) Option {
	return func(e *Engine) {
		e.presenter = presenter
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source. Defaults to time.Now in UTC.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		e.meter = mp.Meter(instrumentationName)
	}
}

// New creates a lifecycle engine.
// Applies defaults for zero or invalid config values.
func New(repo Repository, identity Identity, cfg Config, opts ...Option) *Engine {
	calendar := domain.NewWeekCalendar(domain.DefaultWeekAnchor)
	if cfg.Calendar != nil {
		calendar = *cfg.Calendar
	}
	if cfg.MaxSpanWeeks <= 0 || cfg.MaxSpanWeeks > domain.MaxSpanWeeks {
		cfg.MaxSpanWeeks = domain.MaxSpanWeeks
	}
	if cfg.DefaultSpanWeeks <= 0 || cfg.DefaultSpanWeeks > cfg.MaxSpanWeeks {
		cfg.DefaultSpanWeeks = domain.DefaultSpanWeeks
	}

	e := &Engine{
		repo:        repo,
		identity:    identity,
		calendar:    calendar,
		generator:   recurring.NewGenerator(calendar),
		defaultSpan: cfg.DefaultSpanWeeks,
		maxSpan:     cfg.MaxSpanWeeks,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      slog.Default(),
		tracer:      otel.Tracer(instrumentationName),
		meter:       otel.Meter(instrumentationName),
		workspaces:  make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = newMetrics(e.meter, e.logger)
	return e
}

// Calendar returns the week calendar the engine resolves dates with.
func (e *Engine) Calendar() domain.WeekCalendar {
	return e.calendar
}

// operation is the lifetime of one engine call: span, lock and workspace.
type operation struct {
	e        *Engine
	ctx      context.Context
	name     string
	span     trace.Span
	ws       *Workspace
	mutating bool
}

// begin starts a span, takes the engine lock and resolves the acting user's workspace.
// The returned operation must be finished with end, also when err is non-nil.
func (e *Engine) begin(ctx context.Context, name string, mutating bool) (*operation, error) {
	ctx, span := e.tracer.Start(ctx, "planner."+name)
	e.mu.Lock()

	op := &operation{e: e, ctx: ctx, name: name, span: span, mutating: mutating}

	userID, ok := e.identity.UserID(ctx)
	if !ok || userID == "" {
		return op, domain.ErrUnauthenticated
	}
	span.SetAttributes(attribute.String("user.id", userID))

	ws, err := e.workspace(ctx, userID)
	if err != nil {
		return op, err
	}
	op.ws = ws
	return op, nil
}

// end releases the lock, records the outcome on the span and, for mutating
// operations whose local change stands, hands the current week to the presenter.
func (op *operation) end(errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	defer op.span.End()

	var snapshot *Snapshot
	if op.mutating && op.ws != nil && (err == nil || errors.Is(err, domain.ErrRemoteFailure)) {
		s := op.ws.snapshot()
		snapshot = &s
	}
	op.e.mu.Unlock()

	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
	}
	if snapshot != nil && op.e.presenter != nil {
		op.e.presenter.Present(op.ctx, *snapshot)
	}
}

// workspace returns the cached workspace of userID, loading it on first use.
func (e *Engine) workspace(ctx context.Context, userID string) (*Workspace, error) {
	if ws, ok := e.workspaces[userID]; ok {
		return ws, nil
	}
	ws, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.workspaces[userID] = ws
	return ws, nil
}

// load reads the user's full state from the repository.
// A user without a tracked week starts at the calendar week.
func (e *Engine) load(ctx context.Context, userID string) (*Workspace, error) {
	ws := newWorkspace(userID)

	tasks, err := e.repo.FindTasks(ctx, userID, domain.TaskFilter{})
	if err != nil {
		return nil, domain.NewRemoteError("load tasks", err)
	}
	for _, task := range tasks {
		ws.tasks[task.ID] = task
	}

	deps, err := e.repo.FindDependencies(ctx, userID)
	if err != nil {
		return nil, domain.NewRemoteError("load dependencies", err)
	}
	ws.deps = deps

	completions, err := e.repo.FindCompletions(ctx, userID)
	if err != nil {
		return nil, domain.NewRemoteError("load completions", err)
	}
	for _, c := range completions {
		ws.completions[c.Key()] = c
	}

	templates, err := e.repo.FindTemplates(ctx, userID, false)
	if err != nil {
		return nil, domain.NewRemoteError("load templates", err)
	}
	for _, tpl := range templates {
		ws.templates[tpl.ID] = tpl
	}

	week, err := e.repo.FindCurrentWeek(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrWeekNotTracked):
		week = e.calendar.WeekOf(e.now())
		if err := e.repo.SetCurrentWeek(ctx, userID, week); err != nil {
			return nil, domain.NewRemoteError("track current week", err)
		}
		e.logger.InfoContext(ctx, "started tracking week", "user_id", userID, "week", week)
	case err != nil:
		return nil, domain.NewRemoteError("load current week", err)
	}
	ws.CurrentWeek = week

	return ws, nil
}

// commit writes the already applied local change through the repository in one
// transaction. On failure the given entity ids are marked unconfirmed.
func (e *Engine) commit(ctx context.Context, ws *Workspace, op string, ids []string, fn func(repo Repository) error) error {
	if err := e.repo.Atomic(ctx, fn); err != nil {
		ws.markUnconfirmed(ids...)
		e.metrics.remoteFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
		e.logger.ErrorContext(ctx, "storage write did not commit",
			"operation", op, "user_id", ws.UserID, "entities", len(ids), "error", err)
		return domain.NewRemoteError(op, err)
	}
	for _, id := range ids {
		delete(ws.unconfirmed, id)
	}
	return nil
}

// record emits activity records. Failures are logged and swallowed.
func (e *Engine) record(ctx context.Context, ws *Workspace, activities ...domain.Activity) {
	if e.activity == nil {
		return
	}
	now := e.now()
	for _, a := range activities {
		id, err := uuid.NewV7()
		if err != nil {
			e.logger.WarnContext(ctx, "failed to generate activity id", "error", err)
			continue
		}
		a.ID = id.String()
		a.UserID = ws.UserID
		a.CreatedAt = now
		if err := e.activity.Record(ctx, a); err != nil {
			e.logger.WarnContext(ctx, "failed to record activity",
				"user_id", ws.UserID, "task_id", a.TaskID, "type", a.Type, "error", err)
		}
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}
