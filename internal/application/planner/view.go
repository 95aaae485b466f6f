package planner

import (
	"context"

	"github.com/rezkam/weekplan/internal/domain"
)

// WeekView returns the tasks visible in week with their effective state.
// A week of zero means the current week.
func (e *Engine) WeekView(ctx context.Context, week int) (_ []TaskView, err error) {
	op, err := e.begin(ctx, "WeekView", false)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}

	if week == 0 {
		week = op.ws.CurrentWeek
	}
	if err := domain.ValidateWeek(week); err != nil {
		return nil, err
	}
	return op.ws.view(week), nil
}

// CurrentWeek returns the tracked week of the acting user.
func (e *Engine) CurrentWeek(ctx context.Context) (_ int, err error) {
	op, err := e.begin(ctx, "CurrentWeek", false)
	defer op.end(&err)
	if err != nil {
		return 0, err
	}
	return op.ws.CurrentWeek, nil
}

// Task returns a copy of a task as the workspace holds it.
func (e *Engine) Task(ctx context.Context, taskID string) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "Task", false)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}

	task, err := op.ws.task(taskID)
	if err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

// Snapshot returns the current week as handed to the presenter.
func (e *Engine) Snapshot(ctx context.Context) (_ Snapshot, err error) {
	op, err := e.begin(ctx, "Snapshot", false)
	defer op.end(&err)
	if err != nil {
		return Snapshot{}, err
	}
	return op.ws.snapshot(), nil
}

// Sync replaces the acting user's workspace with the repository's state,
// discarding local changes that never committed and their unconfirmed marks.
func (e *Engine) Sync(ctx context.Context) (err error) {
	op, err := e.begin(ctx, "Sync", true)
	defer op.end(&err)
	if err != nil {
		return err
	}

	ws, err := e.load(op.ctx, op.ws.UserID)
	if err != nil {
		return err
	}
	e.workspaces[ws.UserID] = ws
	op.ws = ws
	return nil
}

// Evict drops the cached workspace of userID. The next operation reloads it.
func (e *Engine) Evict(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.workspaces, userID)
}
