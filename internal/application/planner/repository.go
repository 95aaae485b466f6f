package planner

import (
	"context"

	"github.com/rezkam/weekplan/internal/domain"
)

// Repository is the storage collaborator of the lifecycle engine.
// Every read and write is scoped to a single user.
type Repository interface {
	// === Tasks ===

	// FindTasks returns the user's tasks matching filter, with subtasks and attachments.
	FindTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]*domain.Task, error)

	// SaveTask inserts or replaces a task, including its subtasks and attachment references.
	// Saving a second materialized row for the same (template, week) is a silent no-op.
	SaveTask(ctx context.Context, task *domain.Task) error

	// DeleteTask removes a task together with its subtasks, its dependency edges
	// in both directions and its weekly completion records.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	DeleteTask(ctx context.Context, userID, taskID string) error

	// === Dependencies ===

	FindDependencies(ctx context.Context, userID string) ([]domain.TaskDependency, error)
	CreateDependency(ctx context.Context, dep domain.TaskDependency) error

	// DeleteDependency returns domain.ErrDependencyNotFound if the edge doesn't exist.
	DeleteDependency(ctx context.Context, userID, dependencyID string) error

	// === Weekly completions ===

	FindCompletions(ctx context.Context, userID string) ([]domain.WeeklyTaskCompletion, error)

	// UpsertCompletion writes the record keyed by (task, week).
	UpsertCompletion(ctx context.Context, completion domain.WeeklyTaskCompletion) error

	// === Recurring templates ===

	FindTemplates(ctx context.Context, userID string, activeOnly bool) ([]*domain.RecurringTaskTemplate, error)
	SaveTemplate(ctx context.Context, template *domain.RecurringTaskTemplate) error

	// DeleteTemplate returns domain.ErrTemplateNotFound if the template doesn't exist.
	// Tasks materialized from it keep existing.
	DeleteTemplate(ctx context.Context, userID, templateID string) error

	// === Week pointer ===

	// FindCurrentWeek returns domain.ErrWeekNotTracked for users without a pointer yet.
	FindCurrentWeek(ctx context.Context, userID string) (int, error)
	SetCurrentWeek(ctx context.Context, userID string, week int) error

	// Atomic executes fn within a transaction. All writes made through the
	// repository passed to fn commit together or not at all.
	Atomic(ctx context.Context, fn func(repo Repository) error) error
}

// Identity supplies the acting user. ok is false when there is no active identity.
type Identity interface {
	UserID(ctx context.Context) (userID string, ok bool)
}

// ActivityLog is a best-effort sink for activity records.
// Errors are logged by the engine and never fail the operation that emitted them.
type ActivityLog interface {
	Record(ctx context.Context, activity domain.Activity) error
}

// WeekArchiver stores the snapshot of a week closed by rollover.
// Errors are logged by the engine and never fail the rollover.
type WeekArchiver interface {
	ArchiveWeek(ctx context.Context, snapshot domain.WeekSnapshot) error
}

// Presenter receives the user's current week after every successful operation.
type Presenter interface {
	Present(ctx context.Context, snapshot Snapshot)
}
