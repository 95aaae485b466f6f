package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/weekplan/internal/domain"
)

const taskColumns = `id, user_id, category, title, description, status, blocked, priority,
	due_at, week_number, order_key, progress_current, progress_total, auto_progress,
	weighted_progress, is_recurring, origin_week, span_weeks, recurring_template_id,
	forked_from_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var (
		t                          domain.Task
		category, status, priority string
		dueAt                      sql.NullInt64
		current, total             sql.NullInt64
		createdAt, updatedAt       int64
	)
	err := row.Scan(
		&t.ID, &t.UserID, &category, &t.Title, &t.Description, &status, &t.Blocked, &priority,
		&dueAt, &t.WeekNumber, &t.OrderKey, &current, &total, &t.AutoProgress,
		&t.WeightedProgress, &t.IsRecurring, &t.OriginWeek, &t.SpanWeeks, &t.RecurringTemplateID,
		&t.ForkedFrom, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Category = domain.Category(category)
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.TaskPriority(priority)
	t.DueAt = nanosToTimePtr(dueAt)
	t.ProgressCurrent = nullToIntPtr(current)
	t.ProgressTotal = nullToIntPtr(total)
	t.CreatedAt = nanosToTime(createdAt)
	t.UpdatedAt = nanosToTime(updatedAt)
	return &t, nil
}

// jsonIDs encodes ids for use with json_each. A nil slice stays NULL.
func jsonIDs(ids []string) (any, error) {
	if ids == nil {
		return nil, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ids: %w", err)
	}
	return string(b), nil
}

// FindTasks returns the user's tasks matching filter, with subtasks and attachments.
func (s *Store) FindTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]*domain.Task, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return nil, nil
	}
	ids, err := jsonIDs(filter.IDs)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ?1
		  AND (?2 IS NULL OR id IN (SELECT value FROM json_each(?2)))
		  AND (?3 IS NULL OR week_number = ?3)
		  AND (?4 IS NULL OR recurring_template_id = ?4)
		ORDER BY week_number, created_at, id`,
		userID, ids, intPtrToNull(filter.WeekNumber), stringPtrToNull(filter.RecurringOf))
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	// The single connection must be free before the child queries run.
	rows.Close()

	if len(tasks) == 0 {
		return tasks, nil
	}
	if err := s.loadChildren(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadChildren fills in subtasks and attachments for tasks.
func (s *Store) loadChildren(ctx context.Context, tasks []*domain.Task) error {
	byID := make(map[string]*domain.Task, len(tasks))
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		taskIDs = append(taskIDs, t.ID)
	}
	ids, err := jsonIDs(taskIDs)
	if err != nil {
		return err
	}

	err = s.forEachRow(ctx, `SELECT task_id, id, title, completed, position, weight, auto_complete_parent
		FROM subtasks WHERE task_id IN (SELECT value FROM json_each(?1))
		ORDER BY task_id, position, id`, []any{ids}, func(rows *sql.Rows) error {
		var (
			taskID string
			sub    domain.Subtask
			weight sql.NullInt64
		)
		if err := rows.Scan(&taskID, &sub.ID, &sub.Title, &sub.Completed, &sub.Position, &weight, &sub.AutoCompleteParent); err != nil {
			return err
		}
		sub.Weight = nullToIntPtr(weight)
		byID[taskID].Subtasks = append(byID[taskID].Subtasks, sub)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load subtasks: %w", err)
	}

	err = s.forEachRow(ctx, `SELECT task_id, id, name, storage_key, added_at
		FROM attachments WHERE task_id IN (SELECT value FROM json_each(?1))
		ORDER BY task_id, added_at, id`, []any{ids}, func(rows *sql.Rows) error {
		var (
			taskID  string
			att     domain.AttachmentRef
			addedAt int64
		)
		if err := rows.Scan(&taskID, &att.ID, &att.Name, &att.StorageKey, &addedAt); err != nil {
			return err
		}
		att.AddedAt = nanosToTime(addedAt)
		byID[taskID].Attachments = append(byID[taskID].Attachments, att)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load attachments: %w", err)
	}
	return nil
}

// forEachRow runs query and calls fn for every row, closing the rows afterwards.
func (s *Store) forEachRow(ctx context.Context, query string, args []any, fn func(rows *sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SaveTask inserts or replaces a task with its subtasks and attachment references.
// A second materialized task for the same (template, week) is silently skipped.
func (s *Store) SaveTask(ctx context.Context, task *domain.Task) error {
	return s.executeInTransaction(ctx, "save_task", func(tx *Store) error {
		if task.RecurringTemplateID != nil {
			var exists bool
			err := tx.db.QueryRowContext(ctx, `SELECT EXISTS (
				SELECT 1 FROM tasks
				WHERE user_id = ? AND recurring_template_id = ? AND week_number = ? AND id <> ?)`,
				task.UserID, *task.RecurringTemplateID, task.WeekNumber, task.ID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check materialized task: %w", err)
			}
			if exists {
				return nil
			}
		}

		res, err := tx.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				category = excluded.category,
				title = excluded.title,
				description = excluded.description,
				status = excluded.status,
				blocked = excluded.blocked,
				priority = excluded.priority,
				due_at = excluded.due_at,
				week_number = excluded.week_number,
				order_key = excluded.order_key,
				progress_current = excluded.progress_current,
				progress_total = excluded.progress_total,
				auto_progress = excluded.auto_progress,
				weighted_progress = excluded.weighted_progress,
				is_recurring = excluded.is_recurring,
				origin_week = excluded.origin_week,
				span_weeks = excluded.span_weeks,
				recurring_template_id = excluded.recurring_template_id,
				forked_from_id = excluded.forked_from_id,
				updated_at = excluded.updated_at
			WHERE tasks.user_id = excluded.user_id`,
			task.ID, task.UserID, string(task.Category), task.Title, stringPtrToNull(task.Description),
			string(task.Status), task.Blocked, string(task.Priority),
			timePtrToNanos(task.DueAt), task.WeekNumber, stringPtrToNull(task.OrderKey),
			intPtrToNull(task.ProgressCurrent), intPtrToNull(task.ProgressTotal), task.AutoProgress,
			task.WeightedProgress, task.IsRecurring, task.OriginWeek, task.SpanWeeks, stringPtrToNull(task.RecurringTemplateID),
			stringPtrToNull(task.ForkedFrom), timeToNanos(task.CreatedAt), timeToNanos(task.UpdatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("task %s conflicts with an existing row: %w", task.ID, err)
			}
			return fmt.Errorf("failed to save task: %w", err)
		}
		if err := checkRowsAffected(res, domain.ErrTaskNotFound, task.ID); err != nil {
			return err
		}

		if _, err := tx.db.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, task.ID); err != nil {
			return fmt.Errorf("failed to clear subtasks: %w", err)
		}
		if _, err := tx.db.ExecContext(ctx, `DELETE FROM attachments WHERE task_id = ?`, task.ID); err != nil {
			return fmt.Errorf("failed to clear attachments: %w", err)
		}
		for _, sub := range task.Subtasks {
			_, err := tx.db.ExecContext(ctx, `INSERT INTO subtasks (task_id, id, title, completed, position, weight, auto_complete_parent)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				task.ID, sub.ID, sub.Title, sub.Completed, sub.Position, intPtrToNull(sub.Weight), sub.AutoCompleteParent)
			if err != nil {
				return fmt.Errorf("failed to save subtask %s: %w", sub.ID, err)
			}
		}
		for _, att := range task.Attachments {
			_, err := tx.db.ExecContext(ctx, `INSERT INTO attachments (task_id, id, name, storage_key, added_at)
				VALUES (?, ?, ?, ?, ?)`,
				task.ID, att.ID, att.Name, att.StorageKey, timeToNanos(att.AddedAt))
			if err != nil {
				return fmt.Errorf("failed to save attachment %s: %w", att.ID, err)
			}
		}
		return nil
	})
}

// DeleteTask removes a task. Child rows go with it through ON DELETE CASCADE.
func (s *Store) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return checkRowsAffected(res, domain.ErrTaskNotFound, taskID)
}

// === Dependencies ===

func (s *Store) FindDependencies(ctx context.Context, userID string) ([]domain.TaskDependency, error) {
	var deps []domain.TaskDependency
	err := s.forEachRow(ctx, `SELECT id, user_id, task_id, depends_on_task_id, type, created_at
		FROM task_dependencies WHERE user_id = ? ORDER BY created_at, id`, []any{userID}, func(rows *sql.Rows) error {
		var (
			d         domain.TaskDependency
			depType   string
			createdAt int64
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.TaskID, &d.DependsOnTaskID, &depType, &createdAt); err != nil {
			return err
		}
		d.Type = domain.DependencyType(depType)
		d.CreatedAt = nanosToTime(createdAt)
		deps = append(deps, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	return deps, nil
}

// CreateDependency inserts an edge. A second edge with the same pair and type
// fails with domain.ErrDuplicateDependency.
func (s *Store) CreateDependency(ctx context.Context, dep domain.TaskDependency) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO task_dependencies (id, user_id, task_id, depends_on_task_id, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		dep.ID, dep.UserID, dep.TaskID, dep.DependsOnTaskID, string(dep.Type), timeToNanos(dep.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %w", domain.ErrDuplicateDependency, err)
		}
		return fmt.Errorf("failed to create dependency: %w", err)
	}
	return nil
}

func (s *Store) DeleteDependency(ctx context.Context, userID, dependencyID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_dependencies WHERE user_id = ? AND id = ?`, userID, dependencyID)
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
	}
	return checkRowsAffected(res, domain.ErrDependencyNotFound, dependencyID)
}

// === Weekly completions ===

func (s *Store) FindCompletions(ctx context.Context, userID string) ([]domain.WeeklyTaskCompletion, error) {
	var completions []domain.WeeklyTaskCompletion
	err := s.forEachRow(ctx, `SELECT user_id, task_id, week_number, status, progress_current, updated_at
		FROM weekly_completions WHERE user_id = ? ORDER BY task_id, week_number`, []any{userID}, func(rows *sql.Rows) error {
		var (
			c         domain.WeeklyTaskCompletion
			status    string
			updatedAt int64
		)
		if err := rows.Scan(&c.UserID, &c.TaskID, &c.WeekNumber, &status, &c.ProgressCurrent, &updatedAt); err != nil {
			return err
		}
		c.Status = domain.TaskStatus(status)
		c.UpdatedAt = nanosToTime(updatedAt)
		completions = append(completions, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	return completions, nil
}

func (s *Store) UpsertCompletion(ctx context.Context, c domain.WeeklyTaskCompletion) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO weekly_completions (task_id, week_number, user_id, status, progress_current, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id, week_number) DO UPDATE SET
			status = excluded.status,
			progress_current = excluded.progress_current,
			updated_at = excluded.updated_at`,
		c.TaskID, c.WeekNumber, c.UserID, string(c.Status), c.ProgressCurrent, timeToNanos(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert completion: %w", err)
	}
	return nil
}

// === Week pointer ===

func (s *Store) FindCurrentWeek(ctx context.Context, userID string) (int, error) {
	var week int
	err := s.db.QueryRowContext(ctx, `SELECT current_week FROM week_pointers WHERE user_id = ?`, userID).Scan(&week)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: user %s", domain.ErrWeekNotTracked, userID)
		}
		return 0, fmt.Errorf("failed to get current week: %w", err)
	}
	return week, nil
}

func (s *Store) SetCurrentWeek(ctx context.Context, userID string, week int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO week_pointers (user_id, current_week, updated_at)
		VALUES (?1, ?2, ?3)
		ON CONFLICT (user_id) DO UPDATE SET current_week = excluded.current_week, updated_at = excluded.updated_at`,
		userID, week, timeToNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set current week: %w", err)
	}
	return nil
}

// ListUserIDs returns every user with a tracked week or an active template.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.forEachRow(ctx, `SELECT user_id FROM week_pointers
		UNION
		SELECT user_id FROM recurring_templates WHERE is_active = 1
		ORDER BY user_id`, nil, func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}
