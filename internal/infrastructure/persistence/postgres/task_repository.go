package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/weekplan/internal/domain"
)

// isUniqueViolation checks if an error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

// checkRowsAffected maps an UPDATE/DELETE that touched nothing to notFound.
func checkRowsAffected(tag pgconn.CommandTag, notFound error, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

const taskColumns = `id, user_id, category, title, description, status, blocked, priority,
	due_at, week_number, order_key, progress_current, progress_total, auto_progress,
	weighted_progress, is_recurring, origin_week, span_weeks, recurring_template_id,
	forked_from_id, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t                          domain.Task
		category, status, priority string
		dueAt, createdAt, updated  pgtype.Timestamptz
		current, total             pgtype.Int4
	)
	err := row.Scan(
		&t.ID, &t.UserID, &category, &t.Title, &t.Description, &status, &t.Blocked, &priority,
		&dueAt, &t.WeekNumber, &t.OrderKey, &current, &total, &t.AutoProgress,
		&t.WeightedProgress, &t.IsRecurring, &t.OriginWeek, &t.SpanWeeks, &t.RecurringTemplateID,
		&t.ForkedFrom, &createdAt, &updated,
	)
	if err != nil {
		return nil, err
	}
	t.Category = domain.Category(category)
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.TaskPriority(priority)
	t.DueAt = pgtypeToTimePtr(dueAt)
	t.ProgressCurrent = pgtypeToIntPtr(current)
	t.ProgressTotal = pgtypeToIntPtr(total)
	t.CreatedAt = pgtypeToTime(createdAt)
	t.UpdatedAt = pgtypeToTime(updated)
	return &t, nil
}

// FindTasks returns the user's tasks matching filter, with subtasks and attachments.
func (s *Store) FindTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]*domain.Task, error) {
	var ids []string
	if filter.IDs != nil {
		ids = filter.IDs
		if len(ids) == 0 {
			return nil, nil
		}
	}

	rows, err := s.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1
		  AND ($2::text[] IS NULL OR id = ANY($2))
		  AND ($3::integer IS NULL OR week_number = $3)
		  AND ($4::text IS NULL OR recurring_template_id = $4)
		ORDER BY week_number, created_at, id`,
		userID, ids, filter.WeekNumber, filter.RecurringOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasks: %w", err)
	}
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
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := s.db.Query(ctx, `SELECT task_id, id, title, completed, position, weight, auto_complete_parent
		FROM subtasks WHERE task_id = ANY($1) ORDER BY task_id, position, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query subtasks: %w", err)
	}
	var (
		taskID string
		sub    domain.Subtask
		weight pgtype.Int4
	)
	_, err = pgx.ForEachRow(rows, []any{&taskID, &sub.ID, &sub.Title, &sub.Completed, &sub.Position, &weight, &sub.AutoCompleteParent}, func() error {
		sub.Weight = pgtypeToIntPtr(weight)
		byID[taskID].Subtasks = append(byID[taskID].Subtasks, sub)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan subtasks: %w", err)
	}

	rows, err = s.db.Query(ctx, `SELECT task_id, id, name, storage_key, added_at
		FROM attachments WHERE task_id = ANY($1) ORDER BY task_id, added_at, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query attachments: %w", err)
	}
	var (
		att     domain.AttachmentRef
		addedAt pgtype.Timestamptz
	)
	_, err = pgx.ForEachRow(rows, []any{&taskID, &att.ID, &att.Name, &att.StorageKey, &addedAt}, func() error {
		att.AddedAt = pgtypeToTime(addedAt)
		byID[taskID].Attachments = append(byID[taskID].Attachments, att)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan attachments: %w", err)
	}
	return nil
}

// SaveTask inserts or replaces a task with its subtasks and attachment references.
// A second materialized task for the same (template, week) is silently skipped.
func (s *Store) SaveTask(ctx context.Context, task *domain.Task) error {
	return s.executeInTransaction(ctx, "save_task", func(tx *Store) error {
		if task.RecurringTemplateID != nil {
			var exists bool
			err := tx.db.QueryRow(ctx, `SELECT EXISTS (
				SELECT 1 FROM tasks
				WHERE user_id = $1 AND recurring_template_id = $2 AND week_number = $3 AND id <> $4)`,
				task.UserID, *task.RecurringTemplateID, task.WeekNumber, task.ID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check materialized task: %w", err)
			}
			if exists {
				return nil
			}
		}

		tag, err := tx.db.Exec(ctx, `INSERT INTO tasks (`+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
			ON CONFLICT (id) DO UPDATE SET
				category = EXCLUDED.category,
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				status = EXCLUDED.status,
				blocked = EXCLUDED.blocked,
				priority = EXCLUDED.priority,
				due_at = EXCLUDED.due_at,
				week_number = EXCLUDED.week_number,
				order_key = EXCLUDED.order_key,
				progress_current = EXCLUDED.progress_current,
				progress_total = EXCLUDED.progress_total,
				auto_progress = EXCLUDED.auto_progress,
				weighted_progress = EXCLUDED.weighted_progress,
				is_recurring = EXCLUDED.is_recurring,
				origin_week = EXCLUDED.origin_week,
				span_weeks = EXCLUDED.span_weeks,
				recurring_template_id = EXCLUDED.recurring_template_id,
				forked_from_id = EXCLUDED.forked_from_id,
				updated_at = EXCLUDED.updated_at
			WHERE tasks.user_id = EXCLUDED.user_id`,
			task.ID, task.UserID, string(task.Category), task.Title, task.Description,
			string(task.Status), task.Blocked, string(task.Priority),
			timePtrToPgtype(task.DueAt), task.WeekNumber, task.OrderKey,
			intPtrToPgtype(task.ProgressCurrent), intPtrToPgtype(task.ProgressTotal), task.AutoProgress,
			task.WeightedProgress, task.IsRecurring, task.OriginWeek, task.SpanWeeks, task.RecurringTemplateID,
			task.ForkedFrom, timeToPgtype(task.CreatedAt), timeToPgtype(task.UpdatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("task %s conflicts with an existing row: %w", task.ID, err)
			}
			return fmt.Errorf("failed to save task: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, task.ID)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM subtasks WHERE task_id = $1`, task.ID)
		batch.Queue(`DELETE FROM attachments WHERE task_id = $1`, task.ID)
		for _, sub := range task.Subtasks {
			batch.Queue(`INSERT INTO subtasks (task_id, id, title, completed, position, weight, auto_complete_parent)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				task.ID, sub.ID, sub.Title, sub.Completed, sub.Position, intPtrToPgtype(sub.Weight), sub.AutoCompleteParent)
		}
		for _, att := range task.Attachments {
			batch.Queue(`INSERT INTO attachments (task_id, id, name, storage_key, added_at)
				VALUES ($1, $2, $3, $4, $5)`,
				task.ID, att.ID, att.Name, att.StorageKey, timeToPgtype(att.AddedAt))
		}
		if err := tx.db.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save subtasks and attachments: %w", err)
		}
		return nil
	})
}

// DeleteTask removes a task. Subtasks, attachments, dependency edges in both
// directions and weekly completions go with it through ON DELETE CASCADE.
func (s *Store) DeleteTask(ctx context.Context, userID, taskID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1 AND id = $2`, userID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return checkRowsAffected(tag, domain.ErrTaskNotFound, taskID)
}

// === Dependencies ===

// FindDependencies returns every edge of the user in creation order.
func (s *Store) FindDependencies(ctx context.Context, userID string) ([]domain.TaskDependency, error) {
	rows, err := s.db.Query(ctx, `SELECT id, user_id, task_id, depends_on_task_id, type, created_at
		FROM task_dependencies WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	deps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TaskDependency, error) {
		var (
			d         domain.TaskDependency
			depType   string
			createdAt pgtype.Timestamptz
		)
		if err := row.Scan(&d.ID, &d.UserID, &d.TaskID, &d.DependsOnTaskID, &depType, &createdAt); err != nil {
			return d, err
		}
		d.Type = domain.DependencyType(depType)
		d.CreatedAt = pgtypeToTime(createdAt)
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan dependencies: %w", err)
	}
	return deps, nil
}

// CreateDependency inserts an edge. A second edge with the same pair and type
// fails with domain.ErrDuplicateDependency.
func (s *Store) CreateDependency(ctx context.Context, dep domain.TaskDependency) error {
	_, err := s.db.Exec(ctx, `INSERT INTO task_dependencies (id, user_id, task_id, depends_on_task_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		dep.ID, dep.UserID, dep.TaskID, dep.DependsOnTaskID, string(dep.Type), timeToPgtype(dep.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %w", domain.ErrDuplicateDependency, err)
		}
		return fmt.Errorf("failed to create dependency: %w", err)
	}
	return nil
}

// DeleteDependency removes an edge.
func (s *Store) DeleteDependency(ctx context.Context, userID, dependencyID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM task_dependencies WHERE user_id = $1 AND id = $2`, userID, dependencyID)
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
	}
	return checkRowsAffected(tag, domain.ErrDependencyNotFound, dependencyID)
}

// === Weekly completions ===

// FindCompletions returns every weekly completion record of the user.
func (s *Store) FindCompletions(ctx context.Context, userID string) ([]domain.WeeklyTaskCompletion, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id, task_id, week_number, status, progress_current, updated_at
		FROM weekly_completions WHERE user_id = $1 ORDER BY task_id, week_number`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	completions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WeeklyTaskCompletion, error) {
		var (
			c         domain.WeeklyTaskCompletion
			status    string
			updatedAt pgtype.Timestamptz
		)
		if err := row.Scan(&c.UserID, &c.TaskID, &c.WeekNumber, &status, &c.ProgressCurrent, &updatedAt); err != nil {
			return c, err
		}
		c.Status = domain.TaskStatus(status)
		c.UpdatedAt = pgtypeToTime(updatedAt)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan completions: %w", err)
	}
	return completions, nil
}

// UpsertCompletion writes the record keyed by (task, week).
func (s *Store) UpsertCompletion(ctx context.Context, c domain.WeeklyTaskCompletion) error {
	_, err := s.db.Exec(ctx, `INSERT INTO weekly_completions (task_id, week_number, user_id, status, progress_current, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, week_number) DO UPDATE SET
			status = EXCLUDED.status,
			progress_current = EXCLUDED.progress_current,
			updated_at = EXCLUDED.updated_at`,
		c.TaskID, c.WeekNumber, c.UserID, string(c.Status), c.ProgressCurrent, timeToPgtype(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert completion: %w", err)
	}
	return nil
}

// === Week pointer ===

// FindCurrentWeek returns domain.ErrWeekNotTracked for users without a pointer yet.
func (s *Store) FindCurrentWeek(ctx context.Context, userID string) (int, error) {
	var week int
	err := s.db.QueryRow(ctx, `SELECT current_week FROM week_pointers WHERE user_id = $1`, userID).Scan(&week)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: user %s", domain.ErrWeekNotTracked, userID)
		}
		return 0, fmt.Errorf("failed to get current week: %w", err)
	}
	return week, nil
}

// SetCurrentWeek stores the user's tracked week.
func (s *Store) SetCurrentWeek(ctx context.Context, userID string, week int) error {
	_, err := s.db.Exec(ctx, `INSERT INTO week_pointers (user_id, current_week, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET current_week = EXCLUDED.current_week, updated_at = NOW()`,
		userID, week)
	if err != nil {
		return fmt.Errorf("failed to set current week: %w", err)
	}
	return nil
}

// ListUserIDs returns every user with a tracked week or an active template.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM week_pointers
		UNION
		SELECT user_id FROM recurring_templates WHERE is_active
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return ids, nil
}
