package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rezkam/weekplan/internal/domain"
)

const templateColumns = `id, user_id, title, description, priority, pattern, recurrence_interval,
	day_of_week, day_of_month, auto_create_days_before, is_active, last_created_at,
	next_creation_at, created_at, updated_at`

func scanTemplate(row scanner) (*domain.RecurringTaskTemplate, error) {
	var (
		t                         domain.RecurringTaskTemplate
		priority, pattern         string
		dayOfWeek, dayOfMonth     sql.NullInt64
		lastCreated, nextCreation sql.NullInt64
		createdAt, updatedAt      int64
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &priority, &pattern, &t.Interval,
		&dayOfWeek, &dayOfMonth, &t.AutoCreateDaysBefore, &t.IsActive, &lastCreated,
		&nextCreation, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Priority = domain.TaskPriority(priority)
	t.Pattern = domain.RecurrencePattern(pattern)
	t.DayOfWeek = nullToWeekday(dayOfWeek)
	t.DayOfMonth = nullToIntPtr(dayOfMonth)
	t.LastCreatedAt = nanosToTimePtr(lastCreated)
	t.NextCreationAt = nanosToTimePtr(nextCreation)
	t.CreatedAt = nanosToTime(createdAt)
	t.UpdatedAt = nanosToTime(updatedAt)
	return &t, nil
}

// FindTemplates returns the user's templates in creation order.
func (s *Store) FindTemplates(ctx context.Context, userID string, activeOnly bool) ([]*domain.RecurringTaskTemplate, error) {
	var templates []*domain.RecurringTaskTemplate
	err := s.forEachRow(ctx, `SELECT `+templateColumns+` FROM recurring_templates
		WHERE user_id = ?1 AND (NOT ?2 OR is_active = 1)
		ORDER BY created_at, id`, []any{userID, activeOnly}, func(rows *sql.Rows) error {
		t, err := scanTemplate(rows)
		if err != nil {
			return err
		}
		templates = append(templates, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	return templates, nil
}

// SaveTemplate inserts or replaces a template.
func (s *Store) SaveTemplate(ctx context.Context, t *domain.RecurringTaskTemplate) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO recurring_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			pattern = excluded.pattern,
			recurrence_interval = excluded.recurrence_interval,
			day_of_week = excluded.day_of_week,
			day_of_month = excluded.day_of_month,
			auto_create_days_before = excluded.auto_create_days_before,
			is_active = excluded.is_active,
			last_created_at = excluded.last_created_at,
			next_creation_at = excluded.next_creation_at,
			updated_at = excluded.updated_at
		WHERE recurring_templates.user_id = excluded.user_id`,
		t.ID, t.UserID, t.Title, stringPtrToNull(t.Description), string(t.Priority), string(t.Pattern), max(t.Interval, 1),
		weekdayToNull(t.DayOfWeek), intPtrToNull(t.DayOfMonth), t.AutoCreateDaysBefore, t.IsActive,
		timePtrToNanos(t.LastCreatedAt), timePtrToNanos(t.NextCreationAt),
		timeToNanos(t.CreatedAt), timeToNanos(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return checkRowsAffected(res, domain.ErrTemplateNotFound, t.ID)
}

// DeleteTemplate removes a template. Tasks materialized from it are kept.
func (s *Store) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE user_id = ? AND id = ?`, userID, templateID)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return checkRowsAffected(res, domain.ErrTemplateNotFound, templateID)
}
