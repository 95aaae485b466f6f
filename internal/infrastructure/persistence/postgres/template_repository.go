package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/weekplan/internal/domain"
)

const templateColumns = `id, user_id, title, description, priority, pattern, recurrence_interval,
	day_of_week, day_of_month, auto_create_days_before, is_active, last_created_at,
	next_creation_at, created_at, updated_at`

func scanTemplate(row pgx.CollectableRow) (*domain.RecurringTaskTemplate, error) {
	var (
		t                         domain.RecurringTaskTemplate
		priority, pattern         string
		dayOfWeek, dayOfMonth     pgtype.Int2
		lastCreated, nextCreation pgtype.Timestamptz
		createdAt, updatedAt      pgtype.Timestamptz
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
	t.DayOfWeek = pgtypeToWeekday(dayOfWeek)
	t.DayOfMonth = pgtypeInt2ToIntPtr(dayOfMonth)
	t.LastCreatedAt = pgtypeToTimePtr(lastCreated)
	t.NextCreationAt = pgtypeToTimePtr(nextCreation)
	t.CreatedAt = pgtypeToTime(createdAt)
	t.UpdatedAt = pgtypeToTime(updatedAt)
	return &t, nil
}

// FindTemplates returns the user's templates in creation order.
func (s *Store) FindTemplates(ctx context.Context, userID string, activeOnly bool) ([]*domain.RecurringTaskTemplate, error) {
	rows, err := s.db.Query(ctx, `SELECT `+templateColumns+` FROM recurring_templates
		WHERE user_id = $1 AND (NOT $2 OR is_active)
		ORDER BY created_at, id`, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	templates, err := pgx.CollectRows(rows, scanTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to scan templates: %w", err)
	}
	return templates, nil
}

// SaveTemplate inserts or replaces a template.
func (s *Store) SaveTemplate(ctx context.Context, t *domain.RecurringTaskTemplate) error {
	tag, err := s.db.Exec(ctx, `INSERT INTO recurring_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			pattern = EXCLUDED.pattern,
			recurrence_interval = EXCLUDED.recurrence_interval,
			day_of_week = EXCLUDED.day_of_week,
			day_of_month = EXCLUDED.day_of_month,
			auto_create_days_before = EXCLUDED.auto_create_days_before,
			is_active = EXCLUDED.is_active,
			last_created_at = EXCLUDED.last_created_at,
			next_creation_at = EXCLUDED.next_creation_at,
			updated_at = EXCLUDED.updated_at
		WHERE recurring_templates.user_id = EXCLUDED.user_id`,
		t.ID, t.UserID, t.Title, t.Description, string(t.Priority), string(t.Pattern), max(t.Interval, 1),
		weekdayToPgtype(t.DayOfWeek), int2PtrToPgtype(t.DayOfMonth), t.AutoCreateDaysBefore, t.IsActive,
		timePtrToPgtype(t.LastCreatedAt), timePtrToPgtype(t.NextCreationAt),
		timeToPgtype(t.CreatedAt), timeToPgtype(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return checkRowsAffected(tag, domain.ErrTemplateNotFound, t.ID)
}

// DeleteTemplate removes a template. Tasks materialized from it are kept.
func (s *Store) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM recurring_templates WHERE user_id = $1 AND id = $2`, userID, templateID)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return checkRowsAffected(tag, domain.ErrTemplateNotFound, templateID)
}
