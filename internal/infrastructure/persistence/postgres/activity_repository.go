package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/weekplan/internal/domain"
)

// InsertActivity appends an activity record.
func (s *Store) InsertActivity(ctx context.Context, a domain.Activity) error {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := s.db.Exec(ctx, `INSERT INTO activities (id, user_id, task_id, type, old_value, new_value, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.TaskID, string(a.Type), a.OldValue, a.NewValue, metadata, timeToPgtype(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// FindActivities returns up to limit activities of one task, newest first.
func (s *Store) FindActivities(ctx context.Context, userID, taskID string, limit int) ([]domain.Activity, error) {
	rows, err := s.db.Query(ctx, `SELECT id, user_id, task_id, type, old_value, new_value, metadata, created_at
		FROM activities WHERE user_id = $1 AND task_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, userID, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	activities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Activity, error) {
		var (
			a         domain.Activity
			actType   string
			createdAt pgtype.Timestamptz
		)
		if err := row.Scan(&a.ID, &a.UserID, &a.TaskID, &actType, &a.OldValue, &a.NewValue, &a.Metadata, &createdAt); err != nil {
			return a, err
		}
		a.Type = domain.ActivityType(actType)
		a.CreatedAt = pgtypeToTime(createdAt)
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan activities: %w", err)
	}
	return activities, nil
}
