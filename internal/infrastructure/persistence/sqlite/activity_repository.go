package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rezkam/weekplan/internal/domain"
)

// InsertActivity appends an activity record. Metadata is stored as a JSON object.
func (s *Store) InsertActivity(ctx context.Context, a domain.Activity) error {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode activity metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO activities (id, user_id, task_id, type, old_value, new_value, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.TaskID, string(a.Type), a.OldValue, a.NewValue, string(encoded), timeToNanos(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// FindActivities returns up to limit activities of one task, newest first.
func (s *Store) FindActivities(ctx context.Context, userID, taskID string, limit int) ([]domain.Activity, error) {
	var activities []domain.Activity
	err := s.forEachRow(ctx, `SELECT id, user_id, task_id, type, old_value, new_value, metadata, created_at
		FROM activities WHERE user_id = ? AND task_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, []any{userID, taskID, limit}, func(rows *sql.Rows) error {
		var (
			a         domain.Activity
			actType   string
			metadata  string
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.TaskID, &actType, &a.OldValue, &a.NewValue, &metadata, &createdAt); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return fmt.Errorf("failed to decode metadata of activity %s: %w", a.ID, err)
		}
		a.Type = domain.ActivityType(actType)
		a.CreatedAt = nanosToTime(createdAt)
		activities = append(activities, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	return activities, nil
}
