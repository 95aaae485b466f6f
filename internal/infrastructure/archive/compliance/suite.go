// Package compliance holds the behaviour every week archive backend must share.
package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/ptr"
)

// Archive is the surface exercised by the suite.
type Archive interface {
	ArchiveWeek(ctx context.Context, snapshot domain.WeekSnapshot) error
	LoadWeek(ctx context.Context, userID string, week int) (domain.WeekSnapshot, error)
	ListWeeks(ctx context.Context, userID string) ([]int, error)
}

// Snapshot returns a small closed week for userID.
func Snapshot(userID string, week int) domain.WeekSnapshot {
	closed := time.Date(2025, time.March, 10, 5, 0, 0, 0, time.UTC)
	return domain.WeekSnapshot{
		UserID:     userID,
		WeekNumber: week,
		ClosedAt:   closed,
		Tasks: []domain.SnapshotTask{
			{
				Task: &domain.Task{
					ID:          "task-a",
					UserID:      userID,
					Category:    domain.CategoryWork,
					Title:       "Write report",
					Description: ptr.To("quarterly"),
					Status:      domain.TaskStatusInProgress,
					Priority:    domain.TaskPriorityHigh,
					WeekNumber:  week,
					Subtasks: []domain.Subtask{
						{ID: "sub-1", Title: "Outline", Completed: true, Position: 0, Weight: ptr.To(2)},
					},
					CreatedAt: closed.AddDate(0, 0, -7),
					UpdatedAt: closed.AddDate(0, 0, -1),
				},
				State: domain.EffectiveState{Status: domain.TaskStatusInProgress, ProgressCurrent: 40},
			},
			{
				Task: &domain.Task{
					ID:         "task-b",
					UserID:     userID,
					Category:   domain.CategoryPersonal,
					Title:      "Call bank",
					Status:     domain.TaskStatusTodo,
					Blocked:    true,
					Priority:   domain.TaskPriorityLow,
					WeekNumber: week,
					CreatedAt:  closed.AddDate(0, 0, -3),
					UpdatedAt:  closed.AddDate(0, 0, -3),
				},
				State: domain.EffectiveState{Status: domain.TaskStatusBlocked},
			},
		},
		Dependencies: []domain.TaskDependency{
			{ID: "dep-1", UserID: userID, TaskID: "task-b", DependsOnTaskID: "task-a", Type: domain.DependencyFinishToStart, CreatedAt: closed.AddDate(0, 0, -2)},
		},
	}
}

// RunArchiveComplianceTest runs the shared archive tests.
// setup returns a fresh archive and a cleanup function.
func RunArchiveComplianceTest(t *testing.T, setup func() (Archive, func())) {
	t.Run("ArchiveAndLoad", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		snapshot := Snapshot("user-archive", 10)
		require.NoError(t, store.ArchiveWeek(ctx, snapshot))

		loaded, err := store.LoadWeek(ctx, "user-archive", 10)
		require.NoError(t, err)
		assert.Equal(t, snapshot.UserID, loaded.UserID)
		assert.Equal(t, snapshot.WeekNumber, loaded.WeekNumber)
		assert.True(t, snapshot.ClosedAt.Equal(loaded.ClosedAt))
		require.Len(t, loaded.Tasks, 2)
		assert.Equal(t, "Write report", loaded.Tasks[0].Task.Title)
		assert.Equal(t, "quarterly", *loaded.Tasks[0].Task.Description)
		assert.Equal(t, 40, loaded.Tasks[0].State.ProgressCurrent)
		require.Len(t, loaded.Tasks[0].Task.Subtasks, 1)
		assert.Equal(t, 2, loaded.Tasks[0].Task.Subtasks[0].EffectiveWeight())
		assert.True(t, loaded.Tasks[1].Task.Blocked)
		assert.Equal(t, domain.TaskStatusBlocked, loaded.Tasks[1].State.Status)
		require.Len(t, loaded.Dependencies, 1)
		assert.Equal(t, domain.DependencyFinishToStart, loaded.Dependencies[0].Type)
	})

	t.Run("ArchiveReplacesSameWeek", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		first := Snapshot("user-replace", 3)
		require.NoError(t, store.ArchiveWeek(ctx, first))

		second := Snapshot("user-replace", 3)
		second.Tasks = second.Tasks[:1]
		require.NoError(t, store.ArchiveWeek(ctx, second))

		loaded, err := store.LoadWeek(ctx, "user-replace", 3)
		require.NoError(t, err)
		assert.Len(t, loaded.Tasks, 1)
	})

	t.Run("LoadMissingWeek", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		_, err := store.LoadWeek(context.Background(), "user-missing", 99)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListWeeksPerUser", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		for _, week := range []int{12, 3, 7} {
			require.NoError(t, store.ArchiveWeek(ctx, Snapshot("user-list", week)))
		}
		require.NoError(t, store.ArchiveWeek(ctx, Snapshot("user-other", 5)))

		weeks, err := store.ListWeeks(ctx, "user-list")
		require.NoError(t, err)
		assert.Equal(t, []int{3, 7, 12}, weeks)

		weeks, err = store.ListWeeks(ctx, "user-nobody")
		require.NoError(t, err)
		assert.Empty(t, weeks)
	})
}
