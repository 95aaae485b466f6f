package planner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/ptr"
)

func TestEngine_RolloverIncompleteTasks(t *testing.T) {
	h := newHarness(t, 5)
	a := h.createTask(t, "A", domain.TaskStatusTodo)
	b := h.createTask(t, "B", domain.TaskStatusDone)
	c := h.createTask(t, "C", domain.TaskStatusInProgress)
	recurringTask, err := h.engine.CreateTask(h.ctx, domain.NewTaskParams{Title: "Gym", Category: domain.CategoryRecurring})
	require.NoError(t, err)
	template, err := h.engine.CreateTemplate(h.ctx, domain.NewTemplateParams{Title: "Weekly review", Pattern: domain.RecurrenceWeekly})
	require.NoError(t, err)

	result, err := h.engine.RolloverIncompleteTasks(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, result.FromWeek)
	assert.Equal(t, 6, result.ToWeek)
	assert.Len(t, result.Carried, 2)

	assert.Equal(t, 6, h.task(t, a.ID).WeekNumber)
	assert.Equal(t, a.ID, h.task(t, a.ID).ID, "identity is preserved")
	assert.Equal(t, 5, h.task(t, b.ID).WeekNumber)
	assert.Equal(t, 6, h.task(t, c.ID).WeekNumber)
	assert.Equal(t, 5, h.task(t, recurringTask.ID).WeekNumber, "recurring rows are not moved")

	assert.Equal(t, 6, h.repo.weeks[testUser])
	assert.Equal(t, 6, h.repo.task(a.ID).WeekNumber)
	assert.Equal(t, 5, h.repo.task(b.ID).WeekNumber)

	week, err := h.engine.CurrentWeek(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, week)

	t.Run("materializes recurring templates for the new week", func(t *testing.T) {
		require.Len(t, result.Materialized, 1)
		assert.Equal(t, 6, result.Materialized[0].WeekNumber)
		assert.Equal(t, template.ID, *result.Materialized[0].RecurringTemplateID)
	})

	t.Run("archives the closed week", func(t *testing.T) {
		require.Len(t, h.archiver.snapshots, 1)
		snapshot := h.archiver.snapshots[0]
		assert.Equal(t, 5, snapshot.WeekNumber)
		assert.Len(t, snapshot.Tasks, 4)
		for _, st := range snapshot.Tasks {
			assert.Equal(t, 5, st.Task.WeekNumber, "snapshot holds the week as it was closed")
		}
	})

	t.Run("records week changes", func(t *testing.T) {
		changes := h.activity.ofType(domain.ActivityWeekChanged)
		require.Len(t, changes, 2)
		assert.Equal(t, "5", changes[0].OldValue)
		assert.Equal(t, "6", changes[0].NewValue)
	})
}

func TestEngine_RolloverCarriesBlockedTasks(t *testing.T) {
	h := newHarness(t, 5)
	prereq := h.createTask(t, "Prereq", domain.TaskStatusTodo)
	dependent := h.createTask(t, "Dependent", domain.TaskStatusTodo)
	_, err := h.engine.AddDependency(h.ctx, dependent.ID, prereq.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)

	_, err = h.engine.RolloverIncompleteTasks(h.ctx)
	require.NoError(t, err)

	got := h.task(t, dependent.ID)
	assert.Equal(t, 6, got.WeekNumber)
	assert.True(t, got.Blocked)
}

func TestEngine_RolloverArchiveFailureIsLogged(t *testing.T) {
	h := newHarness(t, 5)
	h.archiver.err = errors.New("bucket unavailable")
	h.createTask(t, "A", domain.TaskStatusTodo)

	_, err := h.engine.RolloverIncompleteTasks(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, h.repo.weeks[testUser])
}

func TestEngine_RolloverRemoteFailure(t *testing.T) {
	h := newHarness(t, 5)
	a := h.createTask(t, "A", domain.TaskStatusTodo)
	h.repo.failWrites = true

	_, err := h.engine.RolloverIncompleteTasks(h.ctx)
	require.ErrorIs(t, err, domain.ErrRemoteFailure)

	assert.Equal(t, 6, h.task(t, a.ID).WeekNumber, "local change stays")
	assert.Equal(t, 5, h.repo.task(a.ID).WeekNumber)
	assert.Equal(t, 5, h.repo.weeks[testUser])
	assert.Empty(t, h.archiver.snapshots)
}

func TestEngine_MigrateAllTasks(t *testing.T) {
	h := newHarness(t, 3)

	c, err := h.engine.CreateTask(h.ctx, domain.NewTaskParams{
		Title:        "C",
		Category:     domain.CategoryWork,
		Status:       domain.TaskStatusInProgress,
		Priority:     domain.TaskPriorityHigh,
		AutoProgress: true,
	})
	require.NoError(t, err)
	withFirst, err := h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: c.ID, Title: "s1", Weight: ptr.To(2)})
	require.NoError(t, err)
	_, err = h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: c.ID, Title: "s2"})
	require.NoError(t, err)
	_, err = h.engine.UpdateSubtask(h.ctx, domain.UpdateSubtaskParams{
		TaskID:     c.ID,
		SubtaskID:  withFirst.Subtasks[0].ID,
		UpdateMask: []string{domain.FieldSubtaskCompleted},
		Completed:  ptr.To(true),
	})
	require.NoError(t, err)
	_, err = h.engine.AddAttachment(h.ctx, c.ID, "design.pdf", "attachments/user-1/design.pdf")
	require.NoError(t, err)

	prereq := h.createTask(t, "Prereq", domain.TaskStatusDone)
	_, err = h.engine.AddDependency(h.ctx, c.ID, prereq.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)

	todo := h.createTask(t, "Todo", domain.TaskStatusTodo)
	original := h.task(t, c.ID)

	h.setWeek(7)
	result, err := h.engine.MigrateAllTasks(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.FromWeek)
	assert.Equal(t, 7, result.ToWeek)

	t.Run("todo tasks move", func(t *testing.T) {
		require.Len(t, result.Moved, 1)
		assert.Equal(t, todo.ID, result.Moved[0].ID)
		assert.Equal(t, 7, h.task(t, todo.ID).WeekNumber)
		assert.Equal(t, 7, h.repo.task(todo.ID).WeekNumber)
	})

	t.Run("in-progress tasks fork", func(t *testing.T) {
		require.Len(t, result.Forked, 1)
		fork := h.task(t, result.Forked[0].Fork.ID)

		assert.NotEqual(t, c.ID, fork.ID)
		require.NotNil(t, fork.ForkedFrom)
		assert.Equal(t, c.ID, *fork.ForkedFrom)
		assert.Equal(t, c.ID, *h.repo.task(fork.ID).ForkedFrom)
		assert.Equal(t, 7, fork.WeekNumber)
		assert.Equal(t, domain.TaskStatusInProgress, fork.Status)
		assert.Equal(t, original.Title, fork.Title)
		assert.Equal(t, original.Priority, fork.Priority)
		assert.Equal(t, original.Category, fork.Category)
		assert.True(t, fork.AutoProgress)
		assert.Equal(t, original.ProgressCurrent, fork.ProgressCurrent)

		require.Len(t, fork.Subtasks, 2)
		for i, sub := range fork.Subtasks {
			assert.Equal(t, original.Subtasks[i].Title, sub.Title)
			assert.Equal(t, original.Subtasks[i].Completed, sub.Completed)
			assert.Equal(t, original.Subtasks[i].Position, sub.Position)
			assert.Equal(t, original.Subtasks[i].Weight, sub.Weight)
			assert.NotEqual(t, original.Subtasks[i].ID, sub.ID)
		}

		require.Len(t, fork.Attachments, 1)
		assert.Equal(t, original.Attachments[0].StorageKey, fork.Attachments[0].StorageKey)

		edges, err := h.engine.Dependencies(h.ctx, fork.ID)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, prereq.ID, edges[0].DependsOnTaskID)
		assert.Equal(t, domain.DependencyFinishToStart, edges[0].Type)

		assert.NotNil(t, h.repo.task(fork.ID))
		assert.Len(t, h.repo.deps, 2)
	})

	t.Run("original stays in its week", func(t *testing.T) {
		got := h.task(t, c.ID)
		assert.Equal(t, 3, got.WeekNumber)
		assert.Equal(t, original, got)
		assert.Equal(t, 3, h.repo.task(c.ID).WeekNumber)
	})

	t.Run("done tasks stay", func(t *testing.T) {
		assert.Equal(t, 3, h.task(t, prereq.ID).WeekNumber)
	})

	t.Run("week pointer catches up", func(t *testing.T) {
		assert.Equal(t, 7, h.repo.weeks[testUser])
		_, err := h.engine.MigrateAllTasks(h.ctx)
		assert.ErrorIs(t, err, domain.ErrMigrationNotNeeded)
	})

	assert.Len(t, h.activity.ofType(domain.ActivityForked), 1)
}

func TestEngine_MigrateAllTasks_NotBehind(t *testing.T) {
	h := newHarness(t, 5)
	task := h.createTask(t, "A", domain.TaskStatusTodo)
	commits := h.repo.commitCount()

	_, err := h.engine.MigrateAllTasks(h.ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMigrationNotNeeded)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	assert.Equal(t, commits, h.repo.commitCount(), "no writes")
	assert.Equal(t, 5, h.task(t, task.ID).WeekNumber)

	_, err = h.engine.RolloverIncompleteTasks(h.ctx)
	require.NoError(t, err)
	_, err = h.engine.MigrateAllTasks(h.ctx)
	assert.ErrorIs(t, err, domain.ErrMigrationNotNeeded, "tracked week ahead of the calendar")
}

func TestEngine_ForkedOriginalsStayInTheirWeek(t *testing.T) {
	migrateTo := func(week int) func(*testing.T, *harness) {
		return func(t *testing.T, h *harness) {
			h.setWeek(week)
			_, err := h.engine.MigrateAllTasks(h.ctx)
			require.NoError(t, err)
		}
	}
	rollover := func(t *testing.T, h *harness) {
		_, err := h.engine.RolloverIncompleteTasks(h.ctx)
		require.NoError(t, err)
	}

	tests := []struct {
		name         string
		steps        []func(*testing.T, *harness)
		wantWeek     int
		originalWeek int
		forks        int
	}{
		{
			name:         "migrate then rollover",
			steps:        []func(*testing.T, *harness){migrateTo(7), rollover},
			wantWeek:     8,
			originalWeek: 3,
			forks:        1,
		},
		{
			name:         "two migrations in a row",
			steps:        []func(*testing.T, *harness){migrateTo(7), migrateTo(10)},
			wantWeek:     10,
			originalWeek: 3,
			forks:        2,
		},
		{
			name:         "rollover then migrate",
			steps:        []func(*testing.T, *harness){rollover, migrateTo(9)},
			wantWeek:     9,
			originalWeek: 4,
			forks:        1,
		},
		{
			name:         "migrate, rollover, migrate",
			steps:        []func(*testing.T, *harness){migrateTo(7), rollover, migrateTo(12)},
			wantWeek:     12,
			originalWeek: 3,
			forks:        2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3)
			started := h.createTask(t, "Started", domain.TaskStatusInProgress)
			todo := h.createTask(t, "Todo", domain.TaskStatusTodo)

			for _, step := range tt.steps {
				step(t, h)
			}

			week, err := h.engine.CurrentWeek(h.ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWeek, week)

			assert.Equal(t, tt.originalWeek, h.task(t, started.ID).WeekNumber)
			assert.Equal(t, tt.originalWeek, h.repo.task(started.ID).WeekNumber)
			assert.Equal(t, domain.TaskStatusInProgress, h.task(t, started.ID).Status)
			assert.Len(t, h.activity.ofType(domain.ActivityForked), tt.forks)

			views, err := h.engine.WeekView(h.ctx, 0)
			require.NoError(t, err)
			copies := make(map[string]int)
			for _, v := range views {
				copies[h.rootOf(t, v.Task.ID)]++
			}
			assert.Equal(t, map[string]int{started.ID: 1, todo.ID: 1}, copies)
		})
	}
}

// rootOf follows fork links back to the task that was first created.
func (h *harness) rootOf(t *testing.T, id string) string {
	t.Helper()
	for {
		task := h.task(t, id)
		if task.ForkedFrom == nil {
			return id
		}
		id = *task.ForkedFrom
	}
}
