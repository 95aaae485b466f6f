// Package compliance holds the behaviour every persistence backend must share.
package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/application/planner"
	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/ptr"
)

// Store is the surface exercised by the suite.
type Store interface {
	planner.Repository
	ListUserIDs(ctx context.Context) ([]string, error)
	InsertActivity(ctx context.Context, activity domain.Activity) error
	FindActivities(ctx context.Context, userID, taskID string, limit int) ([]domain.Activity, error)
}

// base is truncated to microseconds, the coarsest precision a backend stores.
var base = time.Date(2025, time.March, 12, 9, 30, 15, 123456000, time.UTC)

func newUser() string {
	return "user-" + uuid.NewString()
}

// NewTask returns a minimal valid task for userID in week.
func NewTask(userID string, week int, title string) *domain.Task {
	return &domain.Task{
		ID:         uuid.NewString(),
		UserID:     userID,
		Category:   domain.CategoryWork,
		Title:      title,
		Status:     domain.TaskStatusTodo,
		Priority:   domain.TaskPriorityMedium,
		WeekNumber: week,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

// NewTemplate returns an active weekly template for userID.
func NewTemplate(userID, title string) *domain.RecurringTaskTemplate {
	return &domain.RecurringTaskTemplate{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Priority:  domain.TaskPriorityMedium,
		Pattern:   domain.RecurrenceWeekly,
		Interval:  1,
		DayOfWeek: ptr.To(time.Wednesday),
		IsActive:  true,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func findOne(t *testing.T, store Store, userID, taskID string) *domain.Task {
	t.Helper()
	tasks, err := store.FindTasks(context.Background(), userID, domain.TaskFilter{IDs: []string{taskID}})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return tasks[0]
}

// RunRepositoryComplianceTest runs the shared repository behaviour against one backend.
// setup returns a ready store and a cleanup function. Every subtest works on
// its own user, so the store may be shared.
func RunRepositoryComplianceTest(t *testing.T, setup func() (Store, func())) {
	store, cleanup := setup()
	t.Cleanup(cleanup)

	t.Run("TaskRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		task := NewTask(user, 12, "Write report")
		task.Description = ptr.To("quarterly numbers")
		task.Status = domain.TaskStatusInProgress
		task.Blocked = true
		task.Priority = domain.TaskPriorityHigh
		task.DueAt = ptr.To(base.Add(48 * time.Hour))
		task.OrderKey = ptr.To("a1")
		task.ProgressCurrent = ptr.To(40)
		task.ProgressTotal = ptr.To(100)
		task.AutoProgress = true
		task.WeightedProgress = true
		task.Subtasks = []domain.Subtask{
			{ID: "s1", Title: "outline", Completed: true, Position: 0, Weight: ptr.To(3)},
			{ID: "s2", Title: "draft", Position: 1, AutoCompleteParent: true},
		}
		task.Attachments = []domain.AttachmentRef{
			{ID: "a1", Name: "data.csv", StorageKey: "blobs/data.csv", AddedAt: base},
		}
		require.NoError(t, store.SaveTask(ctx, task))

		got := findOne(t, store, user, task.ID)
		assert.Equal(t, task.Title, got.Title)
		assert.Equal(t, "quarterly numbers", ptr.Deref(got.Description, ""))
		assert.Equal(t, domain.TaskStatusInProgress, got.Status)
		assert.True(t, got.Blocked)
		assert.Equal(t, domain.TaskStatusBlocked, got.EffectiveStatus())
		assert.Equal(t, domain.TaskPriorityHigh, got.Priority)
		require.NotNil(t, got.DueAt)
		assert.True(t, task.DueAt.Equal(*got.DueAt))
		assert.Equal(t, time.UTC, got.DueAt.Location())
		assert.Equal(t, 12, got.WeekNumber)
		assert.Equal(t, "a1", ptr.Deref(got.OrderKey, ""))
		assert.Equal(t, 40, ptr.Deref(got.ProgressCurrent, -1))
		assert.Equal(t, 100, ptr.Deref(got.ProgressTotal, -1))
		assert.True(t, got.AutoProgress)
		assert.True(t, got.WeightedProgress)
		assert.True(t, base.Equal(got.CreatedAt))

		require.Len(t, got.Subtasks, 2)
		assert.Equal(t, "s1", got.Subtasks[0].ID)
		assert.True(t, got.Subtasks[0].Completed)
		assert.Equal(t, 3, got.Subtasks[0].EffectiveWeight())
		assert.Nil(t, got.Subtasks[1].Weight)
		assert.True(t, got.Subtasks[1].AutoCompleteParent)

		require.Len(t, got.Attachments, 1)
		assert.Equal(t, "blobs/data.csv", got.Attachments[0].StorageKey)
		assert.True(t, base.Equal(got.Attachments[0].AddedAt))
	})

	t.Run("TaskUpdateReplacesChildren", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		task := NewTask(user, 3, "Plan")
		task.Subtasks = []domain.Subtask{{ID: "s1", Title: "one"}, {ID: "s2", Title: "two", Position: 1}}
		require.NoError(t, store.SaveTask(ctx, task))

		task.Title = "Plan v2"
		task.WeekNumber = 4
		task.Subtasks = []domain.Subtask{{ID: "s2", Title: "two", Position: 0, Completed: true}}
		task.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, store.SaveTask(ctx, task))

		got := findOne(t, store, user, task.ID)
		assert.Equal(t, "Plan v2", got.Title)
		assert.Equal(t, 4, got.WeekNumber)
		require.Len(t, got.Subtasks, 1)
		assert.Equal(t, "s2", got.Subtasks[0].ID)
		assert.True(t, got.Subtasks[0].Completed)
		assert.Nil(t, got.Description)
		assert.Nil(t, got.DueAt)
	})

	t.Run("TaskOwnedByAnotherUser", func(t *testing.T) {
		ctx := context.Background()
		owner, intruder := newUser(), newUser()

		task := NewTask(owner, 1, "Private")
		require.NoError(t, store.SaveTask(ctx, task))

		stolen := task.Clone()
		stolen.UserID = intruder
		stolen.Title = "Mine now"
		err := store.SaveTask(ctx, stolen)
		require.ErrorIs(t, err, domain.ErrTaskNotFound)

		assert.Equal(t, "Private", findOne(t, store, owner, task.ID).Title)
		tasks, err := store.FindTasks(ctx, intruder, domain.TaskFilter{})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("TaskFilters", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()
		template := NewTemplate(user, "Standup")
		require.NoError(t, store.SaveTemplate(ctx, template))

		a := NewTask(user, 5, "a")
		b := NewTask(user, 6, "b")
		c := NewTask(user, 6, "c")
		c.IsRecurring = true
		c.Category = domain.CategoryRecurring
		c.RecurringTemplateID = ptr.To(template.ID)
		for _, task := range []*domain.Task{a, b, c} {
			require.NoError(t, store.SaveTask(ctx, task))
		}

		all, err := store.FindTasks(ctx, user, domain.TaskFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, 5, all[0].WeekNumber)

		week6, err := store.FindTasks(ctx, user, domain.TaskFilter{WeekNumber: ptr.To(6)})
		require.NoError(t, err)
		assert.Len(t, week6, 2)

		fromTemplate, err := store.FindTasks(ctx, user, domain.TaskFilter{RecurringOf: ptr.To(template.ID)})
		require.NoError(t, err)
		require.Len(t, fromTemplate, 1)
		assert.Equal(t, c.ID, fromTemplate[0].ID)

		byIDs, err := store.FindTasks(ctx, user, domain.TaskFilter{IDs: []string{a.ID, c.ID}})
		require.NoError(t, err)
		assert.Len(t, byIDs, 2)

		none, err := store.FindTasks(ctx, user, domain.TaskFilter{IDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("MaterializedTaskDeduplicated", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()
		template := NewTemplate(user, "Review")
		require.NoError(t, store.SaveTemplate(ctx, template))

		first := NewTask(user, 9, "Review")
		first.IsRecurring = true
		first.RecurringTemplateID = ptr.To(template.ID)
		second := first.Clone()
		second.ID = uuid.NewString()

		require.NoError(t, store.SaveTask(ctx, first))
		require.NoError(t, store.SaveTask(ctx, second))

		tasks, err := store.FindTasks(ctx, user, domain.TaskFilter{RecurringOf: ptr.To(template.ID)})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, first.ID, tasks[0].ID)
	})

	t.Run("ForkSharesAttachmentIDs", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		source := NewTask(user, 2, "Design doc")
		source.Attachments = []domain.AttachmentRef{{ID: "att-1", Name: "design.pdf", StorageKey: "k/design.pdf", AddedAt: base}}
		fork := source.Clone()
		fork.ID = uuid.NewString()
		fork.WeekNumber = 3
		fork.ForkedFrom = ptr.To(source.ID)

		require.NoError(t, store.SaveTask(ctx, source))
		require.NoError(t, store.SaveTask(ctx, fork))

		got := findOne(t, store, user, fork.ID)
		assert.Equal(t, "k/design.pdf", got.Attachments[0].StorageKey)
		assert.Equal(t, source.ID, ptr.Deref(got.ForkedFrom, ""))
		assert.Len(t, findOne(t, store, user, source.ID).Attachments, 1)
		assert.Nil(t, findOne(t, store, user, source.ID).ForkedFrom)
	})

	t.Run("DeleteTaskCascades", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		a := NewTask(user, 1, "a")
		b := NewTask(user, 1, "b")
		b.Category = domain.CategoryRecurring
		require.NoError(t, store.SaveTask(ctx, a))
		require.NoError(t, store.SaveTask(ctx, b))
		require.NoError(t, store.CreateDependency(ctx, domain.TaskDependency{
			ID: uuid.NewString(), UserID: user, TaskID: a.ID, DependsOnTaskID: b.ID,
			Type: domain.DependencyFinishToStart, CreatedAt: base,
		}))
		require.NoError(t, store.UpsertCompletion(ctx, domain.WeeklyTaskCompletion{
			UserID: user, TaskID: b.ID, WeekNumber: 1, Status: domain.TaskStatusDone, ProgressCurrent: 100, UpdatedAt: base,
		}))

		require.NoError(t, store.DeleteTask(ctx, user, b.ID))

		deps, err := store.FindDependencies(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, deps)
		completions, err := store.FindCompletions(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, completions)

		err = store.DeleteTask(ctx, user, b.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Dependencies", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		a := NewTask(user, 1, "a")
		b := NewTask(user, 1, "b")
		require.NoError(t, store.SaveTask(ctx, a))
		require.NoError(t, store.SaveTask(ctx, b))

		edge := domain.TaskDependency{
			ID: uuid.NewString(), UserID: user, TaskID: a.ID, DependsOnTaskID: b.ID,
			Type: domain.DependencyFinishToStart, CreatedAt: base,
		}
		require.NoError(t, store.CreateDependency(ctx, edge))

		duplicate := edge
		duplicate.ID = uuid.NewString()
		err := store.CreateDependency(ctx, duplicate)
		assert.ErrorIs(t, err, domain.ErrDuplicateDependency)

		otherType := edge
		otherType.ID = uuid.NewString()
		otherType.Type = domain.DependencyStartToStart
		otherType.CreatedAt = base.Add(time.Second)
		require.NoError(t, store.CreateDependency(ctx, otherType))

		deps, err := store.FindDependencies(ctx, user)
		require.NoError(t, err)
		require.Len(t, deps, 2)
		assert.Equal(t, edge.ID, deps[0].ID)
		assert.Equal(t, domain.DependencyFinishToStart, deps[0].Type)
		assert.True(t, base.Equal(deps[0].CreatedAt))

		require.NoError(t, store.DeleteDependency(ctx, user, edge.ID))
		assert.ErrorIs(t, store.DeleteDependency(ctx, user, edge.ID), domain.ErrDependencyNotFound)
		assert.ErrorIs(t, store.DeleteDependency(ctx, newUser(), otherType.ID), domain.ErrDependencyNotFound)
	})

	t.Run("CompletionUpsert", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()
		task := NewTask(user, 1, "Gym")
		task.Category = domain.CategoryRecurring
		require.NoError(t, store.SaveTask(ctx, task))

		record := domain.WeeklyTaskCompletion{
			UserID: user, TaskID: task.ID, WeekNumber: 2, Status: domain.TaskStatusInProgress, ProgressCurrent: 30, UpdatedAt: base,
		}
		require.NoError(t, store.UpsertCompletion(ctx, record))
		record.Status = domain.TaskStatusDone
		record.ProgressCurrent = 100
		require.NoError(t, store.UpsertCompletion(ctx, record))
		require.NoError(t, store.UpsertCompletion(ctx, domain.WeeklyTaskCompletion{
			UserID: user, TaskID: task.ID, WeekNumber: 3, Status: domain.TaskStatusTodo, UpdatedAt: base,
		}))

		completions, err := store.FindCompletions(ctx, user)
		require.NoError(t, err)
		require.Len(t, completions, 2)
		assert.Equal(t, domain.CompletionKey{TaskID: task.ID, WeekNumber: 2}, completions[0].Key())
		assert.Equal(t, domain.TaskStatusDone, completions[0].Status)
		assert.Equal(t, 100, completions[0].ProgressCurrent)
	})

	t.Run("Templates", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		weekly := NewTemplate(user, "Weekly")
		weekly.AutoCreateDaysBefore = 2
		weekly.NextCreationAt = ptr.To(base.Add(72 * time.Hour))
		monthly := NewTemplate(user, "Monthly")
		monthly.Pattern = domain.RecurrenceMonthly
		monthly.DayOfWeek = nil
		monthly.DayOfMonth = ptr.To(31)
		monthly.CreatedAt = base.Add(time.Minute)
		monthly.IsActive = false
		require.NoError(t, store.SaveTemplate(ctx, weekly))
		require.NoError(t, store.SaveTemplate(ctx, monthly))

		all, err := store.FindTemplates(ctx, user, false)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, weekly.ID, all[0].ID)
		assert.Equal(t, time.Wednesday, *all[0].DayOfWeek)
		assert.Equal(t, 2, all[0].AutoCreateDaysBefore)
		require.NotNil(t, all[0].NextCreationAt)
		assert.True(t, weekly.NextCreationAt.Equal(*all[0].NextCreationAt))
		assert.Nil(t, all[0].LastCreatedAt)
		assert.Equal(t, 31, ptr.Deref(all[1].DayOfMonth, 0))
		assert.Nil(t, all[1].DayOfWeek)

		active, err := store.FindTemplates(ctx, user, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, weekly.ID, active[0].ID)

		monthly.IsActive = true
		monthly.Title = "Monthly review"
		require.NoError(t, store.SaveTemplate(ctx, monthly))
		active, err = store.FindTemplates(ctx, user, true)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		require.NoError(t, store.DeleteTemplate(ctx, user, weekly.ID))
		assert.ErrorIs(t, store.DeleteTemplate(ctx, user, weekly.ID), domain.ErrTemplateNotFound)
	})

	t.Run("DeleteTemplateKeepsTasks", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()
		template := NewTemplate(user, "Retro")
		require.NoError(t, store.SaveTemplate(ctx, template))

		task := NewTask(user, 4, "Retro")
		task.IsRecurring = true
		task.RecurringTemplateID = ptr.To(template.ID)
		require.NoError(t, store.SaveTask(ctx, task))

		require.NoError(t, store.DeleteTemplate(ctx, user, template.ID))
		assert.Equal(t, template.ID, ptr.Deref(findOne(t, store, user, task.ID).RecurringTemplateID, ""))
	})

	t.Run("WeekPointer", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		_, err := store.FindCurrentWeek(ctx, user)
		require.ErrorIs(t, err, domain.ErrWeekNotTracked)

		require.NoError(t, store.SetCurrentWeek(ctx, user, 10))
		require.NoError(t, store.SetCurrentWeek(ctx, user, 11))
		week, err := store.FindCurrentWeek(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, 11, week)
	})

	t.Run("AtomicRollsBack", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()
		boom := errors.New("boom")

		task := NewTask(user, 1, "never")
		err := store.Atomic(ctx, func(repo planner.Repository) error {
			if err := repo.SaveTask(ctx, task); err != nil {
				return err
			}
			if err := repo.SetCurrentWeek(ctx, user, 7); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		tasks, err := store.FindTasks(ctx, user, domain.TaskFilter{})
		require.NoError(t, err)
		assert.Empty(t, tasks)
		_, err = store.FindCurrentWeek(ctx, user)
		assert.ErrorIs(t, err, domain.ErrWeekNotTracked)
	})

	t.Run("AtomicCommits", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()

		task := NewTask(user, 2, "kept")
		err := store.Atomic(ctx, func(repo planner.Repository) error {
			if err := repo.SaveTask(ctx, task); err != nil {
				return err
			}
			return repo.SetCurrentWeek(ctx, user, 2)
		})
		require.NoError(t, err)

		assert.Equal(t, "kept", findOne(t, store, user, task.ID).Title)
		week, err := store.FindCurrentWeek(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, 2, week)
	})

	t.Run("ListUserIDs", func(t *testing.T) {
		ctx := context.Background()
		tracked, templated, inactive := newUser(), newUser(), newUser()

		require.NoError(t, store.SetCurrentWeek(ctx, tracked, 1))
		require.NoError(t, store.SaveTemplate(ctx, NewTemplate(templated, "Active")))
		paused := NewTemplate(inactive, "Paused")
		paused.IsActive = false
		require.NoError(t, store.SaveTemplate(ctx, paused))

		ids, err := store.ListUserIDs(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, tracked)
		assert.Contains(t, ids, templated)
		assert.NotContains(t, ids, inactive)
	})

	t.Run("Activities", func(t *testing.T) {
		ctx := context.Background()
		user := newUser()
		taskID := uuid.NewString()

		for i, typ := range []domain.ActivityType{domain.ActivityCreated, domain.ActivityStatusChanged, domain.ActivityWeekChanged} {
			require.NoError(t, store.InsertActivity(ctx, domain.Activity{
				ID:        uuid.NewString(),
				UserID:    user,
				TaskID:    taskID,
				Type:      typ,
				OldValue:  "old",
				NewValue:  "new",
				Metadata:  map[string]string{"reason": "rollover"},
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		activities, err := store.FindActivities(ctx, user, taskID, 2)
		require.NoError(t, err)
		require.Len(t, activities, 2)
		assert.Equal(t, domain.ActivityWeekChanged, activities[0].Type)
		assert.Equal(t, domain.ActivityStatusChanged, activities[1].Type)
		assert.Equal(t, "rollover", activities[0].Metadata["reason"])
	})
}
