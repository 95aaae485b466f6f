package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/ptr"
)

func viewIDs(views []TaskView) map[string]TaskView {
	out := make(map[string]TaskView, len(views))
	for _, v := range views {
		out[v.Task.ID] = v
	}
	return out
}

func TestEngine_RecurringTaskVisibility(t *testing.T) {
	h := newHarness(t, 10)
	task, err := h.engine.CreateTask(h.ctx, domain.NewTaskParams{
		Title:     "Stand-up notes",
		Category:  domain.CategoryRecurring,
		SpanWeeks: 3,
	})
	require.NoError(t, err)
	assert.True(t, task.IsRecurring)
	assert.Equal(t, 10, task.OriginWeek)
	assert.Equal(t, 3, task.SpanWeeks)

	for week, visible := range map[int]bool{9: false, 10: true, 11: true, 12: true, 13: false} {
		views, err := h.engine.WeekView(h.ctx, week)
		require.NoError(t, err)
		_, ok := viewIDs(views)[task.ID]
		assert.Equal(t, visible, ok, "week %d", week)
	}
}

func TestEngine_RecurringPrerequisiteFollowsWeeklyCompletion(t *testing.T) {
	h := newHarness(t, 5)
	gym, err := h.engine.CreateTask(h.ctx, domain.NewTaskParams{
		Title:     "Gym",
		Category:  domain.CategoryRecurring,
		SpanWeeks: 2,
	})
	require.NoError(t, err)
	swim := h.createTask(t, "Swim", domain.TaskStatusTodo)
	_, err = h.engine.AddDependency(h.ctx, swim.ID, gym.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)
	require.True(t, h.task(t, swim.ID).Blocked, "gym has no record for week 5 yet")

	_, err = h.engine.SetWeeklyTaskCompletion(h.ctx, gym.ID, 5, domain.TaskStatusDone, 0)
	require.NoError(t, err)

	views, err := h.engine.WeekView(h.ctx, 5)
	require.NoError(t, err)
	byID := viewIDs(views)
	assert.Equal(t, domain.TaskStatusDone, byID[gym.ID].State.Status)
	assert.Equal(t, domain.TaskStatusTodo, byID[swim.ID].State.Status)

	eligible, err := h.engine.IsEligibleToStart(h.ctx, swim.ID)
	require.NoError(t, err)
	assert.True(t, eligible)
	assert.False(t, h.repo.task(swim.ID).Blocked, "dependent is written with the completion")

	var unblocked []domain.Activity
	for _, a := range h.activity.ofType(domain.ActivityStatusChanged) {
		if a.TaskID == swim.ID && a.OldValue == string(domain.TaskStatusBlocked) {
			unblocked = append(unblocked, a)
		}
	}
	require.Len(t, unblocked, 1)
	assert.Equal(t, string(domain.TaskStatusTodo), unblocked[0].NewValue)
	assert.Equal(t, gym.ID, unblocked[0].Metadata["related_task_id"])

	t.Run("a record for another week does not count", func(t *testing.T) {
		_, err := h.engine.SetWeeklyTaskCompletion(h.ctx, gym.ID, 6, domain.TaskStatusTodo, 0)
		require.NoError(t, err)
		assert.False(t, h.task(t, swim.ID).Blocked)
	})

	t.Run("the next week starts fresh", func(t *testing.T) {
		_, err := h.engine.RolloverIncompleteTasks(h.ctx)
		require.NoError(t, err)

		got := h.task(t, swim.ID)
		assert.Equal(t, 6, got.WeekNumber)
		assert.True(t, got.Blocked)
		assert.True(t, h.repo.task(swim.ID).Blocked)

		_, err = h.engine.SetWeeklyTaskCompletion(h.ctx, gym.ID, 6, domain.TaskStatusDone, 0)
		require.NoError(t, err)
		assert.False(t, h.task(t, swim.ID).Blocked)
	})

	t.Run("past the span the last visible week decides", func(t *testing.T) {
		_, err := h.engine.RolloverIncompleteTasks(h.ctx)
		require.NoError(t, err)

		eligible, err := h.engine.IsEligibleToStart(h.ctx, swim.ID)
		require.NoError(t, err)
		assert.True(t, eligible, "gym is done in week 6, its last visible week")
		assert.False(t, h.task(t, swim.ID).Blocked)
	})
}

func TestEngine_SetWeeklyTaskCompletion(t *testing.T) {
	h := newHarness(t, 10)
	task, err := h.engine.CreateTask(h.ctx, domain.NewTaskParams{
		Title:     "Water plants",
		Category:  domain.CategoryRecurring,
		SpanWeeks: 3,
	})
	require.NoError(t, err)

	record, err := h.engine.SetWeeklyTaskCompletion(h.ctx, task.ID, 10, domain.TaskStatusDone, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.CompletionKey{TaskID: task.ID, WeekNumber: 10}, record.Key())

	week10, err := h.engine.WeekView(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.EffectiveState{Status: domain.TaskStatusDone, ProgressCurrent: 100}, viewIDs(week10)[task.ID].State)

	week11, err := h.engine.WeekView(h.ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.EffectiveState{Status: domain.TaskStatusTodo}, viewIDs(week11)[task.ID].State,
		"a week without a record starts fresh")

	assert.Equal(t, domain.TaskStatusTodo, h.task(t, task.ID).Status, "task row status is independent")
	assert.Equal(t, domain.TaskStatusTodo, h.repo.task(task.ID).Status)

	t.Run("upsert keeps one record per week", func(t *testing.T) {
		_, err := h.engine.SetWeeklyTaskCompletion(h.ctx, task.ID, 10, domain.TaskStatusInProgress, 40)
		require.NoError(t, err)
		assert.Len(t, h.repo.completions, 1)
		assert.Equal(t, domain.TaskStatusInProgress, h.repo.completions[record.Key()].Status)
	})

	t.Run("update addressed to a week", func(t *testing.T) {
		_, err := h.engine.UpdateTask(h.ctx, domain.UpdateTaskParams{
			TaskID:     task.ID,
			UpdateMask: []string{domain.FieldStatus},
			Week:       ptr.To(12),
			Status:     ptr.To(domain.TaskStatusDone),
		})
		require.NoError(t, err)

		week12, err := h.engine.WeekView(h.ctx, 12)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusDone, viewIDs(week12)[task.ID].State.Status)
		assert.Equal(t, domain.TaskStatusTodo, h.task(t, task.ID).Status)
		assert.Len(t, h.repo.completions, 2)
	})

	t.Run("week outside the span", func(t *testing.T) {
		_, err := h.engine.SetWeeklyTaskCompletion(h.ctx, task.ID, 13, domain.TaskStatusDone, 0)
		assert.ErrorIs(t, err, domain.ErrNotVisibleInWeek)
	})

	t.Run("non-recurring task", func(t *testing.T) {
		plain := h.createTask(t, "One-off", domain.TaskStatusTodo)
		_, err := h.engine.SetWeeklyTaskCompletion(h.ctx, plain.ID, 10, domain.TaskStatusDone, 0)
		assert.ErrorIs(t, err, domain.ErrNotRecurring)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := h.engine.SetWeeklyTaskCompletion(h.ctx, "missing", 10, domain.TaskStatusDone, 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEngine_GenerateRecurringTasks_Idempotent(t *testing.T) {
	h := newHarness(t, 5)
	template, err := h.engine.CreateTemplate(h.ctx, domain.NewTemplateParams{
		Title:   "Weekly review",
		Pattern: domain.RecurrenceWeekly,
	})
	require.NoError(t, err)
	assert.True(t, template.IsActive)

	first, err := h.engine.GenerateRecurringTasks(h.ctx, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, domain.CategoryRecurring, first[0].Category)
	assert.Equal(t, 5, first[0].WeekNumber)
	assert.Equal(t, 5, first[0].OriginWeek)
	require.NotNil(t, first[0].RecurringTemplateID)
	assert.Equal(t, template.ID, *first[0].RecurringTemplateID)

	second, err := h.engine.GenerateRecurringTasks(h.ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, h.repo.taskCount())

	stored := h.repo.templates[template.ID]
	require.NotNil(t, stored.LastCreatedAt)
	require.NotNil(t, stored.NextCreationAt)
	assert.Len(t, h.activity.ofType(domain.ActivityCreated), 1)
}

func TestEngine_GenerateRecurringTasks_SkipsInactiveAndNonOccurring(t *testing.T) {
	h := newHarness(t, 5)
	paused, err := h.engine.CreateTemplate(h.ctx, domain.NewTemplateParams{Title: "Paused", Pattern: domain.RecurrenceWeekly})
	require.NoError(t, err)
	_, err = h.engine.SetTemplateActive(h.ctx, paused.ID, false)
	require.NoError(t, err)

	_, err = h.engine.CreateTemplate(h.ctx, domain.NewTemplateParams{Title: "Fortnightly", Pattern: domain.RecurrenceBiweekly})
	require.NoError(t, err)

	week6, err := h.engine.GenerateRecurringTasks(h.ctx, 6)
	require.NoError(t, err)
	assert.Empty(t, week6)

	week7, err := h.engine.GenerateRecurringTasks(h.ctx, 7)
	require.NoError(t, err)
	require.Len(t, week7, 1)
	assert.Equal(t, "Fortnightly", week7[0].Title)
}

func TestEngine_Templates(t *testing.T) {
	h := newHarness(t, 5)

	_, err := h.engine.CreateTemplate(h.ctx, domain.NewTemplateParams{Title: "", Pattern: domain.RecurrenceWeekly})
	assert.ErrorIs(t, err, domain.ErrTitleRequired)
	_, err = h.engine.CreateTemplate(h.ctx, domain.NewTemplateParams{Title: "x", Pattern: "daily"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrencePattern)

	template, err := h.engine.CreateTemplate(h.ctx, domain.NewTemplateParams{Title: "Pay rent", Pattern: domain.RecurrenceMonthly, DayOfMonth: ptr.To(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, template.Interval)
	assert.Equal(t, domain.TaskPriorityMedium, template.Priority)

	due, err := h.engine.TemplatesDue(h.ctx, h.now)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	all, err := h.engine.Templates(h.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, h.engine.DeleteTemplate(h.ctx, template.ID))
	assert.ErrorIs(t, h.engine.DeleteTemplate(h.ctx, template.ID), domain.ErrTemplateNotFound)
	_, err = h.engine.SetTemplateActive(h.ctx, template.ID, true)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	assert.Empty(t, h.repo.templates)
}
