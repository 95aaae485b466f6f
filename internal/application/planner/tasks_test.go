package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/ptr"
)

func TestEngine_AutoProgress(t *testing.T) {
	h := newHarness(t, 5)
	task, err := h.engine.CreateTask(h.ctx, domain.NewTaskParams{Title: "Release", AutoProgress: true})
	require.NoError(t, err)
	assert.Nil(t, task.ProgressCurrent, "no subtasks leaves progress unset")

	heavy, err := h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: task.ID, Title: "Migrate data", Weight: ptr.To(3)})
	require.NoError(t, err)
	require.NotNil(t, heavy.ProgressCurrent)
	assert.Equal(t, 0, *heavy.ProgressCurrent)

	_, err = h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: task.ID, Title: "Announce", Weight: ptr.To(1)})
	require.NoError(t, err)

	updated, err := h.engine.UpdateSubtask(h.ctx, domain.UpdateSubtaskParams{
		TaskID:     task.ID,
		SubtaskID:  heavy.Subtasks[0].ID,
		UpdateMask: []string{domain.FieldSubtaskCompleted},
		Completed:  ptr.To(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, *updated.ProgressCurrent, "unweighted")
	assert.Equal(t, 100, *updated.ProgressTotal)

	updated, err = h.engine.UpdateTask(h.ctx, domain.UpdateTaskParams{
		TaskID:           task.ID,
		UpdateMask:       []string{domain.FieldWeightedProgress},
		WeightedProgress: ptr.To(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 75, *updated.ProgressCurrent, "weighted")
	assert.Equal(t, 75, *h.repo.task(task.ID).ProgressCurrent)

	percent, ok := CalculateAutoProgress(updated)
	assert.True(t, ok)
	assert.Equal(t, 75, percent)

	updated, err = h.engine.UpdateSubtask(h.ctx, domain.UpdateSubtaskParams{
		TaskID:     task.ID,
		SubtaskID:  heavy.Subtasks[0].ID,
		UpdateMask: []string{domain.FieldSubtaskWeight},
		Weight:     ptr.To(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, *updated.ProgressCurrent)

	updated, err = h.engine.RemoveSubtask(h.ctx, task.ID, updated.Subtasks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, *updated.ProgressCurrent)
	require.Len(t, updated.Subtasks, 1)
	assert.Equal(t, 0, updated.Subtasks[0].Position)

	assert.NotEmpty(t, h.activity.ofType(domain.ActivityProgressChanged))
}

func TestEngine_AutoProgressEnabledLater(t *testing.T) {
	h := newHarness(t, 5)
	task := h.createTask(t, "Manual", domain.TaskStatusTodo)
	withSub, err := h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: task.ID, Title: "Only step"})
	require.NoError(t, err)
	assert.Nil(t, withSub.ProgressCurrent)

	_, ok := CalculateAutoProgress(withSub)
	assert.False(t, ok, "auto progress is off")

	_, err = h.engine.UpdateSubtask(h.ctx, domain.UpdateSubtaskParams{
		TaskID: task.ID, SubtaskID: withSub.Subtasks[0].ID,
		UpdateMask: []string{domain.FieldSubtaskCompleted}, Completed: ptr.To(true),
	})
	require.NoError(t, err)
	assert.Nil(t, h.task(t, task.ID).ProgressCurrent)

	updated, err := h.engine.UpdateTask(h.ctx, domain.UpdateTaskParams{
		TaskID: task.ID, UpdateMask: []string{domain.FieldAutoProgress}, AutoProgress: ptr.To(true),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ProgressCurrent)
	assert.Equal(t, 100, *updated.ProgressCurrent)

	again, err := h.engine.RecalculateProgress(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, *again.ProgressCurrent)
}

func TestEngine_SubtaskAutoCompletesParent(t *testing.T) {
	h := newHarness(t, 5)
	parent := h.createTask(t, "Parent", domain.TaskStatusInProgress)
	dependent := h.createTask(t, "Next", domain.TaskStatusTodo)
	_, err := h.engine.AddDependency(h.ctx, dependent.ID, parent.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)
	require.True(t, h.task(t, dependent.ID).Blocked)

	withSub, err := h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: parent.ID, Title: "Final step", AutoCompleteParent: true})
	require.NoError(t, err)

	updated, err := h.engine.UpdateSubtask(h.ctx, domain.UpdateSubtaskParams{
		TaskID: parent.ID, SubtaskID: withSub.Subtasks[0].ID,
		UpdateMask: []string{domain.FieldSubtaskCompleted}, Completed: ptr.To(true),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, updated.Status)
	assert.False(t, h.task(t, dependent.ID).Blocked, "dependents are re-evaluated")
}

func TestEngine_SubtaskAutoCompleteSkipsBlockedParent(t *testing.T) {
	h := newHarness(t, 5)
	prereq := h.createTask(t, "Prereq", domain.TaskStatusTodo)
	parent := h.createTask(t, "Parent", domain.TaskStatusTodo)
	_, err := h.engine.AddDependency(h.ctx, parent.ID, prereq.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)

	withSub, err := h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: parent.ID, Title: "Step", AutoCompleteParent: true})
	require.NoError(t, err)
	updated, err := h.engine.UpdateSubtask(h.ctx, domain.UpdateSubtaskParams{
		TaskID: parent.ID, SubtaskID: withSub.Subtasks[0].ID,
		UpdateMask: []string{domain.FieldSubtaskCompleted}, Completed: ptr.To(true),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusBlocked, updated.EffectiveStatus())
	assert.True(t, updated.Subtasks[0].Completed)
}

func TestEngine_SubtaskErrors(t *testing.T) {
	h := newHarness(t, 5)
	task := h.createTask(t, "Task", domain.TaskStatusTodo)

	_, err := h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: task.ID, Title: ""})
	assert.ErrorIs(t, err, domain.ErrTitleRequired)
	_, err = h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: task.ID, Title: "x", Weight: ptr.To(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidWeight)
	_, err = h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: "missing", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	_, err = h.engine.UpdateSubtask(h.ctx, domain.UpdateSubtaskParams{
		TaskID: task.ID, SubtaskID: "missing",
		UpdateMask: []string{domain.FieldSubtaskCompleted}, Completed: ptr.To(true),
	})
	assert.ErrorIs(t, err, domain.ErrSubtaskNotFound)

	_, err = h.engine.RemoveSubtask(h.ctx, task.ID, "missing")
	assert.ErrorIs(t, err, domain.ErrSubtaskNotFound)
}

func TestEngine_ReorderSubtasks(t *testing.T) {
	h := newHarness(t, 5)
	task := h.createTask(t, "Task", domain.TaskStatusTodo)
	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		updated, err := h.engine.AddSubtask(h.ctx, domain.NewSubtaskParams{TaskID: task.ID, Title: title})
		require.NoError(t, err)
		ids = append(ids, updated.Subtasks[len(updated.Subtasks)-1].ID)
	}

	updated, err := h.engine.ReorderSubtasks(h.ctx, task.ID, []string{ids[2], ids[0], ids[1]})
	require.NoError(t, err)
	require.Len(t, updated.Subtasks, 3)
	assert.Equal(t, "third", updated.Subtasks[0].Title)
	assert.Equal(t, 0, updated.Subtasks[0].Position)
	assert.Equal(t, "second", updated.Subtasks[2].Title)
	assert.Equal(t, 2, updated.Subtasks[2].Position)

	_, err = h.engine.ReorderSubtasks(h.ctx, task.ID, []string{ids[0], ids[1]})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	_, err = h.engine.ReorderSubtasks(h.ctx, task.ID, []string{ids[0], ids[0], ids[1]})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
}

func TestEngine_Attachments(t *testing.T) {
	h := newHarness(t, 5)
	task := h.createTask(t, "Task", domain.TaskStatusTodo)

	updated, err := h.engine.AddAttachment(h.ctx, task.ID, "notes.md", "users/user-1/notes.md")
	require.NoError(t, err)
	require.Len(t, updated.Attachments, 1)
	assert.Equal(t, "users/user-1/notes.md", updated.Attachments[0].StorageKey)
	assert.Len(t, h.repo.task(task.ID).Attachments, 1)

	_, err = h.engine.AddAttachment(h.ctx, task.ID, "", "key")
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	updated, err = h.engine.RemoveAttachment(h.ctx, task.ID, updated.Attachments[0].ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Attachments)

	_, err = h.engine.RemoveAttachment(h.ctx, task.ID, "missing")
	assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)

	assert.Len(t, h.activity.ofType(domain.ActivityAttachmentAdded), 1)
	assert.Len(t, h.activity.ofType(domain.ActivityAttachmentRemoved), 1)
}
