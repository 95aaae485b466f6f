package planner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rezkam/weekplan/internal/dependency"
	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/progress"
	"github.com/rezkam/weekplan/internal/ptr"
)

// CreateTask creates a task in the given week, or in the current week when none is set.
// Recurring-category tasks become visible for SpanWeeks weeks starting at that week.
func (e *Engine) CreateTask(ctx context.Context, params domain.NewTaskParams) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "CreateTask", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	title, err := domain.NewTitle(params.Title)
	if err != nil {
		return nil, err
	}
	category := domain.CategoryWork
	if params.Category != "" {
		if category, err = domain.NewCategory(string(params.Category)); err != nil {
			return nil, err
		}
	}
	status, err := intendedStatus(params.Status)
	if err != nil {
		return nil, err
	}
	priority, err := domain.NewTaskPriority(string(params.Priority))
	if err != nil {
		return nil, err
	}
	week := ws.CurrentWeek
	if params.WeekNumber != nil {
		week = *params.WeekNumber
	}
	if err := domain.ValidateWeek(week); err != nil {
		return nil, err
	}
	if params.ProgressCurrent != nil {
		if err := domain.ValidateProgress(*params.ProgressCurrent, params.ProgressTotal); err != nil {
			return nil, err
		}
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	task := &domain.Task{
		ID:               id,
		UserID:           ws.UserID,
		Category:         category,
		Title:            title.String(),
		Description:      cloneString(params.Description),
		Status:           status,
		Priority:         priority,
		DueAt:            utcTime(params.DueAt),
		WeekNumber:       week,
		OrderKey:         cloneString(params.OrderKey),
		ProgressCurrent:  cloneInt(params.ProgressCurrent),
		ProgressTotal:    cloneInt(params.ProgressTotal),
		AutoProgress:     params.AutoProgress,
		WeightedProgress: params.WeightedProgress,
		SpanWeeks:        domain.DefaultSpanWeeks,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if category == domain.CategoryRecurring {
		span := params.SpanWeeks
		if span == 0 {
			span = e.defaultSpan
		}
		if err := domain.ValidateSpanWeeks(span, e.maxSpan); err != nil {
			return nil, err
		}
		task.IsRecurring = true
		task.OriginWeek = week
		task.SpanWeeks = span
	} else if params.SpanWeeks > 1 {
		return nil, fmt.Errorf("%w: span weeks requires the recurring category", domain.ErrNotRecurring)
	}

	ws.tasks[task.ID] = task
	err = e.commit(ctx, ws, "create task", []string{task.ID}, func(repo Repository) error {
		return repo.SaveTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, ws, domain.Activity{
		TaskID:   task.ID,
		Type:     domain.ActivityCreated,
		NewValue: task.Title,
		Metadata: map[string]string{"week": strconv.Itoa(week), "category": string(category)},
	})
	return task.Clone(), nil
}

// UpdateTask applies a field-mask update.
//
// With params.Week set the update targets that week of a recurring-category
// task: status and progress go to the week's completion record and the task
// row is left unchanged.
func (e *Engine) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "UpdateTask", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	if err := params.Validate(); err != nil {
		return nil, err
	}
	task, err := ws.task(params.TaskID)
	if err != nil {
		return nil, err
	}
	mask := params.Mask()

	if params.Week != nil {
		var status *domain.TaskStatus
		if mask[domain.FieldStatus] {
			status = params.Status
		}
		var current *int
		if mask[domain.FieldProgress] {
			current = params.ProgressCurrent
		}
		if _, err := e.setCompletion(ctx, ws, task, *params.Week, status, current); err != nil {
			return nil, err
		}
		return task.Clone(), nil
	}

	updated := task.Clone()
	if mask[domain.FieldTitle] {
		title, err := domain.NewTitle(*params.Title)
		if err != nil {
			return nil, err
		}
		updated.Title = title.String()
	}
	if mask[domain.FieldDescription] {
		updated.Description = cloneString(params.Description)
	}
	if mask[domain.FieldStatus] {
		status, err := intendedStatus(*params.Status)
		if err != nil {
			return nil, err
		}
		if task.Blocked && status != domain.TaskStatusTodo {
			return nil, domain.ErrTaskBlocked
		}
		updated.Status = status
	}
	if mask[domain.FieldPriority] {
		priority, err := domain.NewTaskPriority(string(*params.Priority))
		if err != nil {
			return nil, err
		}
		updated.Priority = priority
	}
	if mask[domain.FieldDueAt] {
		updated.DueAt = utcTime(params.DueAt)
	}
	if mask[domain.FieldCategory] {
		category, err := domain.NewCategory(string(*params.Category))
		if err != nil {
			return nil, err
		}
		e.applyCategory(updated, category)
	}
	if mask[domain.FieldOrderKey] {
		updated.OrderKey = cloneString(params.OrderKey)
	}
	if mask[domain.FieldProgress] {
		if err := domain.ValidateProgress(*params.ProgressCurrent, params.ProgressTotal); err != nil {
			return nil, err
		}
		updated.ProgressCurrent = cloneInt(params.ProgressCurrent)
		updated.ProgressTotal = cloneInt(params.ProgressTotal)
	}
	if mask[domain.FieldAutoProgress] {
		updated.AutoProgress = *params.AutoProgress
	}
	if mask[domain.FieldWeightedProgress] {
		updated.WeightedProgress = *params.WeightedProgress
	}
	if mask[domain.FieldSpanWeeks] {
		if !updated.IsRecurringCategory() {
			return nil, domain.ErrNotRecurring
		}
		if err := domain.ValidateSpanWeeks(*params.SpanWeeks, e.maxSpan); err != nil {
			return nil, err
		}
		updated.SpanWeeks = *params.SpanWeeks
	}

	return e.saveTask(ctx, ws, "update task", task, updated)
}

// applyCategory moves a task between categories, keeping the recurrence
// attributes consistent with the new category.
func (e *Engine) applyCategory(task *domain.Task, category domain.Category) {
	task.Category = category
	if category != domain.CategoryRecurring {
		task.IsRecurring = false
		return
	}
	task.IsRecurring = true
	if task.OriginWeek == 0 {
		task.OriginWeek = task.WeekNumber
	}
	if task.SpanWeeks < 1 {
		task.SpanWeeks = e.defaultSpan
	}
}

// DeleteTask removes a task together with its dependency edges and weekly records.
// Former dependents are re-evaluated and may leave the blocked state.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) (err error) {
	op, err := e.begin(ctx, "DeleteTask", true)
	defer op.end(&err)
	if err != nil {
		return err
	}
	ctx, ws := op.ctx, op.ws

	task, err := ws.task(taskID)
	if err != nil {
		return err
	}

	delete(ws.tasks, taskID)
	dependents := ws.removeEdgesTouching(taskID)
	ws.deleteCompletionsOf(taskID)
	changes := ws.reevaluate(dependents...)

	ids := append([]string{taskID}, changedIDs(changes)...)
	err = e.commit(ctx, ws, "delete task", ids, func(repo Repository) error {
		// A task whose create never committed is already absent.
		if err := repo.DeleteTask(ctx, ws.UserID, taskID); err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		return saveChanged(ctx, repo, changes)
	})
	if err != nil {
		return err
	}

	activities := []domain.Activity{{TaskID: taskID, Type: domain.ActivityDeleted, OldValue: task.Title}}
	activities = append(activities, dependentActivities(changes, taskID)...)
	e.record(ctx, ws, activities...)
	return nil
}

// AddSubtask appends a subtask and recomputes auto progress.
func (e *Engine) AddSubtask(ctx context.Context, params domain.NewSubtaskParams) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "AddSubtask", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	if err := params.Validate(); err != nil {
		return nil, err
	}
	task, err := ws.task(params.TaskID)
	if err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	title, _ := domain.NewTitle(params.Title)
	updated := task.Clone()
	updated.Subtasks = append(updated.Subtasks, domain.Subtask{
		ID:                 id,
		Title:              title.String(),
		Position:           len(updated.Subtasks),
		Weight:             cloneInt(params.Weight),
		AutoCompleteParent: params.AutoCompleteParent,
	})

	return e.saveTask(ctx, ws, "add subtask", task, updated, domain.Activity{
		TaskID:   task.ID,
		Type:     domain.ActivitySubtaskAdded,
		NewValue: title.String(),
		Metadata: map[string]string{"subtask_id": id},
	})
}

// UpdateSubtask applies a field-mask update to a subtask.
// Completing a subtask flagged AutoCompleteParent marks its parent done,
// unless the parent is blocked by dependencies.
func (e *Engine) UpdateSubtask(ctx context.Context, params domain.UpdateSubtaskParams) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "UpdateSubtask", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	if err := params.Validate(); err != nil {
		return nil, err
	}
	task, err := ws.task(params.TaskID)
	if err != nil {
		return nil, err
	}
	updated := task.Clone()
	i := updated.FindSubtask(params.SubtaskID)
	if i < 0 {
		return nil, domain.ErrSubtaskNotFound
	}
	sub := &updated.Subtasks[i]

	completed := false
	for _, field := range params.UpdateMask {
		switch field {
		case domain.FieldSubtaskTitle:
			title, err := domain.NewTitle(*params.Title)
			if err != nil {
				return nil, err
			}
			sub.Title = title.String()
		case domain.FieldSubtaskCompleted:
			completed = *params.Completed && !sub.Completed
			sub.Completed = *params.Completed
		case domain.FieldSubtaskWeight:
			sub.Weight = cloneInt(params.Weight)
		case domain.FieldSubtaskAutoCompleteParent:
			sub.AutoCompleteParent = *params.AutoCompleteParent
		}
	}

	if completed && sub.AutoCompleteParent && updated.Status != domain.TaskStatusDone {
		if updated.Blocked {
			e.logger.InfoContext(ctx, "parent stays blocked after subtask completion",
				"user_id", ws.UserID, "task_id", task.ID, "subtask_id", sub.ID)
		} else {
			updated.Status = domain.TaskStatusDone
		}
	}

	return e.saveTask(ctx, ws, "update subtask", task, updated, domain.Activity{
		TaskID:   task.ID,
		Type:     domain.ActivitySubtaskUpdated,
		OldValue: subtaskState(task.Subtasks[i]),
		NewValue: subtaskState(*sub),
		Metadata: map[string]string{"subtask_id": sub.ID},
	})
}

// RemoveSubtask deletes a subtask and renumbers the remaining positions.
func (e *Engine) RemoveSubtask(ctx context.Context, taskID, subtaskID string) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "RemoveSubtask", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	task, err := ws.task(taskID)
	if err != nil {
		return nil, err
	}
	i := task.FindSubtask(subtaskID)
	if i < 0 {
		return nil, domain.ErrSubtaskNotFound
	}

	updated := task.Clone()
	removed := updated.Subtasks[i]
	updated.Subtasks = append(updated.Subtasks[:i], updated.Subtasks[i+1:]...)
	for j := range updated.Subtasks {
		updated.Subtasks[j].Position = j
	}

	return e.saveTask(ctx, ws, "remove subtask", task, updated, domain.Activity{
		TaskID:   task.ID,
		Type:     domain.ActivitySubtaskRemoved,
		OldValue: removed.Title,
		Metadata: map[string]string{"subtask_id": removed.ID},
	})
}

// ReorderSubtasks sets subtask positions to the order of subtaskIDs, which must
// name every subtask of the task exactly once.
func (e *Engine) ReorderSubtasks(ctx context.Context, taskID string, subtaskIDs []string) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "ReorderSubtasks", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	task, err := ws.task(taskID)
	if err != nil {
		return nil, err
	}
	if len(subtaskIDs) != len(task.Subtasks) {
		return nil, fmt.Errorf("%w: reorder must list all %d subtasks", domain.ErrPreconditionFailed, len(task.Subtasks))
	}

	updated := task.Clone()
	reordered := make([]domain.Subtask, 0, len(subtaskIDs))
	seen := make(map[string]struct{}, len(subtaskIDs))
	for pos, id := range subtaskIDs {
		i := updated.FindSubtask(id)
		if i < 0 {
			return nil, domain.ErrSubtaskNotFound
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: subtask %s listed twice", domain.ErrPreconditionFailed, id)
		}
		seen[id] = struct{}{}
		sub := updated.Subtasks[i]
		sub.Position = pos
		reordered = append(reordered, sub)
	}
	updated.Subtasks = reordered

	return e.saveTask(ctx, ws, "reorder subtasks", task, updated)
}

// AddAttachment links a file already held by attachment storage to the task.
func (e *Engine) AddAttachment(ctx context.Context, taskID, name, storageKey string) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "AddAttachment", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	name, storageKey = strings.TrimSpace(name), strings.TrimSpace(storageKey)
	if name == "" || storageKey == "" {
		return nil, fmt.Errorf("%w: attachment name and storage key are required", domain.ErrPreconditionFailed)
	}
	task, err := ws.task(taskID)
	if err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	updated := task.Clone()
	updated.Attachments = append(updated.Attachments, domain.AttachmentRef{
		ID:         id,
		Name:       name,
		StorageKey: storageKey,
		AddedAt:    e.now(),
	})

	return e.saveTask(ctx, ws, "add attachment", task, updated, domain.Activity{
		TaskID:   task.ID,
		Type:     domain.ActivityAttachmentAdded,
		NewValue: name,
		Metadata: map[string]string{"attachment_id": id},
	})
}

// RemoveAttachment unlinks an attachment. The underlying file is not touched,
// since forked tasks may still reference it.
func (e *Engine) RemoveAttachment(ctx context.Context, taskID, attachmentID string) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "RemoveAttachment", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	task, err := ws.task(taskID)
	if err != nil {
		return nil, err
	}
	updated := task.Clone()
	idx := -1
	for i, a := range updated.Attachments {
		if a.ID == attachmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.ErrAttachmentNotFound
	}
	removed := updated.Attachments[idx]
	updated.Attachments = append(updated.Attachments[:idx], updated.Attachments[idx+1:]...)

	return e.saveTask(ctx, ws, "remove attachment", task, updated, domain.Activity{
		TaskID:   task.ID,
		Type:     domain.ActivityAttachmentRemoved,
		OldValue: removed.Name,
		Metadata: map[string]string{"attachment_id": removed.ID},
	})
}

// RecalculateProgress recomputes auto progress from the task's subtasks.
// Nothing is written when the stored progress is already current.
func (e *Engine) RecalculateProgress(ctx context.Context, taskID string) (_ *domain.Task, err error) {
	op, err := e.begin(ctx, "RecalculateProgress", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	task, err := ws.task(taskID)
	if err != nil {
		return nil, err
	}
	updated := task.Clone()
	if !progress.Apply(updated) {
		return task.Clone(), nil
	}
	return e.saveTask(ctx, ws, "recalculate progress", task, updated)
}

// CalculateAutoProgress returns the subtask-derived percentage of a task with
// auto progress enabled. ok is false when auto progress is off or there are no
// subtasks, in which case the task must be left unmodified.
func CalculateAutoProgress(task *domain.Task) (percent int, ok bool) {
	if !task.AutoProgress {
		return 0, false
	}
	return progress.Calculate(task)
}

// saveTask replaces old with updated in the workspace, refreshes derived state
// and writes the task plus every dependent whose blocked state changed.
func (e *Engine) saveTask(ctx context.Context, ws *Workspace, op string, old, updated *domain.Task, extra ...domain.Activity) (*domain.Task, error) {
	progress.Apply(updated)
	updated.UpdatedAt = e.now()
	ws.tasks[updated.ID] = updated

	targets := append([]string{updated.ID}, dependency.Dependents(updated.ID, ws.deps)...)
	changes := ws.reevaluate(targets...)
	others := make([]statusChange, 0, len(changes))
	for _, c := range changes {
		if c.task.ID != updated.ID {
			others = append(others, c)
		}
	}

	ids := append([]string{updated.ID}, changedIDs(others)...)
	err := e.commit(ctx, ws, op, ids, func(repo Repository) error {
		if err := repo.SaveTask(ctx, updated); err != nil {
			return err
		}
		return saveChanged(ctx, repo, others)
	})
	if err != nil {
		return nil, err
	}

	activities := append(diffActivities(old, updated), extra...)
	activities = append(activities, dependentActivities(others, updated.ID)...)
	e.record(ctx, ws, activities...)
	return updated.Clone(), nil
}

func saveChanged(ctx context.Context, repo Repository, changes []statusChange) error {
	for _, c := range changes {
		if err := repo.SaveTask(ctx, c.task); err != nil {
			return err
		}
	}
	return nil
}

func changedIDs(changes []statusChange) []string {
	ids := make([]string, 0, len(changes))
	for _, c := range changes {
		ids = append(ids, c.task.ID)
	}
	return ids
}

// intendedStatus validates a status the user may set. Blocked is derived from
// dependencies and can't be requested directly.
func intendedStatus(s domain.TaskStatus) (domain.TaskStatus, error) {
	if s == "" {
		return domain.TaskStatusTodo, nil
	}
	status, err := domain.NewTaskStatus(string(s))
	if err != nil {
		return "", err
	}
	if status == domain.TaskStatusBlocked {
		return "", fmt.Errorf("%w: blocked is derived from dependencies", domain.ErrInvalidTaskStatus)
	}
	return status, nil
}

// diffActivities describes the tracked differences between two versions of a task.
func diffActivities(old, updated *domain.Task) []domain.Activity {
	var out []domain.Activity
	add := func(t domain.ActivityType, from, to string) {
		if from != to {
			out = append(out, domain.Activity{TaskID: updated.ID, Type: t, OldValue: from, NewValue: to})
		}
	}
	add(domain.ActivityStatusChanged, string(old.EffectiveStatus()), string(updated.EffectiveStatus()))
	add(domain.ActivityPriorityChanged, string(old.Priority), string(updated.Priority))
	add(domain.ActivityDueDateChanged, formatTime(old.DueAt), formatTime(updated.DueAt))
	add(domain.ActivityCategoryChanged, string(old.Category), string(updated.Category))
	add(domain.ActivityProgressChanged, formatInt(old.ProgressCurrent), formatInt(updated.ProgressCurrent))
	add(domain.ActivityWeekChanged, strconv.Itoa(old.WeekNumber), strconv.Itoa(updated.WeekNumber))
	return out
}

// dependentActivities describes status changes caused by a change to causeID.
func dependentActivities(changes []statusChange, causeID string) []domain.Activity {
	out := make([]domain.Activity, 0, len(changes))
	for _, c := range changes {
		out = append(out, domain.Activity{
			TaskID:   c.task.ID,
			Type:     domain.ActivityStatusChanged,
			OldValue: string(c.old),
			NewValue: string(c.new),
			Metadata: map[string]string{"cause": "dependency", "related_task_id": causeID},
		})
	}
	return out
}

func subtaskState(s domain.Subtask) string {
	return fmt.Sprintf("%s completed=%t weight=%d", s.Title, s.Completed, s.EffectiveWeight())
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	return ptr.To(*s)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	return ptr.To(*v)
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return ptr.To(t.UTC())
}
