// Package recurring decides which recurring task instances exist in a week
// and what state they show there.
//
// A recurring task is one logical row that stays visible for SpanWeeks weeks
// starting at OriginWeek. Its status in each of those weeks comes from a
// WeeklyTaskCompletion side record, never from the row itself, so completing
// the task in one week does not leak into another.
package recurring

import (
	"github.com/rezkam/weekplan/internal/domain"
)

// originAndSpan returns the visibility window of a task.
func originAndSpan(task *domain.Task) (origin, span int) {
	if !task.IsRecurringCategory() {
		return task.WeekNumber, 1
	}
	origin = task.OriginWeek
	if origin == 0 {
		origin = task.WeekNumber
	}
	span = task.SpanWeeks
	if span < 1 {
		span = domain.DefaultSpanWeeks
	}
	return origin, span
}

// IsVisibleInWeek reports whether the task appears in targetWeek.
// Recurring-category tasks are visible for origin <= week < origin+span;
// all other tasks only in their own week.
func IsVisibleInWeek(task *domain.Task, targetWeek int) bool {
	origin, span := originAndSpan(task)
	return origin <= targetWeek && targetWeek < origin+span
}

// LastVisibleWeek returns the final week the task is visible in.
func LastVisibleWeek(task *domain.Task) int {
	origin, span := originAndSpan(task)
	return origin + span - 1
}

// ClampToVisible returns the week inside the task's visibility window closest to week.
func ClampToVisible(task *domain.Task, week int) int {
	origin, span := originAndSpan(task)
	return min(max(week, origin), origin+span-1)
}

// EffectiveStateForWeek returns the status and progress the task shows in targetWeek.
//
// For recurring-category tasks a completion record for exactly that task and
// week is authoritative; without one the week starts fresh as todo with zero
// progress. Non-recurring tasks report their own effective status and progress.
func EffectiveStateForWeek(task *domain.Task, targetWeek int, record *domain.WeeklyTaskCompletion) domain.EffectiveState {
	if !task.IsRecurringCategory() {
		state := domain.EffectiveState{Status: task.EffectiveStatus()}
		if task.ProgressCurrent != nil {
			state.ProgressCurrent = *task.ProgressCurrent
		}
		return state
	}

	if record != nil && record.TaskID == task.ID && record.WeekNumber == targetWeek {
		return domain.EffectiveState{Status: record.Status, ProgressCurrent: record.ProgressCurrent}
	}
	return domain.EffectiveState{Status: domain.TaskStatusTodo}
}
