// Package progress derives a task's completion percentage from its subtasks.
package progress

import (
	"math"

	"github.com/rezkam/weekplan/internal/domain"
)

// Scale is the total a derived progress value is expressed against.
const Scale = 100

// Calculate returns the completion percentage (0-100, rounded half away from zero)
// of the task's subtasks. ok is false when the task has no subtasks, since no
// ratio can be derived; callers must leave the task unmodified in that case.
//
// With WeightedProgress each subtask counts its weight (default 1), otherwise
// every subtask counts once.
func Calculate(task *domain.Task) (percent int, ok bool) {
	if len(task.Subtasks) == 0 {
		return 0, false
	}

	var done, total int
	for _, s := range task.Subtasks {
		w := 1
		if task.WeightedProgress {
			w = s.EffectiveWeight()
		}
		total += w
		if s.Completed {
			done += w
		}
	}
	if total <= 0 {
		return 0, false
	}

	return int(math.Round(float64(Scale*done) / float64(total))), true
}

// Apply recomputes progress in place when AutoProgress is enabled.
// It reports whether the stored progress changed.
func Apply(task *domain.Task) bool {
	if !task.AutoProgress {
		return false
	}
	percent, ok := Calculate(task)
	if !ok {
		return false
	}

	changed := task.ProgressCurrent == nil || *task.ProgressCurrent != percent ||
		task.ProgressTotal == nil || *task.ProgressTotal != Scale
	current, total := percent, Scale
	task.ProgressCurrent = &current
	task.ProgressTotal = &total
	return changed
}
