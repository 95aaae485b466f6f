package planner

import (
	"cmp"
	"slices"

	"github.com/rezkam/weekplan/internal/dependency"
	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/recurring"
)

// Workspace is the in-memory task collection of one user.
// Only engine operations mutate it, one at a time.
type Workspace struct {
	UserID      string
	CurrentWeek int

	tasks       map[string]*domain.Task
	deps        []domain.TaskDependency
	completions map[domain.CompletionKey]domain.WeeklyTaskCompletion
	templates   map[string]*domain.RecurringTaskTemplate

	// unconfirmed holds ids of entities whose last write did not commit.
	unconfirmed map[string]struct{}
}

func newWorkspace(userID string) *Workspace {
	return &Workspace{
		UserID:      userID,
		tasks:       make(map[string]*domain.Task),
		completions: make(map[domain.CompletionKey]domain.WeeklyTaskCompletion),
		templates:   make(map[string]*domain.RecurringTaskTemplate),
		unconfirmed: make(map[string]struct{}),
	}
}

func (w *Workspace) task(id string) (*domain.Task, error) {
	task, ok := w.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// lookup resolves prerequisites by the status their owner intends.
// The blocked override is derived and does not count as progress on the prerequisite.
// A recurring prerequisite resolves to its state in the current week, or the
// nearest week it is visible in, so its weekly completion record decides rather
// than the row status.
func (w *Workspace) lookup(id string) (domain.TaskStatus, bool) {
	task, ok := w.tasks[id]
	if !ok {
		return "", false
	}
	if task.IsRecurringCategory() {
		week := recurring.ClampToVisible(task, w.CurrentWeek)
		return recurring.EffectiveStateForWeek(task, week, w.completion(id, week)).Status, true
	}
	return task.Status, true
}

// forkSources returns the ids of tasks that a migration fork was copied from.
func (w *Workspace) forkSources() map[string]struct{} {
	out := make(map[string]struct{})
	for _, task := range w.tasks {
		if task.ForkedFrom != nil {
			out[*task.ForkedFrom] = struct{}{}
		}
	}
	return out
}

// recurringDependents returns the tasks with an edge on a recurring prerequisite.
// Their eligibility follows the current week and must be re-evaluated when it moves.
func (w *Workspace) recurringDependents() []string {
	var out []string
	for _, edge := range w.deps {
		if prereq, ok := w.tasks[edge.DependsOnTaskID]; ok && prereq.IsRecurringCategory() {
			out = append(out, edge.TaskID)
		}
	}
	return out
}

// isLiveWork reports whether rollover and migration may carry task forward:
// a non-recurring task that is not done and has not been forked.
func isLiveWork(task *domain.Task, sources map[string]struct{}) bool {
	if task.IsRecurringCategory() || task.Status == domain.TaskStatusDone {
		return false
	}
	_, isSource := sources[task.ID]
	return !isSource
}

// sortedTasks returns tasks ordered by week, category, order key, then creation.
func (w *Workspace) sortedTasks(keep func(*domain.Task) bool) []*domain.Task {
	var out []*domain.Task
	for _, task := range w.tasks {
		if keep == nil || keep(task) {
			out = append(out, task)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Task) int {
		return cmp.Or(
			cmp.Compare(a.WeekNumber, b.WeekNumber),
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(orderKey(a), orderKey(b)),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

func orderKey(t *domain.Task) string {
	if t.OrderKey == nil {
		return "￿"
	}
	return *t.OrderKey
}

// edgesOf returns the outgoing edges of a dependent task.
func (w *Workspace) edgesOf(taskID string) []domain.TaskDependency {
	var out []domain.TaskDependency
	for _, edge := range w.deps {
		if edge.TaskID == taskID {
			out = append(out, edge)
		}
	}
	return out
}

func (w *Workspace) findEdge(id string) (int, bool) {
	for i, edge := range w.deps {
		if edge.ID == id {
			return i, true
		}
	}
	return -1, false
}

// removeEdgesTouching drops every edge with taskID on either side and returns
// the ids of the dependents whose edges were dropped.
func (w *Workspace) removeEdgesTouching(taskID string) []string {
	dependents := dependency.Dependents(taskID, w.deps)
	w.deps = slices.DeleteFunc(w.deps, func(edge domain.TaskDependency) bool {
		return edge.TaskID == taskID || edge.DependsOnTaskID == taskID
	})
	return dependents
}

// reevaluate recomputes the blocked override of the given tasks and returns the
// tasks whose effective status changed. A task is blocked exactly when its intended
// status is todo and at least one of its edges is unsatisfied.
func (w *Workspace) reevaluate(taskIDs ...string) []statusChange {
	var changes []statusChange
	seen := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		task, ok := w.tasks[id]
		if !ok {
			continue
		}
		eligible := dependency.IsEligibleToStart(id, w.deps, w.lookup)
		block := task.Status == domain.TaskStatusTodo && !eligible
		if task.Blocked == block {
			continue
		}
		old := task.EffectiveStatus()
		task.Blocked = block
		changes = append(changes, statusChange{task: task, old: old, new: task.EffectiveStatus()})
	}
	return changes
}

// completion returns the record for (taskID, week), if any.
func (w *Workspace) completion(taskID string, week int) *domain.WeeklyTaskCompletion {
	rec, ok := w.completions[domain.CompletionKey{TaskID: taskID, WeekNumber: week}]
	if !ok {
		return nil
	}
	return &rec
}

func (w *Workspace) deleteCompletionsOf(taskID string) {
	for key := range w.completions {
		if key.TaskID == taskID {
			delete(w.completions, key)
		}
	}
}

// materialized reports whether a row exists for (templateID, week).
func (w *Workspace) materialized(templateID string, week int) bool {
	for _, task := range w.tasks {
		if task.RecurringTemplateID != nil && *task.RecurringTemplateID == templateID && task.WeekNumber == week {
			return true
		}
	}
	return false
}

func (w *Workspace) activeTemplates() []*domain.RecurringTaskTemplate {
	var out []*domain.RecurringTaskTemplate
	for _, tpl := range w.templates {
		if tpl.IsActive {
			out = append(out, tpl)
		}
	}
	slices.SortFunc(out, func(a, b *domain.RecurringTaskTemplate) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (w *Workspace) markUnconfirmed(ids ...string) {
	for _, id := range ids {
		w.unconfirmed[id] = struct{}{}
	}
}

// view builds the presentation rows visible in week.
func (w *Workspace) view(week int) []TaskView {
	tasks := w.sortedTasks(func(t *domain.Task) bool { return recurring.IsVisibleInWeek(t, week) })
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		_, unconfirmed := w.unconfirmed[task.ID]
		views = append(views, TaskView{
			Task:        task.Clone(),
			State:       recurring.EffectiveStateForWeek(task, week, w.completion(task.ID, week)),
			Unconfirmed: unconfirmed,
		})
	}
	return views
}

type statusChange struct {
	task *domain.Task
	old  domain.TaskStatus
	new  domain.TaskStatus
}

// TaskView is a task as displayed in one week.
type TaskView struct {
	Task        *domain.Task
	State       domain.EffectiveState
	Unconfirmed bool
}

// Snapshot is what the presentation collaborator receives after an operation.
type Snapshot struct {
	UserID      string
	CurrentWeek int
	Tasks       []TaskView
}

func (w *Workspace) snapshot() Snapshot {
	return Snapshot{
		UserID:      w.UserID,
		CurrentWeek: w.CurrentWeek,
		Tasks:       w.view(w.CurrentWeek),
	}
}

func (w *Workspace) sortedTemplates() []*domain.RecurringTaskTemplate {
	out := make([]*domain.RecurringTaskTemplate, 0, len(w.templates))
	for _, tpl := range w.templates {
		out = append(out, tpl)
	}
	slices.SortFunc(out, func(a, b *domain.RecurringTaskTemplate) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}
