package planner

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rezkam/weekplan/internal/domain"
)

var errConnectionReset = errors.New("connection reset by peer")

// fakeRepository is an in-memory Repository. Setting failWrites makes every
// Atomic call fail before fn runs, so nothing is written.
type fakeRepository struct {
	mu          sync.Mutex
	tasks       map[string]*domain.Task
	deps        map[string]domain.TaskDependency
	completions map[domain.CompletionKey]domain.WeeklyTaskCompletion
	templates   map[string]*domain.RecurringTaskTemplate
	weeks       map[string]int

	failWrites bool
	commits    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		tasks:       make(map[string]*domain.Task),
		deps:        make(map[string]domain.TaskDependency),
		completions: make(map[domain.CompletionKey]domain.WeeklyTaskCompletion),
		templates:   make(map[string]*domain.RecurringTaskTemplate),
		weeks:       make(map[string]int),
	}
}

func (r *fakeRepository) FindTasks(_ context.Context, userID string, filter domain.TaskFilter) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, t.ID) {
			continue
		}
		if filter.WeekNumber != nil && t.WeekNumber != *filter.WeekNumber {
			continue
		}
		if filter.RecurringOf != nil && (t.RecurringTemplateID == nil || *t.RecurringTemplateID != *filter.RecurringOf) {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

func (r *fakeRepository) SaveTask(_ context.Context, task *domain.Task) error {
	if task.RecurringTemplateID != nil {
		for _, t := range r.tasks {
			if t.ID != task.ID && t.RecurringTemplateID != nil &&
				*t.RecurringTemplateID == *task.RecurringTemplateID && t.WeekNumber == task.WeekNumber {
				return nil
			}
		}
	}
	r.tasks[task.ID] = task.Clone()
	return nil
}

func (r *fakeRepository) DeleteTask(_ context.Context, userID, taskID string) error {
	t, ok := r.tasks[taskID]
	if !ok || t.UserID != userID {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, taskID)
	for id, d := range r.deps {
		if d.TaskID == taskID || d.DependsOnTaskID == taskID {
			delete(r.deps, id)
		}
	}
	for key := range r.completions {
		if key.TaskID == taskID {
			delete(r.completions, key)
		}
	}
	return nil
}

func (r *fakeRepository) FindDependencies(_ context.Context, userID string) ([]domain.TaskDependency, error) {
	var out []domain.TaskDependency
	for _, d := range r.deps {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b domain.TaskDependency) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *fakeRepository) CreateDependency(_ context.Context, dep domain.TaskDependency) error {
	r.deps[dep.ID] = dep
	return nil
}

func (r *fakeRepository) DeleteDependency(_ context.Context, userID, dependencyID string) error {
	d, ok := r.deps[dependencyID]
	if !ok || d.UserID != userID {
		return domain.ErrDependencyNotFound
	}
	delete(r.deps, dependencyID)
	return nil
}

func (r *fakeRepository) FindCompletions(_ context.Context, userID string) ([]domain.WeeklyTaskCompletion, error) {
	var out []domain.WeeklyTaskCompletion
	for _, c := range r.completions {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeRepository) UpsertCompletion(_ context.Context, c domain.WeeklyTaskCompletion) error {
	r.completions[c.Key()] = c
	return nil
}

func (r *fakeRepository) FindTemplates(_ context.Context, userID string, activeOnly bool) ([]*domain.RecurringTaskTemplate, error) {
	var out []*domain.RecurringTaskTemplate
	for _, t := range r.templates {
		if t.UserID != userID || (activeOnly && !t.IsActive) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeRepository) SaveTemplate(_ context.Context, template *domain.RecurringTaskTemplate) error {
	c := *template
	r.templates[template.ID] = &c
	return nil
}

func (r *fakeRepository) DeleteTemplate(_ context.Context, userID, templateID string) error {
	t, ok := r.templates[templateID]
	if !ok || t.UserID != userID {
		return domain.ErrTemplateNotFound
	}
	delete(r.templates, templateID)
	return nil
}

func (r *fakeRepository) FindCurrentWeek(_ context.Context, userID string) (int, error) {
	week, ok := r.weeks[userID]
	if !ok {
		return 0, domain.ErrWeekNotTracked
	}
	return week, nil
}

func (r *fakeRepository) SetCurrentWeek(_ context.Context, userID string, week int) error {
	r.weeks[userID] = week
	return nil
}

func (r *fakeRepository) Atomic(_ context.Context, fn func(repo Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errConnectionReset
	}
	r.commits++
	return fn(r)
}

func (r *fakeRepository) task(id string) *domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil
	}
	return t.Clone()
}

func (r *fakeRepository) taskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *fakeRepository) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

type staticIdentity string

func (s staticIdentity) UserID(context.Context) (string, bool) {
	return string(s), s != ""
}

type recordingActivityLog struct {
	mu         sync.Mutex
	activities []domain.Activity
	err        error
}

func (l *recordingActivityLog) Record(_ context.Context, a domain.Activity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.activities = append(l.activities, a)
	return nil
}

func (l *recordingActivityLog) ofType(t domain.ActivityType) []domain.Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Activity
	for _, a := range l.activities {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type recordingArchiver struct {
	snapshots []domain.WeekSnapshot
	err       error
}

func (a *recordingArchiver) ArchiveWeek(_ context.Context, s domain.WeekSnapshot) error {
	if a.err != nil {
		return a.err
	}
	a.snapshots = append(a.snapshots, s)
	return nil
}

type recordingPresenter struct {
	snapshots []Snapshot
}

func (p *recordingPresenter) Present(_ context.Context, s Snapshot) {
	p.snapshots = append(p.snapshots, s)
}
