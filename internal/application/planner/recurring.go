package planner

import (
	"context"
	"strconv"
	"time"

	"github.com/rezkam/weekplan/internal/dependency"
	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/recurring"
)

// SetWeeklyTaskCompletion upserts the completion record of a recurring task for
// one week. The task row's own status is never touched.
func (e *Engine) SetWeeklyTaskCompletion(ctx context.Context, taskID string, week int, status domain.TaskStatus, progressCurrent int) (_ domain.WeeklyTaskCompletion, err error) {
	op, err := e.begin(ctx, "SetWeeklyTaskCompletion", true)
	defer op.end(&err)
	if err != nil {
		return domain.WeeklyTaskCompletion{}, err
	}

	task, err := op.ws.task(taskID)
	if err != nil {
		return domain.WeeklyTaskCompletion{}, err
	}
	return e.setCompletion(op.ctx, op.ws, task, week, &status, &progressCurrent)
}

// setCompletion writes the week's record. Nil status or progress keep the
// week's current effective value. Dependents are re-evaluated because a
// recurring prerequisite counts by its state in the current week.
func (e *Engine) setCompletion(ctx context.Context, ws *Workspace, task *domain.Task, week int, status *domain.TaskStatus, current *int) (domain.WeeklyTaskCompletion, error) {
	if !task.IsRecurringCategory() {
		return domain.WeeklyTaskCompletion{}, domain.ErrNotRecurring
	}
	if err := domain.ValidateWeek(week); err != nil {
		return domain.WeeklyTaskCompletion{}, err
	}
	if !recurring.IsVisibleInWeek(task, week) {
		return domain.WeeklyTaskCompletion{}, domain.ErrNotVisibleInWeek
	}

	prev := recurring.EffectiveStateForWeek(task, week, ws.completion(task.ID, week))
	record := domain.WeeklyTaskCompletion{
		UserID:          ws.UserID,
		TaskID:          task.ID,
		WeekNumber:      week,
		Status:          prev.Status,
		ProgressCurrent: prev.ProgressCurrent,
		UpdatedAt:       e.now(),
	}
	if status != nil {
		s, err := intendedStatus(*status)
		if err != nil {
			return domain.WeeklyTaskCompletion{}, err
		}
		record.Status = s
	}
	if current != nil {
		if err := domain.ValidateProgress(*current, task.ProgressTotal); err != nil {
			return domain.WeeklyTaskCompletion{}, err
		}
		record.ProgressCurrent = *current
	}

	ws.completions[record.Key()] = record
	changes := ws.reevaluate(dependency.Dependents(task.ID, ws.deps)...)

	ids := append([]string{task.ID}, changedIDs(changes)...)
	err := e.commit(ctx, ws, "set weekly completion", ids, func(repo Repository) error {
		if err := repo.UpsertCompletion(ctx, record); err != nil {
			return err
		}
		return saveChanged(ctx, repo, changes)
	})
	if err != nil {
		return domain.WeeklyTaskCompletion{}, err
	}

	meta := map[string]string{"week": strconv.Itoa(week)}
	var activities []domain.Activity
	if prev.Status != record.Status {
		activities = append(activities, domain.Activity{
			TaskID: task.ID, Type: domain.ActivityStatusChanged,
			OldValue: string(prev.Status), NewValue: string(record.Status), Metadata: meta,
		})
	}
	if prev.ProgressCurrent != record.ProgressCurrent {
		activities = append(activities, domain.Activity{
			TaskID: task.ID, Type: domain.ActivityProgressChanged,
			OldValue: strconv.Itoa(prev.ProgressCurrent), NewValue: strconv.Itoa(record.ProgressCurrent), Metadata: meta,
		})
	}
	activities = append(activities, dependentActivities(changes, task.ID)...)
	e.record(ctx, ws, activities...)
	return record, nil
}

// GenerateRecurringTasks materializes every active template that occurs in week.
// A (template, week) pair that already has a row is skipped, so repeated calls
// create nothing new.
func (e *Engine) GenerateRecurringTasks(ctx context.Context, week int) (_ []*domain.Task, err error) {
	op, err := e.begin(ctx, "GenerateRecurringTasks", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	if err := domain.ValidateWeek(week); err != nil {
		return nil, err
	}

	gen, err := e.materialize(ctx, ws, week)
	if err != nil {
		return nil, err
	}
	if gen.empty() {
		return nil, nil
	}

	err = e.commit(ctx, ws, "generate recurring tasks", gen.ids(), gen.write(ctx))
	if err != nil {
		return nil, err
	}
	e.record(ctx, ws, gen.activities()...)
	return cloneTasks(gen.tasks), nil
}

// generation is the local result of materializing one week.
type generation struct {
	week      int
	tasks     []*domain.Task
	templates []*domain.RecurringTaskTemplate
}

// materialize creates the missing rows for week in the workspace and stamps
// the templates that produced them.
func (e *Engine) materialize(ctx context.Context, ws *Workspace, week int) (*generation, error) {
	now := e.now()
	tasks, err := e.generator.GenerateForWeek(ws.activeTemplates(), week, ws.materialized, now)
	if err != nil {
		return nil, err
	}

	gen := &generation{week: week, tasks: tasks}
	for _, task := range tasks {
		task.UserID = ws.UserID
		ws.tasks[task.ID] = task

		template := ws.templates[*task.RecurringTemplateID]
		e.generator.MarkGenerated(template, week, now)
		gen.templates = append(gen.templates, template)
	}
	if len(tasks) > 0 {
		e.metrics.materialized.Add(ctx, int64(len(tasks)))
		e.logger.InfoContext(ctx, "materialized recurring tasks", "user_id", ws.UserID, "week", week, "count", len(tasks))
	}
	return gen, nil
}

func (g *generation) empty() bool {
	return g == nil || len(g.tasks) == 0
}

func (g *generation) ids() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.tasks)+len(g.templates))
	for _, t := range g.tasks {
		ids = append(ids, t.ID)
	}
	for _, t := range g.templates {
		ids = append(ids, t.ID)
	}
	return ids
}

func (g *generation) write(ctx context.Context) func(repo Repository) error {
	return func(repo Repository) error {
		return g.save(ctx, repo)
	}
}

func (g *generation) save(ctx context.Context, repo Repository) error {
	if g == nil {
		return nil
	}
	for _, t := range g.tasks {
		if err := repo.SaveTask(ctx, t); err != nil {
			return err
		}
	}
	for _, t := range g.templates {
		if err := repo.SaveTemplate(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (g *generation) activities() []domain.Activity {
	if g == nil {
		return nil
	}
	out := make([]domain.Activity, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, domain.Activity{
			TaskID:   t.ID,
			Type:     domain.ActivityCreated,
			NewValue: t.Title,
			Metadata: map[string]string{"template_id": *t.RecurringTemplateID, "week": strconv.Itoa(g.week)},
		})
	}
	return out
}

// CreateTemplate stores a new active recurring template.
// It is materialized on the next generation run for a week it occurs in.
func (e *Engine) CreateTemplate(ctx context.Context, params domain.NewTemplateParams) (_ *domain.RecurringTaskTemplate, err error) {
	op, err := e.begin(ctx, "CreateTemplate", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	if err := params.Validate(); err != nil {
		return nil, err
	}
	title, _ := domain.NewTitle(params.Title)
	pattern, _ := domain.NewRecurrencePattern(string(params.Pattern))
	priority, err := domain.NewTaskPriority(string(params.Priority))
	if err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}

	now := e.now()
	template := &domain.RecurringTaskTemplate{
		ID:                   id,
		UserID:               ws.UserID,
		Title:                title.String(),
		Description:          cloneString(params.Description),
		Priority:             priority,
		Pattern:              pattern,
		Interval:             max(params.Interval, 1),
		DayOfMonth:           cloneInt(params.DayOfMonth),
		AutoCreateDaysBefore: params.AutoCreateDaysBefore,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if params.DayOfWeek != nil {
		d := *params.DayOfWeek
		template.DayOfWeek = &d
	}

	ws.templates[template.ID] = template
	err = e.commit(ctx, ws, "create template", []string{template.ID}, func(repo Repository) error {
		return repo.SaveTemplate(ctx, template)
	})
	if err != nil {
		return nil, err
	}
	return cloneTemplate(template), nil
}

// SetTemplateActive pauses or resumes a template. Rows it already produced stay.
func (e *Engine) SetTemplateActive(ctx context.Context, templateID string, active bool) (_ *domain.RecurringTaskTemplate, err error) {
	op, err := e.begin(ctx, "SetTemplateActive", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	template, ok := ws.templates[templateID]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	if template.IsActive == active {
		return cloneTemplate(template), nil
	}
	template.IsActive = active
	template.UpdatedAt = e.now()
	if active {
		// Resumed templates are due right away.
		template.NextCreationAt = nil
	}

	err = e.commit(ctx, ws, "set template active", []string{template.ID}, func(repo Repository) error {
		return repo.SaveTemplate(ctx, template)
	})
	if err != nil {
		return nil, err
	}
	return cloneTemplate(template), nil
}

// DeleteTemplate removes a template. Rows it already produced stay.
func (e *Engine) DeleteTemplate(ctx context.Context, templateID string) (err error) {
	op, err := e.begin(ctx, "DeleteTemplate", true)
	defer op.end(&err)
	if err != nil {
		return err
	}
	ctx, ws := op.ctx, op.ws

	if _, ok := ws.templates[templateID]; !ok {
		return domain.ErrTemplateNotFound
	}
	delete(ws.templates, templateID)
	return e.commit(ctx, ws, "delete template", []string{templateID}, func(repo Repository) error {
		return repo.DeleteTemplate(ctx, ws.UserID, templateID)
	})
}

// Templates returns all templates of the user, active ones included or not.
func (e *Engine) Templates(ctx context.Context) (_ []*domain.RecurringTaskTemplate, err error) {
	op, err := e.begin(ctx, "Templates", false)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.RecurringTaskTemplate, 0, len(op.ws.templates))
	for _, t := range op.ws.sortedTemplates() {
		out = append(out, cloneTemplate(t))
	}
	return out, nil
}

// TemplatesDue returns active templates whose next creation time has passed at now.
func (e *Engine) TemplatesDue(ctx context.Context, now time.Time) (_ []*domain.RecurringTaskTemplate, err error) {
	op, err := e.begin(ctx, "TemplatesDue", false)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}

	var out []*domain.RecurringTaskTemplate
	for _, t := range op.ws.activeTemplates() {
		if recurring.DueForCreation(t, now) {
			out = append(out, cloneTemplate(t))
		}
	}
	return out, nil
}

func cloneTemplate(t *domain.RecurringTaskTemplate) *domain.RecurringTaskTemplate {
	c := *t
	c.Description = cloneString(t.Description)
	c.DayOfMonth = cloneInt(t.DayOfMonth)
	if t.DayOfWeek != nil {
		d := *t.DayOfWeek
		c.DayOfWeek = &d
	}
	if t.LastCreatedAt != nil {
		v := *t.LastCreatedAt
		c.LastCreatedAt = &v
	}
	if t.NextCreationAt != nil {
		v := *t.NextCreationAt
		c.NextCreationAt = &v
	}
	return &c
}

func cloneTasks(tasks []*domain.Task) []*domain.Task {
	out := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}
	return out
}
