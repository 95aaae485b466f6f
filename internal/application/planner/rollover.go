package planner

import (
	"context"
	"strconv"
	"time"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/recurring"
)

// RolloverResult describes one rollover.
type RolloverResult struct {
	FromWeek int
	ToWeek   int

	// Carried are the unfinished non-recurring tasks now assigned to ToWeek.
	Carried []*domain.Task

	// Materialized are the recurring rows generated for ToWeek.
	Materialized []*domain.Task
}

// RolloverIncompleteTasks advances the current week by one.
//
// Every non-recurring task up to the closed week whose intended status is not
// done keeps its identity and moves to the new week. Tasks a migration forked
// from stay where they are. Recurring tasks are left
// alone; active templates are materialized for the new week instead. After the
// write commits, a snapshot of the closed week goes to the archiver.
func (e *Engine) RolloverIncompleteTasks(ctx context.Context) (_ *RolloverResult, err error) {
	op, err := e.begin(ctx, "RolloverIncompleteTasks", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	from := ws.CurrentWeek
	to := from + 1
	snapshot := e.closeWeek(ws, from)

	now := e.now()
	sources := ws.forkSources()
	carried := ws.sortedTasks(func(t *domain.Task) bool {
		return isLiveWork(t, sources) && t.WeekNumber <= from
	})
	prev := moveTasks(carried, to, now)
	ws.CurrentWeek = to

	gen, err := e.materialize(ctx, ws, to)
	if err != nil {
		return nil, err
	}
	changes := ws.reevaluate(ws.recurringDependents()...)

	ids := append(append(taskIDs(carried), gen.ids()...), changedIDs(changes)...)
	err = e.commit(ctx, ws, "rollover", ids, func(repo Repository) error {
		for _, task := range carried {
			if err := repo.SaveTask(ctx, task); err != nil {
				return err
			}
		}
		if err := saveChanged(ctx, repo, changes); err != nil {
			return err
		}
		if err := repo.SetCurrentWeek(ctx, ws.UserID, to); err != nil {
			return err
		}
		return gen.save(ctx, repo)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.rolledOver.Add(ctx, int64(len(carried)))
	e.logger.InfoContext(ctx, "rolled over week",
		"user_id", ws.UserID, "from_week", from, "to_week", to, "carried", len(carried), "materialized", len(gen.tasks))

	activities := append(weekChanges(carried, prev, "rollover"), weekStartActivities(changes, to)...)
	e.record(ctx, ws, append(activities, gen.activities()...)...)
	e.archive(ctx, snapshot)

	return &RolloverResult{
		FromWeek:     from,
		ToWeek:       to,
		Carried:      cloneTasks(carried),
		Materialized: cloneTasks(gen.tasks),
	}, nil
}

// ForkedTask pairs an in-progress task with the copy migration created for it.
type ForkedTask struct {
	Original *domain.Task
	Fork     *domain.Task
}

// MigrationResult describes one migration.
type MigrationResult struct {
	FromWeek int
	ToWeek   int

	// Moved are todo tasks reassigned to ToWeek.
	Moved []*domain.Task

	// Forked are in-progress tasks copied into ToWeek. Originals are unchanged.
	Forked []ForkedTask

	// Materialized are the recurring rows generated for ToWeek.
	Materialized []*domain.Task
}

// MigrateAllTasks catches the tracked week up with the calendar week.
//
// Non-recurring tasks from earlier weeks are handled by intended status: todo
// tasks move to the calendar week, in-progress tasks are forked into it with
// their subtasks, attachment references and outgoing dependency edges. The
// originals of forks keep their week as history and are never picked up again.
//
// Fails with domain.ErrMigrationNotNeeded, writing nothing, unless the tracked
// week is strictly behind the calendar week.
func (e *Engine) MigrateAllTasks(ctx context.Context) (_ *MigrationResult, err error) {
	op, err := e.begin(ctx, "MigrateAllTasks", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	now := e.now()
	from, to := ws.CurrentWeek, e.calendar.WeekOf(now)
	if from >= to {
		return nil, domain.ErrMigrationNotNeeded
	}

	sources := ws.forkSources()
	eligible := ws.sortedTasks(func(t *domain.Task) bool {
		return isLiveWork(t, sources) && t.WeekNumber < to
	})

	// Build all forks before touching the workspace so an id failure leaves it unchanged.
	var moved []*domain.Task
	var forks []ForkedTask
	var edges []domain.TaskDependency
	for _, task := range eligible {
		if task.Status == domain.TaskStatusTodo {
			moved = append(moved, task)
			continue
		}
		fork, forkEdges, err := e.fork(ws, task, to)
		if err != nil {
			return nil, err
		}
		forks = append(forks, ForkedTask{Original: task, Fork: fork})
		edges = append(edges, forkEdges...)
	}

	prev := moveTasks(moved, to, now)
	forkRows := make([]*domain.Task, 0, len(forks))
	for _, f := range forks {
		ws.tasks[f.Fork.ID] = f.Fork
		forkRows = append(forkRows, f.Fork)
	}
	ws.deps = append(ws.deps, edges...)
	ws.CurrentWeek = to

	gen, err := e.materialize(ctx, ws, to)
	if err != nil {
		return nil, err
	}
	changes := ws.reevaluate(ws.recurringDependents()...)

	ids := append(append(taskIDs(moved), taskIDs(forkRows)...), gen.ids()...)
	for _, edge := range edges {
		ids = append(ids, edge.ID)
	}
	ids = append(ids, changedIDs(changes)...)
	err = e.commit(ctx, ws, "migrate", ids, func(repo Repository) error {
		for _, task := range append(append([]*domain.Task(nil), moved...), forkRows...) {
			if err := repo.SaveTask(ctx, task); err != nil {
				return err
			}
		}
		for _, edge := range edges {
			if err := repo.CreateDependency(ctx, edge); err != nil {
				return err
			}
		}
		if err := saveChanged(ctx, repo, changes); err != nil {
			return err
		}
		if err := repo.SetCurrentWeek(ctx, ws.UserID, to); err != nil {
			return err
		}
		return gen.save(ctx, repo)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.migrated.Add(ctx, int64(len(moved)))
	e.metrics.forked.Add(ctx, int64(len(forks)))
	e.logger.InfoContext(ctx, "migrated tasks",
		"user_id", ws.UserID, "from_week", from, "to_week", to,
		"moved", len(moved), "forked", len(forks), "materialized", len(gen.tasks))

	activities := weekChanges(moved, prev, "migration")
	for _, f := range forks {
		activities = append(activities, domain.Activity{
			TaskID:   f.Fork.ID,
			Type:     domain.ActivityForked,
			OldValue: f.Original.ID,
			NewValue: f.Fork.ID,
			Metadata: map[string]string{"source_week": strconv.Itoa(f.Original.WeekNumber), "week": strconv.Itoa(to)},
		})
	}
	activities = append(activities, weekStartActivities(changes, to)...)
	e.record(ctx, ws, append(activities, gen.activities()...)...)

	result := &MigrationResult{
		FromWeek:     from,
		ToWeek:       to,
		Moved:        cloneTasks(moved),
		Materialized: cloneTasks(gen.tasks),
	}
	for _, f := range forks {
		result.Forked = append(result.Forked, ForkedTask{Original: f.Original.Clone(), Fork: f.Fork.Clone()})
	}
	return result, nil
}

// fork copies an in-progress task into week with fresh ids for the task, its
// subtasks and its outgoing edges. Attachment references are shared with the
// source so no file content is duplicated.
func (e *Engine) fork(ws *Workspace, src *domain.Task, week int) (*domain.Task, []domain.TaskDependency, error) {
	id, err := newID()
	if err != nil {
		return nil, nil, err
	}
	now := e.now()

	source := src.ID
	fork := src.Clone()
	fork.ID = id
	fork.ForkedFrom = &source
	fork.WeekNumber = week
	fork.Status = domain.TaskStatusInProgress
	fork.Blocked = false
	fork.CreatedAt = now
	fork.UpdatedAt = now
	for i := range fork.Subtasks {
		subID, err := newID()
		if err != nil {
			return nil, nil, err
		}
		fork.Subtasks[i].ID = subID
	}

	var edges []domain.TaskDependency
	for _, edge := range ws.edgesOf(src.ID) {
		edgeID, err := newID()
		if err != nil {
			return nil, nil, err
		}
		edges = append(edges, domain.TaskDependency{
			ID:              edgeID,
			UserID:          ws.UserID,
			TaskID:          fork.ID,
			DependsOnTaskID: edge.DependsOnTaskID,
			Type:            edge.Type,
			CreatedAt:       now,
		})
	}
	return fork, edges, nil
}

// closeWeek captures the state of week as it is about to be closed.
func (e *Engine) closeWeek(ws *Workspace, week int) domain.WeekSnapshot {
	snapshot := domain.WeekSnapshot{
		UserID:     ws.UserID,
		WeekNumber: week,
		ClosedAt:   e.now(),
	}
	visible := make(map[string]struct{})
	for _, task := range ws.sortedTasks(func(t *domain.Task) bool { return recurring.IsVisibleInWeek(t, week) }) {
		visible[task.ID] = struct{}{}
		snapshot.Tasks = append(snapshot.Tasks, domain.SnapshotTask{
			Task:  task.Clone(),
			State: recurring.EffectiveStateForWeek(task, week, ws.completion(task.ID, week)),
		})
	}
	for _, edge := range ws.deps {
		if _, ok := visible[edge.TaskID]; ok {
			snapshot.Dependencies = append(snapshot.Dependencies, edge)
		}
	}
	return snapshot
}

// archive hands a closed week to the archiver. Failures are logged only.
func (e *Engine) archive(ctx context.Context, snapshot domain.WeekSnapshot) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.ArchiveWeek(ctx, snapshot); err != nil {
		e.logger.WarnContext(ctx, "failed to archive closed week",
			"user_id", snapshot.UserID, "week", snapshot.WeekNumber, "error", err)
	}
}

// moveTasks reassigns tasks to week and returns their previous weeks by id.
func moveTasks(tasks []*domain.Task, week int, now time.Time) map[string]int {
	prev := make(map[string]int, len(tasks))
	for _, task := range tasks {
		prev[task.ID] = task.WeekNumber
		task.WeekNumber = week
		task.UpdatedAt = now
	}
	return prev
}

func weekChanges(tasks []*domain.Task, prev map[string]int, reason string) []domain.Activity {
	out := make([]domain.Activity, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, domain.Activity{
			TaskID:   t.ID,
			Type:     domain.ActivityWeekChanged,
			OldValue: strconv.Itoa(prev[t.ID]),
			NewValue: strconv.Itoa(t.WeekNumber),
			Metadata: map[string]string{"reason": reason},
		})
	}
	return out
}

// weekStartActivities describes blocked state changes caused by recurring
// prerequisites starting the new week fresh.
func weekStartActivities(changes []statusChange, week int) []domain.Activity {
	out := make([]domain.Activity, 0, len(changes))
	for _, c := range changes {
		out = append(out, domain.Activity{
			TaskID:   c.task.ID,
			Type:     domain.ActivityStatusChanged,
			OldValue: string(c.old),
			NewValue: string(c.new),
			Metadata: map[string]string{"cause": "dependency", "week": strconv.Itoa(week)},
		})
	}
	return out
}

func taskIDs(tasks []*domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
