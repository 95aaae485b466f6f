package planner

import (
	"context"
	"slices"

	"github.com/rezkam/weekplan/internal/dependency"
	"github.com/rezkam/weekplan/internal/domain"
)

// AddDependency makes taskID depend on dependsOnID. A todo task that the new
// edge leaves ineligible becomes blocked.
//
// Fails with a precondition error for an invalid type, a self reference, an
// existing identical edge or an edge that would close a cycle.
func (e *Engine) AddDependency(ctx context.Context, taskID, dependsOnID string, depType domain.DependencyType) (_ *domain.TaskDependency, err error) {
	op, err := e.begin(ctx, "AddDependency", true)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}
	ctx, ws := op.ctx, op.ws

	depType, err = domain.NewDependencyType(string(depType))
	if err != nil {
		return nil, err
	}
	if taskID == dependsOnID {
		return nil, domain.ErrSelfDependency
	}
	if _, err := ws.task(taskID); err != nil {
		return nil, err
	}
	if _, err := ws.task(dependsOnID); err != nil {
		return nil, err
	}
	for _, edge := range ws.deps {
		if edge.TaskID == taskID && edge.DependsOnTaskID == dependsOnID && edge.Type == depType {
			return nil, domain.ErrDuplicateDependency
		}
	}
	if dependency.WouldCreateCycle(taskID, dependsOnID, ws.deps) {
		return nil, domain.ErrDependencyCycle
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	edge := domain.TaskDependency{
		ID:              id,
		UserID:          ws.UserID,
		TaskID:          taskID,
		DependsOnTaskID: dependsOnID,
		Type:            depType,
		CreatedAt:       e.now(),
	}
	ws.deps = append(ws.deps, edge)
	changes := ws.reevaluate(taskID)

	ids := append([]string{edge.ID}, changedIDs(changes)...)
	err = e.commit(ctx, ws, "add dependency", ids, func(repo Repository) error {
		if err := repo.CreateDependency(ctx, edge); err != nil {
			return err
		}
		return saveChanged(ctx, repo, changes)
	})
	if err != nil {
		return nil, err
	}

	activities := []domain.Activity{{
		TaskID:   taskID,
		Type:     domain.ActivityDependencyAdded,
		NewValue: dependsOnID,
		Metadata: map[string]string{"dependency_id": edge.ID, "type": string(depType)},
	}}
	e.record(ctx, ws, append(activities, dependentActivities(changes, dependsOnID)...)...)
	return &edge, nil
}

// RemoveDependency deletes an edge and re-evaluates its dependent, which may
// return from blocked to its intended status.
func (e *Engine) RemoveDependency(ctx context.Context, dependencyID string) (err error) {
	op, err := e.begin(ctx, "RemoveDependency", true)
	defer op.end(&err)
	if err != nil {
		return err
	}
	ctx, ws := op.ctx, op.ws

	i, ok := ws.findEdge(dependencyID)
	if !ok {
		return domain.ErrDependencyNotFound
	}
	edge := ws.deps[i]
	ws.deps = slices.Delete(ws.deps, i, i+1)
	changes := ws.reevaluate(edge.TaskID)

	ids := append([]string{edge.ID}, changedIDs(changes)...)
	err = e.commit(ctx, ws, "remove dependency", ids, func(repo Repository) error {
		if err := repo.DeleteDependency(ctx, ws.UserID, edge.ID); err != nil {
			return err
		}
		return saveChanged(ctx, repo, changes)
	})
	if err != nil {
		return err
	}

	activities := []domain.Activity{{
		TaskID:   edge.TaskID,
		Type:     domain.ActivityDependencyRemoved,
		OldValue: edge.DependsOnTaskID,
		Metadata: map[string]string{"dependency_id": edge.ID, "type": string(edge.Type)},
	}}
	e.record(ctx, ws, append(activities, dependentActivities(changes, edge.DependsOnTaskID)...)...)
	return nil
}

// Dependencies returns the edges where taskID is the dependent.
func (e *Engine) Dependencies(ctx context.Context, taskID string) (_ []domain.TaskDependency, err error) {
	op, err := e.begin(ctx, "Dependencies", false)
	defer op.end(&err)
	if err != nil {
		return nil, err
	}

	if _, err := op.ws.task(taskID); err != nil {
		return nil, err
	}
	return op.ws.edgesOf(taskID), nil
}

// IsEligibleToStart reports whether every dependency of taskID is satisfied.
func (e *Engine) IsEligibleToStart(ctx context.Context, taskID string) (_ bool, err error) {
	op, err := e.begin(ctx, "IsEligibleToStart", false)
	defer op.end(&err)
	if err != nil {
		return false, err
	}

	if _, err := op.ws.task(taskID); err != nil {
		return false, err
	}
	return dependency.IsEligibleToStart(taskID, op.ws.deps, op.ws.lookup), nil
}
