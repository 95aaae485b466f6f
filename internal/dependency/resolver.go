// Package dependency decides whether a task may leave the blocked state
// and guards the dependency graph against cycles.
package dependency

import "github.com/rezkam/weekplan/internal/domain"

// StatusLookup resolves a prerequisite id to its current effective status.
// ok is false when the prerequisite no longer exists.
type StatusLookup func(taskID string) (status domain.TaskStatus, ok bool)

// Satisfied reports whether a single edge allows its dependent to start.
//
// A missing prerequisite satisfies the edge so that orphaned edges never block
// a task forever.
func Satisfied(edge domain.TaskDependency, lookup StatusLookup) bool {
	status, ok := lookup(edge.DependsOnTaskID)
	if !ok {
		return true
	}

	switch edge.Type {
	case domain.DependencyFinishToStart:
		return status == domain.TaskStatusDone
	case domain.DependencyStartToStart, domain.DependencyStartToFinish:
		return status != domain.TaskStatusTodo
	case domain.DependencyFinishToFinish:
		// Constrains finishing only, which is not enforced here.
		return true
	default:
		return false
	}
}

// IsEligibleToStart reports whether every edge where taskID is the dependent
// is satisfied. Edges belonging to other dependents are ignored.
func IsEligibleToStart(taskID string, edges []domain.TaskDependency, lookup StatusLookup) bool {
	for _, edge := range edges {
		if edge.TaskID != taskID {
			continue
		}
		if !Satisfied(edge, lookup) {
			return false
		}
	}
	return true
}

// Unsatisfied returns the edges of taskID that currently prevent it from starting.
func Unsatisfied(taskID string, edges []domain.TaskDependency, lookup StatusLookup) []domain.TaskDependency {
	var out []domain.TaskDependency
	for _, edge := range edges {
		if edge.TaskID == taskID && !Satisfied(edge, lookup) {
			out = append(out, edge)
		}
	}
	return out
}

// Dependents returns the ids of tasks that depend on prerequisiteID, in edge order
// and without duplicates.
func Dependents(prerequisiteID string, edges []domain.TaskDependency) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, edge := range edges {
		if edge.DependsOnTaskID != prerequisiteID {
			continue
		}
		if _, ok := seen[edge.TaskID]; ok {
			continue
		}
		seen[edge.TaskID] = struct{}{}
		out = append(out, edge.TaskID)
	}
	return out
}
