package dependency

import (
	"testing"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/stretchr/testify/assert"
)

func lookupFrom(statuses map[string]domain.TaskStatus) StatusLookup {
	return func(id string) (domain.TaskStatus, bool) {
		s, ok := statuses[id]
		return s, ok
	}
}

func edge(taskID, dependsOn string, dt domain.DependencyType) domain.TaskDependency {
	return domain.TaskDependency{ID: taskID + "->" + dependsOn, TaskID: taskID, DependsOnTaskID: dependsOn, Type: dt}
}

func TestSatisfied_ByType(t *testing.T) {
	allStatuses := []domain.TaskStatus{
		domain.TaskStatusTodo, domain.TaskStatusInProgress,
		domain.TaskStatusDone, domain.TaskStatusBlocked,
	}

	tests := []struct {
		dt   domain.DependencyType
		want func(domain.TaskStatus) bool
	}{
		{domain.DependencyFinishToStart, func(s domain.TaskStatus) bool { return s == domain.TaskStatusDone }},
		{domain.DependencyStartToStart, func(s domain.TaskStatus) bool { return s != domain.TaskStatusTodo }},
		{domain.DependencyStartToFinish, func(s domain.TaskStatus) bool { return s != domain.TaskStatusTodo }},
		{domain.DependencyFinishToFinish, func(domain.TaskStatus) bool { return true }},
	}

	for _, tt := range tests {
		for _, status := range allStatuses {
			t.Run(string(tt.dt)+"/"+string(status), func(t *testing.T) {
				lookup := lookupFrom(map[string]domain.TaskStatus{"pre": status})
				assert.Equal(t, tt.want(status), Satisfied(edge("dep", "pre", tt.dt), lookup))
			})
		}
	}
}

func TestSatisfied_MissingPrerequisiteFailsOpen(t *testing.T) {
	lookup := lookupFrom(nil)
	assert.True(t, Satisfied(edge("dep", "gone", domain.DependencyFinishToStart), lookup))
}

func TestSatisfied_UnknownTypeIsUnsatisfied(t *testing.T) {
	lookup := lookupFrom(map[string]domain.TaskStatus{"pre": domain.TaskStatusDone})
	assert.False(t, Satisfied(edge("dep", "pre", "blocks"), lookup))
}

func TestIsEligibleToStart_Conjunction(t *testing.T) {
	lookup := lookupFrom(map[string]domain.TaskStatus{
		"a": domain.TaskStatusDone,
		"b": domain.TaskStatusTodo,
		"c": domain.TaskStatusInProgress,
	})
	edges := []domain.TaskDependency{
		edge("x", "a", domain.DependencyFinishToStart),
		edge("x", "c", domain.DependencyStartToStart),
		edge("y", "b", domain.DependencyFinishToStart),
	}

	assert.True(t, IsEligibleToStart("x", edges, lookup))
	assert.False(t, IsEligibleToStart("y", edges, lookup))
	assert.True(t, IsEligibleToStart("z", edges, lookup), "task without edges is eligible")

	edges = append(edges, edge("x", "b", domain.DependencyFinishToStart))
	assert.False(t, IsEligibleToStart("x", edges, lookup), "one unsatisfied edge blocks")
	assert.Len(t, Unsatisfied("x", edges, lookup), 1)
}

func TestDependents(t *testing.T) {
	edges := []domain.TaskDependency{
		edge("x", "a", domain.DependencyFinishToStart),
		edge("y", "a", domain.DependencyStartToStart),
		edge("x", "a", domain.DependencyStartToStart),
		edge("z", "b", domain.DependencyFinishToStart),
	}
	assert.Equal(t, []string{"x", "y"}, Dependents("a", edges))
	assert.Empty(t, Dependents("x", edges))
}

func TestWouldCreateCycle(t *testing.T) {
	edges := []domain.TaskDependency{
		edge("b", "a", domain.DependencyFinishToStart), // b depends on a
		edge("c", "b", domain.DependencyFinishToStart), // c depends on b
	}

	assert.True(t, WouldCreateCycle("a", "c", edges), "a -> c closes a -> c -> b -> a")
	assert.True(t, WouldCreateCycle("a", "b", edges))
	assert.True(t, WouldCreateCycle("a", "a", nil))
	assert.False(t, WouldCreateCycle("c", "a", edges), "transitive edge in the same direction is fine")
	assert.False(t, WouldCreateCycle("d", "c", edges))
}
