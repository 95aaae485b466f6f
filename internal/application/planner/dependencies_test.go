package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/domain"
)

func TestEngine_AddDependency_BlocksByType(t *testing.T) {
	tests := []struct {
		depType      domain.DependencyType
		prereqStatus domain.TaskStatus
		wantBlocked  bool
	}{
		{domain.DependencyFinishToStart, domain.TaskStatusTodo, true},
		{domain.DependencyFinishToStart, domain.TaskStatusInProgress, true},
		{domain.DependencyFinishToStart, domain.TaskStatusDone, false},
		{domain.DependencyStartToStart, domain.TaskStatusTodo, true},
		{domain.DependencyStartToStart, domain.TaskStatusInProgress, false},
		{domain.DependencyStartToStart, domain.TaskStatusDone, false},
		{domain.DependencyStartToFinish, domain.TaskStatusTodo, true},
		{domain.DependencyStartToFinish, domain.TaskStatusInProgress, false},
		{domain.DependencyStartToFinish, domain.TaskStatusDone, false},
		{domain.DependencyFinishToFinish, domain.TaskStatusTodo, false},
		{domain.DependencyFinishToFinish, domain.TaskStatusInProgress, false},
		{domain.DependencyFinishToFinish, domain.TaskStatusDone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.depType)+"/"+string(tt.prereqStatus), func(t *testing.T) {
			h := newHarness(t, 5)
			prereq := h.createTask(t, "Prerequisite", tt.prereqStatus)
			dependent := h.createTask(t, "Dependent", domain.TaskStatusTodo)

			edge, err := h.engine.AddDependency(h.ctx, dependent.ID, prereq.ID, tt.depType)
			require.NoError(t, err)
			assert.Equal(t, dependent.ID, edge.TaskID)
			assert.Equal(t, prereq.ID, edge.DependsOnTaskID)

			got := h.task(t, dependent.ID)
			assert.Equal(t, tt.wantBlocked, got.Blocked)
			assert.Equal(t, domain.TaskStatusTodo, got.Status, "intended status is kept")

			eligible, err := h.engine.IsEligibleToStart(h.ctx, dependent.ID)
			require.NoError(t, err)
			assert.Equal(t, !tt.wantBlocked, eligible)
		})
	}
}

func TestEngine_BlockedTaskRestoresIntendedStatus(t *testing.T) {
	h := newHarness(t, 5)
	prereq := h.createTask(t, "Design", domain.TaskStatusTodo)
	dependent := h.createTask(t, "Build", domain.TaskStatusTodo)

	edge, err := h.engine.AddDependency(h.ctx, dependent.ID, prereq.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusBlocked, h.task(t, dependent.ID).EffectiveStatus())
	assert.True(t, h.repo.task(dependent.ID).Blocked)

	t.Run("blocked task cannot start", func(t *testing.T) {
		_, err := h.engine.UpdateTask(h.ctx, domain.UpdateTaskParams{
			TaskID:     dependent.ID,
			UpdateMask: []string{domain.FieldStatus},
			Status:     ptrStatus(domain.TaskStatusInProgress),
		})
		assert.ErrorIs(t, err, domain.ErrTaskBlocked)
		assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	})

	t.Run("prerequisite progress alone does not unblock", func(t *testing.T) {
		h.setStatus(t, prereq.ID, domain.TaskStatusInProgress)
		assert.True(t, h.task(t, dependent.ID).Blocked)
	})

	t.Run("finishing the prerequisite unblocks", func(t *testing.T) {
		h.setStatus(t, prereq.ID, domain.TaskStatusDone)
		got := h.task(t, dependent.ID)
		assert.False(t, got.Blocked)
		assert.Equal(t, domain.TaskStatusTodo, got.EffectiveStatus())

		changes := h.activity.ofType(domain.ActivityStatusChanged)
		require.NotEmpty(t, changes)
		last := changes[len(changes)-1]
		assert.Equal(t, dependent.ID, last.TaskID)
		assert.Equal(t, string(domain.TaskStatusBlocked), last.OldValue)
		assert.Equal(t, string(domain.TaskStatusTodo), last.NewValue)
	})

	t.Run("reopening the prerequisite blocks again", func(t *testing.T) {
		h.setStatus(t, prereq.ID, domain.TaskStatusTodo)
		assert.True(t, h.task(t, dependent.ID).Blocked)
	})

	t.Run("removing the edge unblocks", func(t *testing.T) {
		require.NoError(t, h.engine.RemoveDependency(h.ctx, edge.ID))
		got := h.task(t, dependent.ID)
		assert.False(t, got.Blocked)
		assert.Equal(t, domain.TaskStatusTodo, got.EffectiveStatus())
		assert.Empty(t, h.repo.deps)
	})
}

func TestEngine_AddDependency_StartedTaskIsNotBlocked(t *testing.T) {
	h := newHarness(t, 5)
	prereq := h.createTask(t, "Review", domain.TaskStatusTodo)
	dependent := h.createTask(t, "Ship", domain.TaskStatusInProgress)

	_, err := h.engine.AddDependency(h.ctx, dependent.ID, prereq.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)

	got := h.task(t, dependent.ID)
	assert.False(t, got.Blocked)
	assert.Equal(t, domain.TaskStatusInProgress, got.EffectiveStatus())
}

func TestEngine_AddDependency_AllEdgesMustBeSatisfied(t *testing.T) {
	h := newHarness(t, 5)
	a := h.createTask(t, "A", domain.TaskStatusDone)
	b := h.createTask(t, "B", domain.TaskStatusTodo)
	dependent := h.createTask(t, "C", domain.TaskStatusTodo)

	_, err := h.engine.AddDependency(h.ctx, dependent.ID, a.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)
	assert.False(t, h.task(t, dependent.ID).Blocked)

	edge, err := h.engine.AddDependency(h.ctx, dependent.ID, b.ID, domain.DependencyStartToStart)
	require.NoError(t, err)
	assert.True(t, h.task(t, dependent.ID).Blocked)

	require.NoError(t, h.engine.RemoveDependency(h.ctx, edge.ID))
	assert.False(t, h.task(t, dependent.ID).Blocked)
}

func TestEngine_AddDependency_Errors(t *testing.T) {
	h := newHarness(t, 5)
	a := h.createTask(t, "A", domain.TaskStatusTodo)
	b := h.createTask(t, "B", domain.TaskStatusTodo)
	c := h.createTask(t, "C", domain.TaskStatusTodo)

	_, err := h.engine.AddDependency(h.ctx, b.ID, a.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)
	_, err = h.engine.AddDependency(h.ctx, c.ID, b.ID, domain.DependencyFinishToStart)
	require.NoError(t, err)
	commits := h.repo.commitCount()

	tests := []struct {
		name      string
		taskID    string
		dependsOn string
		depType   domain.DependencyType
		wantErr   error
		wantClass error
	}{
		{"self reference", a.ID, a.ID, domain.DependencyFinishToStart, domain.ErrSelfDependency, domain.ErrPreconditionFailed},
		{"invalid type", a.ID, b.ID, "before", domain.ErrInvalidDependencyType, domain.ErrPreconditionFailed},
		{"missing dependent", "missing", a.ID, domain.DependencyFinishToStart, domain.ErrTaskNotFound, domain.ErrNotFound},
		{"missing prerequisite", a.ID, "missing", domain.DependencyFinishToStart, domain.ErrTaskNotFound, domain.ErrNotFound},
		{"duplicate", b.ID, a.ID, domain.DependencyFinishToStart, domain.ErrDuplicateDependency, domain.ErrPreconditionFailed},
		{"direct cycle", a.ID, b.ID, domain.DependencyFinishToStart, domain.ErrDependencyCycle, domain.ErrPreconditionFailed},
		{"transitive cycle", a.ID, c.ID, domain.DependencyStartToStart, domain.ErrDependencyCycle, domain.ErrPreconditionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.AddDependency(h.ctx, tt.taskID, tt.dependsOn, tt.depType)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, tt.wantClass)
		})
	}

	assert.Equal(t, commits, h.repo.commitCount(), "rejected edges write nothing")
	assert.ErrorIs(t, h.engine.RemoveDependency(h.ctx, "missing"), domain.ErrDependencyNotFound)
}

func ptrStatus(s domain.TaskStatus) *domain.TaskStatus {
	return &s
}
