package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/ptr"
)

func TestCalculate(t *testing.T) {
	mixed := []domain.Subtask{
		{ID: "a", Completed: true, Weight: ptr.To(3)},
		{ID: "b", Completed: false, Weight: ptr.To(1)},
	}

	tests := []struct {
		name     string
		subtasks []domain.Subtask
		weighted bool
		want     int
		wantOK   bool
	}{
		{"weighted uses weights", mixed, true, 75, true},
		{"unweighted counts subtasks", mixed, false, 50, true},
		{"no subtasks", nil, false, 0, false},
		{"all done", []domain.Subtask{{Completed: true}, {Completed: true}}, false, 100, true},
		{"none done", []domain.Subtask{{}, {}, {}}, false, 0, true},
		{"rounds one third", []domain.Subtask{{Completed: true}, {}, {}}, false, 33, true},
		{"rounds two thirds up", []domain.Subtask{{Completed: true}, {Completed: true}, {}}, false, 67, true},
		{"unset weight defaults to one", []domain.Subtask{{Completed: true}, {Weight: ptr.To(3)}}, true, 25, true},
		{"rounds half up", []domain.Subtask{{Completed: true, Weight: ptr.To(1)}, {Weight: ptr.To(7)}}, true, 13, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &domain.Task{Subtasks: tt.subtasks, WeightedProgress: tt.weighted}
			got, ok := Calculate(task)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply(t *testing.T) {
	t.Run("disabled auto progress leaves task alone", func(t *testing.T) {
		task := &domain.Task{Subtasks: []domain.Subtask{{Completed: true}}}
		assert.False(t, Apply(task))
		assert.Nil(t, task.ProgressCurrent)
	})

	t.Run("empty subtasks leaves existing progress", func(t *testing.T) {
		task := &domain.Task{AutoProgress: true, ProgressCurrent: ptr.To(40), ProgressTotal: ptr.To(100)}
		assert.False(t, Apply(task))
		assert.Equal(t, 40, *task.ProgressCurrent)
	})

	t.Run("writes percentage on a 0-100 scale", func(t *testing.T) {
		task := &domain.Task{
			AutoProgress: true,
			Subtasks:     []domain.Subtask{{Completed: true}, {}},
		}
		assert.True(t, Apply(task))
		require.NotNil(t, task.ProgressCurrent)
		assert.Equal(t, 50, *task.ProgressCurrent)
		assert.Equal(t, Scale, *task.ProgressTotal)

		assert.False(t, Apply(task), "second apply is a no-op")
	})
}
