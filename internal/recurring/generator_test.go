package recurring

import (
	"fmt"
	"testing"
	"time"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// week 1 starts Monday 2025-01-06
var testCalendar = domain.NewWeekCalendar(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC))

func weeklyTemplate(id string) *domain.RecurringTaskTemplate {
	return &domain.RecurringTaskTemplate{
		ID:        id,
		UserID:    "user-1",
		Title:     "Water plants",
		Priority:  domain.TaskPriorityLow,
		Pattern:   domain.RecurrenceWeekly,
		DayOfWeek: ptr.To(time.Wednesday),
		IsActive:  true,
		CreatedAt: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
	}
}

func TestGenerateForWeek_Idempotent(t *testing.T) {
	g := NewGenerator(testCalendar)
	now := time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC)
	templates := []*domain.RecurringTaskTemplate{weeklyTemplate("tpl-1")}

	materialized := map[string]bool{}
	exists := func(templateID string, week int) bool {
		return materialized[fmt.Sprintf("%s/%d", templateID, week)]
	}

	var rows []*domain.Task
	for range 2 {
		tasks, err := g.GenerateForWeek(templates, 3, exists, now)
		require.NoError(t, err)
		for _, task := range tasks {
			materialized[fmt.Sprintf("%s/%d", *task.RecurringTemplateID, task.WeekNumber)] = true
		}
		rows = append(rows, tasks...)
	}

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 3, row.WeekNumber)
	assert.Equal(t, 3, row.OriginWeek)
	assert.Equal(t, 1, row.SpanWeeks)
	assert.True(t, row.IsRecurring)
	assert.Equal(t, domain.CategoryRecurring, row.Category)
	assert.Equal(t, domain.TaskStatusTodo, row.Status)
	assert.Equal(t, "Water plants", row.Title)
	assert.Equal(t, "user-1", row.UserID)
}

func TestGenerateForWeek_SkipsInactiveAndNonOccurring(t *testing.T) {
	g := NewGenerator(testCalendar)
	never := func(string, int) bool { return false }

	inactive := weeklyTemplate("inactive")
	inactive.IsActive = false

	biweekly := weeklyTemplate("biweekly")
	biweekly.Pattern = domain.RecurrenceBiweekly

	tasks, err := g.GenerateForWeek([]*domain.RecurringTaskTemplate{inactive, biweekly}, 2, never, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, tasks, "biweekly template skips week 2")

	tasks, err = g.GenerateForWeek([]*domain.RecurringTaskTemplate{inactive, biweekly}, 3, never, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "biweekly", *tasks[0].RecurringTemplateID)
}

func TestGenerateForWeek_InvalidPattern(t *testing.T) {
	g := NewGenerator(testCalendar)
	tpl := weeklyTemplate("bad")
	tpl.Pattern = "hourly"

	_, err := g.GenerateForWeek([]*domain.RecurringTaskTemplate{tpl}, 1, func(string, int) bool { return false }, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrencePattern)
}

func TestMarkGenerated_SchedulesNextCreation(t *testing.T) {
	g := NewGenerator(testCalendar)
	tpl := weeklyTemplate("tpl")
	tpl.AutoCreateDaysBefore = 2
	now := time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC)

	g.MarkGenerated(tpl, 2, now)

	require.NotNil(t, tpl.LastCreatedAt)
	assert.Equal(t, now, *tpl.LastCreatedAt)
	require.NotNil(t, tpl.NextCreationAt)
	// next occurrence is Wednesday of week 3 (2025-01-22), two days earlier
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), *tpl.NextCreationAt)

	assert.False(t, DueForCreation(tpl, time.Date(2025, 1, 19, 23, 0, 0, 0, time.UTC)))
	assert.True(t, DueForCreation(tpl, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)))

	tpl.IsActive = false
	assert.False(t, DueForCreation(tpl, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
}
