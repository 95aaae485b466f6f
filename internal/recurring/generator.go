package recurring

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/weekplan/internal/domain"
)

// Generator materializes recurring templates into week-scoped task rows.
type Generator struct {
	calendar domain.WeekCalendar
}

// NewGenerator creates a generator that resolves weeks with the given calendar.
func NewGenerator(calendar domain.WeekCalendar) *Generator {
	return &Generator{calendar: calendar}
}

// OccursInWeek reports whether the template has an occurrence inside week,
// returning the first such occurrence.
func (g *Generator) OccursInWeek(template *domain.RecurringTaskTemplate, week int) (time.Time, bool, error) {
	calculator := GetCalculator(template.Pattern)
	if calculator == nil {
		return time.Time{}, false, fmt.Errorf("%w: %s", domain.ErrInvalidRecurrencePattern, template.Pattern)
	}

	occurrences := calculator.OccurrencesBetween(template, g.calendar.StartOf(week), g.calendar.EndOf(week))
	if len(occurrences) == 0 {
		return time.Time{}, false, nil
	}
	return occurrences[0], true, nil
}

// Materialize builds the task row for template in week. It does not check for
// an existing row; callers use GenerateForWeek for idempotent generation.
func (g *Generator) Materialize(template *domain.RecurringTaskTemplate, week int, now time.Time) (*domain.Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}

	templateID := template.ID
	task := &domain.Task{
		ID:                  id.String(),
		UserID:              template.UserID,
		Category:            domain.CategoryRecurring,
		Title:               template.Title,
		Status:              domain.TaskStatusTodo,
		Priority:            template.Priority,
		WeekNumber:          week,
		IsRecurring:         true,
		OriginWeek:          week,
		SpanWeeks:           domain.DefaultSpanWeeks,
		RecurringTemplateID: &templateID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if template.Description != nil {
		d := *template.Description
		task.Description = &d
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}
	return task, nil
}

// ExistsFunc reports whether a row was already materialized for (templateID, week).
type ExistsFunc func(templateID string, week int) bool

// GenerateForWeek returns new task rows for every active template that occurs in
// week and has no materialized row yet. Each template yields at most one row.
func (g *Generator) GenerateForWeek(templates []*domain.RecurringTaskTemplate, week int, exists ExistsFunc, now time.Time) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for _, template := range templates {
		if !template.IsActive {
			continue
		}
		if exists(template.ID, week) {
			continue
		}

		_, occurs, err := g.OccursInWeek(template, week)
		if err != nil {
			return nil, err
		}
		if !occurs {
			continue
		}

		task, err := g.Materialize(template, week, now)
		if err != nil {
			return nil, fmt.Errorf("failed to materialize template %s for week %d: %w", template.ID, week, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// MarkGenerated records a generation run on the template and schedules the next
// creation time AutoCreateDaysBefore days ahead of its next occurrence.
func (g *Generator) MarkGenerated(template *domain.RecurringTaskTemplate, week int, now time.Time) {
	created := now
	template.LastCreatedAt = &created
	template.UpdatedAt = now

	calculator := GetCalculator(template.Pattern)
	if calculator == nil {
		template.NextCreationAt = nil
		return
	}

	next := calculator.NextOccurrence(template, g.calendar.EndOf(week).Add(-time.Nanosecond))
	creation := next.AddDate(0, 0, -max(template.AutoCreateDaysBefore, 0))
	template.NextCreationAt = &creation
}

// DueForCreation reports whether the worker should materialize the template now.
func DueForCreation(template *domain.RecurringTaskTemplate, now time.Time) bool {
	if !template.IsActive {
		return false
	}
	return template.NextCreationAt == nil || !now.Before(*template.NextCreationAt)
}
