package domain

import (
	"fmt"
	"time"
)

// NewTaskParams holds the user input for creating a task.
type NewTaskParams struct {
	Title       string
	Description *string
	Category    Category
	Status      TaskStatus // empty means todo
	Priority    TaskPriority
	DueAt       *time.Time
	WeekNumber  *int // nil means the current week
	OrderKey    *string

	ProgressCurrent  *int
	ProgressTotal    *int
	AutoProgress     bool
	WeightedProgress bool

	// SpanWeeks applies to recurring-category tasks only. Zero means the default span.
	SpanWeeks int
}

// Field names for task update masks.
const (
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldStatus           = "status"
	FieldPriority         = "priority"
	FieldDueAt            = "due_at"
	FieldCategory         = "category"
	FieldOrderKey         = "order_key"
	FieldProgress         = "progress"
	FieldAutoProgress     = "auto_progress"
	FieldWeightedProgress = "weighted_progress"
	FieldSpanWeeks        = "span_weeks"
)

var updateTaskValidFields = map[string]struct{}{
	FieldTitle:            {},
	FieldDescription:      {},
	FieldStatus:           {},
	FieldPriority:         {},
	FieldDueAt:            {},
	FieldCategory:         {},
	FieldOrderKey:         {},
	FieldProgress:         {},
	FieldAutoProgress:     {},
	FieldWeightedProgress: {},
	FieldSpanWeeks:        {},
}

// UpdateTaskParams contains parameters for updating a task with field mask support.
type UpdateTaskParams struct {
	TaskID string

	// UpdateMask specifies which fields to update.
	// Only fields in this list will be modified.
	UpdateMask []string

	// Week addresses a single week of a recurring-category task. When set,
	// status and progress are written to that week's completion record
	// instead of the task row.
	Week *int

	// Field values (only applied if field is in UpdateMask).
	// Nil Description, DueAt, OrderKey or ProgressTotal clear the field.
	Title            *string
	Description      *string
	Status           *TaskStatus
	Priority         *TaskPriority
	DueAt            *time.Time
	Category         *Category
	OrderKey         *string
	ProgressCurrent  *int
	ProgressTotal    *int
	AutoProgress     *bool
	WeightedProgress *bool
	SpanWeeks        *int
}

// Validate checks that UpdateMask contains only known fields and that
// required fields have non-nil values when included in the mask.
func (p UpdateTaskParams) Validate() error {
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}

	mask := p.Mask()
	for field := range mask {
		if _, ok := updateTaskValidFields[field]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidUpdateMask, field)
		}
	}

	switch {
	case mask[FieldTitle] && p.Title == nil:
		return ErrTitleRequired
	case mask[FieldStatus] && p.Status == nil:
		return fmt.Errorf("%w: status is required", ErrInvalidTaskStatus)
	case mask[FieldPriority] && p.Priority == nil:
		return fmt.Errorf("%w: priority is required", ErrInvalidTaskPriority)
	case mask[FieldCategory] && p.Category == nil:
		return fmt.Errorf("%w: category is required", ErrInvalidCategory)
	case mask[FieldProgress] && p.ProgressCurrent == nil:
		return fmt.Errorf("%w: current is required", ErrInvalidProgress)
	case mask[FieldAutoProgress] && p.AutoProgress == nil,
		mask[FieldWeightedProgress] && p.WeightedProgress == nil:
		return fmt.Errorf("%w: progress flag is required", ErrInvalidUpdateMask)
	case mask[FieldSpanWeeks] && p.SpanWeeks == nil:
		return fmt.Errorf("%w: span is required", ErrInvalidSpan)
	}

	if p.Week != nil {
		// Only week-scoped fields may be combined with a target week.
		for field := range mask {
			if field != FieldStatus && field != FieldProgress {
				return fmt.Errorf("%w: %s cannot be set for a single week", ErrInvalidUpdateMask, field)
			}
		}
	}
	return nil
}

// Mask returns the update mask as a set.
func (p UpdateTaskParams) Mask() map[string]bool {
	mask := make(map[string]bool, len(p.UpdateMask))
	for _, field := range p.UpdateMask {
		mask[field] = true
	}
	return mask
}

// Field names for subtask update masks.
const (
	FieldSubtaskTitle              = "title"
	FieldSubtaskCompleted          = "completed"
	FieldSubtaskWeight             = "weight"
	FieldSubtaskAutoCompleteParent = "auto_complete_parent"
)

var updateSubtaskValidFields = map[string]struct{}{
	FieldSubtaskTitle:              {},
	FieldSubtaskCompleted:          {},
	FieldSubtaskWeight:             {},
	FieldSubtaskAutoCompleteParent: {},
}

// UpdateSubtaskParams contains parameters for updating a subtask with field mask support.
type UpdateSubtaskParams struct {
	TaskID    string
	SubtaskID string

	UpdateMask []string

	Title              *string
	Completed          *bool
	Weight             *int // nil clears the weight
	AutoCompleteParent *bool
}

// Validate checks the update mask of a subtask update.
func (p UpdateSubtaskParams) Validate() error {
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}
	for _, field := range p.UpdateMask {
		if _, ok := updateSubtaskValidFields[field]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidUpdateMask, field)
		}
		switch {
		case field == FieldSubtaskTitle && p.Title == nil:
			return ErrTitleRequired
		case field == FieldSubtaskCompleted && p.Completed == nil,
			field == FieldSubtaskAutoCompleteParent && p.AutoCompleteParent == nil:
			return fmt.Errorf("%w: %s is required", ErrInvalidUpdateMask, field)
		}
	}
	if p.Weight != nil && *p.Weight < 1 {
		return ErrInvalidWeight
	}
	return nil
}

// NewTemplateParams holds the user input for creating a recurring template.
type NewTemplateParams struct {
	Title                string
	Description          *string
	Priority             TaskPriority
	Pattern              RecurrencePattern
	Interval             int
	DayOfWeek            *time.Weekday
	DayOfMonth           *int
	AutoCreateDaysBefore int
}

// Validate checks the template input.
func (p NewTemplateParams) Validate() error {
	if _, err := NewTitle(p.Title); err != nil {
		return err
	}
	if _, err := NewRecurrencePattern(string(p.Pattern)); err != nil {
		return err
	}
	if p.Interval < 0 {
		return fmt.Errorf("%w: interval must not be negative", ErrPreconditionFailed)
	}
	if p.DayOfWeek != nil && (*p.DayOfWeek < time.Sunday || *p.DayOfWeek > time.Saturday) {
		return fmt.Errorf("%w: invalid day of week %d", ErrPreconditionFailed, *p.DayOfWeek)
	}
	if p.DayOfMonth != nil && (*p.DayOfMonth < 1 || *p.DayOfMonth > 31) {
		return fmt.Errorf("%w: invalid day of month %d", ErrPreconditionFailed, *p.DayOfMonth)
	}
	if p.AutoCreateDaysBefore < 0 {
		return fmt.Errorf("%w: auto create days must not be negative", ErrPreconditionFailed)
	}
	return nil
}

// NewSubtaskParams holds the user input for adding a subtask.
type NewSubtaskParams struct {
	TaskID             string
	Title              string
	Weight             *int
	AutoCompleteParent bool
}

// Validate checks the subtask input.
func (p NewSubtaskParams) Validate() error {
	if _, err := NewTitle(p.Title); err != nil {
		return err
	}
	if p.Weight != nil && *p.Weight < 1 {
		return ErrInvalidWeight
	}
	return nil
}
