package domain

import (
	"fmt"
	"strings"
)

// MaxTitleLength is the maximum number of bytes in a task or template title.
const MaxTitleLength = 255

// Span limits for recurring tasks.
const (
	DefaultSpanWeeks = 1
	MaxSpanWeeks     = 15
)

// Title is a validated title value object (1-255 characters).
type Title struct {
	value string
}

// NewTitle creates a new Title, validating the input.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Title{}, ErrTitleRequired
	}

	if len(s) > MaxTitleLength {
		return Title{}, ErrTitleTooLong
	}

	return Title{value: s}, nil
}

// String returns the title value.
func (t Title) String() string {
	return t.value
}

// NewTaskStatus validates and creates a TaskStatus.
func NewTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(s)))

	switch status {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusBlocked:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidTaskStatus, s)
	}
}

// NewTaskPriority validates and creates a TaskPriority.
// Empty input defaults to medium.
func NewTaskPriority(s string) (TaskPriority, error) {
	if s == "" {
		return TaskPriorityMedium, nil
	}

	priority := TaskPriority(strings.ToLower(s))

	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return priority, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidTaskPriority, s)
	}
}

// NewCategory validates and creates a Category.
func NewCategory(s string) (Category, error) {
	category := Category(strings.ToLower(s))

	switch category {
	case CategoryWork, CategoryPersonal, CategoryRecurring:
		return category, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidCategory, s)
	}
}

// NewDependencyType validates and creates a DependencyType.
func NewDependencyType(s string) (DependencyType, error) {
	switch dt := DependencyType(strings.ToLower(s)); dt {
	case DependencyFinishToStart, DependencyStartToStart,
		DependencyFinishToFinish, DependencyStartToFinish:
		return dt, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidDependencyType, s)
	}
}

// NewRecurrencePattern validates and creates a RecurrencePattern.
func NewRecurrencePattern(s string) (RecurrencePattern, error) {
	pattern := RecurrencePattern(strings.ToLower(s))

	switch pattern {
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return pattern, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRecurrencePattern, s)
	}
}

// ValidateSpanWeeks checks a recurring span against the configured maximum.
func ValidateSpanWeeks(span, maxSpan int) error {
	if maxSpan <= 0 {
		maxSpan = MaxSpanWeeks
	}
	if span < 1 || span > maxSpan {
		return fmt.Errorf("%w: %d (allowed 1-%d)", ErrInvalidSpan, span, maxSpan)
	}
	return nil
}

// ValidateWeek checks that a week number is usable.
func ValidateWeek(week int) error {
	if week < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWeek, week)
	}
	return nil
}

// ValidateProgress checks a progress pair. total may be nil.
func ValidateProgress(current int, total *int) error {
	if current < 0 {
		return fmt.Errorf("%w: current %d", ErrInvalidProgress, current)
	}
	if total != nil && (*total < 0 || current > *total) {
		return fmt.Errorf("%w: %d/%d", ErrInvalidProgress, current, *total)
	}
	return nil
}
