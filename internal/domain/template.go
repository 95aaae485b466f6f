package domain

import "time"

// RecurringTaskTemplate is the definition recurring tasks are materialized from.
// A template produces at most one task per week it occurs in.
type RecurringTaskTemplate struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	Priority    TaskPriority

	Pattern    RecurrencePattern
	Interval   int           // every N weeks/months, minimum 1
	DayOfWeek  *time.Weekday // weekly and biweekly anchor, default Monday
	DayOfMonth *int          // monthly anchor, 1-31, clamped to month length

	// AutoCreateDaysBefore controls how early the worker materializes the
	// task ahead of the week it occurs in.
	AutoCreateDaysBefore int

	IsActive       bool
	LastCreatedAt  *time.Time
	NextCreationAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Activity is a best-effort audit record emitted after a change.
type Activity struct {
	ID        string
	UserID    string
	TaskID    string
	Type      ActivityType
	OldValue  string
	NewValue  string
	Metadata  map[string]string
	CreatedAt time.Time
}
