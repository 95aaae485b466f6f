package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the lifecycle engine matches exactly
// one of these via errors.Is.
var (
	// ErrUnauthenticated indicates there is no acting identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed indicates the operation is not valid in the current state
	// or with the given arguments.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrRemoteFailure indicates the storage collaborator did not commit a write.
	ErrRemoteFailure = errors.New("remote failure")
)

// Not found errors.
var (
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrSubtaskNotFound    = fmt.Errorf("subtask %w", ErrNotFound)
	ErrAttachmentNotFound = fmt.Errorf("attachment %w", ErrNotFound)
	ErrDependencyNotFound = fmt.Errorf("dependency %w", ErrNotFound)
	ErrTemplateNotFound   = fmt.Errorf("recurring template %w", ErrNotFound)
	ErrCompletionNotFound = fmt.Errorf("weekly completion %w", ErrNotFound)
	ErrWeekNotTracked     = fmt.Errorf("current week %w", ErrNotFound)
	ErrSnapshotNotFound   = fmt.Errorf("week snapshot %w", ErrNotFound)
)

// Validation and state errors.
var (
	ErrTitleRequired            = fmt.Errorf("%w: title is required", ErrPreconditionFailed)
	ErrTitleTooLong             = fmt.Errorf("%w: title must be at most 255 characters", ErrPreconditionFailed)
	ErrInvalidTaskStatus        = fmt.Errorf("%w: invalid task status", ErrPreconditionFailed)
	ErrInvalidTaskPriority      = fmt.Errorf("%w: invalid task priority", ErrPreconditionFailed)
	ErrInvalidCategory          = fmt.Errorf("%w: invalid category", ErrPreconditionFailed)
	ErrInvalidDependencyType    = fmt.Errorf("%w: invalid dependency type", ErrPreconditionFailed)
	ErrInvalidRecurrencePattern = fmt.Errorf("%w: invalid recurrence pattern", ErrPreconditionFailed)
	ErrInvalidSpan              = fmt.Errorf("%w: span weeks out of range", ErrPreconditionFailed)
	ErrInvalidWeek              = fmt.Errorf("%w: week number must be positive", ErrPreconditionFailed)
	ErrInvalidProgress          = fmt.Errorf("%w: progress out of range", ErrPreconditionFailed)
	ErrInvalidWeight            = fmt.Errorf("%w: subtask weight must be positive", ErrPreconditionFailed)
	ErrInvalidUpdateMask        = fmt.Errorf("%w: unknown field in update mask", ErrPreconditionFailed)
	ErrEmptyUpdateMask          = fmt.Errorf("%w: update mask is empty", ErrPreconditionFailed)
	ErrSelfDependency           = fmt.Errorf("%w: task cannot depend on itself", ErrPreconditionFailed)
	ErrDependencyCycle          = fmt.Errorf("%w: dependency would create a cycle", ErrPreconditionFailed)
	ErrDuplicateDependency      = fmt.Errorf("%w: dependency already exists", ErrPreconditionFailed)
	ErrTaskBlocked              = fmt.Errorf("%w: task is blocked by unsatisfied dependencies", ErrPreconditionFailed)
	ErrNotRecurring             = fmt.Errorf("%w: task is not a recurring task", ErrPreconditionFailed)
	ErrNotVisibleInWeek         = fmt.Errorf("%w: task is not visible in week", ErrPreconditionFailed)
	ErrMigrationNotNeeded       = fmt.Errorf("%w: tracked week is not behind the calendar week", ErrPreconditionFailed)
)

// RemoteError reports a storage write that did not commit.
// It matches both ErrRemoteFailure and the underlying backend error.
type RemoteError struct {
	Op  string
	Err error
}

// NewRemoteError wraps a backend error for the named operation.
func NewRemoteError(op string, err error) *RemoteError {
	return &RemoteError{Op: op, Err: err}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrRemoteFailure, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	return []error{ErrRemoteFailure, e.Err}
}
