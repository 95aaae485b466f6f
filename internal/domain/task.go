package domain

import "time"

// Task is a unit of work that belongs to one week.
//
// Status holds the status the user intends. Blocked is a dependency override
// layered on top of it: while Blocked is set the task reports TaskStatusBlocked,
// and clearing it restores Status untouched.
type Task struct {
	ID          string
	UserID      string
	Category    Category
	Title       string
	Description *string

	Status   TaskStatus
	Blocked  bool
	Priority TaskPriority

	DueAt      *time.Time
	WeekNumber int
	OrderKey   *string

	// Progress is current/total. With AutoProgress enabled the engine keeps
	// Current on a 0-100 scale and Total at 100.
	ProgressCurrent  *int
	ProgressTotal    *int
	AutoProgress     bool
	WeightedProgress bool

	// Recurrence attributes. OriginWeek and SpanWeeks are only meaningful
	// when IsRecurring is set.
	IsRecurring         bool
	OriginWeek          int
	SpanWeeks           int
	RecurringTemplateID *string

	// ForkedFrom is set on a migration fork and names the task it was copied
	// from. A task that is the source of a fork stays in its week as history.
	ForkedFrom *string

	Subtasks    []Subtask
	Attachments []AttachmentRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveStatus returns the status shown to the user.
func (t *Task) EffectiveStatus() TaskStatus {
	if t.Blocked {
		return TaskStatusBlocked
	}
	return t.Status
}

// IsRecurringCategory reports whether week-scoped completion records apply to this task.
func (t *Task) IsRecurringCategory() bool {
	return t.IsRecurring || t.Category == CategoryRecurring
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.DueAt != nil {
		d := *t.DueAt
		c.DueAt = &d
	}
	if t.OrderKey != nil {
		k := *t.OrderKey
		c.OrderKey = &k
	}
	if t.ProgressCurrent != nil {
		p := *t.ProgressCurrent
		c.ProgressCurrent = &p
	}
	if t.ProgressTotal != nil {
		p := *t.ProgressTotal
		c.ProgressTotal = &p
	}
	if t.RecurringTemplateID != nil {
		id := *t.RecurringTemplateID
		c.RecurringTemplateID = &id
	}
	if t.ForkedFrom != nil {
		id := *t.ForkedFrom
		c.ForkedFrom = &id
	}
	c.Subtasks = make([]Subtask, len(t.Subtasks))
	for i, s := range t.Subtasks {
		c.Subtasks[i] = s.clone()
	}
	c.Attachments = append([]AttachmentRef(nil), t.Attachments...)
	return &c
}

// FindSubtask returns the index of the subtask with the given id, or -1.
func (t *Task) FindSubtask(id string) int {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Subtask is an ordered child of a Task.
type Subtask struct {
	ID                 string
	Title              string
	Completed          bool
	Position           int
	Weight             *int // nil means weight 1
	AutoCompleteParent bool
}

// EffectiveWeight returns the weight used for weighted progress.
func (s Subtask) EffectiveWeight() int {
	if s.Weight == nil {
		return 1
	}
	return *s.Weight
}

func (s Subtask) clone() Subtask {
	if s.Weight != nil {
		w := *s.Weight
		s.Weight = &w
	}
	return s
}

// AttachmentRef points at a file held by the attachment storage collaborator.
// Forked tasks share StorageKey with their source; binary content is never copied.
type AttachmentRef struct {
	ID         string
	Name       string
	StorageKey string
	AddedAt    time.Time
}

// TaskDependency is a directed edge: TaskID depends on DependsOnTaskID.
type TaskDependency struct {
	ID              string
	UserID          string
	TaskID          string
	DependsOnTaskID string
	Type            DependencyType
	CreatedAt       time.Time
}

// CompletionKey identifies a weekly completion record.
type CompletionKey struct {
	TaskID     string
	WeekNumber int
}

// WeeklyTaskCompletion overrides a recurring task's status for one week.
// At most one record exists per (TaskID, WeekNumber).
type WeeklyTaskCompletion struct {
	UserID          string
	TaskID          string
	WeekNumber      int
	Status          TaskStatus
	ProgressCurrent int
	UpdatedAt       time.Time
}

// Key returns the upsert key of the record.
func (c WeeklyTaskCompletion) Key() CompletionKey {
	return CompletionKey{TaskID: c.TaskID, WeekNumber: c.WeekNumber}
}

// EffectiveState is the status and progress a task shows in a given week.
type EffectiveState struct {
	Status          TaskStatus
	ProgressCurrent int
}

// TaskFilter narrows a task read. Nil fields are not applied.
type TaskFilter struct {
	IDs         []string
	WeekNumber  *int
	RecurringOf *string // template id
}

// WeekSnapshot is the closed state of one week, handed to the archive after rollover.
type WeekSnapshot struct {
	UserID       string
	WeekNumber   int
	ClosedAt     time.Time
	Tasks        []SnapshotTask
	Dependencies []TaskDependency
}

// SnapshotTask is a task as it looked in the snapshot week.
type SnapshotTask struct {
	Task  *Task
	State EffectiveState
}
