package domain

// TaskStatus represents the current state of a task.
// Value object - immutable string enum.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// TaskPriority represents the priority level of a task.
// Value object - immutable string enum.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Category is one of the three fixed buckets a task lives in.
type Category string

const (
	CategoryWork      Category = "work"
	CategoryPersonal  Category = "personal"
	CategoryRecurring Category = "recurring"
)

// DependencyType is the temporal relation of a dependency edge.
type DependencyType string

const (
	DependencyFinishToStart  DependencyType = "finish_to_start"
	DependencyStartToStart   DependencyType = "start_to_start"
	DependencyFinishToFinish DependencyType = "finish_to_finish"
	DependencyStartToFinish  DependencyType = "start_to_finish"
)

// RecurrencePattern is the cadence of a recurring task template.
type RecurrencePattern string

const (
	RecurrenceWeekly   RecurrencePattern = "weekly"
	RecurrenceBiweekly RecurrencePattern = "biweekly"
	RecurrenceMonthly  RecurrencePattern = "monthly"
)

// ActivityType classifies an activity log record.
type ActivityType string

const (
	ActivityCreated           ActivityType = "created"
	ActivityDeleted           ActivityType = "deleted"
	ActivityStatusChanged     ActivityType = "status_changed"
	ActivityPriorityChanged   ActivityType = "priority_changed"
	ActivityDueDateChanged    ActivityType = "due_date_changed"
	ActivityCategoryChanged   ActivityType = "category_changed"
	ActivityProgressChanged   ActivityType = "progress_changed"
	ActivitySubtaskAdded      ActivityType = "subtask_added"
	ActivitySubtaskUpdated    ActivityType = "subtask_updated"
	ActivitySubtaskRemoved    ActivityType = "subtask_removed"
	ActivityAttachmentAdded   ActivityType = "attachment_added"
	ActivityAttachmentRemoved ActivityType = "attachment_removed"
	ActivityDependencyAdded   ActivityType = "dependency_added"
	ActivityDependencyRemoved ActivityType = "dependency_removed"
	ActivityWeekChanged       ActivityType = "week_changed"
	ActivityForked            ActivityType = "forked"
)
