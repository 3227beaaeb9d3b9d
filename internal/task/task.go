package task

// Status is the workflow state of a task. The backend owns the set of
// values; anything outside KnownStatuses is preserved verbatim and routed
// to the unrecognized bucket when grouping.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// KnownStatuses lists the closed status set in canonical board order.
func KnownStatuses() []Status {
	return []Status{
		StatusBacklog,
		StatusTodo,
		StatusInProgress,
		StatusInReview,
		StatusBlocked,
		StatusDone,
		StatusCancelled,
	}
}

func (s Status) Known() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusInReview,
		StatusBlocked, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Priority ranks a task for sorting. It carries no workflow meaning.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Rank maps a priority onto a fixed ordering scale. Unknown values rank
// below low so they never crash a sort and never outrank a real priority.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 5
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Known() bool {
	return p.Rank() > 0
}

// User is the slim assignee reference embedded in task payloads.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Task is the normalized in-memory record the view pipeline operates on.
// Date fields stay opaque strings; the backend emits either a bare
// YYYY-MM-DD or a full timestamp, and only consumers that need a concrete
// day resolve them (see ResolveDay).
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	ProjectID   string
	CategoryID  string
	Assignee    *User
	Tags        []string
	Completed   bool
	DueDate     string
	StartDate   string
	CreatedAt   string
	UpdatedAt   string
	CompletedAt string
}
