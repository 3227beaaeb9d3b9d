package task

import (
	"fmt"
	"log"
	"strings"
)

// Raw is the loosely typed task payload as the backend sends it. Nothing
// downstream of Normalize touches a Raw.
type Raw struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	ProjectID   string   `json:"project_id"`
	CategoryID  string   `json:"category_id"`
	AssigneeID  string   `json:"assignee_id"`
	Assignee    *User    `json:"assignee"`
	Tags        []string `json:"tags"`
	Completed   bool     `json:"completed"`
	DueDate     string   `json:"due_date"`
	StartDate   string   `json:"start_date"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	CompletedAt string   `json:"completed_at"`
}

// MalformedError marks a fetched record that is unusable because a
// required identity field is missing.
type MalformedError struct {
	ID    string
	Field string
}

func (e *MalformedError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed task record: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed task record %s: missing %s", e.ID, e.Field)
}

// Normalize validates a raw payload into a Task. A missing id or title is
// a hard error; every optional field degrades instead. Status and priority
// default when absent, and values outside the closed sets are kept
// verbatim so grouping can route them to the unrecognized bucket.
func Normalize(r Raw) (Task, error) {
	if strings.TrimSpace(r.ID) == "" {
		return Task{}, &MalformedError{Field: "id"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return Task{}, &MalformedError{ID: r.ID, Field: "title"}
	}

	status := Status(strings.TrimSpace(r.Status))
	if status == "" {
		status = StatusTodo
	}
	priority := Priority(strings.TrimSpace(r.Priority))
	if priority == "" {
		priority = PriorityMedium
	}

	assignee := r.Assignee
	if assignee == nil && r.AssigneeID != "" {
		assignee = &User{ID: r.AssigneeID}
	}

	tags := make([]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}

	return Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      status,
		Priority:    priority,
		ProjectID:   r.ProjectID,
		CategoryID:  r.CategoryID,
		Assignee:    assignee,
		Tags:        tags,
		Completed:   r.Completed,
		DueDate:     r.DueDate,
		StartDate:   r.StartDate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

// NormalizeAll normalizes a fetched batch. Malformed records are dropped
// with a warning instead of failing the whole fetch; the second return is
// the number dropped.
func NormalizeAll(raws []Raw) ([]Task, int) {
	tasks := make([]Task, 0, len(raws))
	dropped := 0
	for _, r := range raws {
		t, err := Normalize(r)
		if err != nil {
			log.Printf("[task] dropping record: %v", err)
			dropped++
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, dropped
}
