package api

import "taskdeck/internal/task"

// Project is a container the backend scopes tasks by.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	OwnerID     string `json:"owner_id"`
	TaskCount   int    `json:"task_count"`
}

// Category labels tasks within a project.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	ProjectID string `json:"project_id"`
}

// Comment is a task discussion entry.
type Comment struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	Content   string     `json:"content"`
	User      *task.User `json:"user"`
	CreatedAt string     `json:"created_at"`
}

// Activity is one entry of the recent-activity feed the backend records
// for task and project mutations.
type Activity struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	ActionType  string `json:"action_type"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	EntityName  string `json:"entity_name"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	CreatedAt   string `json:"created_at"`
}

type authResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         task.User `json:"user"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type taskListResponse struct {
	Tasks  []task.Raw `json:"tasks"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type projectListResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}

type categoryListResponse struct {
	Categories []Category `json:"categories"`
	Total      int        `json:"total"`
}

type activityListResponse struct {
	Activities []Activity `json:"activities"`
	Total      int        `json:"total"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

// TaskQuery narrows a task list fetch server-side.
type TaskQuery struct {
	ProjectID string
	Limit     int
	Offset    int
}

// TaskCreate is the payload for creating a task. Status and priority
// default server-side when empty.
type TaskCreate struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	ProjectID   string        `json:"project_id,omitempty"`
	CategoryID  string        `json:"category_id,omitempty"`
	AssigneeID  string        `json:"assignee_id,omitempty"`
	Status      task.Status   `json:"status,omitempty"`
	Priority    task.Priority `json:"priority,omitempty"`
	StartDate   string        `json:"start_date,omitempty"`
	DueDate     string        `json:"due_date,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// TaskUpdate carries only the fields being changed; nil pointers are
// omitted from the request body.
type TaskUpdate struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	CategoryID  *string        `json:"category_id,omitempty"`
	AssigneeID  *string        `json:"assignee_id,omitempty"`
	Status      *task.Status   `json:"status,omitempty"`
	Priority    *task.Priority `json:"priority,omitempty"`
	Completed   *bool          `json:"completed,omitempty"`
	StartDate   *string        `json:"start_date,omitempty"`
	DueDate     *string        `json:"due_date,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
}
