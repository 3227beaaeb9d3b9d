// Package pipeline turns a fetched task snapshot into the ordered,
// partitioned collections the views render. Every stage is a pure
// function: same snapshot and parameters in, same order out, input never
// mutated.
package pipeline

import (
	"strings"

	"taskdeck/internal/task"
)

// Filters narrows a snapshot. Dimensions combine by conjunction: a task
// must pass project scope, search, and status membership to survive.
type Filters struct {
	// ProjectID scopes to a single project; empty keeps all projects.
	ProjectID string
	// Search is matched case-insensitively as a substring of title and
	// description. Whitespace-only input is a no-op.
	Search string
	// Statuses is the selected status set. When empty, Fallback applies
	// instead, so an empty selection never silently blanks the view.
	Statuses []task.Status
	// Fallback is the documented default for an empty Statuses selection.
	// The views pass the configured default; an empty Fallback means
	// "no status filtering at all".
	Fallback []task.Status
}

// DefaultStatuses is the standard fallback for an empty status selection.
func DefaultStatuses() []task.Status {
	return []task.Status{task.StatusTodo, task.StatusInProgress}
}

// Filter applies f to tasks and returns the survivors in input order.
func Filter(tasks []task.Task, f Filters) []task.Task {
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = f.Fallback
	}
	var member map[task.Status]bool
	if len(statuses) > 0 {
		member = make(map[task.Status]bool, len(statuses))
		for _, s := range statuses {
			member[s] = true
		}
	}

	needle := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if needle != "" && !matchesSearch(t, needle) {
			continue
		}
		if member != nil && !member[t.Status] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesSearch(t task.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	return t.Description != "" && strings.Contains(strings.ToLower(t.Description), needle)
}
