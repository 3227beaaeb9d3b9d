package pipeline

import (
	"reflect"
	"testing"

	"taskdeck/internal/task"
)

func mkTask(id, title string, status task.Status) task.Task {
	return task.Task{ID: id, Title: title, Status: status, Priority: task.PriorityMedium}
}

func ids(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilterProjectScope(t *testing.T) {
	tasks := []task.Task{
		{ID: "1", Title: "a", Status: task.StatusTodo, ProjectID: "p1"},
		{ID: "2", Title: "b", Status: task.StatusTodo, ProjectID: "p2"},
		{ID: "3", Title: "c", Status: task.StatusTodo},
	}

	got := Filter(tasks, Filters{ProjectID: "p1"})
	if !reflect.DeepEqual(ids(got), []string{"1"}) {
		t.Errorf("project scope: got %v, want [1]", ids(got))
	}

	got = Filter(tasks, Filters{})
	if len(got) != 3 {
		t.Errorf("no scope should keep all, got %d", len(got))
	}
}

func TestFilterSearch(t *testing.T) {
	tasks := []task.Task{
		{ID: "1", Title: "Fix login page", Status: task.StatusTodo},
		{ID: "2", Title: "Deploy", Description: "fix the LOGIN redirect", Status: task.StatusTodo},
		{ID: "3", Title: "Write docs", Status: task.StatusTodo},
	}

	got := Filter(tasks, Filters{Search: "LoGiN"})
	if !reflect.DeepEqual(ids(got), []string{"1", "2"}) {
		t.Errorf("search should match title and description case-insensitively, got %v", ids(got))
	}
}

func TestFilterWhitespaceSearchIsNoop(t *testing.T) {
	tasks := []task.Task{
		{ID: "1", Title: "a", Status: task.StatusTodo},
		{ID: "2", Title: "b", Status: task.StatusDone},
	}
	got := Filter(tasks, Filters{Search: "   "})
	if len(got) != 2 {
		t.Errorf("whitespace-only search must keep all tasks, got %d", len(got))
	}
}

func TestFilterStatusMembership(t *testing.T) {
	tasks := []task.Task{
		mkTask("1", "a", task.StatusTodo),
		mkTask("2", "b", task.StatusDone),
		mkTask("3", "c", task.StatusInProgress),
	}
	got := Filter(tasks, Filters{Statuses: []task.Status{task.StatusDone}})
	if !reflect.DeepEqual(ids(got), []string{"2"}) {
		t.Errorf("status membership: got %v, want [2]", ids(got))
	}
}

func TestFilterEmptyStatusesUsesFallback(t *testing.T) {
	tasks := []task.Task{
		mkTask("1", "a", task.StatusTodo),
		mkTask("2", "b", task.StatusDone),
		mkTask("3", "c", task.StatusInProgress),
		mkTask("4", "d", task.StatusBacklog),
	}
	got := Filter(tasks, Filters{Fallback: DefaultStatuses()})
	if !reflect.DeepEqual(ids(got), []string{"1", "3"}) {
		t.Errorf("empty selection should fall back to todo+in_progress, got %v", ids(got))
	}

	// No fallback configured: empty selection means no status filtering.
	got = Filter(tasks, Filters{})
	if len(got) != 4 {
		t.Errorf("empty selection with empty fallback should keep all, got %d", len(got))
	}
}

func TestFilterDimensionsAreConjunctive(t *testing.T) {
	tasks := []task.Task{
		{ID: "1", Title: "alpha work", Status: task.StatusTodo, ProjectID: "p1"},
		{ID: "2", Title: "alpha work", Status: task.StatusDone, ProjectID: "p1"},
		{ID: "3", Title: "alpha work", Status: task.StatusTodo, ProjectID: "p2"},
		{ID: "4", Title: "other", Status: task.StatusTodo, ProjectID: "p1"},
	}
	f := Filters{ProjectID: "p1", Search: "alpha", Statuses: []task.Status{task.StatusTodo}}
	got := Filter(tasks, f)
	if !reflect.DeepEqual(ids(got), []string{"1"}) {
		t.Errorf("conjunction: got %v, want [1]", ids(got))
	}
}

func TestFilterIdempotent(t *testing.T) {
	tasks := []task.Task{
		{ID: "1", Title: "alpha", Status: task.StatusTodo, ProjectID: "p1"},
		{ID: "2", Title: "beta", Status: task.StatusDone, ProjectID: "p1"},
		{ID: "3", Title: "alpha beta", Status: task.StatusInProgress, ProjectID: "p2"},
	}
	params := []Filters{
		{},
		{ProjectID: "p1"},
		{Search: "alpha"},
		{Statuses: []task.Status{task.StatusDone}},
		{Fallback: DefaultStatuses()},
		{ProjectID: "p1", Search: "a", Fallback: DefaultStatuses()},
	}
	for _, p := range params {
		once := Filter(tasks, p)
		twice := Filter(once, p)
		if !reflect.DeepEqual(ids(once), ids(twice)) {
			t.Errorf("filter not idempotent for %+v: %v vs %v", p, ids(once), ids(twice))
		}
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	tasks := []task.Task{
		mkTask("2", "b", task.StatusDone),
		mkTask("1", "a", task.StatusTodo),
	}
	before := ids(tasks)
	Filter(tasks, Filters{Statuses: []task.Status{task.StatusTodo}})
	if !reflect.DeepEqual(ids(tasks), before) {
		t.Error("Filter mutated its input slice")
	}
}
