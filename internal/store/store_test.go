package store

import (
	"path/filepath"
	"reflect"
	"testing"

	"taskdeck/internal/pipeline"
	"taskdeck/internal/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "taskdeck.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPrefsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.LoadPrefs("tasks"); err != nil || ok {
		t.Fatalf("fresh store should have no prefs, ok=%v err=%v", ok, err)
	}

	want := Prefs{
		ViewMode: "kanban",
		Sort:     pipeline.SortPriorityHigh,
		Statuses: []task.Status{task.StatusTodo, task.StatusBlocked},
	}
	if err := s.SavePrefs("tasks", want); err != nil {
		t.Fatalf("SavePrefs failed: %v", err)
	}

	got, ok, err := s.LoadPrefs("tasks")
	if err != nil || !ok {
		t.Fatalf("LoadPrefs failed, ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("prefs round trip: got %+v, want %+v", got, want)
	}
}

func TestPrefsOverwrittenOnChange(t *testing.T) {
	s := openTestStore(t)
	if err := s.SavePrefs("tasks", Prefs{ViewMode: "list", Sort: pipeline.SortCreatedDesc}); err != nil {
		t.Fatalf("SavePrefs failed: %v", err)
	}
	if err := s.SavePrefs("tasks", Prefs{ViewMode: "calendar", Sort: pipeline.SortDueSoon}); err != nil {
		t.Fatalf("second SavePrefs failed: %v", err)
	}
	got, _, err := s.LoadPrefs("tasks")
	if err != nil {
		t.Fatalf("LoadPrefs failed: %v", err)
	}
	if got.ViewMode != "calendar" || got.Sort != pipeline.SortDueSoon {
		t.Errorf("latest save should win, got %+v", got)
	}
}

func TestPrefsScopedPerPage(t *testing.T) {
	s := openTestStore(t)
	s.SavePrefs("tasks", Prefs{ViewMode: "kanban"})
	s.SavePrefs("projects", Prefs{ViewMode: "grid"})

	tasksPrefs, _, _ := s.LoadPrefs("tasks")
	projPrefs, _, _ := s.LoadPrefs("projects")
	if tasksPrefs.ViewMode == projPrefs.ViewMode {
		t.Errorf("pages must not share prefs: %q vs %q", tasksPrefs.ViewMode, projPrefs.ViewMode)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	tasks, fetched, err := s.LoadSnapshot("p-1")
	if err != nil || tasks != nil || !fetched.IsZero() {
		t.Fatalf("fresh store should have no snapshot: %v %v %v", tasks, fetched, err)
	}

	want := []task.Task{
		{ID: "t-1", Title: "one", Status: task.StatusTodo, Priority: task.PriorityHigh, DueDate: "2024-05-10"},
		{ID: "t-2", Title: "two", Status: "archived", Priority: task.PriorityLow},
	}
	if err := s.SaveSnapshot("p-1", want); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, fetched, err := s.LoadSnapshot("p-1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if fetched.IsZero() {
		t.Error("fetched_at should be recorded")
	}
	if len(got) != 2 || got[0].ID != "t-1" || got[1].Status != "archived" {
		t.Errorf("snapshot round trip mismatch: %#v", got)
	}
}

func TestSnapshotScopesAreIndependent(t *testing.T) {
	s := openTestStore(t)
	s.SaveSnapshot("", []task.Task{{ID: "all-1", Title: "a"}})
	s.SaveSnapshot("p-1", []task.Task{{ID: "proj-1", Title: "b"}})

	all, _, _ := s.LoadSnapshot("")
	proj, _, _ := s.LoadSnapshot("p-1")
	if len(all) != 1 || all[0].ID != "all-1" {
		t.Errorf("unscoped snapshot wrong: %#v", all)
	}
	if len(proj) != 1 || proj[0].ID != "proj-1" {
		t.Errorf("project snapshot wrong: %#v", proj)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	access, refresh, err := s.LoadSession()
	if err != nil || access != "" || refresh != "" {
		t.Fatalf("fresh store should have no session: %q %q %v", access, refresh, err)
	}

	if err := s.SaveSession("acc", "ref"); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	access, refresh, err = s.LoadSession()
	if err != nil || access != "acc" || refresh != "ref" {
		t.Fatalf("session round trip failed: %q %q %v", access, refresh, err)
	}

	if err := s.SaveSession("", ""); err != nil {
		t.Fatalf("clearing session failed: %v", err)
	}
	access, refresh, _ = s.LoadSession()
	if access != "" || refresh != "" {
		t.Errorf("session should be cleared, got %q %q", access, refresh)
	}
}
