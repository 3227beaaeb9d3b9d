package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskdeck/internal/task"
)

func TestSignInStoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/signin" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" {
			t.Errorf("expected email in body, got %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "acc-1",
			"refresh_token": "ref-1",
			"user":          map[string]string{"id": "u-1", "username": "alice"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	user, err := c.SignIn(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if user.ID != "u-1" {
		t.Errorf("unexpected user: %#v", user)
	}
	access, refresh := c.Tokens()
	if access != "acc-1" || refresh != "ref-1" {
		t.Errorf("tokens not stored: %q %q", access, refresh)
	}
}

func TestSignInBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "invalid credentials"})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	_, err := c.SignIn(context.Background(), "a@b.c", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestListTasksDropsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("project_id"); got != "p-1" {
			t.Errorf("expected project_id=p-1, got %q", got)
		}
		if r.Header.Get("Authorization") != "Bearer acc" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tasks": []map[string]any{
				{"id": "t-1", "title": "ok", "status": "todo", "priority": "low"},
				{"id": "", "title": "no id"},
				{"id": "t-3", "title": "also ok", "status": "archived"},
			},
			"total": 3,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	tasks, total, err := c.ListTasks(context.Background(), TaskQuery{ProjectID: "p-1"})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected malformed record dropped, got %d tasks", len(tasks))
	}
	if tasks[1].Status != "archived" {
		t.Errorf("unknown status should survive normalization, got %q", tasks[1].Status)
	}
}

func TestRefreshAndReplayOn401(t *testing.T) {
	var refreshes, listCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/refresh":
			atomic.AddInt32(&refreshes, 1)
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["refresh_token"] != "ref-old" {
				t.Errorf("wrong refresh token: %v", body)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"access_token":  "acc-new",
				"refresh_token": "ref-new",
			})
		case "/api/v1/tasks":
			atomic.AddInt32(&listCalls, 1)
			if r.Header.Get("Authorization") != "Bearer acc-new" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "token expired"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{{"id": "t-1", "title": "x"}},
				"total": 1,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc-old", "ref-old")
	tasks, _, err := c.ListTasks(context.Background(), TaskQuery{})
	if err != nil {
		t.Fatalf("ListTasks should succeed after refresh+replay: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if n := atomic.LoadInt32(&refreshes); n != 1 {
		t.Errorf("expected exactly one refresh, got %d", n)
	}
	if n := atomic.LoadInt32(&listCalls); n != 2 {
		t.Errorf("expected original call plus one replay, got %d", n)
	}
	access, refresh := c.Tokens()
	if access != "acc-new" || refresh != "ref-new" {
		t.Errorf("rotated tokens not stored: %q %q", access, refresh)
	}
}

func TestConcurrent401sRefreshOnce(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/refresh":
			atomic.AddInt32(&refreshes, 1)
			time.Sleep(20 * time.Millisecond) // let other 401s queue
			json.NewEncoder(w).Encode(map[string]string{"access_token": "acc-new"})
		case "/api/v1/tasks":
			if r.Header.Get("Authorization") != "Bearer acc-new" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "expired"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"tasks": []map[string]any{}, "total": 0})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc-old", "ref-old")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.ListTasks(context.Background(), TaskQuery{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent fetch failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&refreshes); n != 1 {
		t.Errorf("concurrent 401s must share one refresh, got %d", n)
	}
}

func TestFailedRefreshClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/refresh":
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "refresh token revoked"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "expired"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	_, _, err := c.ListTasks(context.Background(), TaskQuery{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	access, refresh := c.Tokens()
	if access != "" || refresh != "" {
		t.Errorf("failed refresh must clear local tokens, got %q %q", access, refresh)
	}
}

func TestStatusErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"detail": "not your project"})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	err := c.DeleteTask(context.Background(), "t-1")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusForbidden || se.Detail != "not your project" {
		t.Errorf("unexpected StatusError: %+v", se)
	}
}

func TestCompleteTaskUsesDedicatedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/t-1/complete" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "t-1", "title": "x", "status": "done", "completed": true,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	got, err := c.CompleteTask(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if got.Status != task.StatusDone || !got.Completed {
		t.Errorf("unexpected task: %#v", got)
	}
}

func TestCommentsRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/t-1/comments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodPost:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]any{
				"id": "c-2", "task_id": "t-1", "content": body["content"],
			})
		default:
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "c-1", "task_id": "t-1", "content": "first"},
			})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	added, err := c.AddComment(context.Background(), "t-1", "looks good")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if added.Content != "looks good" {
		t.Errorf("unexpected comment: %#v", added)
	}
	comments, err := c.ListComments(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "c-1" {
		t.Errorf("unexpected comments: %#v", comments)
	}
}

func TestListActivitiesScopedToProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/activities" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("project_id"); got != "p-1" {
			t.Errorf("expected project_id=p-1, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("expected limit=5, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"activities": []map[string]any{
				{"id": "a-1", "user_name": "alice", "action_type": "created", "entity_type": "task", "entity_name": "Fix login"},
				{"id": "a-2", "description": "bob completed \"Deploy\""},
			},
			"total": 2,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	activities, err := c.ListActivities(context.Background(), "p-1", 5)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(activities) != 2 || activities[0].UserName != "alice" || activities[1].Description == "" {
		t.Errorf("unexpected activities: %#v", activities)
	}
}

func TestSignOutClearsTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Revocation failure must still clear the local session.
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	c.SignOut(context.Background())
	access, refresh := c.Tokens()
	if access != "" || refresh != "" {
		t.Errorf("SignOut must clear tokens, got %q %q", access, refresh)
	}
}

func TestUpdateTaskOmitsUnsetFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["title"]; ok {
			t.Error("unset title must not appear in the body")
		}
		if body["status"] != "done" {
			t.Errorf("expected status=done, got %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "t-1", "title": "x", "status": "done"})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	c.SetTokens("acc", "ref")
	status := task.StatusDone
	got, err := c.UpdateTask(context.Background(), "t-1", TaskUpdate{Status: &status})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if got.Status != task.StatusDone {
		t.Errorf("unexpected task: %#v", got)
	}
}
