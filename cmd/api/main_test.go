package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"task-gravity-backend/internal/analytics"
	"task-gravity-backend/internal/auth"
	"task-gravity-backend/internal/store"
	"task-gravity-backend/internal/tasks"
)

const owner = "6f1c1a55-3f0e-4c5e-9a43-2f6d1b2e7a10"

func TestRoutes(t *testing.T) {
	secret := []byte("routes-secret")
	svc := tasks.NewService(store.NewMemory(), nil)
	srv := httptest.NewServer(routes(svc, analytics.New(nil), auth.New(secret), 14))
	defer srv.Close()

	tok, err := auth.GenerateToken(secret, owner, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	call := func(method, path, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp, err := http.Get(srv.URL + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %v, %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/tasks")
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v, %v", resp, err)
	}
	resp.Body.Close()

	resp = call(http.MethodPost, "/tasks", `{"title":"Root"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var root tasks.Task
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		t.Fatal(err)
	}

	resp = call(http.MethodPost, "/tasks", `{"title":"Child","parent_id":"`+root.ID+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create child: expected 201, got %d", resp.StatusCode)
	}

	resp = call(http.MethodGet, "/tasks/tree", "")
	var forest []tasks.TaskTree
	if err := json.NewDecoder(resp.Body).Decode(&forest); err != nil {
		t.Fatal(err)
	}
	if len(forest) != 1 || len(forest[0].Children) != 1 {
		t.Fatalf("unexpected forest: %+v", forest)
	}

	if resp := call(http.MethodPut, "/tasks/"+root.ID+"/coordinates", `{"time_cost_x":5,"interest_y":95}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("coordinates: expected 200, got %d", resp.StatusCode)
	}
	if resp := call(http.MethodPost, "/tasks/"+root.ID+"/focus/start", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("focus: expected 200, got %d", resp.StatusCode)
	}

	resp = call(http.MethodGet, "/tasks/gravity", "")
	var gravity []tasks.Task
	if err := json.NewDecoder(resp.Body).Decode(&gravity); err != nil {
		t.Fatal(err)
	}
	if len(gravity) != 1 || gravity[0].ID != root.ID {
		t.Fatalf("unexpected gravity list: %+v", gravity)
	}

	if resp := call(http.MethodDelete, "/tasks/"+root.ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	if resp := call(http.MethodGet, "/tasks/"+root.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	if resp := call(http.MethodPost, "/tasks/decay?days=7", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("decay: expected 200, got %d", resp.StatusCode)
	}
}
