package tasks_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"task-gravity-backend/internal/auth"
	"task-gravity-backend/internal/tasks"
)

// do runs h as owner with an optional JSON body and path id.
func do(t *testing.T, h http.HandlerFunc, method, target, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if id != "" {
		req.SetPathValue("id", id)
	}
	req = req.WithContext(auth.WithUserID(req.Context(), owner))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHandlersRequireUser(t *testing.T) {
	svc, _ := newService(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rr := httptest.NewRecorder()
	tasks.ListTasksHandler(svc)(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateAndGetTaskHandlers(t *testing.T) {
	svc, _ := newService(t)

	rr := do(t, tasks.CreateTaskHandler(svc, nil), http.MethodPost, "/tasks", "", `{"title":"Plan trip","category":"personal","time_cost_x":20}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[tasks.Task](t, rr)
	if created.Title != "Plan trip" || created.TimeCostX != 20 || created.InterestY != 50 {
		t.Fatalf("unexpected task: %+v", created)
	}

	rr = do(t, tasks.GetTaskHandler(svc), http.MethodGet, "/tasks/"+created.ID, created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decode[tasks.Task](t, rr); got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	rr = do(t, tasks.GetTaskHandler(svc), http.MethodGet, "/tasks/nope", "nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreateTaskHandlerRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	for _, body := range []string{
		`{"title":""}`,
		`{"title":"x","interest_y":150}`,
		`{"title":"x","category":"chores"}`,
		`not json`,
	} {
		rr := do(t, tasks.CreateTaskHandler(svc, nil), http.MethodPost, "/tasks", "", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestUpdateTaskHandlerParentTriState(t *testing.T) {
	svc, _ := newService(t)
	a := mustCreate(t, svc, tasks.CreateTaskInput{Title: "A"})
	b := mustCreate(t, svc, tasks.CreateTaskInput{Title: "B", ParentID: &a.ID})

	// absent parent_id keeps the parent
	rr := do(t, tasks.UpdateTaskHandler(svc, nil), http.MethodPatch, "/tasks/"+b.ID, b.ID, `{"title":"B2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[tasks.Task](t, rr)
	if got.ParentID == nil || *got.ParentID != a.ID || got.Title != "B2" {
		t.Fatalf("unexpected task: %+v", got)
	}

	// cycle
	rr = do(t, tasks.UpdateTaskHandler(svc, nil), http.MethodPatch, "/tasks/"+a.ID, a.ID, `{"parent_id":"`+b.ID+`"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cycle, got %d", rr.Code)
	}

	// explicit null detaches
	rr = do(t, tasks.UpdateTaskHandler(svc, nil), http.MethodPatch, "/tasks/"+b.ID, b.ID, `{"parent_id":null}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decode[tasks.Task](t, rr); got.ParentID != nil {
		t.Fatalf("expected root, got parent %v", *got.ParentID)
	}

	rr = do(t, tasks.UpdateTaskHandler(svc, nil), http.MethodPatch, "/tasks/"+b.ID, b.ID, `{"status":"graveyard"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestUpdateCoordinatesHandler(t *testing.T) {
	svc, _ := newService(t)
	task := mustCreate(t, svc, tasks.CreateTaskInput{Title: "drag me"})
	h := tasks.UpdateCoordinatesHandler(svc, nil)

	rr := do(t, h, http.MethodPut, "/tasks/"+task.ID+"/coordinates", task.ID, `{"time_cost_x":12.5,"interest_y":77}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode[tasks.Task](t, rr); got.TimeCostX != 12.5 || got.InterestY != 77 {
		t.Fatalf("coordinates not applied: %+v", got)
	}

	if rr := do(t, h, http.MethodPut, "/", task.ID, `{"time_cost_x":12.5}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing interest_y: expected 400, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPut, "/", task.ID, `{"time_cost_x":-1,"interest_y":5}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("out of range: expected 400, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPut, "/", "missing", `{"time_cost_x":1,"interest_y":5}`); rr.Code != http.StatusNotFound {
		t.Fatalf("missing task: expected 404, got %d", rr.Code)
	}
}

func TestDeleteTaskHandler(t *testing.T) {
	svc, _ := newService(t)
	task := mustCreate(t, svc, tasks.CreateTaskInput{Title: "bye"})
	h := tasks.DeleteTaskHandler(svc, nil)

	if rr := do(t, h, http.MethodDelete, "/", task.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/", task.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestTreeAndListHandlers(t *testing.T) {
	svc, _ := newService(t)
	a := mustCreate(t, svc, tasks.CreateTaskInput{Title: "A"})
	mustCreate(t, svc, tasks.CreateTaskInput{Title: "B", ParentID: &a.ID, Category: ptr(tasks.CategoryWork)})

	rr := do(t, tasks.TaskTreeHandler(svc), http.MethodGet, "/tasks/tree", "", "")
	forest := decode[[]tasks.TaskTree](t, rr)
	if len(forest) != 1 || len(forest[0].Children) != 1 {
		t.Fatalf("unexpected forest: %+v", forest)
	}

	rr = do(t, tasks.ListTasksHandler(svc), http.MethodGet, "/tasks?category=work", "", "")
	if list := decode[[]tasks.Task](t, rr); len(list) != 1 || list[0].Title != "B" {
		t.Fatalf("unexpected list: %+v", list)
	}

	rr = do(t, tasks.ListTasksHandler(svc), http.MethodGet, "/tasks?status=bogus", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rr.Code)
	}

	rr = do(t, tasks.RootTasksHandler(svc), http.MethodGet, "/tasks/roots?status=inbox", "", "")
	if roots := decode[[]tasks.Task](t, rr); len(roots) != 1 || roots[0].ID != a.ID {
		t.Fatalf("unexpected roots: %+v", roots)
	}

	rr = do(t, tasks.StatsHandler(svc), http.MethodGet, "/tasks/stats", "", "")
	if st := decode[tasks.Stats](t, rr); st.Total != 2 {
		t.Fatalf("expected total 2, got %+v", st)
	}
}

func TestFocusHandlers(t *testing.T) {
	svc, c := newService(t)
	task := mustCreate(t, svc, tasks.CreateTaskInput{Title: "focus"})

	rr := do(t, tasks.StartFocusHandler(svc, nil), http.MethodPost, "/", task.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	c.t = c.t.Add(90 * time.Second)

	// empty body is allowed
	rr = do(t, tasks.StopFocusHandler(svc, nil), http.MethodPost, "/", task.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode[tasks.Task](t, rr); got.TotalFocusTime != 90 || got.Status != tasks.StatusActive {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestDecayHandler(t *testing.T) {
	svc, _ := newService(t)

	rr := do(t, tasks.DecayHandler(svc, nil, 14), http.MethodPost, "/tasks/decay?days=-2", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = do(t, tasks.DecayHandler(svc, nil, 14), http.MethodPost, "/tasks/decay?days=9223372036854775807", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized threshold, got %d", rr.Code)
	}
	rr = do(t, tasks.DecayHandler(svc, nil, 14), http.MethodPost, "/tasks/decay", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decode[map[string]int](t, rr)
	if body["archived"] != 0 || body["threshold_days"] != 14 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAncestorsHandler(t *testing.T) {
	svc, _ := newService(t)
	a := mustCreate(t, svc, tasks.CreateTaskInput{Title: "A"})
	b := mustCreate(t, svc, tasks.CreateTaskInput{Title: "B", ParentID: &a.ID})

	rr := do(t, tasks.AncestorsHandler(svc), http.MethodGet, "/", b.ID, "")
	if list := decode[[]tasks.Task](t, rr); len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("unexpected ancestors: %+v", list)
	}
	rr = do(t, tasks.DescendantsHandler(svc), http.MethodGet, "/", a.ID, "")
	if list := decode[[]tasks.Task](t, rr); len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("unexpected descendants: %+v", list)
	}
	if rr := do(t, tasks.AncestorsHandler(svc), http.MethodGet, "/", "missing", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
