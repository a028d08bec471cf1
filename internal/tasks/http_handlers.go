package tasks

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"task-gravity-backend/internal/analytics"
	"task-gravity-backend/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	case errors.Is(err, ErrCycleDetected):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("[WARN] %v", err)
		http.Error(w, "db error", http.StatusInternalServerError)
	}
}

// decodeBody reports enum errors (status, category) as validation failures.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrValidation) {
		writeError(w, err)
		return false
	}
	http.Error(w, "invalid json", http.StatusBadRequest)
	return false
}

func track(r *http.Request, rec *analytics.Recorder, uid, event string, props map[string]any) {
	env := analytics.FromRequest(r)
	env.UserID = uid
	if err := rec.Log(r.Context(), env, event, props, analytics.SourceEventKeyFromRequest(r)); err != nil {
		log.Printf("[WARN] %v", err)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return uid, ok
}

func parseStatuses(raw string) ([]Status, error) {
	var out []Status
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		s, err := ParseStatus(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseCategories(raw string) ([]Category, error) {
	var out []Category
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		c, err := ParseCategory(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseFloatParam(q map[string][]string, key string) (*float64, error) {
	vs := q[key]
	if len(vs) == 0 || strings.TrimSpace(vs[0]) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(vs[0]), 64)
	if err != nil {
		return nil, &ValidationError{Field: key, Reason: "not a number"}
	}
	return &f, nil
}

// filterFromQuery reads status, category, roots, parent_id, min_x, max_x, min_y, max_y and q.
func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	var f Filter
	var err error

	if f.Statuses, err = parseStatuses(q.Get("status")); err != nil {
		return Filter{}, err
	}
	if f.Categories, err = parseCategories(q.Get("category")); err != nil {
		return Filter{}, err
	}
	f.RootsOnly = q.Get("roots") == "true" || q.Get("roots") == "1"
	if pid := strings.TrimSpace(q.Get("parent_id")); pid != "" {
		f.ParentID = &pid
	}
	if f.MinTimeCostX, err = parseFloatParam(q, "min_x"); err != nil {
		return Filter{}, err
	}
	if f.MaxTimeCostX, err = parseFloatParam(q, "max_x"); err != nil {
		return Filter{}, err
	}
	if f.MinInterestY, err = parseFloatParam(q, "min_y"); err != nil {
		return Filter{}, err
	}
	if f.MaxInterestY, err = parseFloatParam(q, "max_y"); err != nil {
		return Filter{}, err
	}
	f.Search = strings.TrimSpace(q.Get("q"))
	return f, nil
}

func ListTasksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		f, err := filterFromQuery(r)
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := svc.ListTasks(r.Context(), uid, f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func TaskTreeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		statuses, err := parseStatuses(r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, err)
			return
		}
		forest, err := svc.GetTaskTree(r.Context(), uid, statuses...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, forest)
	}
}

func RootTasksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		statuses, err := parseStatuses(r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := svc.GetRootTasks(r.Context(), uid, statuses...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GravityTasksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		out, err := svc.GetTasksForGravity(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func StatsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		st, err := svc.GetStats(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func CreateTaskHandler(svc *Service, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		var in CreateTaskInput
		if !decodeBody(w, r, &in) {
			return
		}
		t, err := svc.CreateTask(r.Context(), uid, in)
		if err != nil {
			writeError(w, err)
			return
		}

		// no raw text in analytics
		track(r, rec, uid, "task_created", map[string]any{
			"task_id":    t.ID,
			"category":   t.Category,
			"difficulty": t.Difficulty,
			"is_subtask": !t.IsRoot(),
		})
		writeJSON(w, http.StatusCreated, t)
	}
}

func GetTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		t, err := svc.GetTask(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if t == nil {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// updateTaskRequest keeps parent_id raw: absent leaves the parent alone,
// null makes the task a root, a string moves it.
type updateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	ParentID    json.RawMessage `json:"parent_id"`
	TimeCostX   *float64        `json:"time_cost_x"`
	InterestY   *float64        `json:"interest_y"`
	Difficulty  *int            `json:"difficulty"`
	Category    *Category       `json:"category"`
	Status      *Status         `json:"status"`
	Position    *float64        `json:"position"`
	Metadata    Metadata        `json:"metadata"`
}

func (req updateTaskRequest) input() (UpdateTaskInput, error) {
	in := UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		TimeCostX:   req.TimeCostX,
		InterestY:   req.InterestY,
		Difficulty:  req.Difficulty,
		Category:    req.Category,
		Status:      req.Status,
		Position:    req.Position,
		Metadata:    req.Metadata,
	}
	if len(req.ParentID) > 0 {
		if string(req.ParentID) == "null" {
			in.Parent = &Reparent{}
		} else {
			var pid string
			if err := json.Unmarshal(req.ParentID, &pid); err != nil {
				return UpdateTaskInput{}, &ValidationError{Field: "parent_id", Reason: "must be a string or null"}
			}
			in.Parent = &Reparent{ParentID: &pid}
		}
	}
	return in, nil
}

func UpdateTaskHandler(svc *Service, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req updateTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		in, err := req.input()
		if err != nil {
			writeError(w, err)
			return
		}

		t, err := svc.UpdateTask(r.Context(), uid, r.PathValue("id"), in)
		if err != nil {
			writeError(w, err)
			return
		}

		event := "task_updated"
		if in.Status != nil && *in.Status == StatusCompleted {
			event = "task_completed"
		}
		track(r, rec, uid, event, map[string]any{
			"task_id":  t.ID,
			"status":   t.Status,
			"reparent": in.Parent != nil,
		})
		writeJSON(w, http.StatusOK, t)
	}
}

func UpdateCoordinatesHandler(svc *Service, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		var body struct {
			TimeCostX *float64 `json:"time_cost_x"`
			InterestY *float64 `json:"interest_y"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.TimeCostX == nil || body.InterestY == nil {
			http.Error(w, "time_cost_x and interest_y required", http.StatusBadRequest)
			return
		}

		t, err := svc.UpdateCoordinates(r.Context(), uid, r.PathValue("id"), *body.TimeCostX, *body.InterestY)
		if err != nil {
			writeError(w, err)
			return
		}
		track(r, rec, uid, "task_moved", map[string]any{
			"task_id":     t.ID,
			"time_cost_x": t.TimeCostX,
			"interest_y":  t.InterestY,
		})
		writeJSON(w, http.StatusOK, t)
	}
}

func DeleteTaskHandler(svc *Service, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		id := r.PathValue("id")
		if err := svc.DeleteTask(r.Context(), uid, id); err != nil {
			writeError(w, err)
			return
		}
		track(r, rec, uid, "task_deleted", map[string]any{"task_id": id})
		w.WriteHeader(http.StatusNoContent)
	}
}

func AncestorsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		out, err := svc.Ancestors(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func DescendantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		out, err := svc.Descendants(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func StartFocusHandler(svc *Service, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		t, err := svc.StartFocus(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		track(r, rec, uid, "focus_started", map[string]any{"task_id": t.ID})
		writeJSON(w, http.StatusOK, t)
	}
}

func StopFocusHandler(svc *Service, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		// body is optional
		var body struct {
			Complete bool `json:"complete"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		t, err := svc.StopFocus(r.Context(), uid, r.PathValue("id"), body.Complete)
		if err != nil {
			writeError(w, err)
			return
		}
		track(r, rec, uid, "focus_stopped", map[string]any{
			"task_id":          t.ID,
			"completed":        body.Complete,
			"total_focus_time": t.TotalFocusTime,
		})
		writeJSON(w, http.StatusOK, t)
	}
}

// DecayHandler runs the sweep for the caller; ?days= overrides defaultDays.
func DecayHandler(svc *Service, rec *analytics.Recorder, defaultDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}
		days := defaultDays
		if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
			d, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "days must be an integer", http.StatusBadRequest)
				return
			}
			days = d
		}

		n, err := svc.DecayTasks(r.Context(), uid, days)
		if err != nil {
			writeError(w, err)
			return
		}
		if n > 0 {
			track(r, rec, uid, "tasks_decayed", map[string]any{"count": n, "threshold_days": days})
		}
		writeJSON(w, http.StatusOK, map[string]any{"archived": n, "threshold_days": days})
	}
}
