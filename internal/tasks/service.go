package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service is the caller-facing task API. Every operation is scoped to one owner.
type Service struct {
	store   Store
	sweeper *Sweeper
	now     func() time.Time
	newID   func() string
}

func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   store,
		sweeper: NewSweeper(store, now),
		now:     now,
		newID:   uuid.NewString,
	}
}

func (s *Service) Sweeper() *Sweeper {
	return s.sweeper
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Filter is the caller-side form of Query (the owner comes from the session).
type Filter struct {
	Statuses   []Status
	Categories []Category
	RootsOnly  bool
	ParentID   *string

	MinTimeCostX, MaxTimeCostX *float64
	MinInterestY, MaxInterestY *float64
	Search                     string
}

// CreateTask inserts a new task. Coordinates default to the mid-point and status to inbox.
func (s *Service) CreateTask(ctx context.Context, ownerID string, in CreateTaskInput) (Task, error) {
	title, err := ValidateTitle(in.Title)
	if err != nil {
		return Task{}, err
	}

	x, y := DefaultCoordinate, DefaultCoordinate
	if in.TimeCostX != nil {
		x = *in.TimeCostX
	}
	if in.InterestY != nil {
		y = *in.InterestY
	}
	if _, _, err := ValidateCoordinates(x, y); err != nil {
		return Task{}, err
	}

	difficulty := DefaultDifficulty
	if in.Difficulty != nil {
		difficulty = *in.Difficulty
	}
	if err := ValidateDifficulty(difficulty); err != nil {
		return Task{}, err
	}

	category := DefaultCategory
	if in.Category != nil {
		if !in.Category.Valid() {
			return Task{}, &ValidationError{Field: "category", Reason: "unknown category"}
		}
		category = *in.Category
	}

	if in.ParentID != nil {
		if _, err := s.store.Get(ctx, ownerID, *in.ParentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Task{}, &ValidationError{Field: "parent_id", Reason: "parent task does not exist"}
			}
			return Task{}, storeErr("create task: lookup parent", err)
		}
	}

	now := s.clock()
	t := Task{
		ID:            s.newID(),
		OwnerID:       ownerID,
		Title:         title,
		Description:   in.Description,
		ParentID:      in.ParentID,
		TimeCostX:     x,
		InterestY:     y,
		Difficulty:    difficulty,
		Category:      category,
		Status:        DefaultStatus,
		LastTouchedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      in.Metadata,
	}
	if in.Position != nil {
		t.Position = *in.Position
	}
	if t.Metadata == nil {
		t.Metadata = Metadata{}
	}

	created, err := s.store.Insert(ctx, t)
	if err != nil {
		return Task{}, storeErr("create task", err)
	}
	return created, nil
}

// GetTask returns nil without error when the task does not exist.
func (s *Service) GetTask(ctx context.Context, ownerID, id string) (*Task, error) {
	t, err := s.store.Get(ctx, ownerID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get task", err)
	}
	return &t, nil
}

func (s *Service) ListTasks(ctx context.Context, ownerID string, f Filter) ([]Task, error) {
	out, err := s.store.List(ctx, Query{
		OwnerID:      ownerID,
		Statuses:     f.Statuses,
		Categories:   f.Categories,
		RootsOnly:    f.RootsOnly,
		ParentID:     f.ParentID,
		MinTimeCostX: f.MinTimeCostX,
		MaxTimeCostX: f.MaxTimeCostX,
		MinInterestY: f.MinInterestY,
		MaxInterestY: f.MaxInterestY,
		Search:       f.Search,
		OrderBy:      []Order{{Column: OrderCreatedAt, Desc: true}},
	})
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return out, nil
}

// GetTaskTree fetches the owner's tasks (optionally only some statuses) as a forest.
func (s *Service) GetTaskTree(ctx context.Context, ownerID string, statuses ...Status) ([]*TaskTree, error) {
	flat, err := s.store.List(ctx, Query{
		OwnerID:  ownerID,
		Statuses: statuses,
		OrderBy:  []Order{{Column: OrderCreatedAt, Desc: true}},
	})
	if err != nil {
		return nil, storeErr("get task tree", err)
	}
	return BuildTree(flat), nil
}

func (s *Service) GetRootTasks(ctx context.Context, ownerID string, statuses ...Status) ([]Task, error) {
	out, err := s.store.List(ctx, Query{
		OwnerID:   ownerID,
		Statuses:  statuses,
		RootsOnly: true,
		OrderBy:   []Order{{Column: OrderLastTouchedAt, Desc: true}},
	})
	if err != nil {
		return nil, storeErr("get root tasks", err)
	}
	return out, nil
}

// GetTasksForGravity returns active root tasks, most interesting first, then quickest.
func (s *Service) GetTasksForGravity(ctx context.Context, ownerID string) ([]Task, error) {
	out, err := s.store.List(ctx, Query{
		OwnerID:   ownerID,
		Statuses:  []Status{StatusActive},
		RootsOnly: true,
		OrderBy: []Order{
			{Column: OrderInterestY, Desc: true},
			{Column: OrderTimeCostX},
		},
	})
	if err != nil {
		return nil, storeErr("get gravity tasks", err)
	}
	return out, nil
}

// UpdateCoordinates validates (x, y), then moves the task and refreshes its freshness marker.
func (s *Service) UpdateCoordinates(ctx context.Context, ownerID, id string, x, y float64) (Task, error) {
	if _, _, err := ValidateCoordinates(x, y); err != nil {
		return Task{}, err
	}
	now := s.clock()
	t, err := s.store.Update(ctx, ownerID, id, Patch{
		TimeCostX:     &x,
		InterestY:     &y,
		LastTouchedAt: &now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Task{}, storeErr("update coordinates", err)
	}
	return t, nil
}

// UpdateTask applies a partial update. Reparenting is checked against the owner's
// current snapshot so the parent chain can never become cyclic.
func (s *Service) UpdateTask(ctx context.Context, ownerID, id string, in UpdateTaskInput) (Task, error) {
	if in.Title != nil {
		title, err := ValidateTitle(*in.Title)
		if err != nil {
			return Task{}, err
		}
		in.Title = &title
	}
	if in.TimeCostX != nil || in.InterestY != nil {
		x, y := DefaultCoordinate, DefaultCoordinate
		if in.TimeCostX != nil {
			x = *in.TimeCostX
		}
		if in.InterestY != nil {
			y = *in.InterestY
		}
		if _, _, err := ValidateCoordinates(x, y); err != nil {
			return Task{}, err
		}
	}
	if in.Difficulty != nil {
		if err := ValidateDifficulty(*in.Difficulty); err != nil {
			return Task{}, err
		}
	}
	if in.Category != nil && !in.Category.Valid() {
		return Task{}, &ValidationError{Field: "category", Reason: "unknown category"}
	}
	if in.Status != nil && !in.Status.Valid() {
		return Task{}, &ValidationError{Field: "status", Reason: "unknown status"}
	}
	if in.Parent != nil && in.Parent.ParentID != nil {
		if err := s.checkReparent(ctx, ownerID, id, *in.Parent.ParentID); err != nil {
			return Task{}, err
		}
	}

	now := s.clock()
	p := Patch{
		Title:       in.Title,
		Description: in.Description,
		Parent:      in.Parent,
		TimeCostX:   in.TimeCostX,
		InterestY:   in.InterestY,
		Difficulty:  in.Difficulty,
		Category:    in.Category,
		Status:      in.Status,
		Position:    in.Position,
		Metadata:    in.Metadata,
		UpdatedAt:   now,
	}
	if in.touches() {
		p.LastTouchedAt = &now
	}

	t, err := s.store.Update(ctx, ownerID, id, p)
	if err != nil {
		return Task{}, storeErr("update task", err)
	}
	return t, nil
}

func (s *Service) checkReparent(ctx context.Context, ownerID, id, parentID string) error {
	if parentID == id {
		return &ValidationError{Field: "parent_id", Reason: "task cannot be its own parent"}
	}
	snapshot, err := s.store.List(ctx, Query{OwnerID: ownerID})
	if err != nil {
		return storeErr("update task: load snapshot", err)
	}
	idx := NewIndex(snapshot)
	if _, ok := idx.Get(id); !ok {
		return notFound(id)
	}
	if _, ok := idx.Get(parentID); !ok {
		return &ValidationError{Field: "parent_id", Reason: "parent task does not exist"}
	}
	chain, err := idx.Ancestors(parentID)
	if err != nil {
		return err
	}
	for _, a := range chain {
		if a.ID == id {
			return &ValidationError{Field: "parent_id", Reason: "move would create a cycle"}
		}
	}
	return nil
}

// DeleteTask removes the task and every descendant.
func (s *Service) DeleteTask(ctx context.Context, ownerID, id string) error {
	n, err := s.store.DeleteTree(ctx, ownerID, id)
	if err != nil {
		return storeErr("delete task", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// DecayTasks archives the owner's stale tasks; see Sweeper.Decay.
func (s *Service) DecayTasks(ctx context.Context, ownerID string, thresholdDays int) (int, error) {
	return s.sweeper.Decay(ctx, ownerID, thresholdDays)
}

func (s *Service) GetStats(ctx context.Context, ownerID string) (Stats, error) {
	flat, err := s.store.List(ctx, Query{OwnerID: ownerID})
	if err != nil {
		return Stats{}, storeErr("get stats", err)
	}
	return Aggregate(flat), nil
}

// Ancestors returns the parent chain of id, nearest first.
func (s *Service) Ancestors(ctx context.Context, ownerID, id string) ([]Task, error) {
	idx, err := s.snapshot(ctx, ownerID, id, "ancestors")
	if err != nil {
		return nil, err
	}
	return idx.Ancestors(id)
}

func (s *Service) Descendants(ctx context.Context, ownerID, id string) ([]Task, error) {
	idx, err := s.snapshot(ctx, ownerID, id, "descendants")
	if err != nil {
		return nil, err
	}
	return idx.Descendants(id), nil
}

func (s *Service) snapshot(ctx context.Context, ownerID, id, op string) (*Index, error) {
	flat, err := s.store.List(ctx, Query{OwnerID: ownerID})
	if err != nil {
		return nil, storeErr(op, err)
	}
	idx := NewIndex(flat)
	if _, ok := idx.Get(id); !ok {
		return nil, notFound(id)
	}
	return idx, nil
}

// StartFocus opens a focus session. It is a no-op while one is already running.
// Inbox and archived tasks become active; completed tasks are rejected.
func (s *Service) StartFocus(ctx context.Context, ownerID, id string) (Task, error) {
	cur, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return Task{}, storeErr("start focus", err)
	}
	if cur.FocusStartedAt != nil {
		return cur, nil
	}
	if cur.Status == StatusCompleted {
		return Task{}, &ValidationError{Field: "status", Reason: "task is already completed"}
	}

	now := s.clock()
	p := Patch{
		FocusStartedAt: &now,
		LastTouchedAt:  &now,
		UpdatedAt:      now,
	}
	if cur.Status != StatusActive {
		active := StatusActive
		p.Status = &active
	}
	t, err := s.store.Update(ctx, ownerID, id, p)
	if err != nil {
		return Task{}, storeErr("start focus", err)
	}
	return t, nil
}

// StopFocus closes the running session and adds its length to total_focus_time.
// With complete set the task is also marked completed, session or not.
func (s *Service) StopFocus(ctx context.Context, ownerID, id string, complete bool) (Task, error) {
	cur, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return Task{}, storeErr("stop focus", err)
	}
	if cur.FocusStartedAt == nil && !complete {
		return Task{}, &ValidationError{Field: "focus_started_at", Reason: "no focus session running"}
	}

	now := s.clock()
	p := Patch{
		LastTouchedAt: &now,
		UpdatedAt:     now,
	}
	if cur.FocusStartedAt != nil {
		if elapsed := now.Sub(*cur.FocusStartedAt); elapsed > 0 {
			p.AddFocusSeconds = int64(elapsed / time.Second)
		}
		p.ClearFocus = true
	}
	if complete {
		done := StatusCompleted
		p.Status = &done
	}
	t, err := s.store.Update(ctx, ownerID, id, p)
	if err != nil {
		return Task{}, storeErr("stop focus", err)
	}
	return t, nil
}
