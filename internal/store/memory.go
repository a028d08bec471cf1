package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"task-gravity-backend/internal/tasks"
)

// Memory is a thread-safe, in-process tasks table backing STORE=memory and the
// service tests. Rows live in a map for O(1) lookup and a slice for stable
// insertion-order iteration.
type Memory struct {
	mu    sync.RWMutex
	rows  map[string]*tasks.Task
	order []string
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]*tasks.Task)}
}

var _ tasks.Store = (*Memory)(nil)

func (m *Memory) Insert(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rows[t.ID]; exists {
		return tasks.Task{}, fmt.Errorf("duplicate task id %s", t.ID)
	}
	row := t.Clone()
	m.rows[t.ID] = &row
	m.order = append(m.order, t.ID)
	return row.Clone(), nil
}

func (m *Memory) Get(ctx context.Context, ownerID, id string) (tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Task{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[id]
	if !ok || row.OwnerID != ownerID {
		return tasks.Task{}, fmt.Errorf("%w: %s", tasks.ErrNotFound, id)
	}
	return row.Clone(), nil
}

func (m *Memory) List(ctx context.Context, q tasks.Query) ([]tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []tasks.Task{}
	for _, id := range m.order {
		row := m.rows[id]
		if matches(row, q) {
			out = append(out, row.Clone())
		}
	}
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			return less(out[i], out[j], q.OrderBy)
		})
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, ownerID, id string, p tasks.Patch) (tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok || row.OwnerID != ownerID {
		return tasks.Task{}, fmt.Errorf("%w: %s", tasks.ErrNotFound, id)
	}
	applyPatch(row, p)
	return row.Clone(), nil
}

func (m *Memory) DeleteTree(ctx context.Context, ownerID, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	root, ok := m.rows[id]
	if !ok || root.OwnerID != ownerID {
		return 0, nil
	}

	doomed := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, cid := range m.order {
			c := m.rows[cid]
			if c.ParentID != nil && *c.ParentID == pid && !doomed[cid] {
				doomed[cid] = true
				queue = append(queue, cid)
			}
		}
	}

	kept := m.order[:0]
	for _, oid := range m.order {
		if doomed[oid] {
			delete(m.rows, oid)
			continue
		}
		kept = append(kept, oid)
	}
	m.order = kept
	return int64(len(doomed)), nil
}

func (m *Memory) TransitionStale(ctx context.Context, tr tasks.StaleTransition) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range tr.IDs {
		row, ok := m.rows[id]
		if !ok || !slices.Contains(tr.From, row.Status) || !row.LastTouchedAt.Before(tr.TouchedBefore) {
			continue
		}
		row.Status = tr.To
		row.UpdatedAt = tr.UpdatedAt
		n++
	}
	return n, nil
}

func applyPatch(row *tasks.Task, p tasks.Patch) {
	if p.Title != nil {
		row.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		row.Description = &d
	}
	if p.Parent != nil {
		if p.Parent.ParentID == nil {
			row.ParentID = nil
		} else {
			pid := *p.Parent.ParentID
			row.ParentID = &pid
		}
	}
	if p.TimeCostX != nil {
		row.TimeCostX = *p.TimeCostX
	}
	if p.InterestY != nil {
		row.InterestY = *p.InterestY
	}
	if p.Difficulty != nil {
		row.Difficulty = *p.Difficulty
	}
	if p.Category != nil {
		row.Category = *p.Category
	}
	if p.Status != nil {
		row.Status = *p.Status
	}
	if p.Position != nil {
		row.Position = *p.Position
	}
	if p.Metadata != nil {
		row.Metadata = tasks.Task{Metadata: p.Metadata}.Clone().Metadata
	}
	if p.LastTouchedAt != nil && p.LastTouchedAt.After(row.LastTouchedAt) {
		row.LastTouchedAt = *p.LastTouchedAt
	}
	if p.ClearFocus {
		row.FocusStartedAt = nil
	} else if p.FocusStartedAt != nil {
		f := *p.FocusStartedAt
		row.FocusStartedAt = &f
	}
	row.TotalFocusTime += p.AddFocusSeconds
	row.UpdatedAt = p.UpdatedAt
}

func matches(t *tasks.Task, q tasks.Query) bool {
	if q.OwnerID != "" && t.OwnerID != q.OwnerID {
		return false
	}
	if len(q.IDs) > 0 && !slices.Contains(q.IDs, t.ID) {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, t.Status) {
		return false
	}
	if len(q.Categories) > 0 && !slices.Contains(q.Categories, t.Category) {
		return false
	}
	if q.RootsOnly && t.ParentID != nil {
		return false
	}
	if q.ParentID != nil && (t.ParentID == nil || *t.ParentID != *q.ParentID) {
		return false
	}
	if q.MinTimeCostX != nil && t.TimeCostX < *q.MinTimeCostX {
		return false
	}
	if q.MaxTimeCostX != nil && t.TimeCostX > *q.MaxTimeCostX {
		return false
	}
	if q.MinInterestY != nil && t.InterestY < *q.MinInterestY {
		return false
	}
	if q.MaxInterestY != nil && t.InterestY > *q.MaxInterestY {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(q.Search)) {
		return false
	}
	if !q.TouchedBefore.IsZero() && !t.LastTouchedAt.Before(q.TouchedBefore) {
		return false
	}
	return true
}

func less(a, b tasks.Task, order []tasks.Order) bool {
	for _, o := range order {
		c := compare(a, b, o.Column)
		if c == 0 {
			continue
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compare(a, b tasks.Task, col tasks.OrderColumn) int {
	switch col {
	case tasks.OrderCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case tasks.OrderLastTouchedAt:
		return a.LastTouchedAt.Compare(b.LastTouchedAt)
	case tasks.OrderInterestY:
		return cmp.Compare(a.InterestY, b.InterestY)
	case tasks.OrderTimeCostX:
		return cmp.Compare(a.TimeCostX, b.TimeCostX)
	case tasks.OrderPosition:
		return cmp.Compare(a.Position, b.Position)
	}
	return 0
}
