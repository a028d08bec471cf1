package tasks

import (
	"context"
	"time"
)

// OrderColumn is one of the columns a listing may be sorted by.
type OrderColumn string

const (
	OrderCreatedAt     OrderColumn = "created_at"
	OrderLastTouchedAt OrderColumn = "last_touched_at"
	OrderInterestY     OrderColumn = "interest_y"
	OrderTimeCostX     OrderColumn = "time_cost_x"
	OrderPosition      OrderColumn = "position"
)

func (c OrderColumn) Valid() bool {
	switch c {
	case OrderCreatedAt, OrderLastTouchedAt, OrderInterestY, OrderTimeCostX, OrderPosition:
		return true
	}
	return false
}

type Order struct {
	Column OrderColumn
	Desc   bool
}

// Query is a filtered select against the tasks table. Zero fields do not filter.
// An empty OwnerID spans every owner; only the scheduled decay sweep does that.
type Query struct {
	OwnerID    string
	IDs        []string
	Statuses   []Status
	Categories []Category
	RootsOnly  bool
	ParentID   *string

	MinTimeCostX, MaxTimeCostX *float64
	MinInterestY, MaxInterestY *float64
	Search                     string

	TouchedBefore time.Time
	OrderBy       []Order
}

// StaleTransition is the conditional batch update issued by the decay sweep.
// A store must apply To only to rows that still match From and TouchedBefore.
type StaleTransition struct {
	IDs           []string
	From          []Status
	TouchedBefore time.Time
	To            Status
	UpdatedAt     time.Time
}

// Store is the persisted tasks table. Implementations return ErrNotFound for a
// missing (owner, id) pair and never interpret any other column on their own.
type Store interface {
	Insert(ctx context.Context, t Task) (Task, error)
	Get(ctx context.Context, ownerID, id string) (Task, error)
	List(ctx context.Context, q Query) ([]Task, error)
	Update(ctx context.Context, ownerID, id string, p Patch) (Task, error)
	// DeleteTree removes id and all of its descendants and reports how many rows went.
	DeleteTree(ctx context.Context, ownerID, id string) (int64, error)
	TransitionStale(ctx context.Context, tr StaleTransition) (int64, error)
}
