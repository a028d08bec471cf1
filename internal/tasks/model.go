package tasks

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusInbox     Status = "inbox"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// legacy status from the second schema; read-only alias of archived
const legacyStatusGraveyard = "graveyard"

var allStatuses = []Status{StatusInbox, StatusActive, StatusCompleted, StatusArchived}

// DecayableStatuses are the non-terminal states the decay sweep may archive.
var DecayableStatuses = []Status{StatusInbox, StatusActive}

func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

func (s Status) Valid() bool {
	switch s {
	case StatusInbox, StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Terminal reports whether the decay sweep must leave the status alone.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusArchived
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", v)}
	}
	return s, nil
}

// StatusFromStorage maps a persisted status value onto the canonical set.
// The older four-state schema used "graveyard" for what is now "archived".
func StatusFromStorage(v string) (Status, error) {
	if v == legacyStatusGraveyard {
		return StatusArchived, nil
	}
	return ParseStatus(v)
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Category is the closed set of task categories.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryLearning Category = "learning"
	CategoryCreative Category = "creative"
	CategoryHealth   Category = "health"
)

var allCategories = []Category{CategoryWork, CategoryPersonal, CategoryLearning, CategoryCreative, CategoryHealth}

func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryLearning, CategoryCreative, CategoryHealth:
		return true
	}
	return false
}

func ParseCategory(v string) (Category, error) {
	c := Category(v)
	if !c.Valid() {
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", v)}
	}
	return c, nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Metadata is the free-form jsonb column (layout hints and the like).
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	out := Metadata{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// Defaults applied by CreateTask.
const (
	DefaultCoordinate = 50.0
	DefaultDifficulty = 5
	DefaultCategory   = CategoryPersonal
	DefaultStatus     = StatusInbox

	MinCoordinate = 0.0
	MaxCoordinate = 100.0
	MinDifficulty = 1
	MaxDifficulty = 10
)

// Task mirrors one row of the tasks table.
type Task struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ParentID    *string `json:"parent_id"`

	TimeCostX  float64  `json:"time_cost_x"`
	InterestY  float64  `json:"interest_y"`
	Difficulty int      `json:"difficulty"`
	Category   Category `json:"category"`
	Status     Status   `json:"status"`

	LastTouchedAt time.Time `json:"last_touched_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	FocusStartedAt *time.Time `json:"focus_started_at,omitempty"`
	TotalFocusTime int64      `json:"total_focus_time"` // seconds

	Position float64  `json:"position"`
	Metadata Metadata `json:"metadata,omitempty"`
}

func (t Task) IsRoot() bool {
	return t.ParentID == nil
}

// Clone returns a copy that shares no pointers or maps with t.
func (t Task) Clone() Task {
	c := t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.ParentID != nil {
		p := *t.ParentID
		c.ParentID = &p
	}
	if t.FocusStartedAt != nil {
		f := *t.FocusStartedAt
		c.FocusStartedAt = &f
	}
	if t.Metadata != nil {
		c.Metadata = make(Metadata, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// TaskTree is a task with its children attached.
type TaskTree struct {
	Task
	Children []*TaskTree `json:"children"`
	// Detached marks a synthetic root: its parent was missing or part of a cycle.
	Detached bool `json:"detached,omitempty"`
}

// CreateTaskInput is what callers supply to CreateTask; nil fields take defaults.
type CreateTaskInput struct {
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	ParentID    *string   `json:"parent_id,omitempty"`
	TimeCostX   *float64  `json:"time_cost_x,omitempty"`
	InterestY   *float64  `json:"interest_y,omitempty"`
	Difficulty  *int      `json:"difficulty,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Position    *float64  `json:"position,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
}

// Reparent moves a task; a nil ParentID makes it a root.
type Reparent struct {
	ParentID *string
}

// UpdateTaskInput carries the fields a caller wants to change.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Parent      *Reparent
	TimeCostX   *float64
	InterestY   *float64
	Difficulty  *int
	Category    *Category
	Status      *Status
	Position    *float64
	Metadata    Metadata
}

// touches reports whether the update counts as user activity. Setting a
// non-terminal status does, so a task restored from the archive is not swept again
// on the next run.
func (in UpdateTaskInput) touches() bool {
	if in.Status != nil && !in.Status.Terminal() {
		return true
	}
	return in.Title != nil || in.Description != nil || in.TimeCostX != nil || in.InterestY != nil
}

// Patch is the column-level change set handed to a Store. UpdatedAt is always written.
// LastTouchedAt is applied as max(current, value) so the marker never moves back, and
// AddFocusSeconds is added to total_focus_time rather than replacing it.
type Patch struct {
	Title           *string
	Description     *string
	Parent          *Reparent
	TimeCostX       *float64
	InterestY       *float64
	Difficulty      *int
	Category        *Category
	Status          *Status
	Position        *float64
	Metadata        Metadata
	LastTouchedAt   *time.Time
	FocusStartedAt  *time.Time
	ClearFocus      bool
	AddFocusSeconds int64
	UpdatedAt       time.Time
}

// Stats is the StatsAggregator result.
type Stats struct {
	Total             int              `json:"total"`
	ByStatus          map[Status]int   `json:"by_status"`
	ByCategory        map[Category]int `json:"by_category"`
	TotalFocusTime    int64            `json:"total_focus_time"`
	AverageDifficulty float64          `json:"average_difficulty"`
}
