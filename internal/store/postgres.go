package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"task-gravity-backend/internal/tasks"
)

const taskColumns = `
	id, user_id, title, description, parent_id,
	time_cost_x, interest_y, difficulty, category, status,
	last_touched_at, created_at, updated_at,
	focus_started_at, total_focus_time, position, metadata`

// Postgres is the tasks table behind database/sql and lib/pq. Every statement is a
// single round-trip; nothing here holds a transaction across calls.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var _ tasks.Store = (*Postgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (tasks.Task, error) {
	var (
		t        tasks.Task
		desc     sql.NullString
		parent   sql.NullString
		focus    sql.NullTime
		category string
		status   string
	)
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Title,
		&desc,
		&parent,
		&t.TimeCostX,
		&t.InterestY,
		&t.Difficulty,
		&category,
		&status,
		&t.LastTouchedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&focus,
		&t.TotalFocusTime,
		&t.Position,
		&t.Metadata,
	)
	if err != nil {
		return tasks.Task{}, err
	}

	if desc.Valid {
		t.Description = &desc.String
	}
	if parent.Valid {
		t.ParentID = &parent.String
	}
	if focus.Valid {
		f := focus.Time.UTC()
		t.FocusStartedAt = &f
	}
	if t.Status, err = tasks.StatusFromStorage(status); err != nil {
		return tasks.Task{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if t.Category, err = tasks.ParseCategory(category); err != nil {
		return tasks.Task{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.LastTouchedAt = t.LastTouchedAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (p *Postgres) Insert(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO tasks (
			id, user_id, title, description, parent_id,
			time_cost_x, interest_y, difficulty, category, status,
			last_touched_at, created_at, updated_at,
			focus_started_at, total_focus_time, position, metadata
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING`+taskColumns,
		t.ID,
		t.OwnerID,
		t.Title,
		nullString(t.Description),
		nullString(t.ParentID),
		t.TimeCostX,
		t.InterestY,
		t.Difficulty,
		string(t.Category),
		string(t.Status),
		t.LastTouchedAt,
		t.CreatedAt,
		t.UpdatedAt,
		nullTime(t.FocusStartedAt),
		t.TotalFocusTime,
		t.Position,
		t.Metadata,
	)
	created, err := scanTask(row)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return created, nil
}

// validID keeps malformed ids away from the uuid columns, where they would
// fail the whole statement instead of matching nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (p *Postgres) Get(ctx context.Context, ownerID, id string) (tasks.Task, error) {
	if !validID(id) {
		return tasks.Task{}, fmt.Errorf("%w: %s", tasks.ErrNotFound, id)
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT`+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, ownerID)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Task{}, fmt.Errorf("%w: %s", tasks.ErrNotFound, id)
	}
	if err != nil {
		return tasks.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (p *Postgres) List(ctx context.Context, q tasks.Query) ([]tasks.Task, error) {
	if q.ParentID != nil && !validID(*q.ParentID) {
		return []tasks.Task{}, nil
	}
	query, args := buildList(q)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []tasks.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// args collects positional parameters and hands back their $n placeholder.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func buildList(q tasks.Query) (string, []any) {
	var (
		where []string
		a     args
	)
	if q.OwnerID != "" {
		where = append(where, "user_id = "+a.add(q.OwnerID))
	}
	if len(q.IDs) > 0 {
		where = append(where, "id = ANY("+a.add(pq.Array(q.IDs))+"::uuid[])")
	}
	if len(q.Statuses) > 0 {
		where = append(where, "status = ANY("+a.add(pq.Array(storedStatuses(q.Statuses)))+")")
	}
	if len(q.Categories) > 0 {
		cats := make([]string, 0, len(q.Categories))
		for _, c := range q.Categories {
			cats = append(cats, string(c))
		}
		where = append(where, "category = ANY("+a.add(pq.Array(cats))+")")
	}
	if q.RootsOnly {
		where = append(where, "parent_id IS NULL")
	}
	if q.ParentID != nil {
		where = append(where, "parent_id = "+a.add(*q.ParentID))
	}
	if q.MinTimeCostX != nil {
		where = append(where, "time_cost_x >= "+a.add(*q.MinTimeCostX))
	}
	if q.MaxTimeCostX != nil {
		where = append(where, "time_cost_x <= "+a.add(*q.MaxTimeCostX))
	}
	if q.MinInterestY != nil {
		where = append(where, "interest_y >= "+a.add(*q.MinInterestY))
	}
	if q.MaxInterestY != nil {
		where = append(where, "interest_y <= "+a.add(*q.MaxInterestY))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "title ILIKE "+a.add("%"+escapeLike(s)+"%"))
	}
	if !q.TouchedBefore.IsZero() {
		where = append(where, "last_touched_at < "+a.add(q.TouchedBefore))
	}

	var b strings.Builder
	b.WriteString("SELECT" + taskColumns + "\nFROM tasks")
	if len(where) > 0 {
		b.WriteString("\nWHERE " + strings.Join(where, " AND "))
	}
	var order []string
	for _, o := range q.OrderBy {
		if !o.Column.Valid() {
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		order = append(order, string(o.Column)+" "+dir)
	}
	if len(order) > 0 {
		b.WriteString("\nORDER BY " + strings.Join(order, ", "))
	}
	return b.String(), a
}

// storedStatuses widens a status filter with the legacy values that read back as it.
func storedStatuses(in []tasks.Status) []string {
	out := make([]string, 0, len(in)+1)
	for _, s := range in {
		out = append(out, string(s))
		if s == tasks.StatusArchived {
			out = append(out, "graveyard")
		}
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (p *Postgres) Update(ctx context.Context, ownerID, id string, patch tasks.Patch) (tasks.Task, error) {
	if !validID(id) {
		return tasks.Task{}, fmt.Errorf("%w: %s", tasks.ErrNotFound, id)
	}
	query, a := buildUpdate(ownerID, id, patch)
	t, err := scanTask(p.db.QueryRowContext(ctx, query, a...))
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Task{}, fmt.Errorf("%w: %s", tasks.ErrNotFound, id)
	}
	if err != nil {
		return tasks.Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func buildUpdate(ownerID, id string, p tasks.Patch) (string, []any) {
	var (
		set []string
		a   args
	)
	if p.Title != nil {
		set = append(set, "title = "+a.add(*p.Title))
	}
	if p.Description != nil {
		set = append(set, "description = "+a.add(*p.Description))
	}
	if p.Parent != nil {
		set = append(set, "parent_id = "+a.add(nullString(p.Parent.ParentID)))
	}
	if p.TimeCostX != nil {
		set = append(set, "time_cost_x = "+a.add(*p.TimeCostX))
	}
	if p.InterestY != nil {
		set = append(set, "interest_y = "+a.add(*p.InterestY))
	}
	if p.Difficulty != nil {
		set = append(set, "difficulty = "+a.add(*p.Difficulty))
	}
	if p.Category != nil {
		set = append(set, "category = "+a.add(string(*p.Category)))
	}
	if p.Status != nil {
		set = append(set, "status = "+a.add(string(*p.Status)))
	}
	if p.Position != nil {
		set = append(set, "position = "+a.add(*p.Position))
	}
	if p.Metadata != nil {
		set = append(set, "metadata = "+a.add(p.Metadata)+"::jsonb")
	}
	if p.LastTouchedAt != nil {
		set = append(set, "last_touched_at = GREATEST(last_touched_at, "+a.add(*p.LastTouchedAt)+")")
	}
	if p.ClearFocus {
		set = append(set, "focus_started_at = NULL")
	} else if p.FocusStartedAt != nil {
		set = append(set, "focus_started_at = "+a.add(*p.FocusStartedAt))
	}
	if p.AddFocusSeconds > 0 {
		set = append(set, "total_focus_time = total_focus_time + "+a.add(p.AddFocusSeconds))
	}
	set = append(set, "updated_at = "+a.add(p.UpdatedAt))

	query := "UPDATE tasks\nSET " + strings.Join(set, ", ") +
		"\nWHERE id = " + a.add(id) + " AND user_id = " + a.add(ownerID) +
		"\nRETURNING" + taskColumns
	return query, a
}

// DeleteTree removes the task and its whole subtree in one statement. The task
// table has no cascade trigger, so the recursive CTE collects the rows itself;
// UNION (not UNION ALL) stops on a corrupted, cyclic parent chain.
func (p *Postgres) DeleteTree(ctx context.Context, ownerID, id string) (int64, error) {
	if !validID(id) {
		return 0, nil
	}
	res, err := p.db.ExecContext(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM tasks WHERE id = $1 AND user_id = $2
			UNION
			SELECT t.id FROM tasks t
			JOIN subtree s ON t.parent_id = s.id
			WHERE t.user_id = $2
		)
		DELETE FROM tasks WHERE id IN (SELECT id FROM subtree)
	`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete task tree: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete task tree: %w", err)
	}
	return n, nil
}

// TransitionStale re-applies the staleness predicate inside the UPDATE, so rows
// touched after the sweep's select are skipped.
func (p *Postgres) TransitionStale(ctx context.Context, tr tasks.StaleTransition) (int64, error) {
	from := make([]string, 0, len(tr.From))
	for _, s := range tr.From {
		from = append(from, string(s))
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = ANY($3::uuid[])
		  AND status = ANY($4)
		  AND last_touched_at < $5
	`, string(tr.To), tr.UpdatedAt, pq.Array(tr.IDs), pq.Array(from), tr.TouchedBefore)
	if err != nil {
		return 0, fmt.Errorf("transition stale tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition stale tasks: %w", err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
