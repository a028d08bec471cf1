package tasks_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"task-gravity-backend/internal/store"
	"task-gravity-backend/internal/tasks"
)

const owner = "6f1c1a55-3f0e-4c5e-9a43-2f6d1b2e7a10"

// clock is a settable time source for the service and the sweeper.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// failingStore breaks selected calls of an otherwise working memory store.
type failingStore struct {
	*store.Memory
	listErr       error
	transitionErr error
	transitions   int
}

func (f *failingStore) List(ctx context.Context, q tasks.Query) ([]tasks.Task, error) {
	if f.listErr != nil && !q.TouchedBefore.IsZero() {
		return nil, f.listErr
	}
	return f.Memory.List(ctx, q)
}

func (f *failingStore) TransitionStale(ctx context.Context, tr tasks.StaleTransition) (int64, error) {
	f.transitions++
	if f.transitionErr != nil {
		return 0, f.transitionErr
	}
	return f.Memory.TransitionStale(ctx, tr)
}

// seedStale creates X (touched 20 days ago) and Y (touched 5 days ago).
func seedStale(t *testing.T, st tasks.Store, c *clock) (x, y tasks.Task) {
	t.Helper()
	now := c.t
	svc := tasks.NewService(st, c.now)

	c.t = now.AddDate(0, 0, -20)
	x, err := svc.CreateTask(context.Background(), owner, tasks.CreateTaskInput{Title: "X"})
	if err != nil {
		t.Fatalf("create X: %v", err)
	}
	c.t = now.AddDate(0, 0, -5)
	y, err = svc.CreateTask(context.Background(), owner, tasks.CreateTaskInput{Title: "Y"})
	if err != nil {
		t.Fatalf("create Y: %v", err)
	}
	c.t = now
	return x, y
}

func TestDecayArchivesOnlyStaleTasks(t *testing.T) {
	c := newClock()
	mem := store.NewMemory()
	x, y := seedStale(t, mem, c)
	svc := tasks.NewService(mem, c.now)

	n, err := svc.DecayTasks(context.Background(), owner, 14)
	if err != nil {
		t.Fatalf("DecayTasks failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 archived task, got %d", n)
	}

	gotX, _ := svc.GetTask(context.Background(), owner, x.ID)
	gotY, _ := svc.GetTask(context.Background(), owner, y.ID)
	if gotX.Status != tasks.StatusArchived {
		t.Fatalf("X should be archived, got %s", gotX.Status)
	}
	if gotY.Status != tasks.StatusInbox {
		t.Fatalf("Y should be untouched, got %s", gotY.Status)
	}
	if !gotX.UpdatedAt.Equal(c.t) {
		t.Fatalf("X updated_at should be the sweep time, got %v", gotX.UpdatedAt)
	}

	// idempotent
	n, err = svc.DecayTasks(context.Background(), owner, 14)
	if err != nil || n != 0 {
		t.Fatalf("second sweep should archive nothing, got %d, %v", n, err)
	}
}

func TestDecayLeavesTerminalTasks(t *testing.T) {
	c := newClock()
	mem := store.NewMemory()
	x, _ := seedStale(t, mem, c)
	svc := tasks.NewService(mem, c.now)

	// completing X does not refresh last_touched_at
	done := tasks.StatusCompleted
	if _, err := svc.UpdateTask(context.Background(), owner, x.ID, tasks.UpdateTaskInput{Status: &done}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	n, err := svc.DecayTasks(context.Background(), owner, 14)
	if err != nil || n != 0 {
		t.Fatalf("completed task must not decay, got %d, %v", n, err)
	}
}

func TestDecayZeroThresholdArchivesEverythingOlderThanNow(t *testing.T) {
	c := newClock()
	mem := store.NewMemory()
	seedStale(t, mem, c)

	n, err := tasks.NewSweeper(mem, c.now).Decay(context.Background(), owner, 0)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 archived, got %d, %v", n, err)
	}
}

func TestDecayRejectsNegativeThreshold(t *testing.T) {
	_, err := tasks.NewSweeper(store.NewMemory(), nil).Decay(context.Background(), owner, -1)
	if !errors.Is(err, tasks.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecayRejectsHugeThreshold(t *testing.T) {
	c := newClock()
	st := store.NewMemory()
	fresh, err := tasks.NewService(st, c.now).CreateTask(context.Background(), owner, tasks.CreateTaskInput{Title: "fresh"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sw := tasks.NewSweeper(st, c.now)
	for _, days := range []int{tasks.MaxDecayThresholdDays + 1, math.MaxInt} {
		n, err := sw.Decay(context.Background(), owner, days)
		if !errors.Is(err, tasks.ErrValidation) {
			t.Fatalf("days=%d: expected ErrValidation, got %v", days, err)
		}
		if n != 0 {
			t.Fatalf("days=%d: archived %d tasks", days, n)
		}
	}

	n, err := sw.Decay(context.Background(), owner, tasks.MaxDecayThresholdDays)
	if err != nil || n != 0 {
		t.Fatalf("max threshold: n=%d err=%v", n, err)
	}
	got, err := st.Get(context.Background(), owner, fresh.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != tasks.StatusInbox {
		t.Fatalf("fresh task was decayed to %s", got.Status)
	}
}

func TestDecaySelectFailureSkipsUpdate(t *testing.T) {
	c := newClock()
	fs := &failingStore{Memory: store.NewMemory(), listErr: errors.New("connection reset")}
	seedStale(t, fs.Memory, c)

	n, err := tasks.NewSweeper(fs, c.now).Decay(context.Background(), owner, 14)
	if !errors.Is(err, tasks.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if n != 0 || fs.transitions != 0 {
		t.Fatalf("no update may run after a failed select (n=%d, transitions=%d)", n, fs.transitions)
	}
}

func TestDecayUpdateFailureReportsZero(t *testing.T) {
	c := newClock()
	fs := &failingStore{Memory: store.NewMemory(), transitionErr: errors.New("deadlock detected")}
	x, _ := seedStale(t, fs.Memory, c)

	n, err := tasks.NewSweeper(fs, c.now).Decay(context.Background(), owner, 14)
	if !errors.Is(err, tasks.ErrStore) || n != 0 {
		t.Fatalf("expected 0 and ErrStore, got %d, %v", n, err)
	}
	got, _ := fs.Memory.Get(context.Background(), owner, x.ID)
	if got.Status != tasks.StatusInbox {
		t.Fatalf("X should keep its status, got %s", got.Status)
	}
}

func TestDecaySkipsTaskTouchedAfterSelect(t *testing.T) {
	c := newClock()
	mem := store.NewMemory()
	x, _ := seedStale(t, mem, c)

	cutoff := c.t.AddDate(0, 0, -14)
	// X is moved between the sweep's select and its update
	if _, err := mem.Update(context.Background(), owner, x.ID, tasks.Patch{LastTouchedAt: &c.t, UpdatedAt: c.t}); err != nil {
		t.Fatalf("touch X: %v", err)
	}
	n, err := mem.TransitionStale(context.Background(), tasks.StaleTransition{
		IDs:           []string{x.ID},
		From:          tasks.DecayableStatuses,
		TouchedBefore: cutoff,
		To:            tasks.StatusArchived,
		UpdatedAt:     c.t,
	})
	if err != nil || n != 0 {
		t.Fatalf("freshly touched task must not be archived, got %d, %v", n, err)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tasks.NewSweeper(store.NewMemory(), nil).Run(ctx, 10*time.Millisecond, 14)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
