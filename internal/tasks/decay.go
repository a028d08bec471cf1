package tasks

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	DefaultDecayThresholdDays = 14
	// MaxDecayThresholdDays keeps the cutoff date computable.
	MaxDecayThresholdDays = 36500
)

// Sweeper archives non-terminal tasks that have not been touched for a while.
type Sweeper struct {
	store Store
	now   func() time.Time
}

func NewSweeper(store Store, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: store, now: now}
}

// Decay archives every inbox/active task of ownerID (all owners when empty) whose
// last_touched_at is older than thresholdDays and returns how many rows changed.
//
// The batch update repeats the staleness predicate, so a task touched between
// select and update is left alone and not counted. A second run right after a
// successful one returns 0.
func (s *Sweeper) Decay(ctx context.Context, ownerID string, thresholdDays int) (int, error) {
	if thresholdDays < 0 {
		return 0, &ValidationError{Field: "threshold_days", Reason: "must not be negative"}
	}
	if thresholdDays > MaxDecayThresholdDays {
		return 0, &ValidationError{Field: "threshold_days", Reason: fmt.Sprintf("must be at most %d", MaxDecayThresholdDays)}
	}
	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, -thresholdDays)

	stale, err := s.store.List(ctx, Query{
		OwnerID:       ownerID,
		Statuses:      DecayableStatuses,
		TouchedBefore: cutoff,
	})
	if err != nil {
		return 0, storeErr("decay: select stale", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, t := range stale {
		ids = append(ids, t.ID)
	}

	n, err := s.store.TransitionStale(ctx, StaleTransition{
		IDs:           ids,
		From:          DecayableStatuses,
		TouchedBefore: cutoff,
		To:            StatusArchived,
		UpdatedAt:     now,
	})
	if err != nil {
		return 0, storeErr("decay: archive", err)
	}
	return int(n), nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration, thresholdDays int) {
	if interval <= 0 {
		log.Println("[WARN] decay sweep disabled: non-positive interval")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("🍂 decay sweep every %s (threshold %d days)", interval, thresholdDays)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Decay(ctx, "", thresholdDays)
			if err != nil {
				log.Printf("[WARN] decay sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("🍂 archived %d stale tasks", n)
			}
		}
	}
}
