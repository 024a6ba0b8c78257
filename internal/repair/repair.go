// Package repair re-sequences overlapping legacy events. It is a one-off
// offline maintenance job, not a live-system responsibility: run it against
// a quiesced database.
package repair

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/repository"
)

// Move is one planned shift: an event slides forward so it no longer
// overlaps its predecessor. Duration is always preserved.
type Move struct {
	EventID  uuid.UUID
	OldStart time.Time
	NewStart time.Time
}

// Plan is the full set of moves for one user.
type Plan struct {
	UserID uuid.UUID
	Moves  []Move
}

// BuildPlan sweeps the user's events in start order and shifts each event
// that overlaps the previous one forward to the previous end. Returns the
// moves plus the resulting event set (for conservation checks). The input
// slice is not modified.
func BuildPlan(userID uuid.UUID, events []model.Event) (Plan, []model.Event) {
	sorted := append([]model.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartAt.Equal(sorted[j].StartAt) {
			return sorted[i].EndAt.Before(sorted[j].EndAt)
		}
		return sorted[i].StartAt.Before(sorted[j].StartAt)
	})

	plan := Plan{UserID: userID}
	var prevEnd time.Time
	for i := range sorted {
		ev := &sorted[i]
		if i > 0 && ev.StartAt.Before(prevEnd) {
			dur := ev.EndAt.Sub(ev.StartAt)
			plan.Moves = append(plan.Moves, Move{
				EventID:  ev.ID,
				OldStart: ev.StartAt,
				NewStart: prevEnd,
			})
			ev.StartAt = prevEnd
			ev.EndAt = prevEnd.Add(dur)
		}
		prevEnd = ev.EndAt
	}
	return plan, sorted
}

// durationsByTask sums event durations per task.
func durationsByTask(events []model.Event) map[uuid.UUID]time.Duration {
	out := make(map[uuid.UUID]time.Duration, len(events))
	for _, ev := range events {
		out[ev.TaskID] += ev.EndAt.Sub(ev.StartAt)
	}
	return out
}

// Conserves verifies per-task total duration is identical before and after.
func Conserves(before, after []model.Event) bool {
	b, a := durationsByTask(before), durationsByTask(after)
	if len(b) != len(a) {
		return false
	}
	for task, dur := range b {
		if a[task] != dur {
			return false
		}
	}
	return true
}

// Repairer runs plans against storage.
type Repairer struct {
	events repository.EventRepository
	log    *zap.Logger
}

// NewRepairer constructs a repairer.
func NewRepairer(events repository.EventRepository, log *zap.Logger) *Repairer {
	return &Repairer{events: events, log: log}
}

// RunUser repairs one user's history. With dryRun the plan is returned but
// nothing is written.
func (r *Repairer) RunUser(ctx context.Context, userID uuid.UUID, dryRun bool) (Plan, error) {
	events, err := r.events.ListAll(ctx, userID)
	if err != nil {
		return Plan{}, fmt.Errorf("repair: list events: %w", err)
	}

	plan, repaired := BuildPlan(userID, events)
	if !Conserves(events, repaired) {
		return Plan{}, fmt.Errorf("repair: duration conservation violated for user %s", userID)
	}
	if dryRun || len(plan.Moves) == 0 {
		return plan, nil
	}

	byID := make(map[uuid.UUID]model.Event, len(repaired))
	for _, ev := range repaired {
		byID[ev.ID] = ev
	}
	updates := make([]model.Event, 0, len(plan.Moves))
	for _, mv := range plan.Moves {
		updates = append(updates, byID[mv.EventID])
	}
	if err := r.events.ApplyIntervals(ctx, userID, updates); err != nil {
		return plan, fmt.Errorf("repair: apply moves: %w", err)
	}
	for _, mv := range plan.Moves {
		r.log.Info("shifted event",
			zap.String("event_id", mv.EventID.String()),
			zap.Time("old_start", mv.OldStart),
			zap.Time("new_start", mv.NewStart),
		)
	}
	return plan, nil
}

// RunAll repairs every user with stored events.
func (r *Repairer) RunAll(ctx context.Context, dryRun bool) ([]Plan, error) {
	users, err := r.events.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("repair: list users: %w", err)
	}
	var plans []Plan
	for _, userID := range users {
		plan, err := r.RunUser(ctx, userID, dryRun)
		if err != nil {
			return plans, err
		}
		if len(plan.Moves) > 0 {
			plans = append(plans, plan)
		}
	}
	return plans, nil
}
