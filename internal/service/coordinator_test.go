package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/errs"
)

func TestCoordinator_StartStopRoundTrip(t *testing.T) {
	f := newFixture()
	task := f.newTask("deep work")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))

	f.now = f.at(12, 0)
	ev, err := f.coordinator.Stop(ctx, f.userID)
	require.NoError(t, err)
	require.Equal(t, f.at(10, 0), ev.StartAt)
	require.Equal(t, f.at(12, 0), ev.EndAt)
	require.Equal(t, task.ID, ev.TaskID)

	_, running := f.registry.Get(f.userID)
	require.False(t, running)
	require.Equal(t, 1, f.events.Count())
	require.Equal(t, []string{EvtStarted, EvtStopped}, f.hub.events())
}

func TestCoordinator_StopIdempotent(t *testing.T) {
	f := newFixture()
	task := f.newTask("deep work")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))
	f.now = f.at(11, 0)

	_, err := f.coordinator.Stop(ctx, f.userID)
	require.NoError(t, err)
	_, err = f.coordinator.Stop(ctx, f.userID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Equal(t, 1, f.events.Count(), "duplicate stop must not create a second event")
}

func TestCoordinator_SwitchTaskFinalizesPrevious(t *testing.T) {
	f := newFixture()
	a, b := f.newTask("a"), f.newTask("b")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, a.ID))

	f.now = f.at(11, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, b.ID))

	// The hour on task a must not be lost.
	require.Equal(t, 1, f.events.Count())
	evs, _ := f.events.ListAll(ctx, f.userID)
	require.Equal(t, a.ID, evs[0].TaskID)
	require.Equal(t, f.at(10, 0), evs[0].StartAt)
	require.Equal(t, f.at(11, 0), evs[0].EndAt)

	cur, running := f.registry.Get(f.userID)
	require.True(t, running)
	require.Equal(t, b.ID, cur.TaskID)
	require.Equal(t, []string{EvtStarted, EvtStopped, EvtStarted}, f.hub.events())
}

func TestCoordinator_StartOnHiddenTaskRejected(t *testing.T) {
	f := newFixture()
	task := f.newTask("gone")
	ctx := context.Background()
	require.NoError(t, f.tasks.Hide(ctx, f.userID, task.ID))

	err := f.coordinator.Start(ctx, f.userID, task.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Empty(t, f.hub.events())
}

func TestCoordinator_AdjustStart(t *testing.T) {
	f := newFixture()
	task := f.newTask("deep work")
	ctx := context.Background()

	f.now = f.at(14, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))
	f.now = f.at(14, 30)

	// Future start rejected, state unchanged.
	err := f.coordinator.AdjustStart(ctx, f.userID, task.ID, f.at(14, 35))
	require.ErrorIs(t, err, errs.ErrFutureStart)
	cur, _ := f.registry.Get(f.userID)
	require.Equal(t, f.at(14, 0), cur.StartedAt)

	require.NoError(t, f.coordinator.AdjustStart(ctx, f.userID, task.ID, f.at(14, 10)))
	cur, _ = f.registry.Get(f.userID)
	require.Equal(t, f.at(14, 10), cur.StartedAt)
	require.Equal(t, []string{EvtStarted, EvtStartUpdated}, f.hub.events())
}

func TestCoordinator_AdjustStartRejectsOverlap(t *testing.T) {
	f := newFixture()
	task := f.newTask("deep work")
	ctx := context.Background()
	f.seedEvent(task, f.at(9, 0), f.at(10, 0))

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))
	f.now = f.at(10, 30)

	// Shifting the start to 09:30 would collide with the stored event.
	err := f.coordinator.AdjustStart(ctx, f.userID, task.ID, f.at(9, 30))
	require.True(t, errs.IsOverlap(err))
	cur, _ := f.registry.Get(f.userID)
	require.Equal(t, f.at(10, 0), cur.StartedAt)
}

func TestCoordinator_StopRejectsOverlapWithoutMutation(t *testing.T) {
	f := newFixture()
	task := f.newTask("deep work")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))

	// An event created while the timer ran (REST path race) collides with
	// the interval being finalized.
	f.seedEvent(task, f.at(10, 30), f.at(10, 45))
	f.now = f.at(11, 0)

	_, err := f.coordinator.Stop(ctx, f.userID)
	require.True(t, errs.IsOverlap(err))
	_, running := f.registry.Get(f.userID)
	require.True(t, running, "timer must survive a rejected stop")
}

func TestCoordinator_StopPersistFailureStillClearsTimer(t *testing.T) {
	f := newFixture()
	task := f.newTask("deep work")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))
	f.now = f.at(11, 0)

	f.events.CreateErr = errors.New("disk on fire")
	ev, err := f.coordinator.Stop(ctx, f.userID)
	require.NoError(t, err, "exhausted retries trade the event for liveness")
	require.Nil(t, ev)

	_, running := f.registry.Get(f.userID)
	require.False(t, running)
	require.Equal(t, []string{EvtStarted, EvtStopped}, f.hub.events(), "clients still hear stopped")
	require.Equal(t, 0, f.events.Count())
}

func TestCoordinator_DiscardForTask(t *testing.T) {
	f := newFixture()
	task := f.newTask("doomed")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))
	f.now = f.at(10, 30)

	require.NoError(t, f.coordinator.DiscardForTask(ctx, f.userID, task.ID))

	// No event: partial time on a hidden task is not salvaged.
	require.Equal(t, 0, f.events.Count())
	_, running := f.registry.Get(f.userID)
	require.False(t, running)
	require.Equal(t, []string{EvtStarted, EvtDiscarded}, f.hub.events())

	_, err := f.coordinator.Stop(ctx, f.userID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCoordinator_DiscardIgnoresUnrelatedTask(t *testing.T) {
	f := newFixture()
	running, other := f.newTask("running"), f.newTask("other")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, running.ID))

	require.NoError(t, f.coordinator.DiscardForTask(ctx, f.userID, other.ID))
	_, stillRunning := f.registry.Get(f.userID)
	require.True(t, stillRunning)
}

func TestCoordinator_StateIdempotent(t *testing.T) {
	f := newFixture()
	task := f.newTask("deep work")
	ctx := context.Background()

	require.False(t, f.coordinator.State(f.userID).Running)

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))

	first := f.coordinator.State(f.userID)
	second := f.coordinator.State(f.userID)
	require.Equal(t, first, second)
	require.True(t, first.Running)
	require.Equal(t, task.ID, first.TaskID)
	require.Equal(t, f.at(10, 0), first.StartTime)
}
