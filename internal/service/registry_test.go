package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/errs"
)

func TestRegistry_StartThenGet(t *testing.T) {
	f := newFixture()
	task := f.newTask("reading")
	ctx := context.Background()

	require.NoError(t, f.registry.Start(ctx, f.userID, task.ID, f.at(10, 0)))

	got, ok := f.registry.Get(f.userID)
	require.True(t, ok)
	require.Equal(t, task.ID, got.TaskID)
	require.Equal(t, f.at(10, 0), got.StartedAt)
	require.True(t, f.timers.Has(f.userID), "durable row must exist")
}

func TestRegistry_StartReplacesPriorTimer(t *testing.T) {
	f := newFixture()
	a, b := f.newTask("a"), f.newTask("b")
	ctx := context.Background()

	require.NoError(t, f.registry.Start(ctx, f.userID, a.ID, f.at(10, 0)))
	require.NoError(t, f.registry.Start(ctx, f.userID, b.ID, f.at(11, 0)))

	got, ok := f.registry.Get(f.userID)
	require.True(t, ok)
	require.Equal(t, b.ID, got.TaskID)
}

func TestRegistry_WriteAheadDiscipline(t *testing.T) {
	f := newFixture()
	task := f.newTask("reading")
	ctx := context.Background()
	boom := errors.New("connection reset")

	// A failed durable write must leave memory untouched.
	f.timers.UpsertErr = boom
	err := f.registry.Start(ctx, f.userID, task.ID, f.at(10, 0))
	require.ErrorIs(t, err, boom)
	_, ok := f.registry.Get(f.userID)
	require.False(t, ok)

	f.timers.UpsertErr = nil
	require.NoError(t, f.registry.Start(ctx, f.userID, task.ID, f.at(10, 0)))

	f.timers.UpdateErr = boom
	err = f.registry.AdjustStart(ctx, f.userID, task.ID, f.at(9, 0))
	require.ErrorIs(t, err, boom)
	got, _ := f.registry.Get(f.userID)
	require.Equal(t, f.at(10, 0), got.StartedAt, "memory must keep the committed value")
}

func TestRegistry_StopIdempotent(t *testing.T) {
	f := newFixture()
	task := f.newTask("reading")
	ctx := context.Background()

	require.NoError(t, f.registry.Start(ctx, f.userID, task.ID, f.at(10, 0)))

	prev, err := f.registry.Stop(ctx, f.userID)
	require.NoError(t, err)
	require.Equal(t, task.ID, prev.TaskID)
	require.False(t, f.timers.Has(f.userID))

	_, err = f.registry.Stop(ctx, f.userID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRegistry_AdjustStart(t *testing.T) {
	f := newFixture()
	task := f.newTask("reading")
	other := f.newTask("other")
	ctx := context.Background()
	f.now = f.at(14, 30)

	_, err := f.registry.Stop(ctx, f.userID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.ErrorIs(t, f.registry.AdjustStart(ctx, f.userID, task.ID, f.at(14, 10)), errs.ErrNotFound)

	require.NoError(t, f.registry.Start(ctx, f.userID, task.ID, f.at(14, 0)))

	require.ErrorIs(t, f.registry.AdjustStart(ctx, f.userID, other.ID, f.at(14, 10)), errs.ErrTaskMismatch)
	require.ErrorIs(t, f.registry.AdjustStart(ctx, f.userID, task.ID, f.at(14, 35)), errs.ErrFutureStart)

	require.NoError(t, f.registry.AdjustStart(ctx, f.userID, task.ID, f.at(14, 10)))
	got, _ := f.registry.Get(f.userID)
	require.Equal(t, f.at(14, 10), got.StartedAt)
}
