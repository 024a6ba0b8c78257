package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
)

func TestTaskRepo_CreateAndGet(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTaskRepo(db)

	task := model.Task{ID: uuid.Must(uuid.NewV4()), UserID: uuid.Must(uuid.NewV4()), Name: "reading"}

	mock.ExpectExec(`INSERT INTO tasks \(id, user_id, name, hidden\)`).
		WithArgs(task.ID, task.UserID, task.Name, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), &task))

	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, user_id, name, hidden, created_at\s+FROM tasks WHERE user_id=\$1 AND id=\$2`).
		WithArgs(task.UserID, task.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "hidden", "created_at"}).
			AddRow(task.ID, task.UserID, task.Name, false, created))

	got, err := r.Get(context.Background(), task.UserID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "reading", got.Name)
	require.False(t, got.Hidden)
}

func TestTaskRepo_Hide(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTaskRepo(db)

	userID := uuid.Must(uuid.NewV4())
	taskID := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE tasks SET hidden=true WHERE user_id=\$1 AND id=\$2`).
		WithArgs(userID, taskID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Hide(context.Background(), userID, taskID))

	mock.ExpectExec(`UPDATE tasks SET hidden=true WHERE user_id=\$1 AND id=\$2`).
		WithArgs(userID, taskID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Hide(context.Background(), userID, taskID), errs.ErrNotFound)
}

func TestTaskRepo_List_FiltersHidden(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTaskRepo(db)

	userID := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, user_id, name, hidden, created_at\s+FROM tasks\s+WHERE user_id=\$1 AND \(hidden=false OR \$2\)`).
		WithArgs(userID, false).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "hidden", "created_at"}).
			AddRow(id, userID, "visible", false, created))

	out, err := r.List(context.Background(), userID, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "visible", out[0].Name)
}
