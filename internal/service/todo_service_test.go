package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
)

func newTestService(t *testing.T, repo *fakeRepo) TodoService {
	t.Helper()
	sessions := NewSessions(repo, 4, WithLogger(log.New(io.Discard)))
	t.Cleanup(sessions.Close)
	return NewTodoService(sessions)
}

func TestTodoServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeRepo())

	created, err := svc.CreateTodo(ctx, "alice", CreateTodoRequest{Text: "buy milk", DueDate: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", created.Text)
	assert.NotEmpty(t, created.CreatedAt)

	done := true
	updated, err := svc.UpdateTodo(ctx, "alice", created.ID, UpdateTodoRequest{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.False(t, updated.Archived)

	archived, err := svc.ArchiveCompleted(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.True(t, archived[0].Archived)

	list, err := svc.ListTodos(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list.Active)
	require.Len(t, list.Archived, 1)

	unarchived, err := svc.UnarchiveTodo(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.False(t, unarchived.Completed)

	toggled, err := svc.ToggleTodo(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Archived)

	require.NoError(t, svc.DeleteArchivedTodo(ctx, "alice", created.ID))
	list, err = svc.ListTodos(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list.Active)
	assert.Empty(t, list.Archived)
}

func TestTodoServiceIsolatesOwners(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeRepo())

	created, err := svc.CreateTodo(ctx, "alice", CreateTodoRequest{Text: "private"})
	require.NoError(t, err)

	list, err := svc.ListTodos(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list.Active)

	err = svc.DeleteTodo(ctx, "bob", created.ID)
	var nfErr *domain.NotFoundError
	assert.True(t, errors.As(err, &nfErr))
}

func TestTodoServiceReloadsAfterLogout(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	_, err := svc.CreateTodo(ctx, "alice", CreateTodoRequest{Text: "a"})
	require.NoError(t, err)
	_, err = svc.ListTodos(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count("list"))

	svc.Logout("alice")
	list, err := svc.ListTodos(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list.Active, 1)
	assert.Equal(t, 2, repo.count("list"))
}

func TestTodoServiceRetriesFailedLoadOnNextCall(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	failures := 1
	repo.onList = func(string) error {
		if failures > 0 {
			failures--
			return errBackend
		}
		return nil
	}
	svc := newTestService(t, repo)

	_, err := svc.ListTodos(ctx, "alice")
	assert.ErrorIs(t, err, errBackend)

	_, err = svc.ListTodos(ctx, "alice")
	assert.NoError(t, err)
}

func TestTodoServiceValidation(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	_, err := svc.CreateTodo(context.Background(), "alice", CreateTodoRequest{Text: "  "})
	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = svc.ListTodos(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoOwner)
}
