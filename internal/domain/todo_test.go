package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTodo(t *testing.T) {
	todo, err := NewTodo("  buy milk ", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", todo.Text)
	assert.Equal(t, "2024-01-01", todo.DueDate)
	assert.False(t, todo.Completed)
	assert.False(t, todo.Archived)
	assert.Empty(t, todo.ID)
}

func TestNewTodoRejectsBlankText(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := NewTodo(text, "")
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr), "text %q", text)
		assert.Equal(t, "text", vErr.Field)
	}
}

func TestPatchApply(t *testing.T) {
	todo := Todo{ID: "1", Text: "old", DueDate: "2024-01-01"}
	text := " new "
	done := true
	p := Patch{Text: &text, Completed: &done}

	require.NoError(t, p.Validate())
	p.Apply(&todo)

	assert.Equal(t, "new", todo.Text)
	assert.Equal(t, "2024-01-01", todo.DueDate)
	assert.True(t, todo.Completed)
	assert.False(t, p.Empty())
	assert.True(t, Patch{}.Empty())
}

func TestPatchValidateBlankText(t *testing.T) {
	blank := " "
	err := Patch{Text: &blank}.Validate()
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("add: %w", &PersistenceError{Op: "insert", ID: "tmp-1", Cause: base})

	var pErr *PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "insert", pErr.Op)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "tmp-1")
}

func TestPartitionOf(t *testing.T) {
	assert.Equal(t, PartitionActive, PartitionOf(Todo{Completed: true}))
	assert.Equal(t, PartitionArchived, PartitionOf(Todo{Archived: true}))
}
