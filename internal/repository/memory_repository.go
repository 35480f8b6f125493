package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
)

// MemoryRepository keeps records in process memory, one ordered slice per
// owner. Used by the memory backend and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	owners map[string][]domain.Todo
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		owners: map[string][]domain.Todo{},
		now:    time.Now,
	}
}

func (r *MemoryRepository) ListAll(_ context.Context, ownerID string) ([]domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Todo(nil), r.owners[ownerID]...), nil
}

func (r *MemoryRepository) Insert(_ context.Context, ownerID string, todo domain.Todo) (domain.Todo, error) {
	todo.ID = uuid.NewString()
	todo.UserID = ownerID
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	r.owners[ownerID] = append(r.owners[ownerID], todo)
	r.mu.Unlock()
	return todo, nil
}

func (r *MemoryRepository) Update(_ context.Context, ownerID string, todo domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	todos := r.owners[ownerID]
	for i := range todos {
		if todos[i].ID == todo.ID {
			todos[i].Text = todo.Text
			todos[i].DueDate = todo.DueDate
			todos[i].Completed = todo.Completed
			todos[i].Archived = todo.Archived
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) Remove(_ context.Context, ownerID string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	todos := r.owners[ownerID]
	for i := range todos {
		if todos[i].ID == id {
			r.owners[ownerID] = append(todos[:i:i], todos[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
