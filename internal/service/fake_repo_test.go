package service

import (
	"context"
	"errors"
	"sync"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/repository"
)

var errBackend = errors.New("backend unavailable")

// fakeRepo wraps MemoryRepository with per-call hooks. A hook runs before the
// call is forwarded; a non-nil return fails the call.
type fakeRepo struct {
	*repository.MemoryRepository

	mu       sync.Mutex
	onList   func(ownerID string) error
	onInsert func(todo domain.Todo) error
	onUpdate func(todo domain.Todo) error
	onRemove func(id string) error
	calls    map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		MemoryRepository: repository.NewMemoryRepository(),
		calls:            map[string]int{},
	}
}

func (f *fakeRepo) hook(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeRepo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRepo) ListAll(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	f.hook("list")
	if f.onList != nil {
		if err := f.onList(ownerID); err != nil {
			return nil, err
		}
	}
	return f.MemoryRepository.ListAll(ctx, ownerID)
}

func (f *fakeRepo) Insert(ctx context.Context, ownerID string, todo domain.Todo) (domain.Todo, error) {
	f.hook("insert")
	if f.onInsert != nil {
		if err := f.onInsert(todo); err != nil {
			return domain.Todo{}, err
		}
	}
	return f.MemoryRepository.Insert(ctx, ownerID, todo)
}

func (f *fakeRepo) Update(ctx context.Context, ownerID string, todo domain.Todo) error {
	f.hook("update")
	if f.onUpdate != nil {
		if err := f.onUpdate(todo); err != nil {
			return err
		}
	}
	return f.MemoryRepository.Update(ctx, ownerID, todo)
}

func (f *fakeRepo) Remove(ctx context.Context, ownerID string, id string) error {
	f.hook("remove")
	if f.onRemove != nil {
		if err := f.onRemove(id); err != nil {
			return err
		}
	}
	return f.MemoryRepository.Remove(ctx, ownerID, id)
}
