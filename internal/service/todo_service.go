package service

import (
	"context"
	"time"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
)

// Input/Output structs keep the transport layers decoupled from the store.

// CreateTodoRequest holds the data needed to create a new todo
type CreateTodoRequest struct {
	Text    string `json:"text"`
	DueDate string `json:"due_date"`
}

// UpdateTodoRequest holds the data for editing an active todo.
// Pointers distinguish an omitted field from one set to its zero value.
type UpdateTodoRequest struct {
	Text      *string `json:"text"`
	DueDate   *string `json:"due_date"`
	Completed *bool   `json:"completed"`
}

func (r UpdateTodoRequest) patch() domain.Patch {
	return domain.Patch{Text: r.Text, DueDate: r.DueDate, Completed: r.Completed}
}

// TodoResponse is the standard representation of a Todo returned by the service.
type TodoResponse struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	DueDate   string `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Completed bool   `json:"completed" yaml:"completed"`
	Archived  bool   `json:"archived" yaml:"archived"`
	Pending   bool   `json:"pending,omitempty" yaml:"pending,omitempty"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ListResponse holds both lists of an owner.
type ListResponse struct {
	Active   []TodoResponse `json:"active" yaml:"active"`
	Archived []TodoResponse `json:"archived" yaml:"archived"`
}

// --- Service Interface ---

// TodoService exposes the list store commands to transport layers. Every
// call is scoped to the owner passed in.
type TodoService interface {
	ListTodos(ctx context.Context, ownerID string) (*ListResponse, error)
	CreateTodo(ctx context.Context, ownerID string, req CreateTodoRequest) (*TodoResponse, error)
	UpdateTodo(ctx context.Context, ownerID, id string, req UpdateTodoRequest) (*TodoResponse, error)
	ToggleTodo(ctx context.Context, ownerID, id string) (*TodoResponse, error)
	DeleteTodo(ctx context.Context, ownerID, id string) error
	DeleteArchivedTodo(ctx context.Context, ownerID, id string) error
	ArchiveCompleted(ctx context.Context, ownerID string) ([]TodoResponse, error)
	UnarchiveTodo(ctx context.Context, ownerID, id string) (*TodoResponse, error)
	// Logout forgets the owner's in-memory lists.
	Logout(ownerID string)
}

// --- Service Implementation ---

type todoService struct {
	sessions *Sessions
}

// NewTodoService creates a TodoService backed by per-owner list stores.
func NewTodoService(sessions *Sessions) TodoService {
	return &todoService{sessions: sessions}
}

func (s *todoService) ListTodos(ctx context.Context, ownerID string) (*ListResponse, error) {
	var snap Snapshot
	err := s.sessions.Do(ctx, ownerID, func(_ context.Context, store *ListStore) error {
		snap = store.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toListResponse(snap), nil
}

func (s *todoService) CreateTodo(ctx context.Context, ownerID string, req CreateTodoRequest) (*TodoResponse, error) {
	return s.one(ctx, ownerID, func(ctx context.Context, store *ListStore) (domain.Todo, error) {
		return store.Add(ctx, req.Text, req.DueDate)
	})
}

func (s *todoService) UpdateTodo(ctx context.Context, ownerID, id string, req UpdateTodoRequest) (*TodoResponse, error) {
	return s.one(ctx, ownerID, func(ctx context.Context, store *ListStore) (domain.Todo, error) {
		return store.Edit(ctx, id, req.patch())
	})
}

func (s *todoService) ToggleTodo(ctx context.Context, ownerID, id string) (*TodoResponse, error) {
	return s.one(ctx, ownerID, func(ctx context.Context, store *ListStore) (domain.Todo, error) {
		return store.ToggleComplete(ctx, id)
	})
}

func (s *todoService) UnarchiveTodo(ctx context.Context, ownerID, id string) (*TodoResponse, error) {
	return s.one(ctx, ownerID, func(ctx context.Context, store *ListStore) (domain.Todo, error) {
		return store.Unarchive(ctx, id)
	})
}

func (s *todoService) DeleteTodo(ctx context.Context, ownerID, id string) error {
	return s.sessions.Do(ctx, ownerID, func(ctx context.Context, store *ListStore) error {
		return store.Remove(ctx, id)
	})
}

func (s *todoService) DeleteArchivedTodo(ctx context.Context, ownerID, id string) error {
	return s.sessions.Do(ctx, ownerID, func(ctx context.Context, store *ListStore) error {
		return store.RemoveArchived(ctx, id)
	})
}

// ArchiveCompleted returns the records that were archived, even when some
// others failed and an error is returned alongside.
func (s *todoService) ArchiveCompleted(ctx context.Context, ownerID string) ([]TodoResponse, error) {
	var archived []domain.Todo
	err := s.sessions.Do(ctx, ownerID, func(ctx context.Context, store *ListStore) error {
		var err error
		archived, err = store.ArchiveCompleted(ctx)
		return err
	})
	responses := make([]TodoResponse, 0, len(archived))
	for _, todo := range archived {
		responses = append(responses, toResponse(todo, false))
	}
	return responses, err
}

func (s *todoService) Logout(ownerID string) {
	s.sessions.Drop(ownerID)
}

func (s *todoService) one(ctx context.Context, ownerID string, fn func(context.Context, *ListStore) (domain.Todo, error)) (*TodoResponse, error) {
	var todo domain.Todo
	err := s.sessions.Do(ctx, ownerID, func(ctx context.Context, store *ListStore) error {
		var err error
		todo, err = fn(ctx, store)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp := toResponse(todo, false)
	return &resp, nil
}

func toListResponse(snap Snapshot) *ListResponse {
	pending := make(map[string]bool, len(snap.Pending))
	for _, id := range snap.Pending {
		pending[id] = true
	}
	resp := &ListResponse{
		Active:   make([]TodoResponse, 0, len(snap.Active)),
		Archived: make([]TodoResponse, 0, len(snap.Archived)),
	}
	for _, todo := range snap.Active {
		resp.Active = append(resp.Active, toResponse(todo, pending[todo.ID]))
	}
	for _, todo := range snap.Archived {
		resp.Archived = append(resp.Archived, toResponse(todo, false))
	}
	return resp
}

func toResponse(todo domain.Todo, pending bool) TodoResponse {
	resp := TodoResponse{
		ID:        todo.ID,
		Text:      todo.Text,
		DueDate:   todo.DueDate,
		Completed: todo.Completed,
		Archived:  todo.Archived,
		Pending:   pending,
	}
	if !todo.CreatedAt.IsZero() {
		resp.CreatedAt = todo.CreatedAt.Format(time.RFC3339)
	}
	return resp
}
