package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
)

// ErrNotFound is returned by Update and Remove when no record with the id
// exists for the owner.
var ErrNotFound = errors.New("todo not found")

// TodoRepository is the persistence gateway behind a list store.
// Every call is scoped to a single owner.
type TodoRepository interface {
	// ListAll returns the owner's records in creation order.
	ListAll(ctx context.Context, ownerID string) ([]domain.Todo, error)

	// Insert stores a new record and returns the canonical copy. The returned
	// id may differ from the submitted one.
	Insert(ctx context.Context, ownerID string, todo domain.Todo) (domain.Todo, error)

	// Update persists the mutable fields of an existing record, matched by id.
	Update(ctx context.Context, ownerID string, todo domain.Todo) error

	// Remove deletes a record by id.
	Remove(ctx context.Context, ownerID string, id string) error
}

// gormTodoRepository implements TodoRepository on a row-oriented table.
// Rows are filtered by user_id on every statement, mirroring a row-level
// policy keyed by the authenticated identity.
type gormTodoRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db, now: time.Now}
}

// Migrate creates or updates the todos table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Todo{})
}

func (r *gormTodoRepository) ListAll(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	var todos []domain.Todo
	result := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&todos)
	if result.Error != nil {
		return nil, result.Error
	}
	return todos, nil
}

// Insert ignores the submitted id and assigns a fresh canonical one.
func (r *gormTodoRepository) Insert(ctx context.Context, ownerID string, todo domain.Todo) (domain.Todo, error) {
	todo.ID = uuid.NewString()
	todo.UserID = ownerID
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = r.now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&todo).Error; err != nil {
		return domain.Todo{}, err
	}
	return todo, nil
}

func (r *gormTodoRepository) Update(ctx context.Context, ownerID string, todo domain.Todo) error {
	// A map keeps zero values (completed=false) in the UPDATE.
	result := r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ? AND user_id = ?", todo.ID, ownerID).
		Updates(map[string]any{
			"text":      todo.Text,
			"due_date":  todo.DueDate,
			"completed": todo.Completed,
			"archived":  todo.Archived,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTodoRepository) Remove(ctx context.Context, ownerID string, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&domain.Todo{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
