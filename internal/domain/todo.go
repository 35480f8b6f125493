package domain

import (
	"strings"
	"time"
)

// Todo is one to-do item owned by a single user.
type Todo struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Text      string    `gorm:"not null" json:"text"`
	DueDate   string    `gorm:"column:due_date" json:"due_date,omitempty"`
	Completed bool      `gorm:"not null;default:false" json:"completed"`
	Archived  bool      `gorm:"not null;default:false" json:"archived"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTodo builds an incomplete, unarchived record. The caller assigns the id.
func NewTodo(text, dueDate string) (Todo, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Todo{}, &ValidationError{Field: "text", Message: "cannot be empty"}
	}
	return Todo{
		Text:    trimmed,
		DueDate: dueDate,
	}, nil
}

// Patch holds the editable fields of a Todo. Nil fields are left untouched.
type Patch struct {
	Text      *string `json:"text"`
	DueDate   *string `json:"due_date"`
	Completed *bool   `json:"completed"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Text == nil && p.DueDate == nil && p.Completed == nil
}

// Validate checks the patch without applying it.
func (p Patch) Validate() error {
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return &ValidationError{Field: "text", Message: "cannot be empty"}
	}
	return nil
}

// Apply merges the patch into t. Validate must pass first.
func (p Patch) Apply(t *Todo) {
	if p.Text != nil {
		t.Text = strings.TrimSpace(*p.Text)
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}
