package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOwnerChanged is returned when a gateway result arrives after the
	// store switched to another owner. The result is discarded.
	ErrOwnerChanged = errors.New("owner context changed while the request was in flight")

	// ErrPending is returned for commands on a record whose insert has not
	// been confirmed yet.
	ErrPending = errors.New("record is not persisted yet")

	// ErrNoOwner is returned when a store is used before Initialize.
	ErrNoOwner = errors.New("no owner initialized")
)

// Partition names the half of a list a record lives in.
type Partition string

const (
	PartitionActive   Partition = "active"
	PartitionArchived Partition = "archived"
)

// PartitionOf returns the partition a record belongs to.
func PartitionOf(t Todo) Partition {
	if t.Archived {
		return PartitionArchived
	}
	return PartitionActive
}

// ValidationError reports bad input to record construction or edit.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// PersistenceError wraps a failed gateway call.
type PersistenceError struct {
	Op    string
	ID    string
	Cause error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.ID == "" {
		return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("persistence %s failed for %s: %v", e.Op, e.ID, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NotFoundError reports an id absent from the expected partition.
type NotFoundError struct {
	ID        string
	Partition Partition
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Partition == "" {
		return fmt.Sprintf("todo %s not found", e.ID)
	}
	return fmt.Sprintf("todo %s not found in %s list", e.ID, e.Partition)
}
