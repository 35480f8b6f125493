// Package kvstore is an owner-scoped key-value arena used by the local
// persistence gateway. Entries are keyed by (owner, partition) so that no
// caller ever shares a process-wide namespace with another owner.
package kvstore

import (
	"context"
	"errors"
	"net/url"
)

// ErrEmptyOwner is returned for keys without an owner.
var ErrEmptyOwner = errors.New("kvstore: key has no owner")

// Key addresses one entry in the arena.
type Key struct {
	Owner     string
	Partition string
}

// String renders the key as todos/<owner>/<partition>.
func (k Key) String() string {
	return "todos/" + url.PathEscape(k.Owner) + "/" + url.PathEscape(k.Partition)
}

func (k Key) validate() error {
	if k.Owner == "" {
		return ErrEmptyOwner
	}
	return nil
}

// Store is the arena contract. Values are JSON documents.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key Key) ([]byte, bool, error)

	// PutAll writes every entry in one step. Either all entries are stored
	// or none are.
	PutAll(ctx context.Context, entries map[Key][]byte) error

	// Delete removes the key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error
}

// Put writes a single entry.
func Put(ctx context.Context, s Store, key Key, value []byte) error {
	return s.PutAll(ctx, map[Key][]byte{key: value})
}
