package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	file, err := NewFile(filepath.Join(t.TempDir(), "data", "todos.json"))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key{Owner: "alice", Partition: "active"}

			_, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, Put(ctx, s, key, []byte(`[{"id":"1"}]`)))

			value, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `[{"id":"1"}]`, string(value))

			require.NoError(t, s.Delete(ctx, key))
			_, ok, err = s.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			// deleting twice is fine
			require.NoError(t, s.Delete(ctx, key))
		})
	}
}

func TestStoreScopesByOwner(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutAll(ctx, map[Key][]byte{
				{Owner: "alice", Partition: "active"}: []byte(`["a"]`),
				{Owner: "bob", Partition: "active"}:   []byte(`["b"]`),
			}))

			value, ok, err := s.Get(ctx, Key{Owner: "bob", Partition: "active"})
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `["b"]`, string(value))

			_, ok, err = s.Get(ctx, Key{Owner: "alice", Partition: "archived"})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRejectsEmptyOwner(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Get(ctx, Key{Partition: "active"})
			assert.ErrorIs(t, err, ErrEmptyOwner)
			err = Put(ctx, s, Key{Partition: "active"}, []byte(`[]`))
			assert.ErrorIs(t, err, ErrEmptyOwner)
		})
	}
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "todos.json")

	first, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, Put(ctx, first, Key{Owner: "alice", Partition: "archived"}, []byte(`[]`)))

	second, err := NewFile(path)
	require.NoError(t, err)
	value, ok, err := second.Get(ctx, Key{Owner: "alice", Partition: "archived"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(value))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileRejectsInvalidJSON(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "todos.json"))
	require.NoError(t, err)
	err = Put(context.Background(), s, Key{Owner: "alice", Partition: "active"}, []byte("not json"))
	assert.Error(t, err)
}

func TestKeyStringEscapesOwner(t *testing.T) {
	assert.Equal(t, "todos/a%2Fb/active", Key{Owner: "a/b", Partition: "active"}.String())
}
