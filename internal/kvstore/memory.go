package kvstore

import (
	"context"
	"sync"
)

// Memory keeps entries in process memory. Intended for tests and the
// memory backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

func NewMemory() *Memory {
	return &Memory{entries: map[Key][]byte{}}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, bool, error) {
	if err := key.validate(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	value, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

func (m *Memory) PutAll(_ context.Context, entries map[Key][]byte) error {
	for key := range entries {
		if err := key.validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	for key, value := range entries {
		m.entries[key] = cloneBytes(value)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
