package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockTimeout    = 3 * time.Second
	lockRetryDelay = 100 * time.Millisecond
	fileVersion    = 1
)

// fileData is the on-disk layout.
type fileData struct {
	Version   int                        `json:"version"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Entries   map[string]json.RawMessage `json:"entries"`
}

// File stores every entry in a single JSON file. Each operation re-reads the
// file under an exclusive flock so several processes can share it.
type File struct {
	path     string
	mu       sync.Mutex
	fileLock *flock.Flock
	timeFunc func() time.Time
}

// NewFile opens (or prepares to create) the JSON file at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("kvstore: file path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: invalid path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: create data dir: %w", err)
	}
	return &File{
		path:     abs,
		fileLock: flock.New(abs + ".lock"),
		timeFunc: time.Now,
	}, nil
}

// Path returns the absolute file path.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := key.validate(); err != nil {
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err := f.withLock(ctx, func() error {
		data, err := f.load()
		if err != nil {
			return err
		}
		raw, ok := data.Entries[key.String()]
		if ok {
			value, found = cloneBytes(raw), true
		}
		return nil
	})
	return value, found, err
}

func (f *File) PutAll(ctx context.Context, entries map[Key][]byte) error {
	for key, value := range entries {
		if err := key.validate(); err != nil {
			return err
		}
		if !json.Valid(value) {
			return fmt.Errorf("kvstore: value for %s is not valid JSON", key)
		}
	}
	return f.withLock(ctx, func() error {
		data, err := f.load()
		if err != nil {
			return err
		}
		for key, value := range entries {
			data.Entries[key.String()] = json.RawMessage(cloneBytes(value))
		}
		return f.save(data)
	})
}

func (f *File) Delete(ctx context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	return f.withLock(ctx, func() error {
		data, err := f.load()
		if err != nil {
			return err
		}
		if _, ok := data.Entries[key.String()]; !ok {
			return nil
		}
		delete(data.Entries, key.String())
		return f.save(data)
	})
}

// withLock runs fn while holding both the in-process mutex and the file lock.
func (f *File) withLock(ctx context.Context, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := f.fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("kvstore: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("kvstore: could not lock %s", f.path)
	}
	defer func() { _ = f.fileLock.Unlock() }()

	return fn()
}

// load reads the file. A missing or empty file is an empty arena.
func (f *File) load() (*fileData, error) {
	data := &fileData{Version: fileVersion, Entries: map[string]json.RawMessage{}}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: read file: %w", err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("kvstore: parse %s: %w", f.path, err)
	}
	if data.Entries == nil {
		data.Entries = map[string]json.RawMessage{}
	}
	return data, nil
}

// save writes to a temp file and renames it over the original.
func (f *File) save(data *fileData) error {
	data.Version = fileVersion
	data.UpdatedAt = f.timeFunc()

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("kvstore: marshal: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("kvstore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("kvstore: rename temp file: %w", err)
	}
	return nil
}
