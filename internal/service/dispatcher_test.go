package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsCommandsOneAtATime(t *testing.T) {
	store := NewListStore(newFakeRepo(), WithLogger(log.New(io.Discard)))
	d := NewDispatcher(store, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.NoError(t, d.Do(ctx, func(ctx context.Context, s *ListStore) error {
		return s.Initialize(ctx, "alice")
	}))

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.Do(ctx, func(ctx context.Context, s *ListStore) error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()
				_, err := s.Add(ctx, "item", "")
				mu.Lock()
				running--
				mu.Unlock()
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Len(t, store.Snapshot().Active, 20)
}

func TestDispatcherStopped(t *testing.T) {
	d := NewDispatcher(NewListStore(newFakeRepo()), 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	err := d.Do(context.Background(), func(context.Context, *ListStore) error { return nil })
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestDispatcherCallerContextDoesNotCancelCommand(t *testing.T) {
	d := NewDispatcher(NewListStore(newFakeRepo()), 1)
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = d.Run(runCtx) }()

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	err := d.Do(ctx, func(cmdCtx context.Context, _ *ListStore) error {
		cancel()
		select {
		case <-cmdCtx.Done():
			finished <- cmdCtx.Err()
		case <-time.After(20 * time.Millisecond):
			finished <- nil
		}
		return nil
	})
	// Do may observe either the result or the cancelled caller context.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.NoError(t, <-finished)
}
