package service

import (
	"context"
	"errors"
)

// ErrDispatcherStopped is returned by Do once Run has returned.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Command is one unit of work against a ListStore.
type Command func(ctx context.Context, store *ListStore) error

type request struct {
	ctx    context.Context
	cmd    Command
	result chan error
}

// Dispatcher is the single writer for a ListStore: commands submitted from
// any goroutine run one at a time, in submission order.
type Dispatcher struct {
	store   *ListStore
	queue   chan request
	stopped chan struct{}
}

func NewDispatcher(store *ListStore, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		store:   store,
		queue:   make(chan request, queueSize),
		stopped: make(chan struct{}),
	}
}

// Run executes queued commands until ctx is done. It must be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.queue:
			// In-flight gateway calls are not cancelled by the caller going away.
			req.result <- req.cmd(context.WithoutCancel(req.ctx), d.store)
		}
	}
}

// Do enqueues cmd and waits for its result. If ctx ends while the command is
// queued or running, Do returns ctx.Err() but the command still runs.
func (d *Dispatcher) Do(ctx context.Context, cmd Command) error {
	req := request{ctx: ctx, cmd: cmd, result: make(chan error, 1)}
	select {
	case d.queue <- req:
	case <-d.stopped:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-d.stopped:
		// Run may have finished this request just before stopping.
		select {
		case err := <-req.result:
			return err
		default:
			return ErrDispatcherStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
