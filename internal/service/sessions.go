package service

import (
	"context"
	"sync"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/repository"
)

type session struct {
	dispatcher *Dispatcher
	cancel     context.CancelFunc
	initOnce   sync.Once
	initErr    error
}

// Sessions keeps one initialized ListStore per owner, each behind its own
// Dispatcher.
type Sessions struct {
	repo      repository.TodoRepository
	queueSize int
	opts      []Option

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessions(repo repository.TodoRepository, queueSize int, opts ...Option) *Sessions {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sessions{
		repo:      repo,
		queueSize: queueSize,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  map[string]*session{},
	}
}

// Do runs cmd against ownerID's store, loading the store on first use. A
// failed load is returned and the session forgotten, so the next call loads
// again.
func (s *Sessions) Do(ctx context.Context, ownerID string, cmd Command) error {
	if ownerID == "" {
		return domain.ErrNoOwner
	}
	sess, err := s.get(ownerID)
	if err != nil {
		return err
	}

	sess.initOnce.Do(func() {
		sess.initErr = sess.dispatcher.Do(ctx, func(ctx context.Context, store *ListStore) error {
			return store.Initialize(ctx, ownerID)
		})
	})
	if sess.initErr != nil {
		s.drop(ownerID, sess)
		return sess.initErr
	}
	return sess.dispatcher.Do(ctx, cmd)
}

// Drop forgets ownerID's store, e.g. on logout.
func (s *Sessions) Drop(ownerID string) {
	s.mu.Lock()
	sess, ok := s.sessions[ownerID]
	s.mu.Unlock()
	if ok {
		s.drop(ownerID, sess)
	}
}

// Close stops every dispatcher and waits for them to exit.
func (s *Sessions) Close() {
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	s.sessions = map[string]*session{}
	s.mu.Unlock()
}

func (s *Sessions) get(ownerID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctx.Err(); err != nil {
		return nil, ErrDispatcherStopped
	}
	if sess, ok := s.sessions[ownerID]; ok {
		return sess, nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	sess := &session{
		dispatcher: NewDispatcher(NewListStore(s.repo, s.opts...), s.queueSize),
		cancel:     cancel,
	}
	s.sessions[ownerID] = sess
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = sess.dispatcher.Run(ctx)
	}()
	return sess, nil
}

func (s *Sessions) drop(ownerID string, sess *session) {
	s.mu.Lock()
	if s.sessions[ownerID] == sess {
		delete(s.sessions, ownerID)
	}
	s.mu.Unlock()
	sess.cancel()
}
