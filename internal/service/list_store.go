package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/repository"
)

const tempIDPrefix = "tmp-"

// IsTempID reports whether id was generated locally and not yet confirmed.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

func newTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// SyncState tells whether a resident record is known to the gateway.
type SyncState int

const (
	// Pending records carry a temporary id; their insert is in flight.
	Pending SyncState = iota
	// Confirmed records carry the canonical id returned by the gateway.
	Confirmed
)

func (s SyncState) String() string {
	if s == Pending {
		return "pending"
	}
	return "confirmed"
}

type entry struct {
	todo  domain.Todo
	state SyncState
}

// Snapshot is a copy of the store state.
type Snapshot struct {
	OwnerID  string
	Active   []domain.Todo
	Archived []domain.Todo
	// Pending lists the temporary ids whose insert is in flight.
	Pending []string
}

// Listener receives a snapshot after every optimistic change and again after
// each reconciliation.
type Listener interface {
	StateChanged(Snapshot)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Snapshot)

// StateChanged implements Listener.
func (f ListenerFunc) StateChanged(s Snapshot) {
	if f != nil {
		f(s)
	}
}

// Option configures a ListStore.
type Option func(*ListStore)

// WithLogger sets the logger used for reconciliation events.
func WithLogger(logger *log.Logger) Option {
	return func(s *ListStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTempIDFunc overrides temporary id generation.
func WithTempIDFunc(fn func() string) Option {
	return func(s *ListStore) {
		if fn != nil {
			s.newTempID = fn
		}
	}
}

// ListStore holds one owner's active and archived records, applies commands
// optimistically and reconciles them with the gateway.
//
// Gateway calls run without holding the state lock. Every reconciliation
// first checks that the owner and load epoch captured before the call are
// still current; otherwise the late result is dropped.
type ListStore struct {
	repo      repository.TodoRepository
	logger    *log.Logger
	newTempID func() string

	mu       sync.Mutex
	ownerID  string
	epoch    uint64
	active   []entry
	archived []entry

	listenersMu  sync.Mutex
	listeners    []registeredListener
	nextListener int
}

type registeredListener struct {
	id int
	l  Listener
}

// NewListStore creates an empty store. Call Initialize before any command.
func NewListStore(repo repository.TodoRepository, opts ...Option) *ListStore {
	s := &ListStore{
		repo:      repo,
		logger:    log.Default(),
		newTempID: newTempID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "liststore")
	return s
}

// Subscribe registers l and returns a function that unregisters it.
func (s *ListStore) Subscribe(l Listener) (cancel func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners = append(s.listeners, registeredListener{id: id, l: l})
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		for i, rl := range s.listeners {
			if rl.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *ListStore) notify() {
	snap := s.Snapshot()
	s.listenersMu.Lock()
	listeners := append([]registeredListener(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, rl := range listeners {
		rl.l.StateChanged(snap)
	}
}

// Snapshot returns a copy of the current state.
func (s *ListStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		OwnerID:  s.ownerID,
		Active:   make([]domain.Todo, 0, len(s.active)),
		Archived: make([]domain.Todo, 0, len(s.archived)),
	}
	for _, e := range s.active {
		snap.Active = append(snap.Active, e.todo)
		if e.state == Pending {
			snap.Pending = append(snap.Pending, e.todo.ID)
		}
	}
	for _, e := range s.archived {
		snap.Archived = append(snap.Archived, e.todo)
	}
	return snap
}

// OwnerID returns the owner the store is scoped to.
func (s *ListStore) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// Initialize discards the current state and loads ownerID's records,
// partitioned by their Archived flag. On failure the state stays empty.
func (s *ListStore) Initialize(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return domain.ErrNoOwner
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.ownerID = ownerID
	s.active, s.archived = nil, nil
	s.mu.Unlock()
	s.notify()

	todos, err := s.repo.ListAll(ctx, ownerID)

	s.mu.Lock()
	if !s.isCurrent(ownerID, epoch) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale load", "owner", ownerID)
		return domain.ErrOwnerChanged
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("initial load failed", "owner", ownerID, "err", err)
		return &domain.PersistenceError{Op: "list", Cause: err}
	}

	// Commands issued while the load was in flight are kept after the
	// loaded records unless the load already returned them.
	loaded := make(map[string]bool, len(todos))
	var active, archived []entry
	for _, todo := range todos {
		loaded[todo.ID] = true
		if todo.Archived {
			archived = append(archived, entry{todo: todo, state: Confirmed})
		} else {
			active = append(active, entry{todo: todo, state: Confirmed})
		}
	}
	for _, e := range s.active {
		if !loaded[e.todo.ID] {
			active = append(active, e)
		}
	}
	for _, e := range s.archived {
		if !loaded[e.todo.ID] {
			archived = append(archived, e)
		}
	}
	s.active, s.archived = active, archived
	s.mu.Unlock()

	s.logger.Debug("loaded", "owner", ownerID, "active", len(active), "archived", len(archived))
	s.notify()
	return nil
}

// Add appends a new record to the active list and persists it. On success the
// temporary entry is replaced in place by the canonical record; on failure it
// is removed.
func (s *ListStore) Add(ctx context.Context, text, dueDate string) (domain.Todo, error) {
	todo, err := domain.NewTodo(text, dueDate)
	if err != nil {
		return domain.Todo{}, err
	}

	s.mu.Lock()
	owner, epoch, err := s.ownerLocked()
	if err != nil {
		s.mu.Unlock()
		return domain.Todo{}, err
	}
	todo.ID = s.newTempID()
	todo.UserID = owner
	tempID := todo.ID
	s.active = append(s.active, entry{todo: todo, state: Pending})
	s.mu.Unlock()
	s.notify()

	stored, err := s.repo.Insert(ctx, owner, todo)

	s.mu.Lock()
	if !s.isCurrent(owner, epoch) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale insert", "owner", owner, "temp_id", tempID)
		return domain.Todo{}, domain.ErrOwnerChanged
	}
	i := indexOf(s.active, tempID)
	if err != nil {
		if i >= 0 {
			s.active = removeAt(s.active, i)
		}
		s.mu.Unlock()
		s.logger.Warn("insert failed, rolled back", "temp_id", tempID, "err", err)
		s.notify()
		return domain.Todo{}, &domain.PersistenceError{Op: "insert", ID: tempID, Cause: err}
	}
	stored.Archived = false
	if i >= 0 {
		s.active[i] = entry{todo: stored, state: Confirmed}
	} else {
		s.active = append(s.active, entry{todo: stored, state: Confirmed})
	}
	s.mu.Unlock()
	s.notify()
	return stored, nil
}

// ToggleComplete flips the completed flag and moves the record to the other
// list in one step. A failed update moves it back to its old position.
func (s *ListStore) ToggleComplete(ctx context.Context, id string) (domain.Todo, error) {
	s.mu.Lock()
	owner, epoch, err := s.ownerLocked()
	if err != nil {
		s.mu.Unlock()
		return domain.Todo{}, err
	}
	from, i := s.locate(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Todo{}, &domain.NotFoundError{ID: id}
	}
	prev := s.list(from)[i]
	if prev.state == Pending {
		s.mu.Unlock()
		return domain.Todo{}, domain.ErrPending
	}
	// The target is the other list, whatever the flag says: Edit can leave a
	// completed record in active.
	to := domain.PartitionArchived
	if from == domain.PartitionArchived {
		to = domain.PartitionActive
	}
	updated := prev.todo
	updated.Completed = !updated.Completed
	updated.Archived = to == domain.PartitionArchived
	s.move(from, i, to, entry{todo: updated, state: Confirmed})
	s.mu.Unlock()
	s.notify()

	err = s.repo.Update(ctx, owner, updated)
	if err == nil {
		s.notify()
		return updated, nil
	}

	s.mu.Lock()
	if !s.isCurrent(owner, epoch) {
		s.mu.Unlock()
		return domain.Todo{}, domain.ErrOwnerChanged
	}
	s.revertMove(id, to, from, i, prev)
	s.mu.Unlock()
	s.logger.Warn("toggle failed, reverted", "id", id, "err", err)
	s.notify()
	return domain.Todo{}, &domain.PersistenceError{Op: "update", ID: id, Cause: err}
}

// Edit merges patch into an active record and persists it. A failed update is
// reported but the local merge is kept (last write wins).
func (s *ListStore) Edit(ctx context.Context, id string, patch domain.Patch) (domain.Todo, error) {
	if err := patch.Validate(); err != nil {
		return domain.Todo{}, err
	}

	s.mu.Lock()
	owner, _, err := s.ownerLocked()
	if err != nil {
		s.mu.Unlock()
		return domain.Todo{}, err
	}
	i := indexOf(s.active, id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Todo{}, &domain.NotFoundError{ID: id, Partition: domain.PartitionActive}
	}
	if s.active[i].state == Pending {
		s.mu.Unlock()
		return domain.Todo{}, domain.ErrPending
	}
	if patch.Empty() {
		current := s.active[i].todo
		s.mu.Unlock()
		return current, nil
	}
	patch.Apply(&s.active[i].todo)
	updated := s.active[i].todo
	s.mu.Unlock()
	s.notify()

	// TODO: keep the pre-edit copy and restore it here once edit conflicts
	// need to be surfaced in the list instead of only to the caller.
	if err := s.repo.Update(ctx, owner, updated); err != nil {
		s.logger.Warn("edit not persisted", "id", id, "err", err)
		return updated, &domain.PersistenceError{Op: "update", ID: id, Cause: err}
	}
	s.notify()
	return updated, nil
}

// Remove deletes a record from the active list.
func (s *ListStore) Remove(ctx context.Context, id string) error {
	return s.remove(ctx, id, domain.PartitionActive)
}

// RemoveArchived deletes a record from the archived list.
func (s *ListStore) RemoveArchived(ctx context.Context, id string) error {
	return s.remove(ctx, id, domain.PartitionArchived)
}

// remove drops the record locally first. A gateway failure is reported but
// the removal is not undone.
func (s *ListStore) remove(ctx context.Context, id string, p domain.Partition) error {
	s.mu.Lock()
	owner, _, err := s.ownerLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	list := s.list(p)
	i := indexOf(list, id)
	if i < 0 {
		s.mu.Unlock()
		return &domain.NotFoundError{ID: id, Partition: p}
	}
	if list[i].state == Pending {
		s.mu.Unlock()
		return domain.ErrPending
	}
	s.setList(p, removeAt(list, i))
	s.mu.Unlock()
	s.notify()

	err = s.repo.Remove(ctx, owner, id)
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		s.notify()
		return nil
	}
	s.logger.Warn("remove not persisted", "id", id, "partition", p, "err", err)
	return &domain.PersistenceError{Op: "remove", ID: id, Cause: err}
}

// ArchiveCompleted moves every completed active record to the archived list
// and persists each move. Records whose update fails go back to their old
// index in the active list; the failures are joined into the returned error.
func (s *ListStore) ArchiveCompleted(ctx context.Context) ([]domain.Todo, error) {
	s.mu.Lock()
	owner, epoch, err := s.ownerLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var (
		keep  []entry
		moved []domain.Todo
	)
	// origin remembers each moved record's index in active for the revert.
	origin := map[string]int{}
	for i, e := range s.active {
		if e.state == Confirmed && e.todo.Completed {
			e.todo.Archived = true
			s.archived = append(s.archived, e)
			moved = append(moved, e.todo)
			origin[e.todo.ID] = i
			continue
		}
		keep = append(keep, e)
	}
	s.active = keep
	s.mu.Unlock()
	if len(moved) == 0 {
		return nil, nil
	}
	s.notify()

	var (
		archived []domain.Todo
		failed   []domain.Todo
		errs     []error
	)
	for _, todo := range moved {
		if err := s.repo.Update(ctx, owner, todo); err != nil {
			failed = append(failed, todo)
			errs = append(errs, &domain.PersistenceError{Op: "update", ID: todo.ID, Cause: err})
			continue
		}
		archived = append(archived, todo)
	}

	if len(failed) > 0 {
		s.mu.Lock()
		if !s.isCurrent(owner, epoch) {
			s.mu.Unlock()
			return archived, errors.Join(append(errs, domain.ErrOwnerChanged)...)
		}
		// failed is in ascending origin order, so inserting front to back
		// puts every record back at its old index.
		for _, todo := range failed {
			j := indexOf(s.archived, todo.ID)
			if j < 0 {
				continue
			}
			e := s.archived[j]
			e.todo.Archived = false
			s.archived = removeAt(s.archived, j)
			s.active = insertAt(s.active, origin[todo.ID], e)
		}
		s.mu.Unlock()
		s.logger.Warn("archive partially failed", "archived", len(archived), "failed", len(failed))
	}
	s.notify()
	return archived, errors.Join(errs...)
}

// Unarchive moves an archived record back to the active list as incomplete.
// A failed update moves it back.
func (s *ListStore) Unarchive(ctx context.Context, id string) (domain.Todo, error) {
	s.mu.Lock()
	owner, epoch, err := s.ownerLocked()
	if err != nil {
		s.mu.Unlock()
		return domain.Todo{}, err
	}
	i := indexOf(s.archived, id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Todo{}, &domain.NotFoundError{ID: id, Partition: domain.PartitionArchived}
	}
	prev := s.archived[i]
	updated := prev.todo
	updated.Completed = false
	updated.Archived = false
	s.move(domain.PartitionArchived, i, domain.PartitionActive, entry{todo: updated, state: Confirmed})
	s.mu.Unlock()
	s.notify()

	err = s.repo.Update(ctx, owner, updated)
	if err == nil {
		s.notify()
		return updated, nil
	}

	s.mu.Lock()
	if !s.isCurrent(owner, epoch) {
		s.mu.Unlock()
		return domain.Todo{}, domain.ErrOwnerChanged
	}
	s.revertMove(id, domain.PartitionActive, domain.PartitionArchived, i, prev)
	s.mu.Unlock()
	s.logger.Warn("unarchive failed, reverted", "id", id, "err", err)
	s.notify()
	return domain.Todo{}, &domain.PersistenceError{Op: "update", ID: id, Cause: err}
}

// The helpers below expect s.mu to be held.

func (s *ListStore) ownerLocked() (string, uint64, error) {
	if s.ownerID == "" {
		return "", 0, domain.ErrNoOwner
	}
	return s.ownerID, s.epoch, nil
}

func (s *ListStore) isCurrent(owner string, epoch uint64) bool {
	return s.ownerID == owner && s.epoch == epoch
}

func (s *ListStore) list(p domain.Partition) []entry {
	if p == domain.PartitionArchived {
		return s.archived
	}
	return s.active
}

func (s *ListStore) setList(p domain.Partition, list []entry) {
	if p == domain.PartitionArchived {
		s.archived = list
		return
	}
	s.active = list
}

func (s *ListStore) locate(id string) (domain.Partition, int) {
	if i := indexOf(s.active, id); i >= 0 {
		return domain.PartitionActive, i
	}
	if i := indexOf(s.archived, id); i >= 0 {
		return domain.PartitionArchived, i
	}
	return "", -1
}

// move removes index i from one list and appends e to the other.
func (s *ListStore) move(from domain.Partition, i int, to domain.Partition, e entry) {
	s.setList(from, removeAt(s.list(from), i))
	s.setList(to, append(s.list(to), e))
}

// revertMove puts prev back at its old position, provided the moved copy is
// still where the optimistic step left it.
func (s *ListStore) revertMove(id string, movedTo, backTo domain.Partition, at int, prev entry) {
	j := indexOf(s.list(movedTo), id)
	if j < 0 {
		return
	}
	s.setList(movedTo, removeAt(s.list(movedTo), j))
	s.setList(backTo, insertAt(s.list(backTo), at, prev))
}

func indexOf(list []entry, id string) int {
	for i := range list {
		if list[i].todo.ID == id {
			return i
		}
	}
	return -1
}

func removeAt(list []entry, i int) []entry {
	out := make([]entry, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func insertAt(list []entry, i int, e entry) []entry {
	if i > len(list) {
		i = len(list)
	}
	out := make([]entry, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, e)
	return append(out, list[i:]...)
}
