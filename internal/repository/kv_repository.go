package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/kvstore"
)

//go:embed todo.schema.json
var partitionSchemaSource string

var partitionSchema = jsonschema.MustCompileString("todo.schema.json", partitionSchemaSource)

// KeyValueRepository stores each owner's records as two JSON lists, one per
// partition, in a key-value arena. The list a record is stored in is
// authoritative for its Archived flag.
type KeyValueRepository struct {
	kv  kvstore.Store
	mu  sync.Mutex
	now func() time.Time
}

func NewKeyValueRepository(kv kvstore.Store) *KeyValueRepository {
	return &KeyValueRepository{kv: kv, now: time.Now}
}

func partitionKey(ownerID string, p domain.Partition) kvstore.Key {
	return kvstore.Key{Owner: ownerID, Partition: string(p)}
}

func (r *KeyValueRepository) ListAll(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, archived, err := r.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	all := append(active, archived...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all, nil
}

func (r *KeyValueRepository) Insert(ctx context.Context, ownerID string, todo domain.Todo) (domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	todo.ID = uuid.NewString()
	todo.UserID = ownerID
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = r.now().UTC()
	}

	p := domain.PartitionOf(todo)
	list, err := r.loadPartition(ctx, ownerID, p)
	if err != nil {
		return domain.Todo{}, err
	}
	list = append(list, todo)
	raw, err := encodeList(p, list)
	if err != nil {
		return domain.Todo{}, err
	}
	if err := kvstore.Put(ctx, r.kv, partitionKey(ownerID, p), raw); err != nil {
		return domain.Todo{}, err
	}
	return todo, nil
}

// Update rewrites the record in place, or moves it to the other list when
// its Archived flag changed.
func (r *KeyValueRepository) Update(ctx context.Context, ownerID string, todo domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, archived, err := r.load(ctx, ownerID)
	if err != nil {
		return err
	}
	lists := map[domain.Partition][]domain.Todo{
		domain.PartitionActive:   active,
		domain.PartitionArchived: archived,
	}

	for from, list := range lists {
		i := indexOf(list, todo.ID)
		if i < 0 {
			continue
		}
		current := list[i]
		current.Text = todo.Text
		current.DueDate = todo.DueDate
		current.Completed = todo.Completed
		current.Archived = todo.Archived

		to := domain.PartitionOf(current)
		if to == from {
			list[i] = current
			return r.store(ctx, ownerID, map[domain.Partition][]domain.Todo{from: list})
		}
		return r.store(ctx, ownerID, map[domain.Partition][]domain.Todo{
			from: append(list[:i:i], list[i+1:]...),
			to:   append(lists[to], current),
		})
	}
	return ErrNotFound
}

func (r *KeyValueRepository) Remove(ctx context.Context, ownerID string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, archived, err := r.load(ctx, ownerID)
	if err != nil {
		return err
	}
	for p, list := range map[domain.Partition][]domain.Todo{
		domain.PartitionActive:   active,
		domain.PartitionArchived: archived,
	} {
		if i := indexOf(list, id); i >= 0 {
			// An emptied partition drops its entry instead of keeping "[]".
			if len(list) == 1 {
				return r.kv.Delete(ctx, partitionKey(ownerID, p))
			}
			return r.store(ctx, ownerID, map[domain.Partition][]domain.Todo{
				p: append(list[:i:i], list[i+1:]...),
			})
		}
	}
	return ErrNotFound
}

func (r *KeyValueRepository) load(ctx context.Context, ownerID string) (active, archived []domain.Todo, err error) {
	active, err = r.loadPartition(ctx, ownerID, domain.PartitionActive)
	if err != nil {
		return nil, nil, err
	}
	archived, err = r.loadPartition(ctx, ownerID, domain.PartitionArchived)
	if err != nil {
		return nil, nil, err
	}
	return active, archived, nil
}

func (r *KeyValueRepository) loadPartition(ctx context.Context, ownerID string, p domain.Partition) ([]domain.Todo, error) {
	key := partitionKey(ownerID, p)
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if err := partitionSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate %s: %w", key, err)
	}

	var todos []domain.Todo
	if err := json.Unmarshal(raw, &todos); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	for i := range todos {
		todos[i].Archived = p == domain.PartitionArchived
		todos[i].UserID = ownerID
	}
	return todos, nil
}

func (r *KeyValueRepository) store(ctx context.Context, ownerID string, lists map[domain.Partition][]domain.Todo) error {
	entries := make(map[kvstore.Key][]byte, len(lists))
	for p, list := range lists {
		raw, err := encodeList(p, list)
		if err != nil {
			return err
		}
		entries[partitionKey(ownerID, p)] = raw
	}
	return r.kv.PutAll(ctx, entries)
}

func encodeList(p domain.Partition, list []domain.Todo) ([]byte, error) {
	if list == nil {
		list = []domain.Todo{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode %s list: %w", p, err)
	}
	return raw, nil
}

func indexOf(todos []domain.Todo, id string) int {
	for i := range todos {
		if todos[i].ID == id {
			return i
		}
	}
	return -1
}
