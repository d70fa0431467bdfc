package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	inventory "decoder-ledger/internal/inventory/domain"
)

// ItemRepository is an in-memory inventory store.
type ItemRepository struct {
	mu    sync.RWMutex
	items map[string]inventory.Item
}

// NewItemRepository constructs an empty store.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{items: make(map[string]inventory.Item)}
}

// List returns every item ordered by room and type.
func (r *ItemRepository) List(ctx context.Context) ([]inventory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]inventory.Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomNumber != out[j].RoomNumber {
			return out[i].RoomNumber < out[j].RoomNumber
		}
		return out[i].EquipmentType < out[j].EquipmentType
	})
	return out, nil
}

// Upsert stores item, keeping the id of an existing row with the same key.
func (r *ItemRepository) Upsert(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(item), nil
}

// UpsertBatch stores every item.
func (r *ItemRepository) UpsertBatch(ctx context.Context, items []inventory.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		r.upsertLocked(item)
	}
	return nil
}

func (r *ItemRepository) upsertLocked(item inventory.Item) inventory.Item {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	for id, existing := range r.items {
		if existing.Key() == item.Key() {
			item.ID = id
			break
		}
	}
	r.items[item.ID] = item
	return item
}

// Delete removes an item by id.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return inventory.ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}
