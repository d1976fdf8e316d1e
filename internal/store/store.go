package store

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"

	"github.com/tbraun92/boardcast/internal/domain"
)

// itemEntry pairs an item with its own lock so writes to different items
// never contend. The entry lock serializes read-modify-write on one item.
type itemEntry struct {
	mu   sync.Mutex
	item domain.Item
}

// ItemStore is the single source of truth for current item state. The
// outer RWMutex guards the map structure only; per-item mutation happens
// under the entry lock. Last writer wins, no version token.
type ItemStore struct {
	mu     sync.RWMutex
	items  map[int64]*itemEntry
	nextID int64
	clock  clockwork.Clock
}

func NewItemStore(clock clockwork.Clock) *ItemStore {
	return &ItemStore{
		items:  make(map[int64]*itemEntry),
		nextID: 1,
		clock:  clock,
	}
}

// Create adds a new item in state New with an auto-assigned ID and
// returns its snapshot.
func (s *ItemStore) Create(title, description string) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := domain.Item{
		ID:          s.nextID,
		Title:       title,
		Description: description,
		State:       domain.StateNew,
		UpdatedAt:   s.clock.Now(),
	}
	s.items[item.ID] = &itemEntry{item: item}
	s.nextID++
	return item
}

// Seed loads initial items, preserving their IDs. Meant for service
// startup before any connection is accepted.
func (s *ItemStore) Seed(items []domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = s.clock.Now()
		}
		s.items[item.ID] = &itemEntry{item: item}
		if item.ID >= s.nextID {
			s.nextID = item.ID + 1
		}
	}
}

// Get returns a snapshot of the item or domain.ErrItemNotFound.
func (s *ItemStore) Get(id int64) (domain.Item, error) {
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.item, nil
}

// List returns snapshots of all items ordered by ID.
func (s *ItemStore) List() []domain.Item {
	s.mu.RLock()
	entries := lo.Values(s.items)
	s.mu.RUnlock()

	items := lo.Map(entries, func(e *itemEntry, _ int) domain.Item {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.item
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// UpdateState applies a single atomic read-modify-write to one item and
// returns the post-write snapshot. Concurrent updates to different IDs do
// not block each other; updates to the same ID are serialized by the
// entry lock.
func (s *ItemStore) UpdateState(id int64, state domain.ItemState) (domain.Item, error) {
	if !state.Valid() {
		return domain.Item{}, domain.ErrInvalidState
	}

	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.item.State = state
	entry.item.UpdatedAt = s.clock.Now()
	return entry.item, nil
}
