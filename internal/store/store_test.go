package store

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbraun92/boardcast/internal/domain"
)

func seededStore(t *testing.T) *ItemStore {
	t.Helper()
	s := NewItemStore(clockwork.NewFakeClock())
	s.Seed([]domain.Item{
		{ID: 1, Title: "Set up CI pipeline", State: domain.StateActive},
		{ID: 2, Title: "Fix login redirect loop", State: domain.StateNew},
	})
	return s
}

func TestItemStore_GetUnknownID(t *testing.T) {
	s := seededStore(t)

	_, err := s.Get(999)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemStore_UpdateStateUnknownID(t *testing.T) {
	s := seededStore(t)

	_, err := s.UpdateState(999, domain.StateClosed)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemStore_UpdateStateInvalidState(t *testing.T) {
	s := seededStore(t)

	_, err := s.UpdateState(1, domain.ItemState("Garbage"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestItemStore_UpdateStateReturnsSnapshot(t *testing.T) {
	s := seededStore(t)

	updated, err := s.UpdateState(2, domain.StateActive)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, updated.State)

	// Mutating the returned snapshot must not affect the store.
	updated.Title = "tampered"
	fresh, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "Fix login redirect loop", fresh.Title)
	assert.Equal(t, domain.StateActive, fresh.State)
}

func TestItemStore_CreateAssignsSequentialIDs(t *testing.T) {
	s := seededStore(t)

	created := s.Create("Write onboarding guide", "First-week checklist")
	assert.EqualValues(t, 3, created.ID)
	assert.Equal(t, domain.StateNew, created.State)

	next := s.Create("Another", "")
	assert.EqualValues(t, 4, next.ID)
}

func TestItemStore_ListOrderedByID(t *testing.T) {
	s := NewItemStore(clockwork.NewFakeClock())
	s.Seed([]domain.Item{
		{ID: 9, Title: "nine", State: domain.StateNew},
		{ID: 3, Title: "three", State: domain.StateNew},
		{ID: 5, Title: "five", State: domain.StateNew},
	})

	items := s.List()
	require.Len(t, items, 3)
	assert.EqualValues(t, 3, items[0].ID)
	assert.EqualValues(t, 5, items[1].ID)
	assert.EqualValues(t, 9, items[2].ID)

	// Creation continues after the highest seeded ID.
	created := s.Create("ten", "")
	assert.EqualValues(t, 10, created.ID)
}

func TestItemStore_ConcurrentUpdatesDifferentIDs(t *testing.T) {
	s := NewItemStore(clockwork.NewRealClock())
	for i := 0; i < 8; i++ {
		s.Create("item", "")
	}

	var wg sync.WaitGroup
	for id := int64(1); id <= 8; id++ {
		for j := 0; j < 50; j++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := s.UpdateState(id, domain.StateActive)
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	for _, item := range s.List() {
		assert.Equal(t, domain.StateActive, item.State)
	}
}

func TestItemStore_ConcurrentUpdatesSameIDLastWriterWins(t *testing.T) {
	s := NewItemStore(clockwork.NewRealClock())
	s.Create("contended", "")

	states := []domain.ItemState{domain.StateActive, domain.StateResolved, domain.StateClosed}

	var wg sync.WaitGroup
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpdateState(1, states[i%len(states)])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Whatever won, the store holds exactly one of the written states.
	item, err := s.Get(1)
	require.NoError(t, err)
	assert.Contains(t, states, item.State)
}
