package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tbraun92/boardcast/internal/domain"
	"github.com/tbraun92/boardcast/internal/metrics"
	"github.com/tbraun92/boardcast/internal/store"
)

// Notifier is the slice of the hub the service needs: fan-out plus group
// membership on behalf of a session.
type Notifier interface {
	Notify(itemID int64, item domain.Item)
	Join(sessionID uuid.UUID, itemID int64) error
	Leave(sessionID uuid.UUID, itemID int64)
}

// Service wires the item store to the hub. It is the only mutation path:
// every accepted state change goes through the store first and triggers
// exactly one fan-out with the post-write snapshot.
type Service struct {
	store    *store.ItemStore
	notifier Notifier
}

func NewService(store *store.ItemStore, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// ApplyStateChange updates the item's state and notifies its interest
// group. The returned error reflects only the store write; notification is
// fire-and-forget and never fails the request. No notification is
// dispatched when the write fails.
func (s *Service) ApplyStateChange(ctx context.Context, id int64, state domain.ItemState) (domain.Item, error) {
	item, err := s.store.UpdateState(id, state)
	if err != nil {
		return domain.Item{}, err
	}

	metrics.StateChangesTotal.WithLabelValues(string(state)).Inc()
	s.notifier.Notify(item.ID, item)
	return item, nil
}

// CreateItem adds a new item and announces it. The group is normally
// empty at creation time, so the announce is a no-op until someone joins.
func (s *Service) CreateItem(ctx context.Context, title, description string) (domain.Item, error) {
	item := s.store.Create(title, description)
	slog.Info("Item created", "item_id", item.ID, "title", item.Title)
	s.notifier.Notify(item.ID, item)
	return item, nil
}

// GetItem returns the item snapshot or domain.ErrItemNotFound.
func (s *Service) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	return s.store.Get(id)
}

// ListItems returns all items ordered by ID.
func (s *Service) ListItems(ctx context.Context) []domain.Item {
	return s.store.List()
}

// JoinItem subscribes the session to the item's updates. Unknown items
// are rejected with domain.ErrItemNotFound before touching membership.
func (s *Service) JoinItem(ctx context.Context, sessionID uuid.UUID, itemID int64) error {
	if _, err := s.store.Get(itemID); err != nil {
		return err
	}
	return s.notifier.Join(sessionID, itemID)
}

// LeaveItem unsubscribes the session. Always succeeds: leaving a group
// the session is not in, or an unknown item's group, is a no-op.
func (s *Service) LeaveItem(ctx context.Context, sessionID uuid.UUID, itemID int64) {
	s.notifier.Leave(sessionID, itemID)
}
