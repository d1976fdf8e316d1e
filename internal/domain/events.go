package domain

// Event type tags on outbound WebSocket frames.
const (
	EventItemUpdated = "itemUpdated"
	EventError       = "error"
)

// ItemUpdate is the push notification fanned out to every session in an
// item's interest group. It is ephemeral: never persisted, never replayed.
type ItemUpdate struct {
	Type string `json:"type"`
	Item Item   `json:"item"`
}

// NewItemUpdate wraps a post-write item snapshot for delivery.
func NewItemUpdate(item Item) ItemUpdate {
	return ItemUpdate{Type: EventItemUpdated, Item: item}
}

// ErrorEvent is sent to a single client when one of its commands fails.
// The connection stays open.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Command is an inbound client frame: join or leave an item's group.
type Command struct {
	Action string `json:"action"`
	ItemID int64  `json:"itemId"`
}

// Known command actions.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)
