package domain

import "time"

// ItemState is the workflow state of a work item.
type ItemState string

const (
	StateNew      ItemState = "New"
	StateActive   ItemState = "Active"
	StateResolved ItemState = "Resolved"
	StateClosed   ItemState = "Closed"
)

// Valid reports whether s is one of the known workflow states.
func (s ItemState) Valid() bool {
	switch s {
	case StateNew, StateActive, StateResolved, StateClosed:
		return true
	}
	return false
}

// Item is a work item shown on the board. IDs are assigned by the store on
// creation and never change. All values handed out of the store are
// snapshot copies; callers never hold a reference into store internals.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       ItemState `json:"state"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
