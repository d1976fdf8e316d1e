package domain

import "errors"

var (
	ErrItemNotFound = errors.New("item not found")
	ErrInvalidState = errors.New("invalid item state")
	ErrHubStopped   = errors.New("hub is stopped")
	ErrSessionLimit = errors.New("session limit for group reached")
)
