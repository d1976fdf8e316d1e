// Package store implements the in-memory item store.
//
// A RWMutex guards the ID map; each item carries its own lock so updates to
// different items run fully concurrent while updates to one item serialize.
package store
