// Package app provides the mutation and query entry points consumed by
// the HTTP layer: apply-and-notify, item queries, and join/leave on behalf
// of a connected session.
package app
