// Package hub implements session lifecycle, interest groups and update
// fan-out using the actor pattern.
//
// A single goroutine owns the session and group maps (no mutexes) and
// processes commands from a channel. Per-connection write goroutines make
// delivery non-blocking; a slow client's buffer filling up evicts that
// client without touching the rest of its group.
package hub
