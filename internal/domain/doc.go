// Package domain holds the core types shared across the service: work
// items, their workflow states, wire events, and the error taxonomy.
package domain
