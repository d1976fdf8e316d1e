// Package server provides the HTTP layer: the item REST API, the
// WebSocket endpoint with its connection limits, and health/metrics
// endpoints, all on echo.
package server
