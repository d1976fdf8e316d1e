package server

import (
	"github.com/labstack/echo/v4"

	"github.com/tbraun92/boardcast/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]string{
		"status":  "alive",
		"version": version.Version,
	})
}

// handleReadiness reports ready while the hub actor answers queries. A
// negative session count means the command loop is wedged or stopped.
func (s *Server) handleReadiness(c echo.Context) error {
	count := s.hub.SessionCount()
	if count < 0 {
		return c.JSON(503, map[string]string{"status": "unhealthy", "reason": "hub not responding"})
	}

	return c.JSON(200, map[string]any{
		"status":   "ready",
		"sessions": count,
	})
}
