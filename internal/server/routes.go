package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Item API
	s.echo.GET("/api/items", s.handleListItems)
	s.echo.GET("/api/items/:id", s.handleGetItem)
	s.echo.POST("/api/items", s.handleCreateItem)
	s.echo.PUT("/api/items/:id/state", s.handleUpdateState)

	// Live updates
	s.echo.GET("/ws", s.handleWebSocket)
}
