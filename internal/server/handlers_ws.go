package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tbraun92/boardcast/internal/domain"
	"github.com/tbraun92/boardcast/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Auth is handled upstream; embedding pages vary.
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "ip", ip, "reason", reason)
		if reason == LimitReasonRate {
			return c.JSON(429, map[string]string{"error": "too many connection attempts"})
		}
		return c.JSON(503, map[string]string{"error": "connection limit reached"})
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	sessionID, err := s.hub.Connect(conn)
	if err != nil {
		slog.Error("Failed to register session", "error", err)
		_ = conn.Close()
		return nil
	}

	// Read pump. Blocks until the connection closes; every exit path runs
	// the single Disconnect below.
	s.readCommands(c, sessionID, conn)

	s.hub.Disconnect(sessionID)
	return nil
}

// readCommands parses inbound join/leave frames until the connection
// drops. Malformed frames and command failures answer with an error event
// and keep the connection open.
func (s *Server) readCommands(c echo.Context, sessionID uuid.UUID, conn *websocket.Conn) {
	ctx := c.Request().Context()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd domain.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.sendError(sessionID, "malformed command")
			continue
		}

		switch cmd.Action {
		case domain.ActionJoin:
			if err := s.app.JoinItem(ctx, sessionID, cmd.ItemID); err != nil {
				s.sendError(sessionID, joinErrorMessage(err))
			}
		case domain.ActionLeave:
			s.app.LeaveItem(ctx, sessionID, cmd.ItemID)
		default:
			s.sendError(sessionID, fmt.Sprintf("unknown action %q", cmd.Action))
		}
	}
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return "item not found"
	case errors.Is(err, domain.ErrSessionLimit):
		return "too many viewers for this item"
	default:
		return "join failed"
	}
}

func (s *Server) sendError(sessionID uuid.UUID, msg string) {
	data, err := json.Marshal(domain.ErrorEvent{Type: domain.EventError, Error: msg})
	if err != nil {
		return
	}
	s.hub.Send(sessionID, data)
}
