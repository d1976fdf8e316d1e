package server

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tbraun92/boardcast/internal/domain"
)

type createItemRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type updateStateRequest struct {
	State string `json:"state" validate:"required,oneof=New Active Resolved Closed"`
}

func parseItemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(400, "invalid item id")
	}
	return id, nil
}

func (s *Server) handleListItems(c echo.Context) error {
	return c.JSON(200, s.app.ListItems(c.Request().Context()))
}

func (s *Server) handleGetItem(c echo.Context) error {
	id, err := parseItemID(c)
	if err != nil {
		return err
	}

	item, err := s.app.GetItem(c.Request().Context(), id)
	if errors.Is(err, domain.ErrItemNotFound) {
		return c.JSON(404, map[string]string{"error": "item not found"})
	}
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to load item", "item_id", id, "error", err)
		return c.JSON(500, map[string]string{"error": "failed to load item"})
	}

	return c.JSON(200, item)
}

func (s *Server) handleCreateItem(c echo.Context) error {
	var req createItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	item, err := s.app.CreateItem(c.Request().Context(), req.Title, req.Description)
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to create item", "error", err)
		return c.JSON(500, map[string]string{"error": "failed to create item"})
	}

	return c.JSON(201, item)
}

// handleUpdateState is the mutation entry point. The response depends only
// on the store write; notification dispatch is fire-and-forget.
func (s *Server) handleUpdateState(c echo.Context) error {
	id, err := parseItemID(c)
	if err != nil {
		return err
	}

	var req updateStateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	item, err := s.app.ApplyStateChange(c.Request().Context(), id, domain.ItemState(req.State))
	if errors.Is(err, domain.ErrItemNotFound) {
		return c.JSON(404, map[string]string{"error": "item not found"})
	}
	if errors.Is(err, domain.ErrInvalidState) {
		return c.JSON(400, map[string]string{"error": "invalid state"})
	}
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to update item state", "item_id", id, "error", err)
		return c.JSON(500, map[string]string{"error": "failed to update item"})
	}

	return c.JSON(200, item)
}
