package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/firefly/security-center/internal/core/ports"
)

// SessionHandler exposes the session store.
type SessionHandler struct {
	sessions ports.SessionStore
}

func NewSessionHandler(sessions ports.SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Get handles GET /api/v1/sessions/:sessionId.
func (h *SessionHandler) Get(c echo.Context) error {
	s, err := h.sessions.GetByID(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// GetByParty handles GET /api/v1/sessions/party/:partyId.
func (h *SessionHandler) GetByParty(c echo.Context) error {
	partyID, err := uuidParam(c, "partyId")
	if err != nil {
		return err
	}
	s, err := h.sessions.GetByParty(c.Request().Context(), partyID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// Invalidate handles DELETE /api/v1/sessions/:sessionId. Idempotent.
func (h *SessionHandler) Invalidate(c echo.Context) error {
	if err := h.sessions.Invalidate(c.Request().Context(), c.Param("sessionId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// InvalidateParty handles DELETE /api/v1/sessions/party/:partyId.
func (h *SessionHandler) InvalidateParty(c echo.Context) error {
	partyID, err := uuidParam(c, "partyId")
	if err != nil {
		return err
	}
	if err := h.sessions.InvalidateAllForParty(c.Request().Context(), partyID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Refresh handles POST /api/v1/sessions/:sessionId/refresh.
func (h *SessionHandler) Refresh(c echo.Context) error {
	s, err := h.sessions.Refresh(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// Lock handles POST /api/v1/sessions/:sessionId/lock.
func (h *SessionHandler) Lock(c echo.Context) error {
	s, err := h.sessions.Lock(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// Valid handles GET /api/v1/sessions/:sessionId/valid.
func (h *SessionHandler) Valid(c echo.Context) error {
	id := c.Param("sessionId")
	return c.JSON(http.StatusOK, validityResponse{
		SessionID: id,
		Valid:     h.sessions.IsValid(c.Request().Context(), id),
	})
}
