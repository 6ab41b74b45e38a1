package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles POST /api/v1/auth/login: authenticates with the active
// provider and opens (or reuses) the party's session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.authService.Login(c.Request().Context(), ports.LoginRequest{
		Credentials: domain.Credentials{Username: req.Username, Password: req.Password, Scope: req.Scope},
		Client:      clientMetadata(c, req.Channel),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuthResponse(res))
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.AccessToken == "" && req.RefreshToken == "" && req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to log out")
	}

	err := h.authService.Logout(c.Request().Context(), ports.LogoutRequest{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		SessionID:    req.SessionID,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuthResponse(res))
}

// Introspect handles GET /api/v1/auth/introspect?accessToken=.
func (h *AuthHandler) Introspect(c echo.Context) error {
	status, err := h.authService.Introspect(c.Request().Context(), c.QueryParam("accessToken"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}
