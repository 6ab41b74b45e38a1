package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionHeader carries the session id on routes guarded by RequirePermission.
const SessionHeader = "X-Session-Id"

// PermissionChecker is the part of the authorization service RequirePermission
// needs.
type PermissionChecker interface {
	SessionHasPermission(ctx context.Context, sessionID string, productID uuid.UUID, action, resource string) (bool, error)
}

// RequirePermission lets the request through only when the session named by
// the X-Session-Id header holds a scope granting action on resource for the
// product in the productParam path parameter.
func RequirePermission(checker PermissionChecker, productParam, action, resource string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionID := c.Request().Header.Get(SessionHeader)
			if sessionID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session header")
			}

			productID, err := uuid.Parse(c.Param(productParam))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
			}

			ok, err := checker.SessionHasPermission(c.Request().Context(), sessionID, productID, action, resource)
			if err != nil {
				return err
			}
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
