package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/firefly/security-center/internal/core/domain"
)

// Context keys set by Auth.
const (
	KeyTokenStatus = "token_status"
	KeyAccessToken = "access_token"
	KeySubject     = "subject"
)

// TokenIntrospector is the part of the identity provider Auth needs.
type TokenIntrospector interface {
	Introspect(ctx context.Context, accessToken string) (domain.TokenStatus, error)
}

// Auth requires a bearer token the active provider reports as active and
// injects its status into context. Provider failures propagate to the error
// handler so they surface as 503, not 401.
func Auth(introspector TokenIntrospector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request())
			if err != nil {
				return err
			}

			status, err := introspector.Introspect(c.Request().Context(), token)
			if err != nil {
				return err
			}
			if !status.Active {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(KeyTokenStatus, status)
			c.Set(KeyAccessToken, token)
			c.Set(KeySubject, status.Subject)

			return next(c)
		}
	}
}

// TokenStatus returns the status injected by Auth.
func TokenStatus(c echo.Context) (domain.TokenStatus, bool) {
	status, ok := c.Get(KeyTokenStatus).(domain.TokenStatus)
	return status, ok
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
