package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/firefly/security-center/internal/core/domain"
)

// ChannelHeader names the channel a client logs in from (web, mobile, ...).
const ChannelHeader = "X-Channel"

// clientMetadata captures where the request came from. An explicit channel in
// the body wins over the header.
func clientMetadata(c echo.Context, channel string) domain.ClientMetadata {
	if channel == "" {
		channel = c.Request().Header.Get(ChannelHeader)
	}
	return domain.ClientMetadata{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Channel:   strings.TrimSpace(channel),
	}
}

// uuidParam parses a path parameter as a UUID and fails fast with 400.
func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
