package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/firefly/security-center/internal/core/ports"
)

const maxChangeBody = 1 << 20

// ChangeDispatcher is the interface the handler uses to enqueue change events.
type ChangeDispatcher interface {
	EnqueueBatch(ctx context.Context, events []ports.PartyChangeEvent) error
}

// PartyChangeHandler ingests change notifications from downstream services.
type PartyChangeHandler struct {
	dispatcher ChangeDispatcher
	onAccepted func(ports.PartyChangeKind)
}

// NewPartyChangeHandler creates a PartyChangeHandler backed by the given
// dispatcher. onAccepted, when set, is told about every accepted event.
func NewPartyChangeHandler(dispatcher ChangeDispatcher, onAccepted func(ports.PartyChangeKind)) *PartyChangeHandler {
	if onAccepted == nil {
		onAccepted = func(ports.PartyChangeKind) {}
	}
	return &PartyChangeHandler{dispatcher: dispatcher, onAccepted: onAccepted}
}

// Receive handles POST /api/v1/events/party-changes. The body is either one
// event or an array of events; the whole batch is validated before anything
// is enqueued. Returns 202.
func (h *PartyChangeHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxChangeBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	var reqs []partyChangeRequest
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &reqs)
	} else {
		var single partyChangeRequest
		err = json.Unmarshal(body, &single)
		reqs = []partyChangeRequest{single}
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if len(reqs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "batch cannot be empty")
	}

	events := make([]ports.PartyChangeEvent, 0, len(reqs))
	for i, req := range reqs {
		if err := c.Validate(&req); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("event[%d]: %s", i, err.Error()))
		}
		events = append(events, toChangeEvent(req))
	}

	if err := h.dispatcher.EnqueueBatch(c.Request().Context(), events); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "change queue unavailable")
	}
	for _, e := range events {
		h.onAccepted(e.Kind)
	}

	msg := "event accepted"
	if len(events) > 1 {
		msg = "events accepted"
	}
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: msg, Count: len(events)})
}

// toChangeEvent maps the HTTP request to the port type. The party id was
// validated already.
func toChangeEvent(r partyChangeRequest) ports.PartyChangeEvent {
	return ports.PartyChangeEvent{
		PartyID: uuid.MustParse(r.PartyID),
		Kind:    ports.PartyChangeKind(r.Kind),
		Reason:  r.Reason,
	}
}
