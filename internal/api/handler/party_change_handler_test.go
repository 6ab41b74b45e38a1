package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/firefly/security-center/internal/core/ports"
)

type stubDispatcher struct {
	events []ports.PartyChangeEvent
	err    error
}

func (s *stubDispatcher) EnqueueBatch(_ context.Context, events []ports.PartyChangeEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func TestPartyChangeHandler_Single(t *testing.T) {
	dispatcher := &stubDispatcher{}
	var kinds []ports.PartyChangeKind
	handler := NewPartyChangeHandler(dispatcher, func(k ports.PartyChangeKind) { kinds = append(kinds, k) })

	body := `{"partyId":"` + testParty.String() + `","kind":"invalidate","reason":"contract closed"}`
	c, rec := newTestContext(http.MethodPost, "/api/v1/events/party-changes", strings.NewReader(body))
	if err := handler.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].PartyID != testParty || dispatcher.events[0].Kind != ports.PartyChangeInvalidate {
		t.Fatalf("unexpected events: %+v", dispatcher.events)
	}
	if len(kinds) != 1 || kinds[0] != ports.PartyChangeInvalidate {
		t.Fatalf("expected accepted hook to run once, got %v", kinds)
	}
}

func TestPartyChangeHandler_Batch(t *testing.T) {
	dispatcher := &stubDispatcher{}
	handler := NewPartyChangeHandler(dispatcher, nil)

	p := testParty.String()
	body := `[{"partyId":"` + p + `","kind":"refresh"},{"partyId":"` + p + `","kind":"invalidate"}]`
	c, rec := newTestContext(http.MethodPost, "/", strings.NewReader(body))
	if err := handler.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted || len(dispatcher.events) != 2 {
		t.Fatalf("expected 2 accepted events, got %d / %d", rec.Code, len(dispatcher.events))
	}
	if dispatcher.events[0].Kind != ports.PartyChangeRefresh || dispatcher.events[1].Kind != ports.PartyChangeInvalidate {
		t.Fatalf("batch order not preserved: %+v", dispatcher.events)
	}
}

func TestPartyChangeHandler_Rejects(t *testing.T) {
	cases := map[string]struct {
		body string
		code int
	}{
		"not json":      {`nope`, http.StatusBadRequest},
		"empty batch":   {`[]`, http.StatusBadRequest},
		"bad party id":  {`{"partyId":"x","kind":"refresh"}`, http.StatusUnprocessableEntity},
		"unknown kind":  {`{"partyId":"` + testParty.String() + `","kind":"merge"}`, http.StatusUnprocessableEntity},
		"one bad event": {`[{"partyId":"` + testParty.String() + `","kind":"refresh"},{"kind":"refresh"}]`, http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dispatcher := &stubDispatcher{}
			c, _ := newTestContext(http.MethodPost, "/", strings.NewReader(tc.body))
			if code := httpCode(t, NewPartyChangeHandler(dispatcher, nil).Receive(c)); code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, code)
			}
			if len(dispatcher.events) != 0 {
				t.Fatalf("nothing should be enqueued, got %+v", dispatcher.events)
			}
		})
	}
}

func TestPartyChangeHandler_QueueUnavailable(t *testing.T) {
	handler := NewPartyChangeHandler(&stubDispatcher{err: errors.New("shutting down")}, nil)

	c, _ := newTestContext(http.MethodPost, "/", strings.NewReader(`{"partyId":"`+testParty.String()+`","kind":"refresh"}`))
	if code := httpCode(t, handler.Receive(c)); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}
