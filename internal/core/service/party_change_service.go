package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

type partyChangeService struct {
	sessions ports.SessionStore
	log      zerolog.Logger
}

// NewPartyChangeService returns a PartyChangeProcessor that applies change
// events to the party's cached session.
func NewPartyChangeService(sessions ports.SessionStore, log zerolog.Logger) ports.PartyChangeProcessor {
	return &partyChangeService{sessions: sessions, log: log}
}

// Process refreshes or drops the party's session. A party without a cached
// session is skipped.
func (s *partyChangeService) Process(ctx context.Context, event ports.PartyChangeEvent) error {
	switch event.Kind {
	case ports.PartyChangeInvalidate:
		if err := s.sessions.InvalidateAllForParty(ctx, event.PartyID); err != nil {
			return fmt.Errorf("process party change: %w", err)
		}
	case ports.PartyChangeRefresh:
		session, err := s.sessions.GetByParty(ctx, event.PartyID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.log.Debug().Str("party_id", event.PartyID.String()).Msg("no cached session, change skipped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("process party change: %w", err)
		}
		if _, err := s.sessions.Refresh(ctx, session.SessionID); err != nil {
			return fmt.Errorf("process party change: %w", err)
		}
	default:
		return fmt.Errorf("process party change: unknown kind %q", event.Kind)
	}

	s.log.Info().
		Str("party_id", event.PartyID.String()).
		Str("kind", string(event.Kind)).
		Str("reason", event.Reason).
		Msg("party change applied")
	return nil
}
