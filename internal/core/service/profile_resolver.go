package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const resolverProfile = "profile"

// ProfileResolver fetches the customer profile of a party. It never fails;
// an unreachable directory yields an inactive placeholder.
type ProfileResolver struct {
	customers ports.CustomerDirectory
	timeout   time.Duration
	observer  ports.EnrichmentObserver
	log       zerolog.Logger
}

func NewProfileResolver(customers ports.CustomerDirectory, timeout time.Duration, observer ports.EnrichmentObserver, log zerolog.Logger) *ProfileResolver {
	return &ProfileResolver{
		customers: customers,
		timeout:   timeout,
		observer:  observerOrNop(observer),
		log:       log,
	}
}

func (r *ProfileResolver) Resolve(ctx context.Context, partyID domain.PartyID) Resolved[domain.CustomerProfile] {
	profile, reason := fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) (domain.CustomerProfile, error) {
		return r.customers.GetParty(ctx, partyID)
	})
	if reason == ports.FallbackNone {
		return Resolved[domain.CustomerProfile]{Value: profile}
	}

	r.observer.RecordFallback(resolverProfile, reason)
	r.log.Warn().
		Str("party_id", partyID.String()).
		Str("reason", string(reason)).
		Msg("customer profile unavailable, using placeholder")
	return Resolved[domain.CustomerProfile]{Value: domain.PlaceholderProfile(partyID), Fallback: reason}
}
