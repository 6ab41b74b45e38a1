package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/firefly/security-center/internal/core/domain"
)

const defaultSessionTimeout = 30 * time.Minute

// ulidSource hands out monotonic ULIDs; safe for concurrent use.
type ulidSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newULIDSource() *ulidSource {
	return &ulidSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *ulidSource) NewAt(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// SessionAggregator builds a SessionContext from the profile and relationship
// resolvers. Resolver degradation never fails aggregation; only a cancelled
// caller does.
type SessionAggregator struct {
	profiles  *ProfileResolver
	relations *RelationshipResolver
	ttl       time.Duration
	now       func() time.Time
	newID     func(time.Time) string
	onBuilt   func(time.Duration)
	log       zerolog.Logger
}

// AggregatorOption configures a SessionAggregator.
type AggregatorOption func(*SessionAggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *SessionAggregator) { a.now = now }
}

// WithSessionIDs replaces the ULID session id generator.
func WithSessionIDs(next func(time.Time) string) AggregatorOption {
	return func(a *SessionAggregator) { a.newID = next }
}

// WithAggregationHook receives the wall time of every completed aggregation.
func WithAggregationHook(fn func(time.Duration)) AggregatorOption {
	return func(a *SessionAggregator) { a.onBuilt = fn }
}

func NewSessionAggregator(profiles *ProfileResolver, relations *RelationshipResolver, ttl time.Duration, log zerolog.Logger, opts ...AggregatorOption) *SessionAggregator {
	if ttl <= 0 {
		ttl = defaultSessionTimeout
	}
	a := &SessionAggregator{
		profiles:  profiles,
		relations: relations,
		ttl:       ttl,
		now:       time.Now,
		newID:     newULIDSource().NewAt,
		onBuilt:   func(time.Duration) {},
		log:       log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *SessionAggregator) Aggregate(ctx context.Context, partyID domain.PartyID, client domain.ClientMetadata) (*domain.SessionContext, error) {
	started := time.Now()

	var (
		profile   Resolved[domain.CustomerProfile]
		contracts Resolved[[]domain.ContractBinding]
	)
	var g errgroup.Group
	g.Go(func() error {
		profile = a.profiles.Resolve(ctx, partyID)
		return nil
	})
	g.Go(func() error {
		contracts = a.relations.Resolve(ctx, partyID)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregate session: %w", err)
	}

	now := a.now().UTC()
	session := &domain.SessionContext{
		SessionID:      a.newID(now),
		PartyID:        partyID,
		Customer:       profile.Value,
		Contracts:      contracts.Value,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(a.ttl),
		Client:         client,
		Status:         domain.SessionActive,
	}

	a.onBuilt(time.Since(started))
	a.log.Debug().
		Str("party_id", partyID.String()).
		Str("session_id", session.SessionID).
		Int("contracts", len(session.Contracts)).
		Bool("profile_degraded", profile.Degraded()).
		Bool("contracts_degraded", contracts.Degraded()).
		Msg("session aggregated")
	return session, nil
}
