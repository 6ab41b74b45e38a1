package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const (
	defaultLookupTimeout  = 2 * time.Second
	fallbackSubjectPrefix = "idp-user-"
)

// partyNamespace scopes deterministic party ids. Changing it re-keys every
// party that was never linked in a directory.
var partyNamespace = uuid.MustParse("6f1c3a52-8a7e-5b0e-9d4c-2f9e0c1b7a13")

// DeterministicPartyID derives the fallback party id of an external subject.
func DeterministicPartyID(subject string) domain.PartyID {
	return uuid.NewSHA1(partyNamespace, []byte(fallbackSubjectPrefix+subject))
}

// IdentityMapper resolves external identities with a fixed strategy chain:
// email in the party directory, then username and subject in the identity
// link store, then (when enabled) a deterministic id derived from the subject.
type IdentityMapper struct {
	parties         ports.PartyDirectory
	links           ports.IdentityLinkStore
	lookupTimeout   time.Duration
	fallbackEnabled bool
	log             zerolog.Logger
	onMapped        func(domain.MappingSource)
}

// MapperOption configures an IdentityMapper.
type MapperOption func(*IdentityMapper)

// WithFallback toggles the deterministic fallback strategy.
func WithFallback(enabled bool) MapperOption {
	return func(m *IdentityMapper) { m.fallbackEnabled = enabled }
}

// WithLookupTimeout bounds each directory lookup.
func WithLookupTimeout(d time.Duration) MapperOption {
	return func(m *IdentityMapper) {
		if d > 0 {
			m.lookupTimeout = d
		}
	}
}

// WithMappingHook is called with the source of every successful mapping.
func WithMappingHook(fn func(domain.MappingSource)) MapperOption {
	return func(m *IdentityMapper) { m.onMapped = fn }
}

func NewIdentityMapper(parties ports.PartyDirectory, links ports.IdentityLinkStore, log zerolog.Logger, opts ...MapperOption) *IdentityMapper {
	m := &IdentityMapper{
		parties:         parties,
		links:           links,
		lookupTimeout:   defaultLookupTimeout,
		fallbackEnabled: true,
		log:             log,
		onMapped:        func(domain.MappingSource) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type lookupStep struct {
	source domain.MappingSource
	key    string
	find   func(context.Context, string) (domain.PartyID, error)
}

func (m *IdentityMapper) MapToParty(ctx context.Context, identity domain.ExternalIdentity) (domain.PartyMapping, error) {
	var steps []lookupStep
	if m.parties != nil {
		steps = append(steps, lookupStep{domain.MappingByEmail, normalizeEmail(identity.Email), m.parties.FindPartyByEmail})
	}
	if m.links != nil {
		steps = append(steps,
			lookupStep{domain.MappingByUsername, strings.TrimSpace(identity.PreferredUsername), m.links.FindByUsername},
			lookupStep{domain.MappingBySubject, identity.Subject, m.links.FindBySubject},
		)
	}

	for _, step := range steps {
		if step.key == "" {
			continue
		}
		partyID, err := m.lookup(ctx, step)
		if err == nil {
			m.onMapped(step.source)
			return domain.PartyMapping{PartyID: partyID, Source: step.source, DirectoryBacked: true}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.PartyMapping{}, fmt.Errorf("map to party: %w", ctxErr)
		}
		if !errors.Is(err, domain.ErrPartyNotFound) {
			m.log.Warn().Err(err).
				Str("strategy", string(step.source)).
				Str("subject", identity.Subject).
				Msg("party lookup failed, trying next strategy")
		}
	}

	if m.fallbackEnabled && identity.Subject != "" {
		partyID := DeterministicPartyID(identity.Subject)
		m.log.Warn().
			Str("subject", identity.Subject).
			Str("party_id", partyID.String()).
			Str("trust", "reduced").
			Msg("no directory record for identity, using deterministic party id")
		m.onMapped(domain.MappingDeterministic)
		return domain.PartyMapping{PartyID: partyID, Source: domain.MappingDeterministic}, nil
	}

	m.log.Error().
		Str("event", "party_not_resolved").
		Str("subject", identity.Subject).
		Msg("identity could not be mapped to a party")
	return domain.PartyMapping{}, domain.ErrPartyNotResolved
}

func (m *IdentityMapper) lookup(ctx context.Context, step lookupStep) (domain.PartyID, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()

	partyID, err := step.find(lookupCtx, step.key)
	if err != nil {
		return uuid.Nil, err
	}
	if partyID == uuid.Nil {
		return uuid.Nil, domain.ErrPartyNotFound
	}
	return partyID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
