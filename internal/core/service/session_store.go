package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const (
	sessionIDPrefix    = "session:id:"
	sessionPartyPrefix = "session:party:"

	defaultCacheTimeout = time.Second
)

// SessionPolicy controls session lifetime.
type SessionPolicy struct {
	Timeout time.Duration
	// Sliding extends expiry on every successful lookup, never beyond
	// CreatedAt + MaxTTL.
	Sliding      bool
	MaxTTL       time.Duration
	CacheTimeout time.Duration
}

func (p SessionPolicy) withDefaults() SessionPolicy {
	if p.Timeout <= 0 {
		p.Timeout = defaultSessionTimeout
	}
	if p.MaxTTL < p.Timeout {
		p.MaxTTL = p.Timeout
	}
	if p.CacheTimeout <= 0 {
		p.CacheTimeout = defaultCacheTimeout
	}
	return p
}

// SessionStore keeps sessions in a SessionCache under two keys: the session
// id and the party id. Both entries hold a full copy and every write replaces
// them wholesale.
type SessionStore struct {
	cache      ports.SessionCache
	aggregator ports.SessionAggregator
	policy     SessionPolicy
	now        func() time.Time
	onLookup   func(hit bool)
	log        zerolog.Logger
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithStoreClock replaces time.Now.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

// WithLookupHook receives the outcome of every cache lookup.
func WithLookupHook(fn func(hit bool)) StoreOption {
	return func(s *SessionStore) { s.onLookup = fn }
}

func NewSessionStore(cache ports.SessionCache, aggregator ports.SessionAggregator, policy SessionPolicy, log zerolog.Logger, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		cache:      cache,
		aggregator: aggregator,
		policy:     policy.withDefaults(),
		now:        time.Now,
		onLookup:   func(bool) {},
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(sessionID string) string {
	return sessionIDPrefix + sessionID
}

func partyKey(partyID domain.PartyID) string {
	return sessionPartyPrefix + partyID.String()
}

// CreateOrGet returns the party's current session or aggregates a new one.
func (s *SessionStore) CreateOrGet(ctx context.Context, partyID domain.PartyID, client domain.ClientMetadata) (*domain.SessionContext, error) {
	existing, err := s.lookup(ctx, partyKey(partyID))
	switch {
	case err == nil:
		return s.touch(ctx, existing), nil
	case errors.Is(err, domain.ErrSessionNotFound):
	default:
		s.log.Warn().Err(err).Str("party_id", partyID.String()).Msg("session lookup failed, aggregating a new session")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session, err := s.aggregator.Aggregate(ctx, partyID, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.ExpiresAt = s.cappedExpiry(session.CreatedAt, session.CreatedAt)
	if err := s.store(ctx, session, true); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("party_id", partyID.String()).
		Str("session_id", session.SessionID).
		Msg("session created")
	return session, nil
}

func (s *SessionStore) GetByID(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	return s.lookup(ctx, sessionKey(sessionID))
}

func (s *SessionStore) GetByParty(ctx context.Context, partyID domain.PartyID) (*domain.SessionContext, error) {
	return s.lookup(ctx, partyKey(partyID))
}

// Invalidate removes the session. Unknown ids are not an error.
func (s *SessionStore) Invalidate(ctx context.Context, sessionID string) error {
	session, err := s.read(ctx, sessionKey(sessionID))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}

	errs := []error{s.evict(ctx, sessionKey(sessionID))}
	current, err := s.read(ctx, partyKey(session.PartyID))
	switch {
	case err == nil:
		if current.SessionID == sessionID {
			errs = append(errs, s.evict(ctx, partyKey(session.PartyID)))
		}
	case !errors.Is(err, domain.ErrSessionNotFound):
		// The party index may still name this session.
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}

	s.log.Info().Str("session_id", sessionID).Str("party_id", session.PartyID.String()).Msg("session invalidated")
	return nil
}

// InvalidateAllForParty removes the party's session and everything indexed
// under the party.
func (s *SessionStore) InvalidateAllForParty(ctx context.Context, partyID domain.PartyID) error {
	var errs []error
	if session, err := s.read(ctx, partyKey(partyID)); err == nil {
		errs = append(errs, s.evict(ctx, sessionKey(session.SessionID)))
	} else if !errors.Is(err, domain.ErrSessionNotFound) {
		errs = append(errs, err)
	}
	errs = append(errs, s.evict(ctx, partyKey(partyID)))

	prefixCtx, cancel := context.WithTimeout(ctx, s.policy.CacheTimeout)
	errs = append(errs, s.cache.EvictPrefix(prefixCtx, partyKey(partyID)))
	cancel()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalidate party sessions: %w", err)
	}
	s.log.Info().Str("party_id", partyID.String()).Msg("party sessions invalidated")
	return nil
}

// Refresh rebuilds the session content from the directories, keeping the
// session id, party id and creation time, so MaxTTL still bounds a session
// that is refreshed repeatedly. A locked session stays locked.
func (s *SessionStore) Refresh(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	current, err := s.lookup(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if err := errors.Join(s.evict(ctx, sessionKey(sessionID)), s.evict(ctx, partyKey(current.PartyID))); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("evict before refresh failed")
	}

	fresh, err := s.aggregator.Aggregate(ctx, current.PartyID, current.Client)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	now := s.now().UTC()
	rebuilt := fresh.WithSessionID(sessionID).WithAccess(now, s.cappedExpiry(current.CreatedAt, now))
	rebuilt.PartyID = current.PartyID
	rebuilt.CreatedAt = current.CreatedAt
	if current.Status == domain.SessionLocked {
		rebuilt.Status = domain.SessionLocked
	}
	if err := s.store(ctx, &rebuilt, true); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	s.log.Info().Str("session_id", sessionID).Str("party_id", rebuilt.PartyID.String()).Msg("session refreshed")
	return &rebuilt, nil
}

// Lock moves an active session to LOCKED. A locked session stays readable but
// no longer authorizes anything.
func (s *SessionStore) Lock(ctx context.Context, sessionID string) (*domain.SessionContext, error) {
	current, err := s.lookup(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	locked, err := current.WithStatus(domain.SessionLocked)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w (from %s)", err, current.Status)
	}

	if err := s.store(ctx, &locked, s.indexed(ctx, &locked)); err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}

	s.log.Info().Str("session_id", sessionID).Msg("session locked")
	return &locked, nil
}

// IsValid reports whether the session exists, is ACTIVE and not expired.
func (s *SessionStore) IsValid(ctx context.Context, sessionID string) bool {
	session, err := s.lookup(ctx, sessionKey(sessionID))
	if err != nil {
		return false
	}
	return session.IsValidAt(s.now())
}

// lookup reads a session for a caller. Expired entries are evicted; with
// sliding expiration an active session is touched and written back.
func (s *SessionStore) lookup(ctx context.Context, key string) (*domain.SessionContext, error) {
	session, err := s.read(ctx, key)
	if err != nil {
		s.onLookup(false)
		return nil, err
	}

	now := s.now().UTC()
	if !now.Before(session.ExpiresAt) {
		s.onLookup(false)
		_ = s.evict(ctx, key)
		_ = s.evict(ctx, sessionKey(session.SessionID))
		return nil, domain.ErrSessionNotFound
	}
	if session.Status.IsTerminal() {
		s.onLookup(false)
		return nil, domain.ErrSessionNotFound
	}
	s.onLookup(true)

	if s.sliding(session) {
		touched := session.WithAccess(now, s.cappedExpiry(session.CreatedAt, now))
		indexParty := key == partyKey(session.PartyID) || s.indexed(ctx, session)
		if err := s.store(ctx, &touched, indexParty); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.SessionID).Msg("sliding expiry write failed")
			return session, nil
		}
		return &touched, nil
	}
	return session, nil
}

// touch records an access on a session found through the party index. With
// sliding expiration lookup has already done so; otherwise only
// LastAccessedAt moves.
func (s *SessionStore) touch(ctx context.Context, session *domain.SessionContext) *domain.SessionContext {
	if s.sliding(session) {
		return session
	}
	touched := session.WithAccess(s.now().UTC(), session.ExpiresAt)
	if err := s.store(ctx, &touched, true); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.SessionID).Msg("last access write failed")
		return session
	}
	return &touched
}

func (s *SessionStore) sliding(session *domain.SessionContext) bool {
	return s.policy.Sliding && session.Status == domain.SessionActive
}

// indexed reports whether the party index currently names this session.
func (s *SessionStore) indexed(ctx context.Context, session *domain.SessionContext) bool {
	byParty, err := s.read(ctx, partyKey(session.PartyID))
	return err == nil && byParty.SessionID == session.SessionID
}

// cappedExpiry is from + timeout, bounded by createdAt + MaxTTL.
func (s *SessionStore) cappedExpiry(createdAt, from time.Time) time.Time {
	expiry := from.Add(s.policy.Timeout)
	if limit := createdAt.Add(s.policy.MaxTTL); expiry.After(limit) {
		return limit
	}
	return expiry
}

func (s *SessionStore) read(ctx context.Context, key string) (*domain.SessionContext, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.policy.CacheTimeout)
	defer cancel()

	raw, err := s.cache.Get(callCtx, key)
	if errors.Is(err, ports.ErrCacheMiss) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session cache get: %w", err)
	}

	var session domain.SessionContext
	if err := json.Unmarshal(raw, &session); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("corrupt session entry, evicting")
		_ = s.evict(ctx, key)
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionStore) store(ctx context.Context, session *domain.SessionContext, indexParty bool) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return domain.ErrSessionNotFound
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	keys := []string{sessionKey(session.SessionID)}
	if indexParty {
		keys = append(keys, partyKey(session.PartyID))
	}
	for _, key := range keys {
		callCtx, cancel := context.WithTimeout(ctx, s.policy.CacheTimeout)
		err := s.cache.Put(callCtx, key, raw, ttl)
		cancel()
		if err != nil {
			return fmt.Errorf("session cache put: %w", err)
		}
	}
	return nil
}

func (s *SessionStore) evict(ctx context.Context, key string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.policy.CacheTimeout)
	defer cancel()
	if err := s.cache.Evict(callCtx, key); err != nil {
		return fmt.Errorf("session cache evict: %w", err)
	}
	return nil
}
