package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const defaultIDPTimeout = 10 * time.Second

// Outcome labels passed to the outcome hook.
const (
	OutcomeSuccess          = "success"
	OutcomeRejected         = "rejected"
	OutcomeUnavailable      = "unavailable"
	OutcomePartyNotResolved = "party_not_resolved"
	OutcomeError            = "error"
)

// AuthService orchestrates login, logout, refresh and introspection across the
// active identity provider, the identity mapper and the session store.
type AuthService struct {
	provider   ports.IdentityProvider
	mapper     ports.IdentityMapper
	sessions   ports.SessionStore
	idpTimeout time.Duration
	onOutcome  func(op, outcome string)
	log        zerolog.Logger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithOutcomeHook receives the outcome of every operation.
func WithOutcomeHook(fn func(op, outcome string)) AuthOption {
	return func(s *AuthService) { s.onOutcome = fn }
}

func NewAuthService(
	provider ports.IdentityProvider,
	mapper ports.IdentityMapper,
	sessions ports.SessionStore,
	idpTimeout time.Duration,
	log zerolog.Logger,
	opts ...AuthOption,
) *AuthService {
	if idpTimeout <= 0 {
		idpTimeout = defaultIDPTimeout
	}
	s := &AuthService{
		provider:   provider,
		mapper:     mapper,
		sessions:   sessions,
		idpTimeout: idpTimeout,
		onOutcome:  func(string, string) {},
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates, maps the identity to a party and opens (or reuses) the
// party's session. No session is created when any earlier stage fails.
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.LoginResult, error) {
	creds := req.Credentials
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return nil, s.fail("login", domain.ClassifyProviderError("login", domain.ErrInvalidCredentials))
	}

	idpCtx, cancel := context.WithTimeout(ctx, s.idpTimeout)
	defer cancel()

	tokens, err := s.provider.Authenticate(idpCtx, creds)
	if err != nil {
		s.log.Warn().Err(err).Str("username", creds.Username).Str("provider", s.provider.Name()).Msg("authentication failed")
		return nil, s.fail("login", domain.ClassifyProviderError("authenticate", err))
	}

	mapping, err := s.resolveParty(ctx, idpCtx, tokens.AccessToken, creds.Username)
	if err != nil {
		return nil, s.fail("login", err)
	}

	session, err := s.sessions.CreateOrGet(ctx, mapping.PartyID, req.Client)
	if err != nil {
		return nil, s.fail("login", fmt.Errorf("login: %w", err))
	}

	s.onOutcome("login", OutcomeSuccess)
	s.log.Info().
		Str("party_id", mapping.PartyID.String()).
		Str("session_id", session.SessionID).
		Str("mapping", string(mapping.Source)).
		Str("channel", req.Client.Channel).
		Msg("login succeeded")

	return &ports.LoginResult{
		Tokens:          tokens,
		SessionID:       session.SessionID,
		PartyID:         mapping.PartyID,
		DirectoryBacked: mapping.DirectoryBacked,
	}, nil
}

// Logout revokes the tokens at the provider and invalidates the session. Both
// are always attempted; their errors are joined.
func (s *AuthService) Logout(ctx context.Context, req ports.LogoutRequest) error {
	var providerErr, sessionErr error

	var g errgroup.Group
	g.Go(func() error {
		if req.AccessToken == "" && req.RefreshToken == "" {
			return nil
		}
		idpCtx, cancel := context.WithTimeout(ctx, s.idpTimeout)
		defer cancel()
		if err := s.provider.Logout(idpCtx, domain.TokenSet{AccessToken: req.AccessToken, RefreshToken: req.RefreshToken}); err != nil {
			providerErr = domain.ClassifyProviderError("provider logout", err)
		}
		return nil
	})
	g.Go(func() error {
		if req.SessionID == "" {
			return nil
		}
		if err := s.sessions.Invalidate(ctx, req.SessionID); err != nil {
			sessionErr = fmt.Errorf("invalidate session: %w", err)
		}
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(providerErr, sessionErr); err != nil {
		s.log.Warn().Err(err).Str("session_id", req.SessionID).Msg("logout incomplete")
		return s.fail("logout", err)
	}
	s.onOutcome("logout", OutcomeSuccess)
	s.log.Info().Str("session_id", req.SessionID).Msg("logout succeeded")
	return nil
}

// Refresh exchanges the refresh token and returns the party's session,
// creating one when none is cached.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.LoginResult, error) {
	if refreshToken == "" {
		return nil, s.fail("refresh", domain.ClassifyProviderError("refresh", domain.ErrInvalidCredentials))
	}

	idpCtx, cancel := context.WithTimeout(ctx, s.idpTimeout)
	defer cancel()

	tokens, err := s.provider.Refresh(idpCtx, refreshToken)
	if err != nil {
		return nil, s.fail("refresh", domain.ClassifyProviderError("refresh", err))
	}

	mapping, err := s.resolveParty(ctx, idpCtx, tokens.AccessToken, "")
	if err != nil {
		return nil, s.fail("refresh", err)
	}

	session, err := s.sessions.GetByParty(ctx, mapping.PartyID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		session, err = s.sessions.CreateOrGet(ctx, mapping.PartyID, domain.ClientMetadata{})
	}
	if err != nil {
		return nil, s.fail("refresh", fmt.Errorf("refresh: %w", err))
	}

	s.onOutcome("refresh", OutcomeSuccess)
	return &ports.LoginResult{
		Tokens:          tokens,
		SessionID:       session.SessionID,
		PartyID:         mapping.PartyID,
		DirectoryBacked: mapping.DirectoryBacked,
	}, nil
}

// Introspect asks the provider about an access token.
func (s *AuthService) Introspect(ctx context.Context, accessToken string) (domain.TokenStatus, error) {
	if accessToken == "" {
		return domain.TokenStatus{Active: false}, nil
	}
	idpCtx, cancel := context.WithTimeout(ctx, s.idpTimeout)
	defer cancel()

	status, err := s.provider.Introspect(idpCtx, accessToken)
	if err != nil {
		return domain.TokenStatus{}, s.fail("introspect", domain.ClassifyProviderError("introspect", err))
	}
	return status, nil
}

// resolveParty fetches the identity behind accessToken and maps it. Provider
// and mapper calls share idpCtx; hitting its deadline is a hard failure.
func (s *AuthService) resolveParty(ctx, idpCtx context.Context, accessToken, usernameHint string) (domain.PartyMapping, error) {
	identity, err := s.provider.GetIdentity(idpCtx, accessToken)
	if err != nil {
		return domain.PartyMapping{}, domain.ClassifyProviderError("get identity", err)
	}
	identity = identity.WithUsernameHint(usernameHint)

	mapping, err := s.mapper.MapToParty(idpCtx, identity)
	switch {
	case err == nil:
		return mapping, nil
	case ctx.Err() != nil:
		return domain.PartyMapping{}, fmt.Errorf("map identity: %w", ctx.Err())
	case errors.Is(err, domain.ErrPartyNotResolved):
		return domain.PartyMapping{}, fmt.Errorf("map identity: %w: %w", domain.ErrAuthenticationFailed, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.PartyMapping{}, &domain.ProviderError{Op: "map identity", Kind: domain.ErrProviderUnavailable, Err: err}
	default:
		return domain.PartyMapping{}, fmt.Errorf("map identity: %w", err)
	}
}

func (s *AuthService) fail(op string, err error) error {
	s.onOutcome(op, outcomeOf(err))
	return err
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrPartyNotResolved):
		return OutcomePartyNotResolved
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return OutcomeRejected
	case errors.Is(err, domain.ErrProviderUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
