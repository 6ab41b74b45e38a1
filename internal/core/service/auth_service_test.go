package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

type stubProvider struct {
	mu          sync.Mutex
	authErr     error
	refreshErr  error
	logoutErr   error
	identityErr error
	identity    domain.ExternalIdentity
	logouts     []domain.TokenSet
	authDelay   time.Duration
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Authenticate(ctx context.Context, creds domain.Credentials) (domain.TokenSet, error) {
	if err := wait(ctx, p.authDelay); err != nil {
		return domain.TokenSet{}, err
	}
	if p.authErr != nil {
		return domain.TokenSet{}, p.authErr
	}
	return domain.TokenSet{AccessToken: "at-" + creds.Username, RefreshToken: "rt", TokenType: "Bearer", ExpiresIn: 300}, nil
}

func (p *stubProvider) Refresh(_ context.Context, refreshToken string) (domain.TokenSet, error) {
	if p.refreshErr != nil {
		return domain.TokenSet{}, p.refreshErr
	}
	return domain.TokenSet{AccessToken: "at-refreshed", RefreshToken: refreshToken, TokenType: "Bearer"}, nil
}

func (p *stubProvider) Logout(_ context.Context, tokens domain.TokenSet) error {
	p.mu.Lock()
	p.logouts = append(p.logouts, tokens)
	p.mu.Unlock()
	return p.logoutErr
}

func (p *stubProvider) Introspect(_ context.Context, accessToken string) (domain.TokenStatus, error) {
	if p.authErr != nil {
		return domain.TokenStatus{}, p.authErr
	}
	return domain.TokenStatus{Active: accessToken == "good", Subject: "sub-1"}, nil
}

func (p *stubProvider) GetIdentity(_ context.Context, _ string) (domain.ExternalIdentity, error) {
	if p.identityErr != nil {
		return domain.ExternalIdentity{}, p.identityErr
	}
	return p.identity, nil
}

type stubMapper struct {
	mapping domain.PartyMapping
	err     error
	seen    []domain.ExternalIdentity
}

func (m *stubMapper) MapToParty(_ context.Context, identity domain.ExternalIdentity) (domain.PartyMapping, error) {
	m.seen = append(m.seen, identity)
	return m.mapping, m.err
}

type stubSessionStore struct {
	mu            sync.Mutex
	session       *domain.SessionContext
	created       int
	invalidated   []string
	invalidateErr error
	byPartyErr    error
}

func (s *stubSessionStore) CreateOrGet(_ context.Context, partyID domain.PartyID, client domain.ClientMetadata) (*domain.SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	s.session = &domain.SessionContext{SessionID: "sess-1", PartyID: partyID, Client: client, Status: domain.SessionActive}
	return s.session, nil
}

func (s *stubSessionStore) GetByID(_ context.Context, _ string) (*domain.SessionContext, error) {
	if s.session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return s.session, nil
}

func (s *stubSessionStore) GetByParty(_ context.Context, _ domain.PartyID) (*domain.SessionContext, error) {
	if s.byPartyErr != nil {
		return nil, s.byPartyErr
	}
	if s.session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return s.session, nil
}

func (s *stubSessionStore) Invalidate(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, sessionID)
	return s.invalidateErr
}

func (s *stubSessionStore) InvalidateAllForParty(_ context.Context, _ domain.PartyID) error {
	return nil
}

func (s *stubSessionStore) Refresh(_ context.Context, _ string) (*domain.SessionContext, error) {
	return s.session, nil
}

func (s *stubSessionStore) Lock(_ context.Context, _ string) (*domain.SessionContext, error) {
	return s.session, nil
}

func (s *stubSessionStore) IsValid(_ context.Context, _ string) bool {
	return s.session != nil
}

type authHarness struct {
	provider *stubProvider
	mapper   *stubMapper
	sessions *stubSessionStore
	outcomes []string
	svc      *AuthService
}

func newAuthHarness() *authHarness {
	h := &authHarness{
		provider: &stubProvider{identity: domain.ExternalIdentity{Subject: "sub-1", Email: "ada@example.com"}},
		mapper:   &stubMapper{mapping: domain.PartyMapping{PartyID: fixtureParty, Source: domain.MappingByEmail, DirectoryBacked: true}},
		sessions: &stubSessionStore{},
	}
	h.svc = NewAuthService(h.provider, h.mapper, h.sessions, time.Second, zerolog.Nop(),
		WithOutcomeHook(func(op, outcome string) { h.outcomes = append(h.outcomes, op+":"+outcome) }))
	return h
}

func loginRequest() ports.LoginRequest {
	return ports.LoginRequest{
		Credentials: domain.Credentials{Username: "ada", Password: "secret"},
		Client:      domain.ClientMetadata{IPAddress: "10.0.0.1", Channel: "web"},
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	h := newAuthHarness()

	res, err := h.svc.Login(context.Background(), loginRequest())
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if res.SessionID != "sess-1" || res.PartyID != fixtureParty || !res.DirectoryBacked {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Tokens.AccessToken != "at-ada" {
		t.Fatalf("tokens not passed through: %+v", res.Tokens)
	}
	if h.sessions.session.Client.Channel != "web" {
		t.Fatalf("client metadata not forwarded")
	}
	if h.mapper.seen[0].PreferredUsername != "ada" {
		t.Fatalf("expected username hint on identity, got %+v", h.mapper.seen[0])
	}
	if len(h.outcomes) != 1 || h.outcomes[0] != "login:success" {
		t.Fatalf("unexpected outcomes: %v", h.outcomes)
	}
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	h := newAuthHarness()
	h.provider.authErr = domain.ErrInvalidCredentials

	_, err := h.svc.Login(context.Background(), loginRequest())
	if !errors.Is(err, domain.ErrAuthenticationFailed) || !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected authentication failure carrying the cause, got %v", err)
	}
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Op != "authenticate" {
		t.Fatalf("expected ProviderError for authenticate, got %#v", err)
	}
	if h.sessions.created != 0 {
		t.Fatalf("no session may be created on failed authentication")
	}
	if h.outcomes[0] != "login:rejected" {
		t.Fatalf("unexpected outcomes: %v", h.outcomes)
	}
}

func TestAuthService_Login_EmptyCredentials(t *testing.T) {
	h := newAuthHarness()

	_, err := h.svc.Login(context.Background(), ports.LoginRequest{Credentials: domain.Credentials{Username: " ", Password: "x"}})
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestAuthService_Login_ProviderErrorsAreClassified(t *testing.T) {
	cases := []struct {
		name  string
		cause error
		want  error
	}{
		{"unavailable", domain.ErrProviderUnavailable, domain.ErrProviderUnavailable},
		{"malformed", domain.ErrMalformedResponse, domain.ErrProviderUnavailable},
		{"expired", domain.ErrTokenExpired, domain.ErrAuthenticationFailed},
		{"unknown", errors.New("tcp reset"), domain.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newAuthHarness()
			h.provider.authErr = tc.cause

			_, err := h.svc.Login(context.Background(), loginRequest())
			if !errors.Is(err, tc.want) || !errors.Is(err, tc.cause) {
				t.Fatalf("expected %v wrapping %v, got %v", tc.want, tc.cause, err)
			}
		})
	}
}

func TestAuthService_Login_ProviderTimeoutIsHardFailure(t *testing.T) {
	h := newAuthHarness()
	h.provider.authDelay = time.Second
	h.svc = NewAuthService(h.provider, h.mapper, h.sessions, 20*time.Millisecond, zerolog.Nop())

	_, err := h.svc.Login(context.Background(), loginRequest())
	if !errors.Is(err, domain.ErrProviderUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected provider unavailable after timeout, got %v", err)
	}
	if h.sessions.created != 0 {
		t.Fatalf("no session may be created after a timeout")
	}
}

func TestAuthService_Login_IdentityFailure(t *testing.T) {
	h := newAuthHarness()
	h.provider.identityErr = domain.ErrMalformedResponse

	_, err := h.svc.Login(context.Background(), loginRequest())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if h.sessions.created != 0 {
		t.Fatalf("no session may be created")
	}
}

func TestAuthService_Login_PartyNotResolved(t *testing.T) {
	h := newAuthHarness()
	h.mapper.err = domain.ErrPartyNotResolved

	_, err := h.svc.Login(context.Background(), loginRequest())
	if !errors.Is(err, domain.ErrAuthenticationFailed) || !errors.Is(err, domain.ErrPartyNotResolved) {
		t.Fatalf("expected authentication failure caused by unresolved party, got %v", err)
	}
	if h.outcomes[0] != "login:party_not_resolved" {
		t.Fatalf("unexpected outcomes: %v", h.outcomes)
	}
}

func TestAuthService_Logout_BothAttempted(t *testing.T) {
	h := newAuthHarness()
	h.provider.logoutErr = domain.ErrProviderUnavailable
	h.sessions.invalidateErr = errors.New("cache down")

	err := h.svc.Logout(context.Background(), ports.LogoutRequest{AccessToken: "at", RefreshToken: "rt", SessionID: "sess-1"})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !errors.Is(err, domain.ErrProviderUnavailable) || !errors.Is(err, h.sessions.invalidateErr) {
		t.Fatalf("expected both failures in error, got %v", err)
	}
	if len(h.provider.logouts) != 1 || len(h.sessions.invalidated) != 1 {
		t.Fatalf("both operations must be attempted: logouts=%d invalidated=%d", len(h.provider.logouts), len(h.sessions.invalidated))
	}
}

func TestAuthService_Logout_ProviderFailureStillInvalidates(t *testing.T) {
	h := newAuthHarness()
	h.provider.logoutErr = domain.ErrInvalidCredentials

	err := h.svc.Logout(context.Background(), ports.LogoutRequest{AccessToken: "at", SessionID: "sess-1"})
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("expected classified provider error, got %v", err)
	}
	if len(h.sessions.invalidated) != 1 || h.sessions.invalidated[0] != "sess-1" {
		t.Fatalf("session must be invalidated even when provider logout fails")
	}
}

func TestAuthService_Logout_Success(t *testing.T) {
	h := newAuthHarness()

	if err := h.svc.Logout(context.Background(), ports.LogoutRequest{AccessToken: "at", RefreshToken: "rt", SessionID: "sess-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.provider.logouts[0].RefreshToken != "rt" {
		t.Fatalf("refresh token not passed to provider: %+v", h.provider.logouts[0])
	}
}

func TestAuthService_Refresh_CreatesSessionWhenMissing(t *testing.T) {
	h := newAuthHarness()

	res, err := h.svc.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.sessions.created != 1 || res.SessionID != "sess-1" {
		t.Fatalf("expected a session to be created, got %+v (created=%d)", res, h.sessions.created)
	}
	if res.Tokens.AccessToken != "at-refreshed" {
		t.Fatalf("unexpected tokens: %+v", res.Tokens)
	}
}

func TestAuthService_Refresh_ReusesSession(t *testing.T) {
	h := newAuthHarness()
	h.sessions.session = &domain.SessionContext{SessionID: "existing", PartyID: fixtureParty, Status: domain.SessionActive}

	res, err := h.svc.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SessionID != "existing" || h.sessions.created != 0 {
		t.Fatalf("expected existing session, got %+v", res)
	}
}

func TestAuthService_Refresh_ExpiredToken(t *testing.T) {
	h := newAuthHarness()
	h.provider.refreshErr = domain.ErrTokenExpired

	_, err := h.svc.Refresh(context.Background(), "rt-1")
	if !errors.Is(err, domain.ErrAuthenticationFailed) || !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func TestAuthService_Introspect(t *testing.T) {
	h := newAuthHarness()

	status, err := h.svc.Introspect(context.Background(), "good")
	if err != nil || !status.Active {
		t.Fatalf("expected active token, got %+v, %v", status, err)
	}
	status, err = h.svc.Introspect(context.Background(), "")
	if err != nil || status.Active {
		t.Fatalf("empty token must be inactive, got %+v, %v", status, err)
	}

	h.provider.authErr = domain.ErrProviderUnavailable
	if _, err := h.svc.Introspect(context.Background(), "good"); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
