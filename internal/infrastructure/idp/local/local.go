// Package local is the built-in identity provider used for development and
// tests. Accounts live in the account repository with bcrypt password hashes;
// tokens are HS256 JWTs and logout revokes their ids.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const (
	Name = "local"

	useAccess  = "access"
	useRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

// hash compared against when the username is unknown so both paths cost a
// bcrypt round.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("security-center"), bcrypt.DefaultCost)

type Config struct {
	Issuer     string
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type claims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// Provider implements ports.IdentityProvider on top of local accounts.
type Provider struct {
	accounts ports.AccountRepository
	revoked  ports.TokenRevocationList
	cfg      Config
	now      func() time.Time
}

func New(accounts ports.AccountRepository, revoked ports.TokenRevocationList, cfg Config) *Provider {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &Provider{accounts: accounts, revoked: revoked, cfg: cfg, now: time.Now}
}

func (p *Provider) Name() string { return Name }

// Register creates an account. Used to seed development users.
func (p *Provider) Register(ctx context.Context, username, password, email string) (*domain.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	return p.accounts.Create(ctx, &domain.Account{
		Subject:      uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (p *Provider) Authenticate(ctx context.Context, creds domain.Credentials) (domain.TokenSet, error) {
	if creds.Username == "" || creds.Password == "" {
		return domain.TokenSet{}, domain.ErrInvalidCredentials
	}

	account, err := p.accounts.FindByUsername(ctx, creds.Username)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		return domain.TokenSet{}, domain.ErrInvalidCredentials
	case err != nil:
		return domain.TokenSet{}, unavailable(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)) != nil || account.Disabled {
		return domain.TokenSet{}, domain.ErrInvalidCredentials
	}
	return p.issue(account, creds.Scope)
}

// Refresh rotates the refresh token: the presented one is revoked.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	c, err := p.verify(ctx, refreshToken, useRefresh)
	if err != nil {
		return domain.TokenSet{}, err
	}

	account, err := p.accounts.FindBySubject(ctx, c.Subject)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return domain.TokenSet{}, domain.ErrTokenExpired
	case err != nil:
		return domain.TokenSet{}, unavailable(err)
	}
	if account.Disabled {
		return domain.TokenSet{}, domain.ErrTokenExpired
	}

	if err := p.revoke(ctx, c); err != nil {
		return domain.TokenSet{}, err
	}
	return p.issue(account, c.Scope)
}

// Logout revokes every token in the set that still verifies. Tokens that are
// expired or were never ours need no revocation.
func (p *Provider) Logout(ctx context.Context, tokens domain.TokenSet) error {
	for _, t := range []struct{ raw, use string }{
		{tokens.AccessToken, useAccess},
		{tokens.RefreshToken, useRefresh},
	} {
		if t.raw == "" {
			continue
		}
		c, err := p.parse(t.raw, t.use)
		if err != nil {
			continue
		}
		if err := p.revoke(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) Introspect(ctx context.Context, accessToken string) (domain.TokenStatus, error) {
	c, err := p.verify(ctx, accessToken, useAccess)
	if errors.Is(err, domain.ErrProviderUnavailable) {
		return domain.TokenStatus{}, err
	}
	if err != nil {
		return domain.TokenStatus{Active: false}, nil
	}
	return domain.TokenStatus{
		Active:    true,
		Subject:   c.Subject,
		Username:  c.Username,
		ClientID:  p.cfg.Issuer,
		TokenType: "Bearer",
		Scopes:    strings.Fields(c.Scope),
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

func (p *Provider) GetIdentity(ctx context.Context, accessToken string) (domain.ExternalIdentity, error) {
	c, err := p.verify(ctx, accessToken, useAccess)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}

	account, err := p.accounts.FindBySubject(ctx, c.Subject)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return domain.ExternalIdentity{}, domain.ErrTokenExpired
	case err != nil:
		return domain.ExternalIdentity{}, unavailable(err)
	}

	return domain.ExternalIdentity{
		Subject:           account.Subject,
		Email:             account.Email,
		PreferredUsername: account.Username,
		Claims: map[string]any{
			"sub":                account.Subject,
			"email":              account.Email,
			"preferred_username": account.Username,
			"iss":                p.cfg.Issuer,
		},
	}, nil
}

func (p *Provider) issue(account *domain.Account, scope string) (domain.TokenSet, error) {
	now := p.now()
	access, err := p.sign(account, useAccess, scope, now, p.cfg.AccessTTL)
	if err != nil {
		return domain.TokenSet{}, err
	}
	refresh, err := p.sign(account, useRefresh, scope, now, p.cfg.RefreshTTL)
	if err != nil {
		return domain.TokenSet{}, err
	}
	return domain.TokenSet{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(p.cfg.AccessTTL.Seconds()),
		ExpiresAt:    now.Add(p.cfg.AccessTTL),
	}, nil
}

func (p *Provider) sign(account *domain.Account, use, scope string, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.cfg.Issuer,
			Subject:   account.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenUse: use,
		Scope:    scope,
	}
	if use == useAccess {
		c.Username = account.Username
		c.Email = account.Email
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(p.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return signed, nil
}

func (p *Provider) parse(raw, use string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return []byte(p.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
	}
	if c.TokenUse != use || c.ID == "" {
		return nil, fmt.Errorf("%w: not a %s token", domain.ErrTokenExpired, use)
	}
	return &c, nil
}

// verify parses the token and checks the revocation list.
func (p *Provider) verify(ctx context.Context, raw, use string) (*claims, error) {
	c, err := p.parse(raw, use)
	if err != nil {
		return nil, err
	}
	revoked, err := p.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		return nil, unavailable(err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", domain.ErrTokenExpired)
	}
	return c, nil
}

func (p *Provider) revoke(ctx context.Context, c *claims) error {
	if err := p.revoked.Revoke(ctx, c.ID, c.ExpiresAt.Time); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
}
