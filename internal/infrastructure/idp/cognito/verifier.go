package cognito

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/infrastructure/idp/idphttp"
)

// minRefetch bounds how often an unknown kid may trigger a JWKS download.
const minRefetch = 30 * time.Second

type accessClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Scope    string `json:"scope"`
}

// verifier checks pool-issued access tokens against the cached JWKS.
type verifier struct {
	client   *http.Client
	issuer   string
	jwksURL  string
	clientID string
	now      func() time.Time

	mu        sync.Mutex
	keys      *jose.JSONWebKeySet
	fetchedAt time.Time
}

func newVerifier(client *http.Client, issuer, jwksURL, clientID string) *verifier {
	return &verifier{client: client, issuer: issuer, jwksURL: jwksURL, clientID: clientID, now: time.Now}
}

// Verify returns an inactive status for tokens that fail validation and an
// error only when the key set cannot be obtained.
func (v *verifier) Verify(ctx context.Context, token string) (domain.TokenStatus, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if errors.Is(err, domain.ErrProviderUnavailable) || errors.Is(err, domain.ErrMalformedResponse) {
		return domain.TokenStatus{}, fmt.Errorf("cognito jwks: %w", err)
	}
	if err != nil || claims.TokenUse != "access" || claims.ClientID != v.clientID {
		return domain.TokenStatus{Active: false}, nil
	}

	status := domain.TokenStatus{
		Active:    true,
		Subject:   claims.Subject,
		Username:  claims.Username,
		ClientID:  claims.ClientID,
		TokenType: "Bearer",
		Scopes:    strings.Fields(claims.Scope),
	}
	if claims.ExpiresAt != nil {
		status.ExpiresAt = claims.ExpiresAt.Time
	}
	return status, nil
}

func (v *verifier) key(ctx context.Context, kid string) (any, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if k, ok := v.lookup(kid); ok {
		return k, nil
	}
	if v.keys != nil && v.now().Sub(v.fetchedAt) < minRefetch {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	if err := v.fetch(ctx); err != nil {
		return nil, err
	}
	if k, ok := v.lookup(kid); ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

func (v *verifier) lookup(kid string) (any, bool) {
	if v.keys == nil {
		return nil, false
	}
	for _, k := range v.keys.Key(kid) {
		if k.Use == "" || k.Use == "sig" {
			return k.Key, true
		}
	}
	return nil, false
}

func (v *verifier) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var set jose.JSONWebKeySet
	err = idphttp.Do(v.client, req, &set, func(int, string) error { return domain.ErrProviderUnavailable })
	if err != nil {
		return err
	}
	v.keys = &set
	v.fetchedAt = v.now()
	return nil
}
