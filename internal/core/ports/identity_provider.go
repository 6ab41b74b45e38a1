package ports

import (
	"context"

	"github.com/firefly/security-center/internal/core/domain"
)

// IdentityProvider is the capability surface every authentication backend
// implements. Exactly one implementation is active per deployment.
//
// Implementations report failures with domain.ErrInvalidCredentials,
// domain.ErrProviderUnavailable, domain.ErrTokenExpired or
// domain.ErrMalformedResponse (wrapped) and keep no session state.
type IdentityProvider interface {
	Name() string
	Authenticate(ctx context.Context, creds domain.Credentials) (domain.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error)
	Logout(ctx context.Context, tokens domain.TokenSet) error
	Introspect(ctx context.Context, accessToken string) (domain.TokenStatus, error)
	GetIdentity(ctx context.Context, accessToken string) (domain.ExternalIdentity, error)
}
