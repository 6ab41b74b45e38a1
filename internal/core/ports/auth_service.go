package ports

import (
	"context"

	"github.com/firefly/security-center/internal/core/domain"
)

// LoginRequest carries the credentials plus where the login came from.
type LoginRequest struct {
	Credentials domain.Credentials
	Client      domain.ClientMetadata
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Tokens          domain.TokenSet
	SessionID       string
	PartyID         domain.PartyID
	DirectoryBacked bool
}

// LogoutRequest names the tokens to revoke and the session to invalidate.
type LogoutRequest struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// AuthService is the authentication entry point.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, req LogoutRequest) error
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Introspect(ctx context.Context, accessToken string) (domain.TokenStatus, error)
}
