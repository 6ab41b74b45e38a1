package ports

import (
	"context"
	"time"

	"github.com/firefly/security-center/internal/core/domain"
)

// AccountRepository persists accounts for the built-in identity provider.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindBySubject(ctx context.Context, subject string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
}

// TokenRevocationList remembers revoked token ids until they would have
// expired anyway.
type TokenRevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
