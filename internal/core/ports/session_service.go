package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/firefly/security-center/internal/core/domain"
)

// SessionStore owns SessionContext values. All reads and writes go through
// the cache collaborator; nothing is held in process.
type SessionStore interface {
	CreateOrGet(ctx context.Context, partyID domain.PartyID, client domain.ClientMetadata) (*domain.SessionContext, error)
	GetByID(ctx context.Context, sessionID string) (*domain.SessionContext, error)
	GetByParty(ctx context.Context, partyID domain.PartyID) (*domain.SessionContext, error)
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAllForParty(ctx context.Context, partyID domain.PartyID) error
	Refresh(ctx context.Context, sessionID string) (*domain.SessionContext, error)
	Lock(ctx context.Context, sessionID string) (*domain.SessionContext, error)
	IsValid(ctx context.Context, sessionID string) bool
}

// SessionAggregator builds a fresh SessionContext for a party.
type SessionAggregator interface {
	Aggregate(ctx context.Context, partyID domain.PartyID, client domain.ClientMetadata) (*domain.SessionContext, error)
}

// AuthorizationService answers access questions for a party or a session.
type AuthorizationService interface {
	HasAccessToProduct(ctx context.Context, partyID domain.PartyID, productID uuid.UUID) (bool, error)
	HasPermission(ctx context.Context, partyID domain.PartyID, productID uuid.UUID, action, resource string) (bool, error)
	SessionHasPermission(ctx context.Context, sessionID string, productID uuid.UUID, action, resource string) (bool, error)
}
