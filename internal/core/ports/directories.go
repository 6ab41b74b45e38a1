package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/firefly/security-center/internal/core/domain"
)

// IdentityMapper resolves a verified external identity to a party.
type IdentityMapper interface {
	MapToParty(ctx context.Context, identity domain.ExternalIdentity) (domain.PartyMapping, error)
}

// PartyDirectory finds parties by contact data. Returns domain.ErrPartyNotFound
// when no party matches.
type PartyDirectory interface {
	FindPartyByEmail(ctx context.Context, email string) (domain.PartyID, error)
}

// IdentityLinkStore holds correlation keys (username, external subject) that
// were linked to a party. Returns domain.ErrPartyNotFound when no link exists.
type IdentityLinkStore interface {
	FindByUsername(ctx context.Context, username string) (domain.PartyID, error)
	FindBySubject(ctx context.Context, subject string) (domain.PartyID, error)
}

// CustomerDirectory serves customer profiles.
type CustomerDirectory interface {
	GetParty(ctx context.Context, partyID domain.PartyID) (domain.CustomerProfile, error)
}

// ContractDirectory serves contract relationships.
type ContractDirectory interface {
	// ListActiveContractParties returns the contracts the party actively holds.
	ListActiveContractParties(ctx context.Context, partyID domain.PartyID) ([]domain.ContractParty, error)
	GetContract(ctx context.Context, contractID uuid.UUID) (domain.ContractDetail, error)
}

// RoleDirectory serves contract roles and their active scopes.
type RoleDirectory interface {
	GetRole(ctx context.Context, roleID uuid.UUID) (domain.RoleBinding, error)
	ListActiveScopes(ctx context.Context, roleID uuid.UUID) ([]domain.PermissionScope, error)
}

// ProductCatalog serves product descriptions.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (domain.ProductInfo, error)
}
