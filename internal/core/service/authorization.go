package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

// HasAccessToProduct reports whether the session holds an active contract for
// productID.
func HasAccessToProduct(session domain.SessionContext, productID uuid.UUID) bool {
	for _, c := range session.Contracts {
		if c.IsActive && c.Product.ProductID == productID {
			return true
		}
	}
	return false
}

// HasPermission reports whether an active contract for productID carries an
// active scope granting action on resource. An empty resource matches any
// resource type; role activity is not consulted.
func HasPermission(session domain.SessionContext, productID uuid.UUID, action, resource string) bool {
	for _, c := range session.Contracts {
		if !c.IsActive || c.Product.ProductID != productID {
			continue
		}
		for _, scope := range c.Role.Scopes {
			if scope.Matches(action, resource) {
				return true
			}
		}
	}
	return false
}

// AuthorizationService evaluates access against cached sessions. A session
// that is locked or expired grants nothing.
type AuthorizationService struct {
	sessions ports.SessionStore
	now      func() time.Time
}

func NewAuthorizationService(sessions ports.SessionStore) *AuthorizationService {
	return &AuthorizationService{sessions: sessions, now: time.Now}
}

func (a *AuthorizationService) HasAccessToProduct(ctx context.Context, partyID domain.PartyID, productID uuid.UUID) (bool, error) {
	session, err := a.byParty(ctx, partyID)
	if err != nil || session == nil {
		return false, err
	}
	return HasAccessToProduct(*session, productID), nil
}

func (a *AuthorizationService) HasPermission(ctx context.Context, partyID domain.PartyID, productID uuid.UUID, action, resource string) (bool, error) {
	session, err := a.byParty(ctx, partyID)
	if err != nil || session == nil {
		return false, err
	}
	return HasPermission(*session, productID, action, resource), nil
}

func (a *AuthorizationService) SessionHasPermission(ctx context.Context, sessionID string, productID uuid.UUID, action, resource string) (bool, error) {
	session, err := a.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("authorize session: %w", err)
	}
	if !session.IsValidAt(a.now()) {
		return false, nil
	}
	return HasPermission(*session, productID, action, resource), nil
}

// byParty returns nil without error when the party has no usable session.
func (a *AuthorizationService) byParty(ctx context.Context, partyID domain.PartyID) (*domain.SessionContext, error) {
	session, err := a.sessions.GetByParty(ctx, partyID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authorize party: %w", err)
	}
	if !session.IsValidAt(a.now()) {
		return nil, nil
	}
	return session, nil
}
