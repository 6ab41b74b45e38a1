package directory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/firefly/security-center/internal/core/domain"
)

// Customers talks to customer management. It serves both the customer
// profile lookup and the party-by-email search used by identity mapping.
type Customers struct {
	c client
}

func NewCustomers(baseURL string, timeout time.Duration) *Customers {
	return &Customers{c: newClient(baseURL, timeout)}
}

type partyDTO struct {
	PartyID   uuid.UUID `json:"partyId"`
	PartyKind string    `json:"partyKind"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	TaxID     string    `json:"taxIdNumber"`
	IsActive  bool      `json:"isActive"`
}

func (c *Customers) GetParty(ctx context.Context, partyID domain.PartyID) (domain.CustomerProfile, error) {
	var dto partyDTO
	if err := c.c.get(ctx, "/api/v1/parties/"+partyID.String(), nil, &dto, domain.ErrPartyNotFound); err != nil {
		return domain.CustomerProfile{}, err
	}
	if dto.PartyID == uuid.Nil {
		dto.PartyID = partyID
	}
	return domain.CustomerProfile{
		PartyID:   dto.PartyID,
		PartyKind: dto.PartyKind,
		FullName:  dto.FullName,
		Email:     dto.Email,
		Phone:     dto.Phone,
		TaxID:     dto.TaxID,
		IsActive:  dto.IsActive,
	}, nil
}

// FindPartyByEmail returns the first party whose email matches.
func (c *Customers) FindPartyByEmail(ctx context.Context, email string) (domain.PartyID, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return uuid.Nil, domain.ErrPartyNotFound
	}

	var res page[partyDTO]
	err := c.c.get(ctx, "/api/v1/parties", url.Values{"email": {email}, "size": {"1"}}, &res, domain.ErrPartyNotFound)
	if err != nil {
		return uuid.Nil, err
	}
	for _, p := range res.Content {
		if p.PartyID != uuid.Nil {
			return p.PartyID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("email lookup: %w", domain.ErrPartyNotFound)
}
