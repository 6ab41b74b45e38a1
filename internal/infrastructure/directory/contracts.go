package directory

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/firefly/security-center/internal/core/domain"
)

// Contracts talks to contract management.
type Contracts struct {
	c client
}

func NewContracts(baseURL string, timeout time.Duration) *Contracts {
	return &Contracts{c: newClient(baseURL, timeout)}
}

type contractPartyDTO struct {
	ContractID       uuid.UUID `json:"contractId"`
	PartyID          uuid.UUID `json:"partyId"`
	RoleInContractID uuid.UUID `json:"roleInContractId"`
	ProductID        uuid.UUID `json:"productId"`
	IsActive         bool      `json:"isActive"`
}

type contractDTO struct {
	ContractID     uuid.UUID  `json:"contractId"`
	ContractNumber string     `json:"contractNumber"`
	ContractStatus string     `json:"contractStatus"`
	StartDate      *time.Time `json:"startDate"`
	EndDate        *time.Time `json:"endDate"`
}

// ListActiveContractParties returns the party's active contract participations.
// A party contract management does not know is reported as ErrPartyNotFound.
func (c *Contracts) ListActiveContractParties(ctx context.Context, partyID domain.PartyID) ([]domain.ContractParty, error) {
	var res page[contractPartyDTO]
	err := c.c.get(ctx, "/api/v1/contract-parties", url.Values{
		"partyId":  {partyID.String()},
		"isActive": {"true"},
	}, &res, domain.ErrPartyNotFound)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ContractParty, 0, len(res.Content))
	for _, dto := range res.Content {
		out = append(out, domain.ContractParty{
			ContractID: dto.ContractID,
			PartyID:    partyID,
			RoleID:     dto.RoleInContractID,
			ProductID:  dto.ProductID,
			IsActive:   dto.IsActive,
		})
	}
	return out, nil
}

func (c *Contracts) GetContract(ctx context.Context, contractID uuid.UUID) (domain.ContractDetail, error) {
	var dto contractDTO
	if err := c.c.get(ctx, "/api/v1/contracts/"+contractID.String(), nil, &dto, notFound("contract "+contractID.String())); err != nil {
		return domain.ContractDetail{}, err
	}
	return domain.ContractDetail{
		ContractID:     contractID,
		ContractNumber: dto.ContractNumber,
		Status:         dto.ContractStatus,
		StartDate:      dto.StartDate,
		EndDate:        dto.EndDate,
	}, nil
}
