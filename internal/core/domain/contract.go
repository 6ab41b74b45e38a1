package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusUnknown   = "UNKNOWN"
	RoleCodeUnknown = "UNKNOWN"
)

// PermissionScope is one (actionType, resourceType) pair granted by a role.
type PermissionScope struct {
	ScopeID      uuid.UUID `json:"scope_id"`
	ActionType   string    `json:"action_type"`
	ResourceType string    `json:"resource_type"`
	IsActive     bool      `json:"is_active"`
}

// Matches reports whether the scope grants action on resource. An empty
// resource matches any resource type.
func (s PermissionScope) Matches(action, resource string) bool {
	if !s.IsActive || !strings.EqualFold(s.ActionType, action) {
		return false
	}
	return resource == "" || strings.EqualFold(s.ResourceType, resource)
}

// RoleBinding is a contract role with its scopes. Scope order is irrelevant.
type RoleBinding struct {
	RoleID      uuid.UUID         `json:"role_id"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	IsActive    bool              `json:"is_active"`
	Scopes      []PermissionScope `json:"scopes"`
}

// WithScopes returns a copy of the role carrying scopes.
func (r RoleBinding) WithScopes(scopes []PermissionScope) RoleBinding {
	r.Scopes = append([]PermissionScope(nil), scopes...)
	return r
}

// PlaceholderRole is used when the role detail cannot be fetched.
func PlaceholderRole(roleID uuid.UUID) RoleBinding {
	return RoleBinding{
		RoleID:   roleID,
		Code:     RoleCodeUnknown,
		Name:     "Unknown Role",
		IsActive: false,
		Scopes:   []PermissionScope{},
	}
}

// ProductInfo describes the product a contract is for.
type ProductInfo struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
}

// PlaceholderProduct is used when the product catalog cannot be reached.
func PlaceholderProduct(productID uuid.UUID) ProductInfo {
	return ProductInfo{
		ProductID: productID,
		Name:      "Unknown Product",
		Status:    StatusUnknown,
	}
}

// ContractParty is one row of the party's active contract list: the ids needed
// to enrich a contract.
type ContractParty struct {
	ContractID uuid.UUID
	PartyID    PartyID
	RoleID     uuid.UUID
	ProductID  uuid.UUID
	IsActive   bool
}

// ContractDetail is the contract management view of one contract.
type ContractDetail struct {
	ContractID     uuid.UUID
	ContractNumber string
	Status         string
	StartDate      *time.Time
	EndDate        *time.Time
}

// ContractBinding is one active contract held by a party with its product and role.
type ContractBinding struct {
	ContractID     uuid.UUID   `json:"contract_id"`
	ContractNumber string      `json:"contract_number,omitempty"`
	Status         string      `json:"status,omitempty"`
	StartDate      *time.Time  `json:"start_date,omitempty"`
	EndDate        *time.Time  `json:"end_date,omitempty"`
	IsActive       bool        `json:"is_active"`
	Product        ProductInfo `json:"product"`
	Role           RoleBinding `json:"role"`
}

// PartialBinding builds the id-only record used when contract detail is missing.
func PartialBinding(cp ContractParty) ContractBinding {
	return ContractBinding{
		ContractID: cp.ContractID,
		IsActive:   cp.IsActive,
		Product:    ProductInfo{ProductID: cp.ProductID},
		Role:       RoleBinding{RoleID: cp.RoleID, Scopes: []PermissionScope{}},
	}
}

// WithDetail returns a copy with the contract management fields filled in.
func (b ContractBinding) WithDetail(d ContractDetail) ContractBinding {
	b.ContractNumber = d.ContractNumber
	b.Status = d.Status
	b.StartDate = d.StartDate
	b.EndDate = d.EndDate
	return b
}

// WithProduct returns a copy bound to p.
func (b ContractBinding) WithProduct(p ProductInfo) ContractBinding {
	b.Product = p
	return b
}

// WithRole returns a copy bound to r.
func (b ContractBinding) WithRole(r RoleBinding) ContractBinding {
	b.Role = r
	return b
}
