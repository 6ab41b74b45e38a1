package directory

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/firefly/security-center/internal/core/domain"
)

// ReferenceData serves contract roles and their permission scopes.
type ReferenceData struct {
	c client
}

func NewReferenceData(baseURL string, timeout time.Duration) *ReferenceData {
	return &ReferenceData{c: newClient(baseURL, timeout)}
}

type roleDTO struct {
	RoleID      uuid.UUID `json:"roleId"`
	RoleCode    string    `json:"roleCode"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
}

type scopeDTO struct {
	ScopeID      uuid.UUID `json:"scopeId"`
	ActionType   string    `json:"actionType"`
	ResourceType string    `json:"resourceType"`
	IsActive     bool      `json:"isActive"`
}

func (r *ReferenceData) GetRole(ctx context.Context, roleID uuid.UUID) (domain.RoleBinding, error) {
	var dto roleDTO
	if err := r.c.get(ctx, "/api/v1/contract-roles/"+roleID.String(), nil, &dto, notFound("role "+roleID.String())); err != nil {
		return domain.RoleBinding{}, err
	}
	return domain.RoleBinding{
		RoleID:      roleID,
		Code:        dto.RoleCode,
		Name:        dto.Name,
		Description: dto.Description,
		IsActive:    dto.IsActive,
		Scopes:      []domain.PermissionScope{},
	}, nil
}

// ListActiveScopes returns the active scopes of a role. Inactive rows the
// service might still send are dropped.
func (r *ReferenceData) ListActiveScopes(ctx context.Context, roleID uuid.UUID) ([]domain.PermissionScope, error) {
	var dtos []scopeDTO
	err := r.c.get(ctx, "/api/v1/contract-role-scopes", url.Values{
		"roleId":   {roleID.String()},
		"isActive": {"true"},
	}, &dtos, notFound("scopes of role "+roleID.String()))
	if err != nil {
		return nil, err
	}

	out := make([]domain.PermissionScope, 0, len(dtos))
	for _, dto := range dtos {
		if !dto.IsActive {
			continue
		}
		out = append(out, domain.PermissionScope{
			ScopeID:      dto.ScopeID,
			ActionType:   dto.ActionType,
			ResourceType: dto.ResourceType,
			IsActive:     true,
		})
	}
	return out, nil
}
