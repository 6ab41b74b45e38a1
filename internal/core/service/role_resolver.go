package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const (
	resolverRole    = "role"
	resolverScopes  = "scopes"
	resolverProduct = "product"
)

// RoleResolver fetches a role with its active scopes. The role detail and the
// scope list are fetched concurrently and degrade independently.
type RoleResolver struct {
	roles    ports.RoleDirectory
	timeout  time.Duration
	observer ports.EnrichmentObserver
	log      zerolog.Logger
}

func NewRoleResolver(roles ports.RoleDirectory, timeout time.Duration, observer ports.EnrichmentObserver, log zerolog.Logger) *RoleResolver {
	return &RoleResolver{roles: roles, timeout: timeout, observer: observerOrNop(observer), log: log}
}

func (r *RoleResolver) Resolve(ctx context.Context, roleID uuid.UUID) Resolved[domain.RoleBinding] {
	var (
		role         domain.RoleBinding
		scopes       []domain.PermissionScope
		roleReason   ports.FallbackReason
		scopesReason ports.FallbackReason
	)

	var g errgroup.Group
	g.Go(func() error {
		role, roleReason = fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) (domain.RoleBinding, error) {
			return r.roles.GetRole(ctx, roleID)
		})
		return nil
	})
	g.Go(func() error {
		scopes, scopesReason = fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) ([]domain.PermissionScope, error) {
			return r.roles.ListActiveScopes(ctx, roleID)
		})
		return nil
	})
	_ = g.Wait()

	out := Resolved[domain.RoleBinding]{}
	if roleReason != ports.FallbackNone {
		r.degrade(resolverRole, roleID, roleReason)
		role = domain.PlaceholderRole(roleID)
		out.Fallback = roleReason
	}
	if scopesReason != ports.FallbackNone {
		r.degrade(resolverScopes, roleID, scopesReason)
		scopes = nil
		if out.Fallback == ports.FallbackNone {
			out.Fallback = scopesReason
		}
	}
	if scopes == nil {
		scopes = []domain.PermissionScope{}
	}
	out.Value = role.WithScopes(scopes)
	return out
}

func (r *RoleResolver) degrade(resolver string, roleID uuid.UUID, reason ports.FallbackReason) {
	r.observer.RecordFallback(resolver, reason)
	r.log.Warn().
		Str("resolver", resolver).
		Str("role_id", roleID.String()).
		Str("reason", string(reason)).
		Msg("role enrichment degraded")
}

// ProductResolver fetches product descriptions for contract bindings.
type ProductResolver struct {
	catalog  ports.ProductCatalog
	timeout  time.Duration
	observer ports.EnrichmentObserver
	log      zerolog.Logger
}

func NewProductResolver(catalog ports.ProductCatalog, timeout time.Duration, observer ports.EnrichmentObserver, log zerolog.Logger) *ProductResolver {
	return &ProductResolver{catalog: catalog, timeout: timeout, observer: observerOrNop(observer), log: log}
}

func (r *ProductResolver) Resolve(ctx context.Context, productID uuid.UUID) Resolved[domain.ProductInfo] {
	product, reason := fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) (domain.ProductInfo, error) {
		return r.catalog.GetProduct(ctx, productID)
	})
	if reason == ports.FallbackNone {
		return Resolved[domain.ProductInfo]{Value: product}
	}
	r.observer.RecordFallback(resolverProduct, reason)
	r.log.Warn().
		Str("product_id", productID.String()).
		Str("reason", string(reason)).
		Msg("product unavailable, using placeholder")
	return Resolved[domain.ProductInfo]{Value: domain.PlaceholderProduct(productID), Fallback: reason}
}
