package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const (
	resolverContracts      = "contracts"
	resolverContractDetail = "contract_detail"
)

// RelationshipResolver lists the active contracts of a party and enriches each
// one with its detail, product and role. Contracts are enriched independently;
// one degraded contract never affects the others.
type RelationshipResolver struct {
	contracts ports.ContractDirectory
	roles     *RoleResolver
	products  *ProductResolver
	timeout   time.Duration
	observer  ports.EnrichmentObserver
	log       zerolog.Logger
}

func NewRelationshipResolver(
	contracts ports.ContractDirectory,
	roles *RoleResolver,
	products *ProductResolver,
	timeout time.Duration,
	observer ports.EnrichmentObserver,
	log zerolog.Logger,
) *RelationshipResolver {
	return &RelationshipResolver{
		contracts: contracts,
		roles:     roles,
		products:  products,
		timeout:   timeout,
		observer:  observerOrNop(observer),
		log:       log,
	}
}

// Resolve returns the enriched contract bindings. Fallback is set when the
// contract list itself could not be fetched.
func (r *RelationshipResolver) Resolve(ctx context.Context, partyID domain.PartyID) Resolved[[]domain.ContractBinding] {
	parties, reason := fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) ([]domain.ContractParty, error) {
		return r.contracts.ListActiveContractParties(ctx, partyID)
	})
	if reason != ports.FallbackNone {
		r.observer.RecordFallback(resolverContracts, reason)
		r.log.Warn().
			Str("party_id", partyID.String()).
			Str("reason", string(reason)).
			Msg("contract list unavailable, session has no contracts")
		return Resolved[[]domain.ContractBinding]{Value: []domain.ContractBinding{}, Fallback: reason}
	}

	active := make([]domain.ContractParty, 0, len(parties))
	for _, cp := range parties {
		if cp.IsActive {
			active = append(active, cp)
		}
	}

	bindings := make([]domain.ContractBinding, len(active))
	var g errgroup.Group
	for i, cp := range active {
		g.Go(func() error {
			bindings[i] = r.enrich(ctx, cp)
			return nil
		})
	}
	_ = g.Wait()

	return Resolved[[]domain.ContractBinding]{Value: bindings}
}

func (r *RelationshipResolver) enrich(ctx context.Context, cp domain.ContractParty) domain.ContractBinding {
	var (
		detail       domain.ContractDetail
		detailReason ports.FallbackReason
		product      Resolved[domain.ProductInfo]
		role         Resolved[domain.RoleBinding]
	)

	var g errgroup.Group
	g.Go(func() error {
		detail, detailReason = fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) (domain.ContractDetail, error) {
			return r.contracts.GetContract(ctx, cp.ContractID)
		})
		return nil
	})
	g.Go(func() error {
		product = r.products.Resolve(ctx, cp.ProductID)
		return nil
	})
	g.Go(func() error {
		role = r.roles.Resolve(ctx, cp.RoleID)
		return nil
	})
	_ = g.Wait()

	binding := domain.PartialBinding(cp)
	if detailReason == ports.FallbackNone {
		binding = binding.WithDetail(detail)
	} else {
		r.observer.RecordFallback(resolverContractDetail, detailReason)
		r.log.Warn().
			Str("contract_id", cp.ContractID.String()).
			Str("reason", string(detailReason)).
			Msg("contract detail unavailable, keeping partial record")
	}
	return binding.WithProduct(product.Value).WithRole(role.Value)
}
