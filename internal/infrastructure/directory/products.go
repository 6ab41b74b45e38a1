package directory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/firefly/security-center/internal/core/domain"
)

// Products talks to product management.
type Products struct {
	c client
}

func NewProducts(baseURL string, timeout time.Duration) *Products {
	return &Products{c: newClient(baseURL, timeout)}
}

type productDTO struct {
	ProductID     uuid.UUID `json:"productId"`
	ProductName   string    `json:"productName"`
	ProductStatus string    `json:"productStatus"`
}

func (p *Products) GetProduct(ctx context.Context, productID uuid.UUID) (domain.ProductInfo, error) {
	var dto productDTO
	if err := p.c.get(ctx, "/api/v1/products/"+productID.String(), nil, &dto, notFound("product "+productID.String())); err != nil {
		return domain.ProductInfo{}, err
	}
	return domain.ProductInfo{
		ProductID: productID,
		Name:      dto.ProductName,
		Status:    dto.ProductStatus,
	}, nil
}
