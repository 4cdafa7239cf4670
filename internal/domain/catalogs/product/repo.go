package product

import (
	"context"

	"stockpile/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// ExistsBySKU checks if a product with the given SKU exists.
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
}
