package location

import (
	"context"

	"stockpile/internal/domain"
)

// Repository defines the interface for Location persistence.
type Repository interface {
	domain.CatalogRepository[*Location]

	// ClearDefault clears the default flag on all locations (before setting new default).
	ClearDefault(ctx context.Context) error
}
