// Package location provides the Location catalog.
// Locations are the physical places stock lives in: warehouses, stores, transit zones.
package location

import (
	"context"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
)

// LocationType defines the type of location.
type LocationType string

const (
	TypeWarehouse LocationType = "warehouse"
	TypeStore     LocationType = "store"
	TypeTransit   LocationType = "transit"
)

// Location represents a storage place for goods.
type Location struct {
	entity.Catalog

	// Type defines the location category
	Type LocationType `db:"type" json:"type"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates if location is operational.
	// Inactive locations reject transfers and allocations.
	IsActive bool `db:"is_active" json:"isActive"`

	// IsDefault indicates if this is the default location
	IsDefault bool `db:"is_default" json:"isDefault"`

	// Description
	Description *string `db:"description" json:"description,omitempty"`
}

// NewLocation creates a new Location with required fields.
func NewLocation(code, name string, locType LocationType) *Location {
	return &Location{
		Catalog:  entity.NewCatalog(code, name),
		Type:     locType,
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (l *Location) Validate(ctx context.Context) error {
	// Base catalog validation
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}

	// Type validation
	if !isValidLocationType(l.Type) {
		return apperror.NewValidation("invalid location type").
			WithDetail("field", "type").
			WithDetail("value", string(l.Type))
	}

	return nil
}

// CanHoldStock returns true if location can accept stock.
func (l *Location) CanHoldStock() bool {
	return l.IsActive && !l.IsFolder
}

// --- Validation Helpers ---

func isValidLocationType(t LocationType) bool {
	switch t {
	case TypeWarehouse, TypeStore, TypeTransit:
		return true
	}
	return false
}
