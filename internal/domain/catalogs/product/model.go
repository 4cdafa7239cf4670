// Package product provides the Product catalog.
// Products are the items whose stock the ledger tracks per location and batch.
package product

import (
	"context"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/types"
)

// ProductType defines the type of item.
type ProductType string

const (
	TypeGoods    ProductType = "goods"
	TypeMaterial ProductType = "material"
	TypeService  ProductType = "service"
)

// Product represents a tracked inventory item.
type Product struct {
	entity.Catalog

	// Type defines item category
	Type ProductType `db:"type" json:"type"`

	// SKU is the stock keeping unit (unique when set)
	SKU *string `db:"sku" json:"sku,omitempty"`

	// Barcode is the item barcode (EAN-13, etc.)
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	// Unit is the unit of measure abbreviation (pcs, kg, l)
	Unit string `db:"unit" json:"unit"`

	// MinStock is the threshold below which total stock is considered low.
	// Zero means no threshold.
	MinStock types.Quantity `db:"min_stock" json:"minStock"`

	// MaxStock is an optional capacity hint for replenishment
	MaxStock types.Quantity `db:"max_stock" json:"maxStock"`

	// TrackBatch indicates if item is tracked by batch/lot numbers
	TrackBatch bool `db:"track_batch" json:"trackBatch"`

	// TrackExpiry indicates if item batches carry expiry dates
	TrackExpiry bool `db:"track_expiry" json:"trackExpiry"`

	// Description is a detailed description
	Description *string `db:"description" json:"description,omitempty"`
}

// NewProduct creates a new Product with required fields.
func NewProduct(code, name string, productType ProductType) *Product {
	return &Product{
		Catalog: entity.NewCatalog(code, name),
		Type:    productType,
		Unit:    "pcs",
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	// Base catalog validation
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	// Type validation
	if !isValidProductType(p.Type) {
		return apperror.NewValidation("invalid product type").
			WithDetail("field", "type").
			WithDetail("value", string(p.Type))
	}

	if p.MinStock.IsNegative() {
		return apperror.NewValidation("min stock cannot be negative").
			WithDetail("field", "minStock")
	}

	if p.MaxStock.IsNegative() {
		return apperror.NewValidation("max stock cannot be negative").
			WithDetail("field", "maxStock")
	}

	if !p.MaxStock.IsZero() && p.MaxStock < p.MinStock {
		return apperror.NewValidation("max stock cannot be below min stock").
			WithDetail("field", "maxStock")
	}

	// Services have no physical stock, so batch/expiry tracking makes no sense
	if p.Type == TypeService && (p.TrackBatch || p.TrackExpiry) {
		return apperror.NewValidation("services cannot be tracked by batch or expiry").
			WithDetail("field", "type")
	}

	// Expiry dates only exist on batches
	if p.TrackExpiry && !p.TrackBatch {
		return apperror.NewValidation("expiry tracking requires batch tracking").
			WithDetail("field", "trackExpiry")
	}

	return nil
}

// IsPhysical returns true if item has physical presence (not a service).
func (p *Product) IsPhysical() bool {
	return p.Type != TypeService
}

// HasMinStock returns true if a low-stock threshold is configured.
func (p *Product) HasMinStock() bool {
	return p.MinStock.IsPositive()
}

// --- Validation Helpers ---

func isValidProductType(t ProductType) bool {
	switch t {
	case TypeGoods, TypeMaterial, TypeService:
		return true
	}
	return false
}
