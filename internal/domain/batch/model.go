// Package batch provides batch (lot) tracking for batch-tracked products.
// A batch groups units that entered stock together and share an expiry date.
package batch

import (
	"context"
	"time"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
)

// Batch represents a lot of a single product.
// BatchNumber is unique per product, not globally.
type Batch struct {
	entity.BaseEntity

	// ProductID is the owning product (must be batch-tracked)
	ProductID id.ID `db:"product_id" json:"productId"`

	// BatchNumber is the supplier or internal lot number
	BatchNumber string `db:"batch_number" json:"batchNumber"`

	// UnitCost is the acquisition cost per unit for this lot
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// ManufacturedAt is when the lot was produced (optional)
	ManufacturedAt *time.Time `db:"manufactured_at" json:"manufacturedAt,omitempty"`

	// ExpiresAt is when the lot expires (optional, required for expiry-tracked products)
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewBatch creates a new Batch for a product.
func NewBatch(productID id.ID, batchNumber string) *Batch {
	return &Batch{
		BaseEntity:  entity.NewBaseEntity(),
		ProductID:   productID,
		BatchNumber: batchNumber,
		UnitCost:    types.Zero(),
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate implements entity.Validatable interface.
func (b *Batch) Validate(ctx context.Context) error {
	if id.IsNil(b.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}

	if b.BatchNumber == "" {
		return apperror.NewValidation("batch number is required").
			WithDetail("field", "batchNumber")
	}

	if b.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost cannot be negative").
			WithDetail("field", "unitCost")
	}

	if b.ManufacturedAt != nil && b.ExpiresAt != nil && !b.ExpiresAt.After(*b.ManufacturedAt) {
		return apperror.NewValidation("expiry date must be after manufacturing date").
			WithDetail("field", "expiresAt")
	}

	return nil
}

// IsExpired returns true if the lot is past its expiry date.
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// ExpiresWithin returns true if the lot expires inside the given window.
func (b *Batch) ExpiresWithin(window time.Duration, now time.Time) bool {
	if b.ExpiresAt == nil {
		return false
	}
	return b.ExpiresAt.Before(now.Add(window))
}
