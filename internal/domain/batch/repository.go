package batch

import (
	"context"

	"stockpile/internal/core/id"
)

// ListFilter narrows batch listing.
type ListFilter struct {
	ProductID *id.ID
	// ExpiringBefore selects batches with expiry date before the given instant
	ExpiringBefore *int64 // unix seconds; nil disables the filter

	Limit  int
	Offset int
}

// Repository defines the interface for Batch persistence.
type Repository interface {
	// Create inserts a new batch
	Create(ctx context.Context, b *Batch) error

	// GetByID retrieves batch by ID
	GetByID(ctx context.Context, id id.ID) (*Batch, error)

	// GetByNumber retrieves batch by (product, batch number)
	GetByNumber(ctx context.Context, productID id.ID, batchNumber string) (*Batch, error)

	// Update modifies existing batch (with optimistic locking)
	Update(ctx context.Context, b *Batch) error

	// Delete removes a batch. Fails with Conflict if stock cells reference it.
	Delete(ctx context.Context, id id.ID) error

	// List retrieves batches with filtering
	List(ctx context.Context, filter ListFilter) ([]Batch, error)

	// ExistsByNumber checks uniqueness of (product, batch number)
	ExistsByNumber(ctx context.Context, productID id.ID, batchNumber string) (bool, error)
}

// Reader is the read-only subset used by other domains (allocation, alerts).
type Reader interface {
	GetByID(ctx context.Context, id id.ID) (*Batch, error)
	List(ctx context.Context, filter ListFilter) ([]Batch, error)
}
