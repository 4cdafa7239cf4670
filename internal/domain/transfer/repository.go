package transfer

import (
	"context"
	"time"

	"stockpile/internal/core/id"
)

// ListFilter narrows transfer listing.
type ListFilter struct {
	Status         *Status
	FromLocationID *id.ID
	ToLocationID   *id.ID
	FromDate       *time.Time
	ToDate         *time.Time

	Limit  int
	Offset int
}

// Repository defines the interface for Transfer persistence.
// Header and items are stored in separate tables; Create and Update
// keep them consistent inside the caller's transaction.
type Repository interface {
	// Create inserts the document header and all items
	Create(ctx context.Context, t *Transfer) error

	// GetByID retrieves document with items
	GetByID(ctx context.Context, id id.ID) (*Transfer, error)

	// GetByIDForUpdate retrieves document with items under a row lock.
	// The lock serializes concurrent lifecycle actions on one document.
	GetByIDForUpdate(ctx context.Context, id id.ID) (*Transfer, error)

	// Update persists header changes (with optimistic locking)
	Update(ctx context.Context, t *Transfer) error

	// List retrieves document headers (without items)
	List(ctx context.Context, filter ListFilter) ([]Transfer, error)
}
