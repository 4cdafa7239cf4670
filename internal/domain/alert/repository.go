package alert

import (
	"context"

	"stockpile/internal/core/id"
)

// ListFilter narrows alert listing.
type ListFilter struct {
	ProductID *id.ID
	Type      *AlertType
	Severity  *Severity

	// ActiveOnly skips resolved alerts
	ActiveOnly bool

	Limit  int
	Offset int
}

// Repository defines the interface for Alert persistence.
type Repository interface {
	// Create inserts a new alert
	Create(ctx context.Context, a *Alert) error

	// GetByID retrieves alert by ID
	GetByID(ctx context.Context, id id.ID) (*Alert, error)

	// AcquireKeyLock takes a transaction-scoped exclusive lock on the
	// dedup key (product, type, batch). FindActive's row lock cannot
	// serialize concurrent evaluations when no row exists yet, so the
	// evaluator takes this lock before the dedup read. Released on
	// commit or rollback.
	AcquireKeyLock(ctx context.Context, productID id.ID, alertType AlertType, batchID *id.ID) error

	// FindActive returns the single active alert for the dedup key,
	// NotFound when none. Must be called inside the evaluator transaction
	// after AcquireKeyLock: the lock, the read and the following
	// Create/Update form the dedup check.
	FindActive(ctx context.Context, productID id.ID, alertType AlertType, batchID *id.ID) (*Alert, error)

	// Update persists severity, message, details and resolution changes
	Update(ctx context.Context, a *Alert) error

	// List retrieves alerts with filtering, newest first
	List(ctx context.Context, filter ListFilter) ([]Alert, error)
}
