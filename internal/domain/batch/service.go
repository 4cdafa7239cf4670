package batch

import (
	"context"
	"fmt"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/core/tx"
	"stockpile/internal/domain/catalogs/product"
	"stockpile/pkg/logger"
)

// ProductReader is the subset of the product catalog the batch service needs.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// ExpiryEvaluator re-checks expiry alerts for a batch.
// Wired to the alert evaluator; nil disables the post-create check.
type ExpiryEvaluator interface {
	EvaluateExpiry(ctx context.Context, batchID id.ID) error
}

// Service provides business logic for batches.
type Service struct {
	repo      Repository
	products  ProductReader
	txManager tx.Manager
	evaluator ExpiryEvaluator
}

// NewService creates a new Batch service.
func NewService(repo Repository, products ProductReader, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		txManager: txManager,
	}
}

// SetExpiryEvaluator wires the alert evaluator.
// Set after construction to break the alert -> batch -> alert dependency loop.
func (s *Service) SetExpiryEvaluator(e ExpiryEvaluator) {
	s.evaluator = e
}

// Create registers a new batch for a batch-tracked product.
func (s *Service) Create(ctx context.Context, b *Batch) error {
	if err := b.Validate(ctx); err != nil {
		return err
	}

	p, err := s.products.GetByID(ctx, b.ProductID)
	if err != nil {
		return err
	}
	if !p.TrackBatch {
		return apperror.NewValidation("product is not batch-tracked").
			WithDetail("product_id", b.ProductID.String())
	}
	if p.TrackExpiry && b.ExpiresAt == nil {
		return apperror.NewValidation("expiry date is required for expiry-tracked product").
			WithDetail("field", "expiresAt")
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByNumber(ctx, b.ProductID, b.BatchNumber)
		if err != nil {
			return fmt.Errorf("check batch number: %w", err)
		}
		if exists {
			return apperror.NewDuplicate("batch", "batch_number", b.BatchNumber)
		}
		return s.repo.Create(ctx, b)
	})
	if err != nil {
		return err
	}

	// Post-commit: a lot can arrive already inside its warning window
	if s.evaluator != nil {
		if err := s.evaluator.EvaluateExpiry(ctx, b.ID); err != nil {
			logger.Warn(ctx, "expiry evaluation after batch create failed",
				"batch_id", b.ID.String(), "error", err)
		}
	}

	return nil
}

// GetByID retrieves batch by ID.
func (s *Service) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.repo.GetByID(ctx, batchID)
}

// Update modifies an existing batch.
func (s *Service) Update(ctx context.Context, b *Batch) error {
	if err := b.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, b)
	})
}

// Delete removes a batch that no stock cell references.
func (s *Service) Delete(ctx context.Context, batchID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, batchID)
	})
}

// List retrieves batches with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Batch, error) {
	return s.repo.List(ctx, filter)
}
