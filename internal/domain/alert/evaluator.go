package alert

import (
	"context"
	"fmt"
	"time"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/core/tx"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/batch"
	"stockpile/internal/domain/catalogs/product"
	"stockpile/pkg/logger"
)

// StockTotaller reads aggregate stock (subset of the ledger repository).
type StockTotaller interface {
	TotalStock(ctx context.Context, productID id.ID) (types.Quantity, error)
}

// ProductReader is the subset of the product catalog the evaluator needs.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// Policy tunes evaluator behavior.
type Policy struct {
	// ExpiryWarningWindow is how far ahead expiry alerts fire. Default 30 days.
	ExpiryWarningWindow time.Duration
}

// DefaultPolicy returns standard evaluation settings.
func DefaultPolicy() Policy {
	return Policy{
		ExpiryWarningWindow: 30 * 24 * time.Hour,
	}
}

// Evaluator re-checks alert conditions after ledger mutations.
//
// Each evaluation runs in its own transaction so the dedup read and the
// create/update land atomically. The evaluator only raises or refreshes
// alerts, never resolves them: when a condition stops holding, the
// existing alert stays active until someone resolves or dismisses it
// through the alert service.
type Evaluator struct {
	repo      Repository
	stocks    StockTotaller
	products  ProductReader
	batches   batch.Reader
	txManager tx.Manager
	policy    Policy
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(repo Repository, stocks StockTotaller, products ProductReader, batches batch.Reader, txManager tx.Manager, policy Policy) *Evaluator {
	if policy.ExpiryWarningWindow <= 0 {
		policy.ExpiryWarningWindow = DefaultPolicy().ExpiryWarningWindow
	}
	return &Evaluator{
		repo:      repo,
		stocks:    stocks,
		products:  products,
		batches:   batches,
		txManager: txManager,
		policy:    policy,
	}
}

// EvaluateStock re-checks low-stock and reorder conditions for a product
// against its total quantity across all locations.
func (e *Evaluator) EvaluateStock(ctx context.Context, productID id.ID) error {
	return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		total, err := e.stocks.TotalStock(ctx, productID)
		if err != nil {
			return fmt.Errorf("total stock: %w", err)
		}

		p, err := e.products.GetByID(ctx, productID)
		if err != nil {
			return err
		}

		if err := e.evaluateLowStock(ctx, p, total); err != nil {
			return err
		}
		return e.evaluateReorder(ctx, p, total)
	})
}

func (e *Evaluator) evaluateLowStock(ctx context.Context, p *product.Product, total types.Quantity) error {
	switch {
	case total <= 0:
		return e.ensure(ctx, p.ID, TypeLowStock, nil, SeverityHigh,
			fmt.Sprintf("product %s is out of stock", p.Name),
			map[string]any{
				"total":     total.Float64(),
				"min_stock": p.MinStock.Float64(),
			})
	case p.HasMinStock() && total <= p.MinStock:
		return e.ensure(ctx, p.ID, TypeLowStock, nil, SeverityMedium,
			fmt.Sprintf("product %s is below min stock", p.Name),
			map[string]any{
				"total":     total.Float64(),
				"min_stock": p.MinStock.Float64(),
			})
	default:
		return nil
	}
}

// evaluateReorder raises a purchase hint when the product has a capacity
// target and stock fell to the threshold. Suggested quantity refills to max.
func (e *Evaluator) evaluateReorder(ctx context.Context, p *product.Product, total types.Quantity) error {
	needsReorder := p.HasMinStock() && !p.MaxStock.IsZero() && total <= p.MinStock
	if !needsReorder {
		return nil
	}

	suggested := p.MaxStock - total
	return e.ensure(ctx, p.ID, TypeReorder, nil, SeverityLow,
		fmt.Sprintf("product %s should be reordered", p.Name),
		map[string]any{
			"total":         total.Float64(),
			"max_stock":     p.MaxStock.Float64(),
			"suggested_qty": suggested.Float64(),
		})
}

// EvaluateExpiry re-checks the expiry condition for one batch.
func (e *Evaluator) EvaluateExpiry(ctx context.Context, batchID id.ID) error {
	return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := e.batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if b.ExpiresAt == nil {
			return nil
		}

		now := time.Now().UTC()
		details := map[string]any{
			"batch_number": b.BatchNumber,
			"expires_at":   b.ExpiresAt.Format(time.RFC3339),
		}

		switch {
		case b.IsExpired(now):
			return e.ensure(ctx, b.ProductID, TypeExpiry, &b.ID, SeverityHigh,
				fmt.Sprintf("batch %s has expired", b.BatchNumber), details)
		case b.ExpiresWithin(e.policy.ExpiryWarningWindow, now):
			return e.ensure(ctx, b.ProductID, TypeExpiry, &b.ID, SeverityMedium,
				fmt.Sprintf("batch %s expires soon", b.BatchNumber), details)
		default:
			return nil
		}
	})
}

// ensure creates the active alert for the dedup key, or refreshes severity,
// message and details on the existing one.
//
// The key lock must come before the dedup read: FindActive alone cannot
// serialize two first raises, since there is no row to lock yet.
func (e *Evaluator) ensure(ctx context.Context, productID id.ID, alertType AlertType, batchID *id.ID, severity Severity, message string, details map[string]any) error {
	if err := e.repo.AcquireKeyLock(ctx, productID, alertType, batchID); err != nil {
		return err
	}

	existing, err := e.repo.FindActive(ctx, productID, alertType, batchID)
	if err == nil {
		if existing.Severity == severity && existing.Message == message {
			return nil
		}
		existing.Severity = severity
		existing.Message = message
		existing.Details = details
		existing.UpdatedAt = time.Now().UTC()
		return e.repo.Update(ctx, existing)
	}
	if !apperror.IsNotFound(err) {
		return err
	}

	a := NewAlert(productID, alertType, severity, message)
	a.BatchID = batchID
	a.Details = details
	if err := a.Validate(ctx); err != nil {
		return err
	}
	if err := e.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}

	logger.Info(ctx, "alert raised",
		"alert_id", a.ID.String(),
		"product_id", productID.String(),
		"type", string(alertType),
		"severity", string(severity),
	)
	return nil
}
