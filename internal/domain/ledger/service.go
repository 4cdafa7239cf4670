// Package ledger provides the cell-level stock ledger service.
package ledger

import (
	"context"
	"fmt"

	"stockpile/internal/core/apperror"
	appctx "stockpile/internal/core/context"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/tx"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/catalogs/product"
	"stockpile/pkg/logger"
)

// ProductReader is the subset of the product catalog the ledger needs.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// StockEvaluator re-checks stock alerts for a product after a mutation.
// Wired to the alert evaluator; nil disables post-commit checks.
type StockEvaluator interface {
	EvaluateStock(ctx context.Context, productID id.ID) error
}

// Service provides business operations for the stock ledger.
//
// Every mutation locks the target cell, re-derives its status and appends
// exactly one immutable log entry inside the same transaction. The log is
// the source of truth: replaying its deltas per cell reproduces the cell
// quantity exactly.
type Service struct {
	repo      Repository
	products  ProductReader
	txManager tx.Manager
	evaluator StockEvaluator
}

// NewService creates a new ledger service.
func NewService(repo Repository, products ProductReader, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		txManager: txManager,
	}
}

// SetStockEvaluator wires the alert evaluator.
// Set after construction to break the alert -> ledger -> alert dependency loop.
func (s *Service) SetStockEvaluator(e StockEvaluator) {
	s.evaluator = e
}

// ApplyDelta applies a signed quantity change to a cell.
//
// The cell is locked, checked against the non-negative invariants, updated
// together with its derived status, and one log entry is appended - all in
// one transaction. Alert evaluation runs after commit.
func (s *Service) ApplyDelta(ctx context.Context, key entity.CellKey, delta types.Quantity, entryType entity.EntryType, reference string) (*entity.StockCell, error) {
	var cell *entity.StockCell

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		cell, err = s.ApplyDeltaTx(ctx, key, delta, entryType, reference)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.evaluateAfterCommit(ctx, key.ProductID)

	return cell, nil
}

// ApplyDeltaTx is ApplyDelta for callers that already hold a transaction
// (allocation engine, transfer completion). No alert evaluation: the caller
// evaluates after its own commit.
func (s *Service) ApplyDeltaTx(ctx context.Context, key entity.CellKey, delta types.Quantity, entryType entity.EntryType, reference string) (*entity.StockCell, error) {
	if err := validateEntryType(entryType, delta); err != nil {
		return nil, err
	}

	cell, err := s.repo.GetCellForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}

	newQty := cell.Quantity + delta
	if newQty.IsNegative() {
		return nil, apperror.NewInsufficientStock(
			key.ProductID.String(),
			delta.Neg().Float64(),
			cell.Quantity.Float64(),
		).WithDetail("location_id", key.LocationID.String())
	}
	if newQty < cell.Reserved {
		return nil, apperror.NewInsufficientStock(
			key.ProductID.String(),
			delta.Neg().Float64(),
			cell.Available().Float64(),
		).WithDetail("reserved", cell.Reserved.Float64())
	}

	p, err := s.products.GetByID(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}

	cell.Quantity = newQty
	cell.Status = entity.DeriveStockStatus(newQty, p.MinStock)
	if err := s.repo.UpdateCell(ctx, cell); err != nil {
		return nil, fmt.Errorf("update cell: %w", err)
	}

	entry := entity.NewStockLogEntry(cell, delta, entryType, reference, appctx.GetActorID(ctx))
	if err := s.repo.AppendLog(ctx, []entity.StockLogEntry{entry}); err != nil {
		return nil, fmt.Errorf("append log: %w", err)
	}

	logger.Debug(ctx, "applied stock delta",
		"cell_id", cell.ID.String(),
		"delta", delta.String(),
		"entry_type", string(entryType),
		"reference", reference,
	)

	return cell, nil
}

// CreditTx adds quantity to the cell for key, creating the cell when it
// does not exist yet. Caller-managed transaction (transfer completion);
// the caller evaluates alerts after its own commit.
func (s *Service) CreditTx(ctx context.Context, key entity.CellKey, amount types.Quantity, reference string) (*entity.StockCell, error) {
	if amount.IsNegative() {
		return nil, apperror.NewValidation("credit amount cannot be negative").
			WithDetail("field", "amount")
	}

	_, err := s.repo.GetCellForUpdate(ctx, key)
	if err == nil {
		return s.ApplyDeltaTx(ctx, key, amount, entity.EntryTypeIn, reference)
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}

	created := entity.NewStockCell(key)
	created.Quantity = amount
	created.Status = entity.DeriveStockStatus(amount, p.MinStock)
	if err := s.repo.InsertCell(ctx, &created); err != nil {
		return nil, fmt.Errorf("insert cell: %w", err)
	}

	entry := entity.NewStockLogEntry(&created, amount, entity.EntryTypeIn, reference, appctx.GetActorID(ctx))
	if err := s.repo.AppendLog(ctx, []entity.StockLogEntry{entry}); err != nil {
		return nil, fmt.Errorf("append log: %w", err)
	}

	return &created, nil
}

// CreateCell creates a cell with an initial quantity.
// Idempotent on dimensions: if the cell already exists, the initial quantity
// is applied as an inbound delta instead of failing.
func (s *Service) CreateCell(ctx context.Context, key entity.CellKey, initial types.Quantity, reference string) (*entity.StockCell, error) {
	if initial.IsNegative() {
		return nil, apperror.NewValidation("initial quantity cannot be negative").
			WithDetail("field", "quantity")
	}

	p, err := s.products.GetByID(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsPhysical() {
		return nil, apperror.NewValidation("services cannot hold stock").
			WithDetail("product_id", key.ProductID.String())
	}
	if key.BatchID != nil && !p.TrackBatch {
		return nil, apperror.NewValidation("product is not batch-tracked").
			WithDetail("product_id", key.ProductID.String())
	}
	if key.BatchID == nil && p.TrackBatch {
		return nil, apperror.NewValidation("batch is required for batch-tracked product").
			WithDetail("product_id", key.ProductID.String())
	}

	var cell *entity.StockCell
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetCellForUpdate(ctx, key)
		if err == nil {
			// Cell already exists: fold the initial quantity in as a receipt.
			cell = existing
			if initial.IsZero() {
				return nil
			}
			cell, err = s.ApplyDeltaTx(ctx, key, initial, entity.EntryTypeIn, reference)
			return err
		}
		if !apperror.IsNotFound(err) {
			return err
		}

		created := entity.NewStockCell(key)
		created.Quantity = initial
		created.Status = entity.DeriveStockStatus(initial, p.MinStock)
		if err := s.repo.InsertCell(ctx, &created); err != nil {
			return fmt.Errorf("insert cell: %w", err)
		}

		entry := entity.NewStockLogEntry(&created, initial, entity.EntryTypeIn, reference, appctx.GetActorID(ctx))
		if err := s.repo.AppendLog(ctx, []entity.StockLogEntry{entry}); err != nil {
			return fmt.Errorf("append log: %w", err)
		}

		cell = &created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.evaluateAfterCommit(ctx, key.ProductID)

	return cell, nil
}

// DeleteCell removes a cell. Remaining quantity is written off with a
// synthetic outbound entry first, so the log still replays to zero.
func (s *Service) DeleteCell(ctx context.Context, cellID id.ID, reference string) error {
	var productID id.ID

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cell, err := s.repo.GetCellByIDForUpdate(ctx, cellID)
		if err != nil {
			return err
		}
		productID = cell.ProductID

		if cell.Reserved.IsPositive() {
			return apperror.NewConflict("cell has active reservations").
				WithDetail("cell_id", cellID.String()).
				WithDetail("reserved", cell.Reserved.Float64())
		}

		if cell.Quantity.IsPositive() {
			entry := entity.NewStockLogEntry(cell, cell.Quantity.Neg(), entity.EntryTypeOut, reference, appctx.GetActorID(ctx))
			if err := s.repo.AppendLog(ctx, []entity.StockLogEntry{entry}); err != nil {
				return fmt.Errorf("append log: %w", err)
			}
		}

		return s.repo.DeleteCell(ctx, cellID)
	})
	if err != nil {
		return err
	}

	s.evaluateAfterCommit(ctx, productID)

	return nil
}

// Reserve commits part of a cell's quantity to an open order.
// Reservations never touch quantity, so no log entry is written.
func (s *Service) Reserve(ctx context.Context, key entity.CellKey, amount types.Quantity) (*entity.StockCell, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("reservation amount must be positive").
			WithDetail("field", "amount")
	}

	var cell *entity.StockCell
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		cell, err = s.repo.GetCellForUpdate(ctx, key)
		if err != nil {
			return err
		}

		if cell.Available() < amount {
			return apperror.NewInsufficientStock(
				key.ProductID.String(),
				amount.Float64(),
				cell.Available().Float64(),
			).WithDetail("reserved", cell.Reserved.Float64())
		}

		cell.Reserved += amount
		return s.repo.UpdateCell(ctx, cell)
	})
	if err != nil {
		return nil, err
	}
	return cell, nil
}

// Release returns reserved quantity back to available.
func (s *Service) Release(ctx context.Context, key entity.CellKey, amount types.Quantity) (*entity.StockCell, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("release amount must be positive").
			WithDetail("field", "amount")
	}

	var cell *entity.StockCell
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		cell, err = s.repo.GetCellForUpdate(ctx, key)
		if err != nil {
			return err
		}

		if cell.Reserved < amount {
			return apperror.NewValidation("cannot release more than reserved").
				WithDetail("reserved", cell.Reserved.Float64()).
				WithDetail("amount", amount.Float64())
		}

		cell.Reserved -= amount
		return s.repo.UpdateCell(ctx, cell)
	})
	if err != nil {
		return nil, err
	}
	return cell, nil
}

// GetCell returns the cell for the given dimensions.
func (s *Service) GetCell(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	return s.repo.GetCell(ctx, key)
}

// GetCellByID returns the cell by primary key.
func (s *Service) GetCellByID(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	return s.repo.GetCellByID(ctx, cellID)
}

// ListCells retrieves cells with filtering.
func (s *Service) ListCells(ctx context.Context, filter CellFilter) ([]entity.StockCell, error) {
	return s.repo.ListCells(ctx, filter)
}

// ListLog retrieves stock log entries, newest first.
func (s *Service) ListLog(ctx context.Context, filter LogFilter) ([]entity.StockLogEntry, error) {
	return s.repo.ListLog(ctx, filter)
}

// TotalStock returns product quantity summed over all cells.
func (s *Service) TotalStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return s.repo.TotalStock(ctx, productID)
}

// VerifyCell replays the log for a cell and compares with the stored quantity.
// Returns the replayed total; a mismatch is reported as a Conflict error.
func (s *Service) VerifyCell(ctx context.Context, cellID id.ID) (types.Quantity, error) {
	cell, err := s.repo.GetCellByID(ctx, cellID)
	if err != nil {
		return 0, err
	}

	replayed, err := s.repo.ReplayCell(ctx, cellID)
	if err != nil {
		return 0, fmt.Errorf("replay cell: %w", err)
	}

	if replayed != cell.Quantity {
		return replayed, apperror.NewConflict("cell quantity diverged from log").
			WithDetail("cell_id", cellID.String()).
			WithDetail("stored", cell.Quantity.Float64()).
			WithDetail("replayed", replayed.Float64())
	}

	return replayed, nil
}

// EvaluateAfterCommit triggers post-commit alert evaluation for a product.
// Exported for callers that batch several ApplyDeltaTx calls in one transaction.
func (s *Service) EvaluateAfterCommit(ctx context.Context, productID id.ID) {
	s.evaluateAfterCommit(ctx, productID)
}

func (s *Service) evaluateAfterCommit(ctx context.Context, productID id.ID) {
	if s.evaluator == nil || id.IsNil(productID) {
		return
	}
	if err := s.evaluator.EvaluateStock(ctx, productID); err != nil {
		// Alert evaluation must never fail the mutation that triggered it
		logger.Warn(ctx, "stock alert evaluation failed",
			"product_id", productID.String(),
			"error", err,
		)
	}
}

func validateEntryType(entryType entity.EntryType, delta types.Quantity) error {
	switch entryType {
	case entity.EntryTypeIn:
		if delta.IsNegative() {
			return apperror.NewValidation("inbound entry cannot have negative delta").
				WithDetail("delta", delta.Float64())
		}
	case entity.EntryTypeOut:
		if delta.IsPositive() {
			return apperror.NewValidation("outbound entry cannot have positive delta").
				WithDetail("delta", delta.Float64())
		}
	case entity.EntryTypeAdjustment:
		// any sign
	default:
		return apperror.NewValidation("unknown entry type").
			WithDetail("entry_type", string(entryType))
	}
	return nil
}
