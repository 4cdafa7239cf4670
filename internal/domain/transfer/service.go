package transfer

import (
	"context"
	"fmt"
	"time"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/numerator"
	"stockpile/internal/core/tx"
	"stockpile/internal/domain/allocation"
	"stockpile/internal/domain/audit"
	"stockpile/internal/domain/catalogs/location"
	"stockpile/internal/domain/ledger"
	"stockpile/pkg/logger"
)

// LocationReader is the subset of the location catalog the service needs.
type LocationReader interface {
	GetByID(ctx context.Context, id id.ID) (*location.Location, error)
}

// AuditRecorder writes audit trail entries for document changes.
// Nil disables auditing.
type AuditRecorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Service provides business logic for transfers.
//
// The lifecycle is pending -> in_transit -> completed, with cancel legal
// from the two non-terminal states. Stock moves exactly once, atomically,
// on the in_transit -> completed transition.
type Service struct {
	repo      Repository
	locations LocationReader
	engine    *allocation.Engine
	ledger    *ledger.Service
	numerator numerator.Generator
	txManager tx.Manager
	audit     AuditRecorder
}

// NewService creates a new Transfer service.
func NewService(
	repo Repository,
	locations LocationReader,
	engine *allocation.Engine,
	ledgerSvc *ledger.Service,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		locations: locations,
		engine:    engine,
		ledger:    ledgerSvc,
		numerator: gen,
		txManager: txManager,
	}
}

// SetAuditRecorder wires the audit trail writer.
func (s *Service) SetAuditRecorder(a AuditRecorder) {
	s.audit = a
}

// Create registers a new pending transfer.
// Availability is NOT checked here: stock is only validated and consumed
// on completion, against the stock present at that moment.
func (s *Service) Create(ctx context.Context, t *Transfer) error {
	if err := t.Validate(ctx); err != nil {
		return err
	}

	for _, locID := range []id.ID{t.FromLocationID, t.ToLocationID} {
		loc, err := s.locations.GetByID(ctx, locID)
		if err != nil {
			return err
		}
		if !loc.CanHoldStock() {
			return apperror.NewValidation("location cannot hold stock").
				WithDetail("location_id", locID.String())
		}
	}

	if t.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("TR"), nil, t.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		t.Number = number
	}

	audit.EnrichCreatedByDirect(ctx, &t.CreatedBy, &t.UpdatedBy)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, t)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, t, "create", map[string]any{
		"number": t.Number,
		"from":   t.FromLocationID.String(),
		"to":     t.ToLocationID.String(),
		"items":  len(t.Items),
	})

	logger.Info(ctx, "transfer created",
		"transfer_id", t.ID.String(),
		"number", t.Number,
	)

	return nil
}

// GetByID retrieves a transfer with items.
func (s *Service) GetByID(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.repo.GetByID(ctx, transferID)
}

// List retrieves transfer headers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	return s.repo.List(ctx, filter)
}

// Act applies a lifecycle action to a transfer.
//
// The document is locked for the whole transition, so two concurrent
// complete calls serialize and the loser fails on the legality table.
func (s *Service) Act(ctx context.Context, transferID id.ID, action Action) (*Transfer, error) {
	var t *Transfer
	var moved []allocation.Deduction

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.repo.GetByIDForUpdate(ctx, transferID)
		if err != nil {
			return err
		}

		next, err := t.NextStatus(action)
		if err != nil {
			return err
		}

		if action == ActionComplete {
			moved, err = s.moveStock(ctx, t)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			t.CompletedAt = &now
		}

		t.Status = next
		audit.EnrichUpdatedByDirect(ctx, &t.UpdatedBy)
		return s.repo.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	if action == ActionComplete {
		for _, productID := range distinctProducts(t.Items) {
			s.ledger.EvaluateAfterCommit(ctx, productID)
		}
	}

	s.recordAudit(ctx, t, string(action), map[string]any{
		"status": string(t.Status),
		"cells":  len(moved),
	})

	logger.Info(ctx, "transfer action applied",
		"transfer_id", t.ID.String(),
		"action", string(action),
		"status", string(t.Status),
	)

	return t, nil
}

// moveStock executes both legs of the move inside the caller's transaction:
// an allocation at the source and a matching credit at the destination for
// every deducted cell, preserving batch identity.
func (s *Service) moveStock(ctx context.Context, t *Transfer) ([]allocation.Deduction, error) {
	var moved []allocation.Deduction

	for _, item := range t.Items {
		plan, err := s.engine.AllocateTx(ctx, allocation.Request{
			ProductID:  item.ProductID,
			LocationID: t.FromLocationID,
			Quantity:   item.Quantity,
			BatchID:    item.BatchID,
			Reference:  t.Number,
		})
		if err != nil {
			return nil, err
		}

		for _, d := range plan {
			key := entity.CellKey{
				ProductID:  item.ProductID,
				LocationID: t.ToLocationID,
				BatchID:    d.Cell.BatchID,
			}
			if _, err := s.ledger.CreditTx(ctx, key, d.Quantity, t.Number); err != nil {
				return nil, err
			}
		}

		moved = append(moved, plan...)
	}

	return moved, nil
}

func (s *Service) recordAudit(ctx context.Context, t *Transfer, action string, changes map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogChange(ctx, "transfer", t.ID, action, changes); err != nil {
		logger.Warn(ctx, "audit write failed",
			"transfer_id", t.ID.String(),
			"action", action,
			"error", err,
		)
	}
}

func distinctProducts(items []Item) []id.ID {
	seen := make(map[id.ID]struct{}, len(items))
	var result []id.ID
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		result = append(result, item.ProductID)
	}
	return result
}
