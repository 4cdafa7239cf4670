// Package allocation provides stock allocation across cells.
// Allocation answers "which cells do we take this quantity from" and,
// when asked, actually performs the outbound deductions.
package allocation

import (
	"context"
	"sort"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/tx"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/batch"
	"stockpile/internal/domain/ledger"
)

// Strategy selects the cell consumption order.
type Strategy string

const (
	// StrategyFIFO consumes oldest cells first (cell creation order)
	StrategyFIFO Strategy = "fifo"
	// StrategyFEFO consumes cells with the earliest batch expiry first
	StrategyFEFO Strategy = "fefo"
)

// Request describes an allocation.
type Request struct {
	ProductID  id.ID
	LocationID id.ID
	Quantity   types.Quantity

	// BatchID restricts the allocation to a single batch (optional)
	BatchID *id.ID

	// Strategy defaults to FIFO
	Strategy Strategy

	// Reference names the business operation for the stock log
	Reference string
}

// Deduction is one planned cell consumption.
type Deduction struct {
	Cell     entity.StockCell `json:"cell"`
	Quantity types.Quantity   `json:"quantity"`
}

// Engine plans and executes allocations.
//
// Allocation is all-or-nothing: when total available quantity across the
// candidate cells does not cover the request, nothing is deducted.
type Engine struct {
	ledger    *ledger.Service
	repo      ledger.Repository
	batches   batch.Reader
	txManager tx.Manager
}

// NewEngine creates an allocation engine.
func NewEngine(ledgerSvc *ledger.Service, repo ledger.Repository, batches batch.Reader, txManager tx.Manager) *Engine {
	return &Engine{
		ledger:    ledgerSvc,
		repo:      repo,
		batches:   batches,
		txManager: txManager,
	}
}

// Plan computes deductions without locking or mutating anything.
// Use for availability previews; the plan may be stale by execution time.
func (e *Engine) Plan(ctx context.Context, req Request) ([]Deduction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cells, err := e.repo.ListCells(ctx, ledger.CellFilter{
		ProductID:    &req.ProductID,
		LocationID:   &req.LocationID,
		BatchID:      req.BatchID,
		ExcludeEmpty: true,
	})
	if err != nil {
		return nil, err
	}

	return e.buildPlan(ctx, req, cells)
}

// Allocate locks the candidate cells, plans against the locked state and
// executes every deduction as an outbound ledger entry - one transaction,
// all-or-nothing. Alert evaluation runs once after commit.
func (e *Engine) Allocate(ctx context.Context, req Request) ([]Deduction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var plan []Deduction
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		plan, err = e.AllocateTx(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.ledger.EvaluateAfterCommit(ctx, req.ProductID)

	return plan, nil
}

// AllocateTx is Allocate for callers that already hold a transaction
// (transfer completion). The caller evaluates alerts after its own commit.
func (e *Engine) AllocateTx(ctx context.Context, req Request) ([]Deduction, error) {
	// ListCellsForUpdate returns cells in creation order under row locks;
	// concurrent allocations of the same product+location serialize here.
	cells, err := e.repo.ListCellsForUpdate(ctx, req.ProductID, req.LocationID)
	if err != nil {
		return nil, err
	}

	if req.BatchID != nil {
		cells = filterByBatch(cells, *req.BatchID)
	}

	plan, err := e.buildPlan(ctx, req, cells)
	if err != nil {
		return nil, err
	}

	for _, d := range plan {
		if _, err := e.ledger.ApplyDeltaTx(ctx, d.Cell.Key(), d.Quantity.Neg(), entity.EntryTypeOut, req.Reference); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// buildPlan greedily walks the cells in strategy order, taking
// min(remaining, available) from each until the request is covered.
func (e *Engine) buildPlan(ctx context.Context, req Request, cells []entity.StockCell) ([]Deduction, error) {
	cells, err := e.orderCells(ctx, req.Strategy, cells)
	if err != nil {
		return nil, err
	}

	var available types.Quantity
	for _, c := range cells {
		if c.Available().IsPositive() {
			available += c.Available()
		}
	}
	if available < req.Quantity {
		return nil, apperror.NewInsufficientStock(
			req.ProductID.String(),
			req.Quantity.Float64(),
			available.Float64(),
		).WithDetail("location_id", req.LocationID.String())
	}

	remaining := req.Quantity
	plan := make([]Deduction, 0, len(cells))
	for _, c := range cells {
		if !remaining.IsPositive() {
			break
		}
		take := c.Available()
		if !take.IsPositive() {
			continue
		}
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Deduction{Cell: c, Quantity: take})
		remaining -= take
	}

	return plan, nil
}

// orderCells applies the consumption strategy. Input order is creation
// order (FIFO); FEFO re-sorts by batch expiry with ties broken by the
// original FIFO position, batchless cells last.
func (e *Engine) orderCells(ctx context.Context, strategy Strategy, cells []entity.StockCell) ([]entity.StockCell, error) {
	switch strategy {
	case "", StrategyFIFO:
		return cells, nil
	case StrategyFEFO:
		// fall through below
	default:
		return nil, apperror.NewValidation("unknown allocation strategy").
			WithDetail("strategy", string(strategy))
	}

	type keyed struct {
		cell    entity.StockCell
		expiry  int64 // unix seconds, math.MaxInt64 when absent
		fifoPos int
	}

	const noExpiry = int64(1<<62 - 1)

	ordered := make([]keyed, 0, len(cells))
	for i, c := range cells {
		k := keyed{cell: c, expiry: noExpiry, fifoPos: i}
		if c.BatchID != nil {
			b, err := e.batches.GetByID(ctx, *c.BatchID)
			if err != nil {
				return nil, err
			}
			if b.ExpiresAt != nil {
				k.expiry = b.ExpiresAt.Unix()
			}
		}
		ordered = append(ordered, k)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].expiry != ordered[j].expiry {
			return ordered[i].expiry < ordered[j].expiry
		}
		return ordered[i].fifoPos < ordered[j].fifoPos
	})

	result := make([]entity.StockCell, len(ordered))
	for i, k := range ordered {
		result[i] = k.cell
	}
	return result, nil
}

func filterByBatch(cells []entity.StockCell, batchID id.ID) []entity.StockCell {
	filtered := cells[:0]
	for _, c := range cells {
		if c.BatchID != nil && *c.BatchID == batchID {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func validateRequest(req Request) error {
	if id.IsNil(req.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if id.IsNil(req.LocationID) {
		return apperror.NewValidation("location is required").
			WithDetail("field", "locationId")
	}
	if !req.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	return nil
}
