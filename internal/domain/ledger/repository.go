// Package ledger provides the cell-level stock ledger.
package ledger

import (
	"context"
	"time"

	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
)

// Repository defines operations for stock cells and the stock log.
type Repository interface {
	// Cell operations

	// GetCell returns the cell for the given dimensions, NotFound when absent
	GetCell(ctx context.Context, key entity.CellKey) (*entity.StockCell, error)

	// GetCellByID returns the cell by primary key
	GetCellByID(ctx context.Context, cellID id.ID) (*entity.StockCell, error)

	// GetCellForUpdate returns the cell with a FOR UPDATE row lock
	GetCellForUpdate(ctx context.Context, key entity.CellKey) (*entity.StockCell, error)

	// GetCellByIDForUpdate returns the cell by primary key with a row lock
	GetCellByIDForUpdate(ctx context.Context, cellID id.ID) (*entity.StockCell, error)

	// InsertCell inserts a new cell
	InsertCell(ctx context.Context, cell *entity.StockCell) error

	// UpdateCell persists quantity, reserved and status changes
	UpdateCell(ctx context.Context, cell *entity.StockCell) error

	// DeleteCell removes a cell row
	DeleteCell(ctx context.Context, cellID id.ID) error

	// ListCells retrieves cells with filtering
	ListCells(ctx context.Context, filter CellFilter) ([]entity.StockCell, error)

	// ListCellsForUpdate locks and returns all cells of a product at a location,
	// ordered by created_at then id. Deterministic order keeps concurrent
	// allocations from deadlocking and gives FIFO its consumption order.
	ListCellsForUpdate(ctx context.Context, productID, locationID id.ID) ([]entity.StockCell, error)

	// Log operations

	// AppendLog batch inserts log entries (entries are immutable)
	AppendLog(ctx context.Context, entries []entity.StockLogEntry) error

	// ListLog retrieves log entries with filtering, newest first
	ListLog(ctx context.Context, filter LogFilter) ([]entity.StockLogEntry, error)

	// Aggregates

	// TotalStock returns the product quantity summed over all cells
	TotalStock(ctx context.Context, productID id.ID) (types.Quantity, error)

	// ReplayCell sums log deltas for a cell (consistency checks)
	ReplayCell(ctx context.Context, cellID id.ID) (types.Quantity, error)
}

// CellFilter for filtering cell queries.
type CellFilter struct {
	ProductID  *id.ID
	LocationID *id.ID
	BatchID    *id.ID
	Status     *entity.StockStatus

	// ExcludeEmpty skips cells with zero quantity
	ExcludeEmpty bool

	Limit  int
	Offset int
}

// LogFilter for filtering the stock log.
type LogFilter struct {
	ProductID  *id.ID
	LocationID *id.ID
	CellID     *id.ID
	EntryType  *entity.EntryType
	Reference  string
	FromDate   *time.Time
	ToDate     *time.Time

	Limit  int
	Offset int
}
