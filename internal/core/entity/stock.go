// Package entity provides core domain entities.
package entity

import (
	"time"

	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
)

// StockStatus is the derived availability state of a stock cell.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// DeriveStockStatus computes cell status from quantity and the product's
// minimum stock threshold. Zero or negative quantity is out of stock,
// quantity at or below the threshold is low stock.
func DeriveStockStatus(quantity, minStock types.Quantity) StockStatus {
	switch {
	case quantity <= 0:
		return StockStatusOutOfStock
	case quantity <= minStock:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// EntryType defines movement direction for the stock log.
type EntryType string

const (
	// EntryTypeIn increases cell quantity (receipt, inbound transfer leg)
	EntryTypeIn EntryType = "in"
	// EntryTypeOut decreases cell quantity (issue, outbound transfer leg)
	EntryTypeOut EntryType = "out"
	// EntryTypeAdjustment corrects quantity after a physical count
	EntryTypeAdjustment EntryType = "adjustment"
)

// CellKey identifies a stock cell by its dimensions.
// BatchID is nil for products that are not batch-tracked.
type CellKey struct {
	ProductID  id.ID
	LocationID id.ID
	BatchID    *id.ID
}

// StockCell is the current quantity of one product at one location,
// optionally split by batch. Cells are the unit of locking: every
// mutation takes a row lock on the cell before touching quantity.
type StockCell struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Dimensions
	ProductID  id.ID  `db:"product_id" json:"productId"`
	LocationID id.ID  `db:"location_id" json:"locationId"`
	BatchID    *id.ID `db:"batch_id" json:"batchId,omitempty"`

	// Resources
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Reserved types.Quantity `db:"reserved" json:"reserved"`

	// Status is derived from Quantity vs the product's min stock threshold.
	// Persisted for cheap filtering; recomputed on every mutation.
	Status StockStatus `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewStockCell creates a cell with zero quantities.
func NewStockCell(key CellKey) StockCell {
	now := time.Now().UTC()
	return StockCell{
		ID:         id.New(),
		ProductID:  key.ProductID,
		LocationID: key.LocationID,
		BatchID:    key.BatchID,
		Status:     StockStatusOutOfStock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Key returns the cell's dimension key.
func (c *StockCell) Key() CellKey {
	return CellKey{ProductID: c.ProductID, LocationID: c.LocationID, BatchID: c.BatchID}
}

// Available returns quantity not committed to reservations.
func (c *StockCell) Available() types.Quantity {
	return c.Quantity - c.Reserved
}

// StockLogEntry is one immutable line in the append-only stock log.
// Entries are never updated; replaying deltas per cell reproduces the
// cell's current quantity exactly.
type StockLogEntry struct {
	// LineID is unique identifier for this log line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// CellID is the cell this entry mutated
	CellID id.ID `db:"cell_id" json:"cellId"`

	// Dimensions (denormalized from the cell for product-level queries)
	ProductID  id.ID  `db:"product_id" json:"productId"`
	LocationID id.ID  `db:"location_id" json:"locationId"`
	BatchID    *id.ID `db:"batch_id" json:"batchId,omitempty"`

	// Delta is the signed quantity change applied to the cell
	Delta types.Quantity `db:"delta" json:"delta"`

	// EntryType: in, out or adjustment
	EntryType EntryType `db:"entry_type" json:"entryType"`

	// Reference names the business operation (document number, order id)
	Reference string `db:"reference" json:"reference,omitempty"`

	// ActorID is who performed the mutation
	ActorID string `db:"actor_id" json:"actorId,omitempty"`

	// CreatedAt is when the entry was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockLogEntry creates a log line for a cell mutation.
func NewStockLogEntry(cell *StockCell, delta types.Quantity, entryType EntryType, reference, actorID string) StockLogEntry {
	return StockLogEntry{
		LineID:     id.New(),
		CellID:     cell.ID,
		ProductID:  cell.ProductID,
		LocationID: cell.LocationID,
		BatchID:    cell.BatchID,
		Delta:      delta,
		EntryType:  entryType,
		Reference:  reference,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	}
}
