package dto

import (
	"time"

	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/allocation"
)

// --- Cell key ---

// CellKeyRequest identifies a stock cell by its dimensions.
type CellKeyRequest struct {
	ProductID  string  `json:"productId" binding:"required"`
	LocationID string  `json:"locationId" binding:"required"`
	BatchID    *string `json:"batchId"`
}

// ToKey converts DTO to a cell key.
func (r *CellKeyRequest) ToKey() (entity.CellKey, error) {
	var key entity.CellKey

	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return key, err
	}
	locationID, err := id.Parse(r.LocationID)
	if err != nil {
		return key, err
	}
	key.ProductID = productID
	key.LocationID = locationID

	if r.BatchID != nil && *r.BatchID != "" {
		batchID, err := id.Parse(*r.BatchID)
		if err != nil {
			return key, err
		}
		key.BatchID = &batchID
	}

	return key, nil
}

// --- Requests ---

// CreateCellRequest registers a stock cell with an opening quantity.
type CreateCellRequest struct {
	CellKeyRequest
	InitialQuantity types.Quantity `json:"initialQuantity"`
	Reference       string         `json:"reference"`
}

// ApplyDeltaRequest posts a quantity change to a cell.
type ApplyDeltaRequest struct {
	CellKeyRequest
	Delta     types.Quantity   `json:"delta" binding:"required"`
	EntryType entity.EntryType `json:"entryType" binding:"required"`
	Reference string           `json:"reference"`
}

// ReservationRequest reserves or releases quantity on a cell.
type ReservationRequest struct {
	CellKeyRequest
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// AllocationRequest asks the engine to plan or execute an allocation.
type AllocationRequest struct {
	ProductID  string              `json:"productId" binding:"required"`
	LocationID string              `json:"locationId" binding:"required"`
	Quantity   types.Quantity      `json:"quantity" binding:"required"`
	BatchID    *string             `json:"batchId"`
	Strategy   allocation.Strategy `json:"strategy"`
	Reference  string              `json:"reference"`
}

// ToRequest converts DTO to an allocation request.
func (r *AllocationRequest) ToRequest() (allocation.Request, error) {
	var req allocation.Request

	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return req, err
	}
	locationID, err := id.Parse(r.LocationID)
	if err != nil {
		return req, err
	}
	req.ProductID = productID
	req.LocationID = locationID
	req.Quantity = r.Quantity
	req.Strategy = r.Strategy
	req.Reference = r.Reference

	if r.BatchID != nil && *r.BatchID != "" {
		batchID, err := id.Parse(*r.BatchID)
		if err != nil {
			return req, err
		}
		req.BatchID = &batchID
	}

	return req, nil
}

// --- Responses ---

// StockCellResponse is the response body for a stock cell.
type StockCellResponse struct {
	ID         string             `json:"id"`
	ProductID  string             `json:"productId"`
	LocationID string             `json:"locationId"`
	BatchID    *string            `json:"batchId,omitempty"`
	Quantity   types.Quantity     `json:"quantity"`
	Reserved   types.Quantity     `json:"reserved"`
	Available  types.Quantity     `json:"available"`
	Status     entity.StockStatus `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// FromStockCell creates response DTO from domain entity.
func FromStockCell(cell *entity.StockCell) StockCellResponse {
	resp := StockCellResponse{
		ID:         cell.ID.String(),
		ProductID:  cell.ProductID.String(),
		LocationID: cell.LocationID.String(),
		Quantity:   cell.Quantity,
		Reserved:   cell.Reserved,
		Available:  cell.Available(),
		Status:     cell.Status,
		CreatedAt:  cell.CreatedAt,
		UpdatedAt:  cell.UpdatedAt,
	}
	if cell.BatchID != nil {
		s := cell.BatchID.String()
		resp.BatchID = &s
	}
	return resp
}

// StockCellListResponse wraps a cell list.
type StockCellListResponse struct {
	Items []StockCellResponse `json:"items"`
}

// StockLogEntryResponse is the response body for a stock log entry.
type StockLogEntryResponse struct {
	LineID     string           `json:"lineId"`
	CellID     string           `json:"cellId"`
	ProductID  string           `json:"productId"`
	LocationID string           `json:"locationId"`
	BatchID    *string          `json:"batchId,omitempty"`
	Delta      types.Quantity   `json:"delta"`
	EntryType  entity.EntryType `json:"entryType"`
	Reference  string           `json:"reference,omitempty"`
	ActorID    string           `json:"actorId,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// FromStockLogEntry creates response DTO from domain entity.
func FromStockLogEntry(e *entity.StockLogEntry) StockLogEntryResponse {
	resp := StockLogEntryResponse{
		LineID:     e.LineID.String(),
		CellID:     e.CellID.String(),
		ProductID:  e.ProductID.String(),
		LocationID: e.LocationID.String(),
		Delta:      e.Delta,
		EntryType:  e.EntryType,
		Reference:  e.Reference,
		ActorID:    e.ActorID,
		CreatedAt:  e.CreatedAt,
	}
	if e.BatchID != nil {
		s := e.BatchID.String()
		resp.BatchID = &s
	}
	return resp
}

// StockLogListResponse wraps a log entry list.
type StockLogListResponse struct {
	Items []StockLogEntryResponse `json:"items"`
}

// TotalStockResponse reports a product total across all cells.
type TotalStockResponse struct {
	ProductID string         `json:"productId"`
	Total     types.Quantity `json:"total"`
}

// VerifyCellResponse reports a replay consistency check.
type VerifyCellResponse struct {
	CellID   string         `json:"cellId"`
	Replayed types.Quantity `json:"replayed"`
	Valid    bool           `json:"valid"`
}

// DeductionResponse is one planned or executed cell consumption.
type DeductionResponse struct {
	Cell     StockCellResponse `json:"cell"`
	Quantity types.Quantity    `json:"quantity"`
}

// AllocationResponse wraps allocation deductions.
type AllocationResponse struct {
	Deductions []DeductionResponse `json:"deductions"`
}

// FromDeductions creates response DTO from engine deductions.
func FromDeductions(deductions []allocation.Deduction) AllocationResponse {
	items := make([]DeductionResponse, len(deductions))
	for i, d := range deductions {
		cell := d.Cell
		items[i] = DeductionResponse{
			Cell:     FromStockCell(&cell),
			Quantity: d.Quantity,
		}
	}
	return AllocationResponse{Deductions: items}
}
