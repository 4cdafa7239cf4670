package dto

import (
	"time"

	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/transfer"
)

// --- Request DTOs ---

// TransferItemRequest is one line of a transfer document.
type TransferItemRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	BatchID   *string        `json:"batchId"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitCost  types.Money    `json:"unitCost"`
}

// CreateTransferRequest is the request body for creating a transfer.
type CreateTransferRequest struct {
	FromLocationID string                `json:"fromLocationId" binding:"required"`
	ToLocationID   string                `json:"toLocationId" binding:"required"`
	Date           *time.Time            `json:"date"`
	Comment        string                `json:"comment"`
	Items          []TransferItemRequest `json:"items" binding:"required,min=1"`
	Attributes     entity.Attributes     `json:"attributes"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateTransferRequest) ToEntity() (*transfer.Transfer, error) {
	fromID, err := id.Parse(r.FromLocationID)
	if err != nil {
		return nil, err
	}
	toID, err := id.Parse(r.ToLocationID)
	if err != nil {
		return nil, err
	}

	t := transfer.NewTransfer(fromID, toID)
	if r.Date != nil {
		t.Date = *r.Date
	}
	t.Comment = r.Comment
	if r.Attributes != nil {
		t.Attributes = r.Attributes
	}

	for _, item := range r.Items {
		productID, err := id.Parse(item.ProductID)
		if err != nil {
			return nil, err
		}
		var batchID *id.ID
		if item.BatchID != nil && *item.BatchID != "" {
			parsed, err := id.Parse(*item.BatchID)
			if err != nil {
				return nil, err
			}
			batchID = &parsed
		}
		t.AddItem(productID, batchID, item.Quantity, item.UnitCost)
	}

	return t, nil
}

// TransferActionRequest performs a lifecycle action on a transfer.
type TransferActionRequest struct {
	Action transfer.Action `json:"action" binding:"required"`
}

// --- Response DTOs ---

// TransferItemResponse is one line of a transfer document.
type TransferItemResponse struct {
	LineID    string         `json:"lineId"`
	LineNo    int            `json:"lineNo"`
	ProductID string         `json:"productId"`
	BatchID   *string        `json:"batchId,omitempty"`
	Quantity  types.Quantity `json:"quantity"`
	UnitCost  types.Money    `json:"unitCost"`
}

// TransferResponse is the response body for a transfer.
type TransferResponse struct {
	ID             string                 `json:"id"`
	Number         string                 `json:"number"`
	Date           time.Time              `json:"date"`
	Status         transfer.Status        `json:"status"`
	FromLocationID string                 `json:"fromLocationId"`
	ToLocationID   string                 `json:"toLocationId"`
	Comment        string                 `json:"comment,omitempty"`
	CompletedAt    *time.Time             `json:"completedAt,omitempty"`
	Items          []TransferItemResponse `json:"items,omitempty"`
	DeletionMark   bool                   `json:"deletionMark"`
	Version        int                    `json:"version"`
	Attributes     entity.Attributes      `json:"attributes,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// FromTransfer creates response DTO from domain entity.
func FromTransfer(t *transfer.Transfer) *TransferResponse {
	resp := &TransferResponse{
		ID:             t.ID.String(),
		Number:         t.Number,
		Date:           t.Date,
		Status:         t.Status,
		FromLocationID: t.FromLocationID.String(),
		ToLocationID:   t.ToLocationID.String(),
		Comment:        t.Comment,
		CompletedAt:    t.CompletedAt,
		DeletionMark:   t.DeletionMark,
		Version:        t.Version,
		Attributes:     t.Attributes,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}

	for _, item := range t.Items {
		itemResp := TransferItemResponse{
			LineID:    item.LineID.String(),
			LineNo:    item.LineNo,
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
		}
		if item.BatchID != nil {
			s := item.BatchID.String()
			itemResp.BatchID = &s
		}
		resp.Items = append(resp.Items, itemResp)
	}

	return resp
}

// TransferListResponse wraps a transfer list.
type TransferListResponse struct {
	Items []*TransferResponse `json:"items"`
}
