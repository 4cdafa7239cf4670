package dto

import (
	"time"

	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/batch"
)

// --- Request DTOs ---

// CreateBatchRequest is the request body for registering a batch.
type CreateBatchRequest struct {
	ProductID      string            `json:"productId" binding:"required"`
	BatchNumber    string            `json:"batchNumber" binding:"required"`
	UnitCost       types.Money       `json:"unitCost"`
	ManufacturedAt *time.Time        `json:"manufacturedAt"`
	ExpiresAt      *time.Time        `json:"expiresAt"`
	Attributes     entity.Attributes `json:"attributes"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateBatchRequest) ToEntity() (*batch.Batch, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return nil, err
	}

	b := batch.NewBatch(productID, r.BatchNumber)
	b.UnitCost = r.UnitCost
	b.ManufacturedAt = r.ManufacturedAt
	b.ExpiresAt = r.ExpiresAt
	if r.Attributes != nil {
		b.Attributes = r.Attributes
	}
	return b, nil
}

// UpdateBatchRequest is the request body for updating a batch.
type UpdateBatchRequest struct {
	BatchNumber    string            `json:"batchNumber" binding:"required"`
	UnitCost       types.Money       `json:"unitCost"`
	ManufacturedAt *time.Time        `json:"manufacturedAt,omitempty"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	Attributes     entity.Attributes `json:"attributes"`
	Version        int               `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateBatchRequest) ApplyTo(b *batch.Batch) {
	b.BatchNumber = r.BatchNumber
	b.UnitCost = r.UnitCost
	b.ManufacturedAt = r.ManufacturedAt
	b.ExpiresAt = r.ExpiresAt
	if r.Attributes != nil {
		b.Attributes = r.Attributes
	}
	b.Version = r.Version
}

// --- Response DTOs ---

// BatchResponse is the response body for a batch.
type BatchResponse struct {
	ID             string            `json:"id"`
	ProductID      string            `json:"productId"`
	BatchNumber    string            `json:"batchNumber"`
	UnitCost       types.Money       `json:"unitCost"`
	ManufacturedAt *time.Time        `json:"manufacturedAt,omitempty"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	IsExpired      bool              `json:"isExpired"`
	DeletionMark   bool              `json:"deletionMark"`
	Version        int               `json:"version"`
	Attributes     entity.Attributes `json:"attributes,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// FromBatch creates response DTO from domain entity.
func FromBatch(b *batch.Batch) *BatchResponse {
	return &BatchResponse{
		ID:             b.ID.String(),
		ProductID:      b.ProductID.String(),
		BatchNumber:    b.BatchNumber,
		UnitCost:       b.UnitCost,
		ManufacturedAt: b.ManufacturedAt,
		ExpiresAt:      b.ExpiresAt,
		IsExpired:      b.IsExpired(time.Now()),
		DeletionMark:   b.DeletionMark,
		Version:        b.Version,
		Attributes:     b.Attributes,
		CreatedAt:      b.CreatedAt,
	}
}

// BatchListResponse wraps a batch list.
type BatchListResponse struct {
	Items []*BatchResponse `json:"items"`
}
