package dto

import (
	"time"

	"stockpile/internal/core/entity"
	"stockpile/internal/domain/alert"
)

// AlertResponse is the response body for an alert.
type AlertResponse struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"productId"`
	BatchID    *string           `json:"batchId,omitempty"`
	Type       alert.AlertType   `json:"type"`
	Severity   alert.Severity    `json:"severity"`
	Message    string            `json:"message"`
	Details    entity.Attributes `json:"details,omitempty"`
	IsActive   bool              `json:"isActive"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty"`
	ResolvedBy string            `json:"resolvedBy,omitempty"`
}

// FromAlert creates response DTO from domain entity.
func FromAlert(a *alert.Alert) *AlertResponse {
	resp := &AlertResponse{
		ID:         a.ID.String(),
		ProductID:  a.ProductID.String(),
		Type:       a.Type,
		Severity:   a.Severity,
		Message:    a.Message,
		Details:    a.Details,
		IsActive:   a.IsActive,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		ResolvedAt: a.ResolvedAt,
		ResolvedBy: a.ResolvedBy,
	}
	if a.BatchID != nil {
		s := a.BatchID.String()
		resp.BatchID = &s
	}
	return resp
}

// AlertListResponse wraps an alert list.
type AlertListResponse struct {
	Items []*AlertResponse `json:"items"`
}
