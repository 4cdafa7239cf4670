// Package alert provides stock alerts: low stock, batch expiry, reorder hints.
// Alerts are created by the evaluator after ledger mutations and stay active
// until an operator resolves or dismisses them.
package alert

import (
	"context"
	"time"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
)

// AlertType classifies the alert condition.
type AlertType string

const (
	TypeLowStock AlertType = "low_stock"
	TypeExpiry   AlertType = "expiry"
	TypeReorder  AlertType = "reorder"
)

// Severity grades alert urgency.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is one active or resolved alert.
// At most one ACTIVE alert exists per (product, type) - per (product, type,
// batch) for expiry alerts. The evaluator updates severity in place instead
// of stacking duplicates.
type Alert struct {
	ID id.ID `db:"id" json:"id"`

	ProductID id.ID `db:"product_id" json:"productId"`

	// BatchID is set for expiry alerts only
	BatchID *id.ID `db:"batch_id" json:"batchId,omitempty"`

	Type     AlertType `db:"type" json:"type"`
	Severity Severity  `db:"severity" json:"severity"`

	// Message is the operator-facing description
	Message string `db:"message" json:"message"`

	// Details carries structured context (quantities, thresholds, dates)
	Details entity.Attributes `db:"details" json:"details,omitempty"`

	// IsActive is false once resolved or dismissed
	IsActive bool `db:"is_active" json:"isActive"`

	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
	ResolvedBy string     `db:"resolved_by" json:"resolvedBy,omitempty"`
}

// NewAlert creates an active alert.
func NewAlert(productID id.ID, alertType AlertType, severity Severity, message string) *Alert {
	now := time.Now().UTC()
	return &Alert{
		ID:        id.New(),
		ProductID: productID,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate implements entity.Validatable interface.
func (a *Alert) Validate(ctx context.Context) error {
	if id.IsNil(a.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !isValidType(a.Type) {
		return apperror.NewValidation("invalid alert type").
			WithDetail("field", "type").
			WithDetail("value", string(a.Type))
	}
	if !isValidSeverity(a.Severity) {
		return apperror.NewValidation("invalid severity").
			WithDetail("field", "severity").
			WithDetail("value", string(a.Severity))
	}
	if a.Type == TypeExpiry && a.BatchID == nil {
		return apperror.NewValidation("expiry alert requires a batch").
			WithDetail("field", "batchId")
	}
	return nil
}

// MarkResolved deactivates the alert.
func (a *Alert) MarkResolved(resolvedBy string) {
	now := time.Now().UTC()
	a.IsActive = false
	a.ResolvedAt = &now
	a.ResolvedBy = resolvedBy
	a.UpdatedAt = now
}

func isValidType(t AlertType) bool {
	switch t {
	case TypeLowStock, TypeExpiry, TypeReorder:
		return true
	}
	return false
}

func isValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}
