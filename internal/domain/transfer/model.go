// Package transfer provides the stock transfer document.
// A transfer moves stock between two locations through an explicit
// lifecycle; stock only moves on completion.
package transfer

import (
	"context"
	"time"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
)

// Status is the lifecycle state of a transfer.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Action is a lifecycle verb applied to a transfer.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// transitions is the full legality table. Completed and cancelled are
// terminal: no action leads out of them.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionApprove: StatusInTransit,
		ActionCancel:  StatusCancelled,
	},
	StatusInTransit: {
		ActionComplete: StatusCompleted,
		ActionCancel:   StatusCancelled,
	},
}

// Transfer is a stock movement document between two locations.
type Transfer struct {
	entity.Document

	// Status is the lifecycle state
	Status Status `db:"status" json:"status"`

	// FromLocationID is the source location
	FromLocationID id.ID `db:"from_location_id" json:"fromLocationId"`

	// ToLocationID is the destination location
	ToLocationID id.ID `db:"to_location_id" json:"toLocationId"`

	// CompletedAt is set when stock actually moved
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	// Items are the transfer lines (loaded separately)
	Items []Item `db:"-" json:"items,omitempty"`
}

// Item is one transfer line.
type Item struct {
	// LineID is the line primary key (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// TransferID is the owning document
	TransferID id.ID `db:"transfer_id" json:"transferId"`

	// LineNo is the 1-based position in the document
	LineNo int `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	BatchID   *id.ID `db:"batch_id" json:"batchId,omitempty"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// UnitCost carries the valuation of the moved goods
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`
}

// NewTransfer creates a pending transfer between two locations.
func NewTransfer(fromLocationID, toLocationID id.ID) *Transfer {
	return &Transfer{
		Document:       entity.NewDocument(),
		Status:         StatusPending,
		FromLocationID: fromLocationID,
		ToLocationID:   toLocationID,
	}
}

// AddItem appends a line with the next line number.
func (t *Transfer) AddItem(productID id.ID, batchID *id.ID, quantity types.Quantity, unitCost types.Money) {
	t.Items = append(t.Items, Item{
		LineID:     id.New(),
		TransferID: t.ID,
		LineNo:     len(t.Items) + 1,
		ProductID:  productID,
		BatchID:    batchID,
		Quantity:   quantity,
		UnitCost:   unitCost,
	})
}

// Validate implements entity.Validatable interface.
func (t *Transfer) Validate(ctx context.Context) error {
	if err := t.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(t.FromLocationID) {
		return apperror.NewValidation("source location is required").
			WithDetail("field", "fromLocationId")
	}
	if id.IsNil(t.ToLocationID) {
		return apperror.NewValidation("destination location is required").
			WithDetail("field", "toLocationId")
	}
	if t.FromLocationID == t.ToLocationID {
		return apperror.NewValidation("source and destination must differ").
			WithDetail("field", "toLocationId")
	}

	if len(t.Items) == 0 {
		return apperror.NewValidation("transfer requires at least one item")
	}
	for i, item := range t.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("item product is required").
				WithDetail("line", i+1)
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("line", i+1)
		}
		if item.UnitCost.IsNegative() {
			return apperror.NewValidation("item unit cost cannot be negative").
				WithDetail("line", i+1)
		}
	}

	return nil
}

// NextStatus resolves the status an action leads to from the current one.
// Unknown verbs map to InvalidAction, known-but-illegal ones to InvalidTransition.
func (t *Transfer) NextStatus(action Action) (Status, error) {
	switch action {
	case ActionApprove, ActionComplete, ActionCancel:
	default:
		return "", apperror.NewInvalidAction(string(action))
	}

	next, ok := transitions[t.Status][action]
	if !ok {
		target := targetOf(action)
		return "", apperror.NewInvalidTransition("transfer", string(t.Status), string(target)).
			WithDetail("transfer_id", t.ID.String())
	}
	return next, nil
}

// IsTerminal returns true when no further action is legal.
func (t *Transfer) IsTerminal() bool {
	return len(transitions[t.Status]) == 0
}

func targetOf(action Action) Status {
	switch action {
	case ActionApprove:
		return StatusInTransit
	case ActionComplete:
		return StatusCompleted
	default:
		return StatusCancelled
	}
}
