package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
)

func TestNextStatus_LegalityTable(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		action  Action
		want    Status
		wantErr bool
	}{
		{"pending approve", StatusPending, ActionApprove, StatusInTransit, false},
		{"pending cancel", StatusPending, ActionCancel, StatusCancelled, false},
		{"pending complete", StatusPending, ActionComplete, "", true},
		{"in_transit complete", StatusInTransit, ActionComplete, StatusCompleted, false},
		{"in_transit cancel", StatusInTransit, ActionCancel, StatusCancelled, false},
		{"in_transit approve", StatusInTransit, ActionApprove, "", true},
		{"completed approve", StatusCompleted, ActionApprove, "", true},
		{"completed complete", StatusCompleted, ActionComplete, "", true},
		{"completed cancel", StatusCompleted, ActionCancel, "", true},
		{"cancelled approve", StatusCancelled, ActionApprove, "", true},
		{"cancelled complete", StatusCancelled, ActionComplete, "", true},
		{"cancelled cancel", StatusCancelled, ActionCancel, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransfer(id.New(), id.New())
			tr.Status = tt.from

			next, err := tr.NextStatus(tt.action)
			if tt.wantErr {
				require.Error(t, err)
				var appErr *apperror.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, apperror.CodeInvalidTransition, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextStatus_UnknownAction(t *testing.T) {
	tr := NewTransfer(id.New(), id.New())

	_, err := tr.NextStatus(Action("ship"))
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeInvalidAction, appErr.Code)
}

func TestIsTerminal(t *testing.T) {
	tr := NewTransfer(id.New(), id.New())
	assert.False(t, tr.IsTerminal())

	tr.Status = StatusInTransit
	assert.False(t, tr.IsTerminal())

	tr.Status = StatusCompleted
	assert.True(t, tr.IsTerminal())

	tr.Status = StatusCancelled
	assert.True(t, tr.IsTerminal())
}

func TestTransferValidate(t *testing.T) {
	ctx := context.Background()
	from, to := id.New(), id.New()

	t.Run("valid", func(t *testing.T) {
		tr := NewTransfer(from, to)
		tr.AddItem(id.New(), nil, types.NewQuantityFromFloat64(5), types.Zero())
		assert.NoError(t, tr.Validate(ctx))
	})

	t.Run("same locations", func(t *testing.T) {
		tr := NewTransfer(from, from)
		tr.AddItem(id.New(), nil, types.NewQuantityFromFloat64(5), types.Zero())
		assert.Error(t, tr.Validate(ctx))
	})

	t.Run("no items", func(t *testing.T) {
		tr := NewTransfer(from, to)
		assert.Error(t, tr.Validate(ctx))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		tr := NewTransfer(from, to)
		tr.AddItem(id.New(), nil, 0, types.Zero())
		assert.Error(t, tr.Validate(ctx))
	})

	t.Run("negative unit cost", func(t *testing.T) {
		tr := NewTransfer(from, to)
		tr.AddItem(id.New(), nil, types.NewQuantityFromFloat64(5), types.NewMoney(-1))
		assert.Error(t, tr.Validate(ctx))
	})
}

func TestAddItem_AssignsLineNumbers(t *testing.T) {
	tr := NewTransfer(id.New(), id.New())
	tr.AddItem(id.New(), nil, types.NewQuantityFromFloat64(1), types.Zero())
	tr.AddItem(id.New(), nil, types.NewQuantityFromFloat64(2), types.Zero())

	require.Len(t, tr.Items, 2)
	assert.Equal(t, 1, tr.Items[0].LineNo)
	assert.Equal(t, 2, tr.Items[1].LineNo)
	assert.Equal(t, tr.ID, tr.Items[0].TransferID)
}
