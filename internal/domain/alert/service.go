package alert

import (
	"context"

	"stockpile/internal/core/apperror"
	appctx "stockpile/internal/core/context"
	"stockpile/internal/core/id"
	"stockpile/internal/core/tx"
)

// Service provides operator-facing alert operations.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new Alert service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// GetByID retrieves an alert.
func (s *Service) GetByID(ctx context.Context, alertID id.ID) (*Alert, error) {
	return s.repo.GetByID(ctx, alertID)
}

// List retrieves alerts with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Alert, error) {
	return s.repo.List(ctx, filter)
}

// Resolve marks an alert handled by the current actor.
// Resolving an already resolved alert is a Conflict.
func (s *Service) Resolve(ctx context.Context, alertID id.ID) (*Alert, error) {
	return s.deactivate(ctx, alertID, false)
}

// Dismiss deactivates an alert without action taken.
// The evaluator will raise a fresh alert if the condition persists.
func (s *Service) Dismiss(ctx context.Context, alertID id.ID) (*Alert, error) {
	return s.deactivate(ctx, alertID, true)
}

func (s *Service) deactivate(ctx context.Context, alertID id.ID, dismissed bool) (*Alert, error) {
	var a *Alert
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, alertID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return apperror.NewConflict("alert is already resolved").
				WithDetail("alert_id", alertID.String())
		}

		resolvedBy := appctx.GetActorID(ctx)
		if resolvedBy == "" {
			resolvedBy = "system"
		}
		a.MarkResolved(resolvedBy)
		if dismissed {
			a.Details.Set("dismissed", true)
		}
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
