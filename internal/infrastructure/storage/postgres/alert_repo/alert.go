// Package alert_repo provides the PostgreSQL implementation of alert persistence.
package alert_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/domain/alert"
	"stockpile/internal/infrastructure/storage/postgres"
)

const alertsTable = "stock_alerts"

var alertColumns = postgres.ExtractDBColumns[alert.Alert]()

// Compile-time check.
var _ alert.Repository = (*AlertRepo)(nil)

// AlertRepo implements alert.Repository.
type AlertRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewAlertRepo creates a new alert repository.
func NewAlertRepo(txManager *postgres.TxManager) *AlertRepo {
	return &AlertRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *AlertRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *AlertRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(alertColumns...).From(alertsTable)
}

// Create inserts a new alert.
func (r *AlertRepo) Create(ctx context.Context, a *alert.Alert) error {
	q := r.builder.
		Insert(alertsTable).
		SetMap(postgres.StructToMap(a))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	return nil
}

// GetByID retrieves alert by ID.
func (r *AlertRepo) GetByID(ctx context.Context, alertID id.ID) (*alert.Alert, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": alertID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a alert.Alert
	if err := pgxscan.Get(ctx, r.querier(ctx), &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("alert", alertID.String())
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}

	return &a, nil
}

// AcquireKeyLock takes a transaction-scoped advisory lock on the dedup key.
// A FOR UPDATE on the active row only serializes once a row exists; the
// advisory lock closes the first-raise window where two evaluations both
// read NotFound and both insert.
func (r *AlertRepo) AcquireKeyLock(ctx context.Context, productID id.ID, alertType alert.AlertType, batchID *id.ID) error {
	key := fmt.Sprintf("%s:%s:%s", alertsTable, productID, alertType)
	if batchID != nil {
		key = fmt.Sprintf("%s:%s", key, *batchID)
	}

	if _, err := r.querier(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire alert key lock: %w", err)
	}
	return nil
}

// FindActive returns the single active alert for the dedup key.
// Locks the row so concurrent evaluations serialize on the same key.
func (r *AlertRepo) FindActive(ctx context.Context, productID id.ID, alertType alert.AlertType, batchID *id.ID) (*alert.Alert, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"type": alertType}).
		Where(squirrel.Eq{"is_active": true}).
		Limit(1)

	if batchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *batchID})
	} else {
		q = q.Where(squirrel.Eq{"batch_id": nil})
	}

	if r.txManager.GetTx(ctx) != nil {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a alert.Alert
	if err := pgxscan.Get(ctx, r.querier(ctx), &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("alert", string(alertType))
		}
		return nil, fmt.Errorf("find active alert: %w", err)
	}

	return &a, nil
}

// Update persists severity, message, details and resolution changes.
func (r *AlertRepo) Update(ctx context.Context, a *alert.Alert) error {
	q := r.builder.
		Update(alertsTable).
		Set("severity", a.Severity).
		Set("message", a.Message).
		Set("details", a.Details).
		Set("is_active", a.IsActive).
		Set("updated_at", a.UpdatedAt).
		Set("resolved_at", a.ResolvedAt).
		Set("resolved_by", a.ResolvedBy).
		Where(squirrel.Eq{"id": a.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("alert", a.ID.String())
	}

	return nil
}

// List retrieves alerts with filtering, newest first.
func (r *AlertRepo) List(ctx context.Context, filter alert.ListFilter) ([]alert.Alert, error) {
	q := r.baseSelect().OrderBy("created_at DESC", "id DESC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.Severity != nil {
		q = q.Where(squirrel.Eq{"severity": *filter.Severity})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var alerts []alert.Alert
	if err := pgxscan.Select(ctx, r.querier(ctx), &alerts, sql, args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	return alerts, nil
}
