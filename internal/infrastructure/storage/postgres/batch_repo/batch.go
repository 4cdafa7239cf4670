// Package batch_repo provides the PostgreSQL implementation of batch persistence.
package batch_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/domain/batch"
	"stockpile/internal/infrastructure/storage/postgres"
)

const batchTable = "cat_batches"

var batchColumns = postgres.ExtractDBColumns[batch.Batch]()

// Compile-time check.
var _ batch.Repository = (*BatchRepo)(nil)

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BatchRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *BatchRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(batchColumns...).From(batchTable)
}

// Create inserts a new batch.
func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	q := r.builder.
		Insert(batchTable).
		SetMap(postgres.StructToMap(b))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("batch", "batch_number", b.BatchNumber)
		}
		return fmt.Errorf("insert batch: %w", err)
	}

	return nil
}

// GetByID retrieves batch by ID.
func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": batchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b batch.Batch
	if err := pgxscan.Get(ctx, r.querier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID.String())
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}

	return &b, nil
}

// GetByNumber retrieves batch by (product, batch number).
func (r *BatchRepo) GetByNumber(ctx context.Context, productID id.ID, batchNumber string) (*batch.Batch, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"batch_number": batchNumber}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b batch.Batch
	if err := pgxscan.Get(ctx, r.querier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchNumber)
		}
		return nil, fmt.Errorf("get batch by number: %w", err)
	}

	return &b, nil
}

// Update modifies existing batch with optimistic locking.
func (r *BatchRepo) Update(ctx context.Context, b *batch.Batch) error {
	data := postgres.StructToMap(b)
	version, _ := data["version"].(int)

	filteredData := make(map[string]any, len(batchColumns))
	for _, col := range batchColumns {
		if col == "id" || col == "version" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.
		Update(batchTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": b.ID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("batch", b.ID)
	}

	return nil
}

// Delete removes a batch.
func (r *BatchRepo) Delete(ctx context.Context, batchID id.ID) error {
	q := r.builder.
		Delete(batchTable).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NewConflict("cannot delete: batch is referenced by stock cells").
				WithDetail("id", batchID.String()).
				WithCause(err)
		}
		return fmt.Errorf("delete batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID.String())
	}

	return nil
}

// List retrieves batches with filtering, oldest expiry first.
func (r *BatchRepo) List(ctx context.Context, filter batch.ListFilter) ([]batch.Batch, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("expires_at ASC NULLS LAST", "created_at ASC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.ExpiringBefore != nil {
		before := time.Unix(*filter.ExpiringBefore, 0).UTC()
		q = q.Where(squirrel.NotEq{"expires_at": nil})
		q = q.Where(squirrel.Lt{"expires_at": before})
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

	var batches []batch.Batch
	if err := pgxscan.Select(ctx, r.querier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	return batches, nil
}

// ExistsByNumber checks uniqueness of (product, batch number).
func (r *BatchRepo) ExistsByNumber(ctx context.Context, productID id.ID, batchNumber string) (bool, error) {
	q := r.builder.
		Select("1").
		From(batchTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"batch_number": batchNumber}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists int
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists by number: %w", err)
	}

	return true, nil
}
