// Package transfer_repo provides the PostgreSQL implementation of transfer persistence.
package transfer_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/domain/transfer"
	"stockpile/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "doc_transfers"
	transferItemsTable = "doc_transfer_items"
)

var transferColumns = postgres.ExtractDBColumns[transfer.Transfer]()

// Compile-time check.
var _ transfer.Repository = (*TransferRepo)(nil)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *TransferRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *TransferRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(transferColumns...).From(transfersTable)
}

// Create inserts the document header and all items.
func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	q := r.builder.
		Insert(transfersTable).
		SetMap(postgres.StructToMap(t))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	return r.saveItems(ctx, t.ID, t.Items)
}

// saveItems replaces all items of a document (delete existing + insert new).
func (r *TransferRepo) saveItems(ctx context.Context, docID id.ID, items []transfer.Item) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + transferItemsTable + " WHERE transfer_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	q := r.builder.
		Insert(transferItemsTable).
		Columns(
			"line_id", "transfer_id", "line_no",
			"product_id", "batch_id", "quantity", "unit_cost",
		)

	for _, item := range items {
		q = q.Values(
			item.LineID, docID, item.LineNo,
			item.ProductID, item.BatchID, item.Quantity, item.UnitCost,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}

	return nil
}

// getItems retrieves items for a document ordered by line number.
func (r *TransferRepo) getItems(ctx context.Context, docID id.ID) ([]transfer.Item, error) {
	q := r.builder.
		Select(
			"line_id", "transfer_id", "line_no",
			"product_id", "batch_id", "quantity", "unit_cost",
		).
		From(transferItemsTable).
		Where(squirrel.Eq{"transfer_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []transfer.Item
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	return items, nil
}

func (r *TransferRepo) getByID(ctx context.Context, docID id.ID, forUpdate bool) (*transfer.Transfer, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": docID}).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t transfer.Transfer
	if err := pgxscan.Get(ctx, r.querier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transfer", docID.String())
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	items, err := r.getItems(ctx, docID)
	if err != nil {
		return nil, err
	}
	t.Items = items

	return &t, nil
}

// GetByID retrieves document with items.
func (r *TransferRepo) GetByID(ctx context.Context, docID id.ID) (*transfer.Transfer, error) {
	return r.getByID(ctx, docID, false)
}

// GetByIDForUpdate retrieves document with items under a row lock.
func (r *TransferRepo) GetByIDForUpdate(ctx context.Context, docID id.ID) (*transfer.Transfer, error) {
	return r.getByID(ctx, docID, true)
}

// Update persists header changes with optimistic locking.
func (r *TransferRepo) Update(ctx context.Context, t *transfer.Transfer) error {
	data := postgres.StructToMap(t)
	version, _ := data["version"].(int)

	filteredData := make(map[string]any, len(transferColumns))
	for _, col := range transferColumns {
		if col == "id" || col == "version" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.
		Update(transfersTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": t.ID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("transfer", t.ID)
	}

	// Version bump happened in SQL; keep the in-memory copy aligned.
	t.Version = version + 1

	return nil
}

// List retrieves document headers without items, newest first.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) ([]transfer.Transfer, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date DESC", "number DESC")

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.FromLocationID != nil {
		q = q.Where(squirrel.Eq{"from_location_id": *filter.FromLocationID})
	}
	if filter.ToLocationID != nil {
		q = q.Where(squirrel.Eq{"to_location_id": *filter.ToLocationID})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.ToDate})
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

	var transfers []transfer.Transfer
	if err := pgxscan.Select(ctx, r.querier(ctx), &transfers, sql, args...); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	return transfers, nil
}
