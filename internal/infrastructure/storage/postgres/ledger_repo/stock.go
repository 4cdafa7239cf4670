// Package ledger_repo provides the PostgreSQL implementation of the stock ledger.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/ledger"
	"stockpile/internal/infrastructure/storage/postgres"
)

const (
	stockCellsTable = "stock_cells"
	stockLogTable   = "stock_log"
)

var (
	cellColumns = []string{
		"id", "product_id", "location_id", "batch_id",
		"quantity", "reserved", "status", "created_at", "updated_at",
	}
	logColumns = []string{
		"line_id", "cell_id", "product_id", "location_id", "batch_id",
		"delta", "entry_type", "reference", "actor_id", "created_at",
	}
)

// Compile-time check.
var _ ledger.Repository = (*StockRepo)(nil)

// StockRepo implements ledger.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *StockRepo) cellSelect() squirrel.SelectBuilder {
	return r.builder.Select(cellColumns...).From(stockCellsTable)
}

func cellKeyConditions(key entity.CellKey) []squirrel.Sqlizer {
	conds := []squirrel.Sqlizer{
		squirrel.Eq{"product_id": key.ProductID},
		squirrel.Eq{"location_id": key.LocationID},
	}
	if key.BatchID != nil {
		conds = append(conds, squirrel.Eq{"batch_id": *key.BatchID})
	} else {
		conds = append(conds, squirrel.Eq{"batch_id": nil})
	}
	return conds
}

func (r *StockRepo) getCell(ctx context.Context, q squirrel.SelectBuilder, notFoundKey string) (*entity.StockCell, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cell entity.StockCell
	if err := pgxscan.Get(ctx, r.querier(ctx), &cell, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_cell", notFoundKey)
		}
		return nil, fmt.Errorf("get cell: %w", err)
	}

	return &cell, nil
}

// GetCell returns the cell for the given dimensions.
func (r *StockRepo) GetCell(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	q := r.cellSelect().Limit(1)
	for _, cond := range cellKeyConditions(key) {
		q = q.Where(cond)
	}
	return r.getCell(ctx, q, key.ProductID.String())
}

// GetCellByID returns the cell by primary key.
func (r *StockRepo) GetCellByID(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	q := r.cellSelect().
		Where(squirrel.Eq{"id": cellID}).
		Limit(1)
	return r.getCell(ctx, q, cellID.String())
}

// GetCellForUpdate returns the cell with a FOR UPDATE row lock.
func (r *StockRepo) GetCellForUpdate(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	q := r.cellSelect().Suffix("FOR UPDATE")
	for _, cond := range cellKeyConditions(key) {
		q = q.Where(cond)
	}
	return r.getCell(ctx, q, key.ProductID.String())
}

// GetCellByIDForUpdate returns the cell by primary key with a row lock.
func (r *StockRepo) GetCellByIDForUpdate(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	q := r.cellSelect().
		Where(squirrel.Eq{"id": cellID}).
		Suffix("FOR UPDATE")
	return r.getCell(ctx, q, cellID.String())
}

// InsertCell inserts a new cell.
func (r *StockRepo) InsertCell(ctx context.Context, cell *entity.StockCell) error {
	q := r.builder.
		Insert(stockCellsTable).
		SetMap(postgres.StructToMap(cell))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert cell: %w", err)
	}

	return nil
}

// UpdateCell persists quantity, reserved and status changes.
func (r *StockRepo) UpdateCell(ctx context.Context, cell *entity.StockCell) error {
	q := r.builder.
		Update(stockCellsTable).
		Set("quantity", cell.Quantity).
		Set("reserved", cell.Reserved).
		Set("status", cell.Status).
		Set("updated_at", cell.UpdatedAt).
		Where(squirrel.Eq{"id": cell.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update cell: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("stock_cell", cell.ID.String())
	}

	return nil
}

// DeleteCell removes a cell row.
func (r *StockRepo) DeleteCell(ctx context.Context, cellID id.ID) error {
	q := r.builder.
		Delete(stockCellsTable).
		Where(squirrel.Eq{"id": cellID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete cell: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("stock_cell", cellID.String())
	}

	return nil
}

// ListCells retrieves cells with filtering.
func (r *StockRepo) ListCells(ctx context.Context, filter ledger.CellFilter) ([]entity.StockCell, error) {
	q := r.cellSelect().OrderBy("created_at ASC", "id ASC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *filter.BatchID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.ExcludeEmpty {
		q = q.Where(squirrel.Gt{"quantity": 0})
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

	var cells []entity.StockCell
	if err := pgxscan.Select(ctx, r.querier(ctx), &cells, sql, args...); err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}

	return cells, nil
}

// ListCellsForUpdate locks and returns all cells of a product at a location.
// Deterministic ordering keeps concurrent allocations from deadlocking.
func (r *StockRepo) ListCellsForUpdate(ctx context.Context, productID, locationID id.ID) ([]entity.StockCell, error) {
	q := r.cellSelect().
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Eq{"location_id": locationID}).
		OrderBy("created_at ASC", "id ASC").
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cells []entity.StockCell
	if err := pgxscan.Select(ctx, r.querier(ctx), &cells, sql, args...); err != nil {
		return nil, fmt.Errorf("list cells for update: %w", err)
	}

	return cells, nil
}

// AppendLog batch inserts log entries.
func (r *StockRepo) AppendLog(ctx context.Context, entries []entity.StockLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.LineID, e.CellID, e.ProductID, e.LocationID, e.BatchID,
				e.Delta, e.EntryType, e.Reference, e.ActorID, e.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, stockLogTable, logColumns, rows); err != nil {
			return fmt.Errorf("copy log entries: %w", err)
		}
		return nil
	}

	// Fallback: multi-row insert. Prefer calling AppendLog within tx.
	q := r.builder.Insert(stockLogTable).Columns(logColumns...)
	for _, e := range entries {
		q = q.Values(
			e.LineID, e.CellID, e.ProductID, e.LocationID, e.BatchID,
			e.Delta, e.EntryType, e.Reference, e.ActorID, e.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert log entries: %w", err)
	}

	return nil
}

// ListLog retrieves log entries with filtering, newest first.
func (r *StockRepo) ListLog(ctx context.Context, filter ledger.LogFilter) ([]entity.StockLogEntry, error) {
	q := r.builder.Select(logColumns...).
		From(stockLogTable).
		OrderBy("created_at DESC", "line_id DESC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.CellID != nil {
		q = q.Where(squirrel.Eq{"cell_id": *filter.CellID})
	}
	if filter.EntryType != nil {
		q = q.Where(squirrel.Eq{"entry_type": *filter.EntryType})
	}
	if filter.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": filter.Reference})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
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

	var entries []entity.StockLogEntry
	if err := pgxscan.Select(ctx, r.querier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("list log: %w", err)
	}

	return entries, nil
}

// TotalStock returns the product quantity summed over all cells.
func (r *StockRepo) TotalStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	q := r.builder.
		Select("COALESCE(SUM(quantity), 0)").
		From(stockCellsTable).
		Where(squirrel.Eq{"product_id": productID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total types.Quantity
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("total stock: %w", err)
	}

	return total, nil
}

// ReplayCell sums log deltas for a cell.
func (r *StockRepo) ReplayCell(ctx context.Context, cellID id.ID) (types.Quantity, error) {
	q := r.builder.
		Select("COALESCE(SUM(delta), 0)").
		From(stockLogTable).
		Where(squirrel.Eq{"cell_id": cellID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total types.Quantity
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("replay cell: %w", err)
	}

	return total, nil
}
