package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/catalogs/product"
)

// --- Mocks ---

// noopTxManager runs the function directly (no real transaction).
type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubProducts struct {
	products map[id.ID]*product.Product
}

func (s *stubProducts) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	return p, nil
}

// memRepo is an in-memory ledger.Repository. Cells keep insertion order so
// ListCellsForUpdate matches the created_at ordering of the real repo.
type memRepo struct {
	order []id.ID
	cells map[id.ID]*entity.StockCell
	log   []entity.StockLogEntry
}

func newMemRepo() *memRepo {
	return &memRepo{cells: make(map[id.ID]*entity.StockCell)}
}

func sameKey(c *entity.StockCell, key entity.CellKey) bool {
	if c.ProductID != key.ProductID || c.LocationID != key.LocationID {
		return false
	}
	if (c.BatchID == nil) != (key.BatchID == nil) {
		return false
	}
	if c.BatchID != nil && *c.BatchID != *key.BatchID {
		return false
	}
	return true
}

func (r *memRepo) GetCell(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	for _, cid := range r.order {
		if c, ok := r.cells[cid]; ok && sameKey(c, key) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("stock cell", key.ProductID)
}

func (r *memRepo) GetCellByID(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	c, ok := r.cells[cellID]
	if !ok {
		return nil, apperror.NewNotFound("stock cell", cellID)
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) GetCellForUpdate(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	return r.GetCell(ctx, key)
}

func (r *memRepo) GetCellByIDForUpdate(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	return r.GetCellByID(ctx, cellID)
}

func (r *memRepo) InsertCell(ctx context.Context, cell *entity.StockCell) error {
	cp := *cell
	r.cells[cell.ID] = &cp
	r.order = append(r.order, cell.ID)
	return nil
}

func (r *memRepo) UpdateCell(ctx context.Context, cell *entity.StockCell) error {
	if _, ok := r.cells[cell.ID]; !ok {
		return apperror.NewNotFound("stock cell", cell.ID)
	}
	cp := *cell
	r.cells[cell.ID] = &cp
	return nil
}

func (r *memRepo) DeleteCell(ctx context.Context, cellID id.ID) error {
	if _, ok := r.cells[cellID]; !ok {
		return apperror.NewNotFound("stock cell", cellID)
	}
	delete(r.cells, cellID)
	for i, cid := range r.order {
		if cid == cellID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo) ListCells(ctx context.Context, filter CellFilter) ([]entity.StockCell, error) {
	var result []entity.StockCell
	for _, cid := range r.order {
		c := r.cells[cid]
		if filter.ProductID != nil && c.ProductID != *filter.ProductID {
			continue
		}
		if filter.LocationID != nil && c.LocationID != *filter.LocationID {
			continue
		}
		if filter.BatchID != nil && (c.BatchID == nil || *c.BatchID != *filter.BatchID) {
			continue
		}
		if filter.ExcludeEmpty && !c.Quantity.IsPositive() {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

func (r *memRepo) ListCellsForUpdate(ctx context.Context, productID, locationID id.ID) ([]entity.StockCell, error) {
	return r.ListCells(ctx, CellFilter{ProductID: &productID, LocationID: &locationID})
}

func (r *memRepo) AppendLog(ctx context.Context, entries []entity.StockLogEntry) error {
	r.log = append(r.log, entries...)
	return nil
}

func (r *memRepo) ListLog(ctx context.Context, filter LogFilter) ([]entity.StockLogEntry, error) {
	result := make([]entity.StockLogEntry, len(r.log))
	copy(result, r.log)
	return result, nil
}

func (r *memRepo) TotalStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, c := range r.cells {
		if c.ProductID == productID {
			total += c.Quantity
		}
	}
	return total, nil
}

func (r *memRepo) ReplayCell(ctx context.Context, cellID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, e := range r.log {
		if e.CellID == cellID {
			total += e.Delta
		}
	}
	return total, nil
}

// --- Fixtures ---

func newTestProduct(minStock float64) *product.Product {
	p := product.NewProduct("PRD-00001", "Coffee Beans", product.TypeGoods)
	p.MinStock = types.NewQuantityFromFloat64(minStock)
	return p
}

func newTestService(t *testing.T, p *product.Product) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	products := &stubProducts{products: map[id.ID]*product.Product{p.ID: p}}
	return NewService(repo, products, noopTxManager{}), repo
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

// --- Tests ---

func TestCreateCell_NewCellWritesInitialLogEntry(t *testing.T) {
	p := newTestProduct(0)
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	cell, err := svc.CreateCell(ctx, key, qty(100), "seed")
	require.NoError(t, err)

	assert.Equal(t, qty(100), cell.Quantity)
	assert.Equal(t, entity.StockStatusInStock, cell.Status)

	require.Len(t, repo.log, 1)
	assert.Equal(t, cell.ID, repo.log[0].CellID)
	assert.Equal(t, qty(100), repo.log[0].Delta)
	assert.Equal(t, entity.EntryTypeIn, repo.log[0].EntryType)
	assert.Equal(t, "seed", repo.log[0].Reference)
}

func TestCreateCell_ExistingCellFoldsInitialAsReceipt(t *testing.T) {
	p := newTestProduct(0)
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	first, err := svc.CreateCell(ctx, key, qty(100), "seed")
	require.NoError(t, err)

	second, err := svc.CreateCell(ctx, key, qty(50), "seed-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same dimensions must resolve to the same cell")
	assert.Equal(t, qty(150), second.Quantity)
	assert.Len(t, repo.log, 2)
}

func TestCreateCell_ServiceProductRejected(t *testing.T) {
	p := product.NewProduct("SRV-00001", "Training", product.TypeService)
	svc, _ := newTestService(t, p)

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	_, err := svc.CreateCell(context.Background(), key, qty(1), "seed")
	require.Error(t, err)
	assert.True(t, apperror.IsAppError(err))
}

func TestCreateCell_BatchDimensionRules(t *testing.T) {
	tracked := newTestProduct(0)
	tracked.TrackBatch = true
	svc, _ := newTestService(t, tracked)
	ctx := context.Background()

	// batch-tracked product requires a batch
	_, err := svc.CreateCell(ctx, entity.CellKey{ProductID: tracked.ID, LocationID: id.New()}, qty(1), "seed")
	require.Error(t, err)

	// untracked product must not carry a batch
	plain := newTestProduct(0)
	svc2, _ := newTestService(t, plain)
	batchID := id.New()
	_, err = svc2.CreateCell(ctx, entity.CellKey{ProductID: plain.ID, LocationID: id.New(), BatchID: &batchID}, qty(1), "seed")
	require.Error(t, err)
}

func TestApplyDelta_ReplayMatchesQuantity(t *testing.T) {
	p := newTestProduct(0)
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	cell, err := svc.CreateCell(ctx, key, qty(100), "seed")
	require.NoError(t, err)

	_, err = svc.ApplyDelta(ctx, key, qty(25), entity.EntryTypeIn, "GR-001")
	require.NoError(t, err)
	_, err = svc.ApplyDelta(ctx, key, qty(-40), entity.EntryTypeOut, "GI-001")
	require.NoError(t, err)
	_, err = svc.ApplyDelta(ctx, key, qty(-5), entity.EntryTypeAdjustment, "INV-001")
	require.NoError(t, err)

	stored, err := svc.GetCellByID(ctx, cell.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(80), stored.Quantity)

	replayed, err := svc.VerifyCell(ctx, cell.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Quantity, replayed)
}

func TestApplyDelta_InsufficientStock(t *testing.T) {
	p := newTestProduct(0)
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	_, err := svc.CreateCell(ctx, key, qty(10), "seed")
	require.NoError(t, err)

	_, err = svc.ApplyDelta(ctx, key, qty(-11), entity.EntryTypeOut, "GI-001")
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestApplyDelta_ReservedQuantityIsProtected(t *testing.T) {
	p := newTestProduct(0)
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	_, err := svc.CreateCell(ctx, key, qty(10), "seed")
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, key, qty(6))
	require.NoError(t, err)

	// only 4 are free: taking 5 must fail even though quantity is 10
	_, err = svc.ApplyDelta(ctx, key, qty(-5), entity.EntryTypeOut, "GI-001")
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// taking the free 4 is fine
	cell, err := svc.ApplyDelta(ctx, key, qty(-4), entity.EntryTypeOut, "GI-002")
	require.NoError(t, err)
	assert.Equal(t, qty(6), cell.Quantity)
	assert.Equal(t, qty(6), cell.Reserved)
}

func TestApplyDelta_EntryTypeSignValidation(t *testing.T) {
	p := newTestProduct(0)
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	_, err := svc.CreateCell(ctx, key, qty(10), "seed")
	require.NoError(t, err)

	_, err = svc.ApplyDelta(ctx, key, qty(-1), entity.EntryTypeIn, "x")
	assert.Error(t, err, "inbound entry cannot be negative")

	_, err = svc.ApplyDelta(ctx, key, qty(1), entity.EntryTypeOut, "x")
	assert.Error(t, err, "outbound entry cannot be positive")

	_, err = svc.ApplyDelta(ctx, key, qty(1), entity.EntryType("bogus"), "x")
	assert.Error(t, err)
}

func TestApplyDelta_StatusDerivation(t *testing.T) {
	p := newTestProduct(20)
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	cell, err := svc.CreateCell(ctx, key, qty(100), "seed")
	require.NoError(t, err)
	assert.Equal(t, entity.StockStatusInStock, cell.Status)

	cell, err = svc.ApplyDelta(ctx, key, qty(-85), entity.EntryTypeOut, "GI-001")
	require.NoError(t, err)
	assert.Equal(t, entity.StockStatusLowStock, cell.Status)

	cell, err = svc.ApplyDelta(ctx, key, qty(-15), entity.EntryTypeOut, "GI-002")
	require.NoError(t, err)
	assert.Equal(t, entity.StockStatusOutOfStock, cell.Status)
}

func TestDeleteCell_WritesOffRemainingQuantity(t *testing.T) {
	p := newTestProduct(0)
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	cell, err := svc.CreateCell(ctx, key, qty(30), "seed")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCell(ctx, cell.ID, "write-off"))

	// log still replays to zero for the deleted cell
	replayed, err := repo.ReplayCell(ctx, cell.ID)
	require.NoError(t, err)
	assert.True(t, replayed.IsZero())

	last := repo.log[len(repo.log)-1]
	assert.Equal(t, entity.EntryTypeOut, last.EntryType)
	assert.Equal(t, qty(30).Neg(), last.Delta)
}

func TestDeleteCell_BlockedByReservations(t *testing.T) {
	p := newTestProduct(0)
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	cell, err := svc.CreateCell(ctx, key, qty(30), "seed")
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, key, qty(5))
	require.NoError(t, err)

	err = svc.DeleteCell(ctx, cell.ID, "write-off")
	require.Error(t, err)
}

func TestReserveRelease(t *testing.T) {
	p := newTestProduct(0)
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	_, err := svc.CreateCell(ctx, key, qty(10), "seed")
	require.NoError(t, err)

	cell, err := svc.Reserve(ctx, key, qty(7))
	require.NoError(t, err)
	assert.Equal(t, qty(3), cell.Available())

	// over-reserve fails
	_, err = svc.Reserve(ctx, key, qty(4))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// over-release fails
	_, err = svc.Release(ctx, key, qty(8))
	require.Error(t, err)

	cell, err = svc.Release(ctx, key, qty(7))
	require.NoError(t, err)
	assert.True(t, cell.Reserved.IsZero())
}

func TestVerifyCell_DetectsDivergence(t *testing.T) {
	p := newTestProduct(0)
	svc, repo := newTestService(t, p)
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	cell, err := svc.CreateCell(ctx, key, qty(10), "seed")
	require.NoError(t, err)

	// corrupt the stored quantity behind the service's back
	repo.cells[cell.ID].Quantity = qty(99)

	replayed, err := svc.VerifyCell(ctx, cell.ID)
	require.Error(t, err)
	assert.Equal(t, qty(10), replayed)
}

func TestEvaluateAfterCommit_FailureDoesNotPropagate(t *testing.T) {
	p := newTestProduct(0)
	svc, _ := newTestService(t, p)
	svc.SetStockEvaluator(failingEvaluator{})
	ctx := context.Background()

	key := entity.CellKey{ProductID: p.ID, LocationID: id.New()}
	_, err := svc.CreateCell(ctx, key, qty(10), "seed")
	assert.NoError(t, err, "alert evaluation failure must not fail the mutation")
}

type failingEvaluator struct{}

func (failingEvaluator) EvaluateStock(ctx context.Context, productID id.ID) error {
	return apperror.NewInternal(context.DeadlineExceeded)
}

func TestNewStockLogEntryTimestamps(t *testing.T) {
	cell := entity.NewStockCell(entity.CellKey{ProductID: id.New(), LocationID: id.New()})
	entry := entity.NewStockLogEntry(&cell, qty(1), entity.EntryTypeIn, "ref", "actor")
	assert.WithinDuration(t, time.Now().UTC(), entry.CreatedAt, time.Second)
	assert.Equal(t, cell.ID, entry.CellID)
}
