package allocation

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
	"stockpile/internal/domain/batch"
	"stockpile/internal/domain/catalogs/product"
	"stockpile/internal/domain/ledger"
)

// --- Mocks ---

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubProducts struct {
	p *product.Product
}

func (s *stubProducts) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	if s.p != nil && s.p.ID == productID {
		return s.p, nil
	}
	return nil, apperror.NewNotFound("product", productID)
}

type stubBatches struct {
	batches map[id.ID]*batch.Batch
}

func (s *stubBatches) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	b, ok := s.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID)
	}
	return b, nil
}

func (s *stubBatches) List(ctx context.Context, filter batch.ListFilter) ([]batch.Batch, error) {
	return nil, nil
}

// memRepo keeps cells in insertion order, mirroring the created_at ordering
// the real repository guarantees.
type memRepo struct {
	cells []*entity.StockCell
	log   []entity.StockLogEntry
}

func sameKey(c *entity.StockCell, key entity.CellKey) bool {
	if c.ProductID != key.ProductID || c.LocationID != key.LocationID {
		return false
	}
	if (c.BatchID == nil) != (key.BatchID == nil) {
		return false
	}
	return c.BatchID == nil || *c.BatchID == *key.BatchID
}

func (r *memRepo) GetCell(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	for _, c := range r.cells {
		if sameKey(c, key) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("stock cell", key.ProductID)
}

func (r *memRepo) GetCellByID(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	for _, c := range r.cells {
		if c.ID == cellID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("stock cell", cellID)
}

func (r *memRepo) GetCellForUpdate(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	return r.GetCell(ctx, key)
}

func (r *memRepo) GetCellByIDForUpdate(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	return r.GetCellByID(ctx, cellID)
}

func (r *memRepo) InsertCell(ctx context.Context, cell *entity.StockCell) error {
	cp := *cell
	r.cells = append(r.cells, &cp)
	return nil
}

func (r *memRepo) UpdateCell(ctx context.Context, cell *entity.StockCell) error {
	for i, c := range r.cells {
		if c.ID == cell.ID {
			cp := *cell
			r.cells[i] = &cp
			return nil
		}
	}
	return apperror.NewNotFound("stock cell", cell.ID)
}

func (r *memRepo) DeleteCell(ctx context.Context, cellID id.ID) error {
	for i, c := range r.cells {
		if c.ID == cellID {
			r.cells = append(r.cells[:i], r.cells[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("stock cell", cellID)
}

func (r *memRepo) ListCells(ctx context.Context, filter ledger.CellFilter) ([]entity.StockCell, error) {
	var result []entity.StockCell
	for _, c := range r.cells {
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
	return r.ListCells(ctx, ledger.CellFilter{ProductID: &productID, LocationID: &locationID})
}

func (r *memRepo) AppendLog(ctx context.Context, entries []entity.StockLogEntry) error {
	r.log = append(r.log, entries...)
	return nil
}

func (r *memRepo) ListLog(ctx context.Context, filter ledger.LogFilter) ([]entity.StockLogEntry, error) {
	return r.log, nil
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

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

type fixture struct {
	engine     *Engine
	repo       *memRepo
	batches    *stubBatches
	product    *product.Product
	locationID id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	p := product.NewProduct("PRD-00001", "Coffee Beans", product.TypeGoods)
	p.TrackBatch = true

	repo := &memRepo{}
	batches := &stubBatches{batches: make(map[id.ID]*batch.Batch)}
	ledgerSvc := ledger.NewService(repo, &stubProducts{p: p}, noopTxManager{})

	return &fixture{
		engine:     NewEngine(ledgerSvc, repo, batches, noopTxManager{}),
		repo:       repo,
		batches:    batches,
		product:    p,
		locationID: id.New(),
	}
}

// addCell inserts a cell with quantity and optional batch, returning the cell.
// Cells are inserted in call order, which is the FIFO consumption order.
func (f *fixture) addCell(t *testing.T, quantity, reserved float64, batchID *id.ID) entity.StockCell {
	t.Helper()
	cell := entity.NewStockCell(entity.CellKey{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		BatchID:    batchID,
	})
	cell.Quantity = qty(quantity)
	cell.Reserved = qty(reserved)
	cell.Status = entity.StockStatusInStock
	require.NoError(t, f.repo.InsertCell(context.Background(), &cell))
	return cell
}

func (f *fixture) addBatch(expiresAt *time.Time) *id.ID {
	b := batch.NewBatch(f.product.ID, "B-"+id.New().String()[:8])
	b.ExpiresAt = expiresAt
	f.batches.batches[b.ID] = b
	return &b.ID
}

func ptrTime(t time.Time) *time.Time { return &t }

// --- Tests ---

func TestAllocate_FIFOConsumesOldestCellsFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.addBatch(nil)
	b2 := f.addBatch(nil)
	oldest := f.addCell(t, 30, 0, b1)
	newest := f.addCell(t, 50, 0, b2)

	plan, err := f.engine.Allocate(ctx, Request{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		Quantity:   qty(40),
		Reference:  "TR-001",
	})
	require.NoError(t, err)

	require.Len(t, plan, 2)
	assert.Equal(t, oldest.ID, plan[0].Cell.ID)
	assert.Equal(t, qty(30), plan[0].Quantity)
	assert.Equal(t, newest.ID, plan[1].Cell.ID)
	assert.Equal(t, qty(10), plan[1].Quantity)

	// deductions landed in the ledger
	first, err := f.repo.GetCellByID(ctx, oldest.ID)
	require.NoError(t, err)
	assert.True(t, first.Quantity.IsZero())

	second, err := f.repo.GetCellByID(ctx, newest.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(40), second.Quantity)
}

func TestAllocate_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.addBatch(nil)
	f.addCell(t, 30, 0, b1)

	_, err := f.engine.Allocate(ctx, Request{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		Quantity:   qty(31),
		Reference:  "TR-001",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// nothing was deducted
	cell, err := f.repo.GetCellByID(ctx, f.repo.cells[0].ID)
	require.NoError(t, err)
	assert.Equal(t, qty(30), cell.Quantity)
	assert.Empty(t, f.repo.log)
}

func TestAllocate_ReservedQuantityNotAllocatable(t *testing.T) {
	f := newFixture(t)

	b1 := f.addBatch(nil)
	f.addCell(t, 30, 25, b1)

	_, err := f.engine.Allocate(context.Background(), Request{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		Quantity:   qty(10),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestAllocate_BatchFilterRestrictsCandidates(t *testing.T) {
	f := newFixture(t)

	b1 := f.addBatch(nil)
	b2 := f.addBatch(nil)
	f.addCell(t, 30, 0, b1)
	wanted := f.addCell(t, 30, 0, b2)

	plan, err := f.engine.Allocate(context.Background(), Request{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		Quantity:   qty(20),
		BatchID:    b2,
	})
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, wanted.ID, plan[0].Cell.ID)
}

func TestAllocate_FEFOPrefersEarliestExpiry(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	farBatch := f.addBatch(ptrTime(now.Add(90 * 24 * time.Hour)))
	soonBatch := f.addBatch(ptrTime(now.Add(5 * 24 * time.Hour)))
	noExpiry := f.addBatch(nil)

	// FIFO order: far, soon, none. FEFO must re-order to soon, far, none.
	far := f.addCell(t, 10, 0, farBatch)
	soon := f.addCell(t, 10, 0, soonBatch)
	none := f.addCell(t, 10, 0, noExpiry)

	plan, err := f.engine.Allocate(context.Background(), Request{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		Quantity:   qty(25),
		Strategy:   StrategyFEFO,
	})
	require.NoError(t, err)

	require.Len(t, plan, 3)
	assert.Equal(t, soon.ID, plan[0].Cell.ID)
	assert.Equal(t, far.ID, plan[1].Cell.ID)
	assert.Equal(t, none.ID, plan[2].Cell.ID)
	assert.Equal(t, qty(5), plan[2].Quantity)
}

func TestPlan_DoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.addBatch(nil)
	f.addCell(t, 30, 0, b1)

	plan, err := f.engine.Plan(ctx, Request{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		Quantity:   qty(10),
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)

	cell, err := f.repo.GetCellByID(ctx, f.repo.cells[0].ID)
	require.NoError(t, err)
	assert.Equal(t, qty(30), cell.Quantity)
	assert.Empty(t, f.repo.log)
}

func TestAllocate_ValidatesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Allocate(ctx, Request{LocationID: f.locationID, Quantity: qty(1)})
	assert.Error(t, err, "missing product")

	_, err = f.engine.Allocate(ctx, Request{ProductID: f.product.ID, Quantity: qty(1)})
	assert.Error(t, err, "missing location")

	_, err = f.engine.Allocate(ctx, Request{ProductID: f.product.ID, LocationID: f.locationID})
	assert.Error(t, err, "zero quantity")

	_, err = f.engine.Allocate(ctx, Request{
		ProductID:  f.product.ID,
		LocationID: f.locationID,
		Quantity:   qty(1),
		Strategy:   Strategy("lifo"),
	})
	assert.Error(t, err, "unknown strategy")
}
