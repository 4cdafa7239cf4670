package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpile/internal/core/apperror"
	appctx "stockpile/internal/core/context"
	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/numerator"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/allocation"
	"stockpile/internal/domain/batch"
	"stockpile/internal/domain/catalogs/location"
	"stockpile/internal/domain/catalogs/product"
	"stockpile/internal/domain/ledger"
)

// --- Mocks ---

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubLocations struct {
	locations map[id.ID]*location.Location
}

func (s *stubLocations) GetByID(ctx context.Context, locID id.ID) (*location.Location, error) {
	loc, ok := s.locations[locID]
	if !ok {
		return nil, apperror.NewNotFound("location", locID)
	}
	return loc, nil
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

type stubBatches struct{}

func (stubBatches) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	return nil, apperror.NewNotFound("batch", batchID)
}

func (stubBatches) List(ctx context.Context, filter batch.ListFilter) ([]batch.Batch, error) {
	return nil, nil
}

type memTransferRepo struct {
	transfers map[id.ID]*Transfer
}

func (r *memTransferRepo) Create(ctx context.Context, t *Transfer) error {
	cp := *t
	r.transfers[t.ID] = &cp
	return nil
}

func (r *memTransferRepo) GetByID(ctx context.Context, transferID id.ID) (*Transfer, error) {
	t, ok := r.transfers[transferID]
	if !ok {
		return nil, apperror.NewNotFound("transfer", transferID)
	}
	cp := *t
	return &cp, nil
}

func (r *memTransferRepo) GetByIDForUpdate(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return r.GetByID(ctx, transferID)
}

func (r *memTransferRepo) Update(ctx context.Context, t *Transfer) error {
	if _, ok := r.transfers[t.ID]; !ok {
		return apperror.NewNotFound("transfer", t.ID)
	}
	cp := *t
	r.transfers[t.ID] = &cp
	return nil
}

func (r *memTransferRepo) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	var result []Transfer
	for _, t := range r.transfers {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		result = append(result, *t)
	}
	return result, nil
}

type memCellRepo struct {
	cells []*entity.StockCell
	log   []entity.StockLogEntry
}

func cellMatches(c *entity.StockCell, key entity.CellKey) bool {
	if c.ProductID != key.ProductID || c.LocationID != key.LocationID {
		return false
	}
	if (c.BatchID == nil) != (key.BatchID == nil) {
		return false
	}
	return c.BatchID == nil || *c.BatchID == *key.BatchID
}

func (r *memCellRepo) GetCell(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	for _, c := range r.cells {
		if cellMatches(c, key) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("stock cell", key.ProductID)
}

func (r *memCellRepo) GetCellByID(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	for _, c := range r.cells {
		if c.ID == cellID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("stock cell", cellID)
}

func (r *memCellRepo) GetCellForUpdate(ctx context.Context, key entity.CellKey) (*entity.StockCell, error) {
	return r.GetCell(ctx, key)
}

func (r *memCellRepo) GetCellByIDForUpdate(ctx context.Context, cellID id.ID) (*entity.StockCell, error) {
	return r.GetCellByID(ctx, cellID)
}

func (r *memCellRepo) InsertCell(ctx context.Context, cell *entity.StockCell) error {
	cp := *cell
	r.cells = append(r.cells, &cp)
	return nil
}

func (r *memCellRepo) UpdateCell(ctx context.Context, cell *entity.StockCell) error {
	for i, c := range r.cells {
		if c.ID == cell.ID {
			cp := *cell
			r.cells[i] = &cp
			return nil
		}
	}
	return apperror.NewNotFound("stock cell", cell.ID)
}

func (r *memCellRepo) DeleteCell(ctx context.Context, cellID id.ID) error {
	for i, c := range r.cells {
		if c.ID == cellID {
			r.cells = append(r.cells[:i], r.cells[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("stock cell", cellID)
}

func (r *memCellRepo) ListCells(ctx context.Context, filter ledger.CellFilter) ([]entity.StockCell, error) {
	var result []entity.StockCell
	for _, c := range r.cells {
		if filter.ProductID != nil && c.ProductID != *filter.ProductID {
			continue
		}
		if filter.LocationID != nil && c.LocationID != *filter.LocationID {
			continue
		}
		if filter.ExcludeEmpty && !c.Quantity.IsPositive() {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

func (r *memCellRepo) ListCellsForUpdate(ctx context.Context, productID, locationID id.ID) ([]entity.StockCell, error) {
	return r.ListCells(ctx, ledger.CellFilter{ProductID: &productID, LocationID: &locationID})
}

func (r *memCellRepo) AppendLog(ctx context.Context, entries []entity.StockLogEntry) error {
	r.log = append(r.log, entries...)
	return nil
}

func (r *memCellRepo) ListLog(ctx context.Context, filter ledger.LogFilter) ([]entity.StockLogEntry, error) {
	return r.log, nil
}

func (r *memCellRepo) TotalStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, c := range r.cells {
		if c.ProductID == productID {
			total += c.Quantity
		}
	}
	return total, nil
}

func (r *memCellRepo) ReplayCell(ctx context.Context, cellID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, e := range r.log {
		if e.CellID == cellID {
			total += e.Delta
		}
	}
	return total, nil
}

type recordingAudit struct {
	actions []string
}

func (r *recordingAudit) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	r.actions = append(r.actions, action)
	return nil
}

// --- Fixtures ---

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

type fixture struct {
	service  *Service
	cells    *memCellRepo
	audit    *recordingAudit
	product  *product.Product
	fromLoc  id.ID
	toLoc    id.ID
	batchID  *id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	p := product.NewProduct("PRD-00001", "Coffee Beans", product.TypeGoods)
	p.TrackBatch = true
	batchID := id.New()

	from := location.NewLocation("LOC-001", "Main Warehouse", location.TypeWarehouse)
	to := location.NewLocation("LOC-002", "Downtown Store", location.TypeStore)

	cells := &memCellRepo{}
	ledgerSvc := ledger.NewService(cells, &stubProducts{p: p}, noopTxManager{})
	engine := allocation.NewEngine(ledgerSvc, cells, stubBatches{}, noopTxManager{})

	svc := NewService(
		&memTransferRepo{transfers: make(map[id.ID]*Transfer)},
		&stubLocations{locations: map[id.ID]*location.Location{from.ID: from, to.ID: to}},
		engine,
		ledgerSvc,
		&numerator.MockGenerator{},
		noopTxManager{},
	)

	audit := &recordingAudit{}
	svc.SetAuditRecorder(audit)

	return &fixture{
		service: svc,
		cells:   cells,
		audit:   audit,
		product: p,
		fromLoc: from.ID,
		toLoc:   to.ID,
		batchID: &batchID,
	}
}

func (f *fixture) seedStock(t *testing.T, quantity float64) {
	t.Helper()
	cell := entity.NewStockCell(entity.CellKey{
		ProductID:  f.product.ID,
		LocationID: f.fromLoc,
		BatchID:    f.batchID,
	})
	cell.Quantity = qty(quantity)
	cell.Status = entity.StockStatusInStock
	require.NoError(t, f.cells.InsertCell(context.Background(), &cell))
}

func (f *fixture) newPendingTransfer(t *testing.T, quantity float64) *Transfer {
	t.Helper()
	tr := NewTransfer(f.fromLoc, f.toLoc)
	tr.AddItem(f.product.ID, f.batchID, qty(quantity), types.MustMoney("11.50"))
	require.NoError(t, f.service.Create(context.Background(), tr))
	return tr
}

// --- Tests ---

func TestCreate_GeneratesNumberAndAudits(t *testing.T) {
	f := newFixture(t)

	tr := f.newPendingTransfer(t, 10)

	assert.NotEmpty(t, tr.Number)
	assert.Equal(t, StatusPending, tr.Status)
	assert.Equal(t, []string{"create"}, f.audit.actions)
}

func TestCreate_StampsActorOnDocument(t *testing.T) {
	f := newFixture(t)

	creator := appctx.WithActor(context.Background(), &appctx.ActorContext{ActorID: "user-1"})
	tr := NewTransfer(f.fromLoc, f.toLoc)
	tr.AddItem(f.product.ID, f.batchID, qty(5), types.MustMoney("11.50"))
	require.NoError(t, f.service.Create(creator, tr))

	assert.Equal(t, "user-1", tr.CreatedBy)
	assert.Equal(t, "user-1", tr.UpdatedBy)

	// a different operator acts on the document: only UpdatedBy moves
	approver := appctx.WithActor(context.Background(), &appctx.ActorContext{ActorID: "user-2"})
	updated, err := f.service.Act(approver, tr.ID, ActionApprove)
	require.NoError(t, err)

	assert.Equal(t, "user-1", updated.CreatedBy)
	assert.Equal(t, "user-2", updated.UpdatedBy)
}

func TestCreate_RejectsInactiveLocation(t *testing.T) {
	f := newFixture(t)

	inactive := location.NewLocation("LOC-099", "Closed", location.TypeWarehouse)
	inactive.IsActive = false
	f.service.locations.(*stubLocations).locations[inactive.ID] = inactive

	tr := NewTransfer(f.fromLoc, inactive.ID)
	tr.AddItem(f.product.ID, f.batchID, qty(1), types.Zero())

	err := f.service.Create(context.Background(), tr)
	require.Error(t, err)
}

func TestAct_CompleteMovesStockPreservingBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedStock(t, 100)
	tr := f.newPendingTransfer(t, 30)

	_, err := f.service.Act(ctx, tr.ID, ActionApprove)
	require.NoError(t, err)

	out, err := f.service.Act(ctx, tr.ID, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
	require.NotNil(t, out.CompletedAt)

	// source lost 30
	src, err := f.cells.GetCell(ctx, entity.CellKey{
		ProductID: f.product.ID, LocationID: f.fromLoc, BatchID: f.batchID,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(70), src.Quantity)

	// destination gained 30 under the SAME batch
	dst, err := f.cells.GetCell(ctx, entity.CellKey{
		ProductID: f.product.ID, LocationID: f.toLoc, BatchID: f.batchID,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(30), dst.Quantity)

	// both legs logged: one out, one in
	require.Len(t, f.cells.log, 2)
	assert.Equal(t, entity.EntryTypeOut, f.cells.log[0].EntryType)
	assert.Equal(t, qty(30).Neg(), f.cells.log[0].Delta)
	assert.Equal(t, entity.EntryTypeIn, f.cells.log[1].EntryType)
	assert.Equal(t, qty(30), f.cells.log[1].Delta)
	assert.Equal(t, tr.Number, f.cells.log[0].Reference)
}

func TestAct_CompleteFailsOnInsufficientStockAndKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedStock(t, 10)
	tr := f.newPendingTransfer(t, 30)

	_, err := f.service.Act(ctx, tr.ID, ActionApprove)
	require.NoError(t, err)

	_, err = f.service.Act(ctx, tr.ID, ActionComplete)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// document still in transit, stock untouched
	stored, err := f.service.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, stored.Status)

	src, err := f.cells.GetCell(ctx, entity.CellKey{
		ProductID: f.product.ID, LocationID: f.fromLoc, BatchID: f.batchID,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(10), src.Quantity)
}

func TestAct_CancelFromPendingDoesNotTouchStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedStock(t, 100)
	tr := f.newPendingTransfer(t, 30)

	out, err := f.service.Act(ctx, tr.ID, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, out.Status)
	assert.Empty(t, f.cells.log)
}

func TestAct_CompleteFromPendingIsIllegal(t *testing.T) {
	f := newFixture(t)

	f.seedStock(t, 100)
	tr := f.newPendingTransfer(t, 30)

	_, err := f.service.Act(context.Background(), tr.ID, ActionComplete)
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeInvalidTransition, appErr.Code)
}

func TestAct_UnknownAction(t *testing.T) {
	f := newFixture(t)
	tr := f.newPendingTransfer(t, 1)

	_, err := f.service.Act(context.Background(), tr.ID, Action("teleport"))
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeInvalidAction, appErr.Code)
}

func TestAct_TerminalStateRejectsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedStock(t, 100)
	tr := f.newPendingTransfer(t, 5)

	_, err := f.service.Act(ctx, tr.ID, ActionCancel)
	require.NoError(t, err)

	for _, action := range []Action{ActionApprove, ActionComplete, ActionCancel} {
		_, err := f.service.Act(ctx, tr.ID, action)
		assert.Error(t, err, "action %s must be illegal on cancelled", action)
	}
}
