package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpile/internal/core/apperror"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/batch"
	"stockpile/internal/domain/catalogs/product"
)

// --- Mocks ---

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// txHeldLocks collects key locks taken during one transaction so the
// manager can release them when the transaction ends, mirroring
// transaction-scoped advisory locks.
type txHeldLocks struct {
	mu  sync.Mutex
	mus []*sync.Mutex
}

func (h *txHeldLocks) add(m *sync.Mutex) {
	h.mu.Lock()
	h.mus = append(h.mus, m)
	h.mu.Unlock()
}

type txHeldLocksKey struct{}

// lockingTxManager releases key locks at transaction end.
type lockingTxManager struct{}

func (lockingTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	held := &txHeldLocks{}
	err := fn(context.WithValue(ctx, txHeldLocksKey{}, held))
	for _, m := range held.mus {
		m.Unlock()
	}
	return err
}

type stubTotaller struct {
	total types.Quantity
}

func (s *stubTotaller) TotalStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return s.total, nil
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
	b *batch.Batch
}

func (s *stubBatches) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	if s.b != nil && s.b.ID == batchID {
		return s.b, nil
	}
	return nil, apperror.NewNotFound("batch", batchID)
}

func (s *stubBatches) List(ctx context.Context, filter batch.ListFilter) ([]batch.Batch, error) {
	return nil, nil
}

type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[id.ID]*Alert

	keyLocks     map[string]*sync.Mutex
	lockAttempts int

	// bothLocking, when set, is closed once two transactions have called
	// AcquireKeyLock. FindActive waits on it, which widens the
	// read-then-insert window the way two concurrent sales would.
	bothLocking chan struct{}
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{
		alerts:   make(map[id.ID]*Alert),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

func dedupKey(productID id.ID, alertType AlertType, batchID *id.ID) string {
	key := productID.String() + ":" + string(alertType)
	if batchID != nil {
		key += ":" + batchID.String()
	}
	return key
}

// AcquireKeyLock holds the per-key mutex for the rest of the transaction.
// Under noopTxManager nothing releases locks, so locking engages only
// when lockingTxManager put a lock holder into the context.
func (r *memAlertRepo) AcquireKeyLock(ctx context.Context, productID id.ID, alertType AlertType, batchID *id.ID) error {
	r.mu.Lock()
	r.lockAttempts++
	if r.bothLocking != nil && r.lockAttempts == 2 {
		close(r.bothLocking)
	}
	key := dedupKey(productID, alertType, batchID)
	m, ok := r.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		r.keyLocks[key] = m
	}
	r.mu.Unlock()

	held, ok := ctx.Value(txHeldLocksKey{}).(*txHeldLocks)
	if !ok {
		return nil
	}
	m.Lock()
	held.add(m)
	return nil
}

func (r *memAlertRepo) Create(ctx context.Context, a *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *memAlertRepo) GetByID(ctx context.Context, alertID id.ID) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[alertID]
	if !ok {
		return nil, apperror.NewNotFound("alert", alertID)
	}
	cp := *a
	return &cp, nil
}

func (r *memAlertRepo) FindActive(ctx context.Context, productID id.ID, alertType AlertType, batchID *id.ID) (*Alert, error) {
	if r.bothLocking != nil {
		<-r.bothLocking
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if !a.IsActive || a.ProductID != productID || a.Type != alertType {
			continue
		}
		if (a.BatchID == nil) != (batchID == nil) {
			continue
		}
		if a.BatchID != nil && *a.BatchID != *batchID {
			continue
		}
		cp := *a
		return &cp, nil
	}
	return nil, apperror.NewNotFound("alert", productID)
}

func (r *memAlertRepo) Update(ctx context.Context, a *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[a.ID]; !ok {
		return apperror.NewNotFound("alert", a.ID)
	}
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *memAlertRepo) List(ctx context.Context, filter ListFilter) ([]Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Alert
	for _, a := range r.alerts {
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		result = append(result, *a)
	}
	return result, nil
}

func (r *memAlertRepo) active() []*Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*Alert
	for _, a := range r.alerts {
		if a.IsActive {
			result = append(result, a)
		}
	}
	return result
}

// --- Fixtures ---

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

type fixture struct {
	evaluator *Evaluator
	repo      *memAlertRepo
	totals    *stubTotaller
	batches   *stubBatches
	product   *product.Product
}

func newFixture(t *testing.T, minStock, maxStock float64) *fixture {
	t.Helper()

	p := product.NewProduct("PRD-00001", "Coffee Beans", product.TypeGoods)
	p.MinStock = qty(minStock)
	p.MaxStock = qty(maxStock)

	repo := newMemAlertRepo()
	totals := &stubTotaller{}
	batches := &stubBatches{}

	return &fixture{
		evaluator: NewEvaluator(repo, totals, &stubProducts{p: p}, batches, noopTxManager{}, DefaultPolicy()),
		repo:      repo,
		totals:    totals,
		batches:   batches,
		product:   p,
	}
}

func (f *fixture) findActive(t *testing.T, alertType AlertType, batchID *id.ID) *Alert {
	t.Helper()
	a, err := f.repo.FindActive(context.Background(), f.product.ID, alertType, batchID)
	require.NoError(t, err)
	return a
}

// --- Tests ---

func TestEvaluateStock_OutOfStockRaisesHighSeverity(t *testing.T) {
	f := newFixture(t, 20, 0)
	f.totals.total = qty(0)

	require.NoError(t, f.evaluator.EvaluateStock(context.Background(), f.product.ID))

	a := f.findActive(t, TypeLowStock, nil)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Nil(t, a.BatchID)
}

func TestEvaluateStock_BelowMinRaisesMediumSeverity(t *testing.T) {
	f := newFixture(t, 20, 0)
	f.totals.total = qty(15)

	require.NoError(t, f.evaluator.EvaluateStock(context.Background(), f.product.ID))

	a := f.findActive(t, TypeLowStock, nil)
	assert.Equal(t, SeverityMedium, a.Severity)
}

func TestEvaluateStock_DeduplicatesAndUpdatesInPlace(t *testing.T) {
	f := newFixture(t, 20, 0)
	ctx := context.Background()

	f.totals.total = qty(15)
	require.NoError(t, f.evaluator.EvaluateStock(ctx, f.product.ID))
	first := f.findActive(t, TypeLowStock, nil)

	// condition worsens: same alert, escalated severity, no duplicate
	f.totals.total = qty(0)
	require.NoError(t, f.evaluator.EvaluateStock(ctx, f.product.ID))

	second := f.findActive(t, TypeLowStock, nil)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, SeverityHigh, second.Severity)

	var lowStockAlerts int
	for _, a := range f.repo.active() {
		if a.Type == TypeLowStock {
			lowStockAlerts++
		}
	}
	assert.Equal(t, 1, lowStockAlerts)
}

func TestEvaluateStock_ConcurrentFirstRaiseCreatesSingleAlert(t *testing.T) {
	p := product.NewProduct("PRD-00001", "Coffee Beans", product.TypeGoods)
	p.MinStock = qty(20)

	// Gate the dedup read so both evaluations reach it before either
	// insert can land. Two sales of one product at different locations
	// hit this window: their cell locks do not conflict.
	repo := newMemAlertRepo()
	repo.bothLocking = make(chan struct{})

	totals := &stubTotaller{total: qty(5)}
	ev := NewEvaluator(repo, totals, &stubProducts{p: p}, &stubBatches{}, lockingTxManager{}, DefaultPolicy())

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ev.EvaluateStock(context.Background(), p.ID)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var lowStockAlerts int
	for _, a := range repo.active() {
		if a.Type == TypeLowStock {
			lowStockAlerts++
		}
	}
	assert.Equal(t, 1, lowStockAlerts)
}

func TestEvaluateStock_RepeatedEvaluationIsIdempotent(t *testing.T) {
	f := newFixture(t, 20, 0)
	ctx := context.Background()

	f.totals.total = qty(15)
	require.NoError(t, f.evaluator.EvaluateStock(ctx, f.product.ID))
	require.NoError(t, f.evaluator.EvaluateStock(ctx, f.product.ID))
	require.NoError(t, f.evaluator.EvaluateStock(ctx, f.product.ID))

	assert.Len(t, f.repo.active(), 1)
}

func TestEvaluateStock_RecoveryDoesNotAutoResolve(t *testing.T) {
	f := newFixture(t, 20, 0)
	ctx := context.Background()

	f.totals.total = qty(5)
	require.NoError(t, f.evaluator.EvaluateStock(ctx, f.product.ID))
	raised := f.findActive(t, TypeLowStock, nil)

	// stock recovers: the alert stays active until resolved explicitly
	f.totals.total = qty(100)
	require.NoError(t, f.evaluator.EvaluateStock(ctx, f.product.ID))

	still := f.findActive(t, TypeLowStock, nil)
	assert.Equal(t, raised.ID, still.ID)
	assert.True(t, still.IsActive)
	assert.Nil(t, still.ResolvedAt)
}

func TestEvaluateStock_ReorderSuggestsRefillToMax(t *testing.T) {
	f := newFixture(t, 20, 100)
	f.totals.total = qty(15)

	require.NoError(t, f.evaluator.EvaluateStock(context.Background(), f.product.ID))

	a := f.findActive(t, TypeReorder, nil)
	assert.Equal(t, SeverityLow, a.Severity)
	assert.Equal(t, 85.0, a.Details["suggested_qty"])
}

func TestEvaluateStock_NoReorderWithoutMaxStock(t *testing.T) {
	f := newFixture(t, 20, 0)
	f.totals.total = qty(15)

	require.NoError(t, f.evaluator.EvaluateStock(context.Background(), f.product.ID))

	_, err := f.repo.FindActive(context.Background(), f.product.ID, TypeReorder, nil)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEvaluateExpiry_WithinWindowRaisesMedium(t *testing.T) {
	f := newFixture(t, 0, 0)

	b := batch.NewBatch(f.product.ID, "B-2026-001")
	expires := time.Now().UTC().Add(10 * 24 * time.Hour)
	b.ExpiresAt = &expires
	f.batches.b = b

	require.NoError(t, f.evaluator.EvaluateExpiry(context.Background(), b.ID))

	a := f.findActive(t, TypeExpiry, &b.ID)
	assert.Equal(t, SeverityMedium, a.Severity)
	require.NotNil(t, a.BatchID)
	assert.Equal(t, b.ID, *a.BatchID)
}

func TestEvaluateExpiry_ExpiredRaisesHigh(t *testing.T) {
	f := newFixture(t, 0, 0)

	b := batch.NewBatch(f.product.ID, "B-2026-001")
	expires := time.Now().UTC().Add(-time.Hour)
	b.ExpiresAt = &expires
	f.batches.b = b

	require.NoError(t, f.evaluator.EvaluateExpiry(context.Background(), b.ID))

	a := f.findActive(t, TypeExpiry, &b.ID)
	assert.Equal(t, SeverityHigh, a.Severity)
}

func TestEvaluateExpiry_OutsideWindowRaisesNothing(t *testing.T) {
	f := newFixture(t, 0, 0)

	b := batch.NewBatch(f.product.ID, "B-2026-001")
	farFuture := time.Now().UTC().Add(400 * 24 * time.Hour)
	b.ExpiresAt = &farFuture
	f.batches.b = b

	require.NoError(t, f.evaluator.EvaluateExpiry(context.Background(), b.ID))
	assert.Empty(t, f.repo.active())
}

func TestEvaluateExpiry_NoExpiryDateIsNoop(t *testing.T) {
	f := newFixture(t, 0, 0)

	b := batch.NewBatch(f.product.ID, "B-2026-001")
	f.batches.b = b

	require.NoError(t, f.evaluator.EvaluateExpiry(context.Background(), b.ID))
	assert.Empty(t, f.repo.active())
}

func TestService_ResolveAndDismiss(t *testing.T) {
	repo := newMemAlertRepo()
	svc := NewService(repo, noopTxManager{})
	ctx := context.Background()

	a := NewAlert(id.New(), TypeLowStock, SeverityMedium, "low")
	require.NoError(t, repo.Create(ctx, a))

	resolved, err := svc.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, resolved.IsActive)

	// resolving twice is a conflict
	_, err = svc.Resolve(ctx, a.ID)
	require.Error(t, err)
}
