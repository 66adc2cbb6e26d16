package garment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/printa-garments/internal/domain"
	"github.com/georgemunganga/printa-garments/internal/modules/audit"
	"github.com/georgemunganga/printa-garments/internal/modules/order"
	"github.com/georgemunganga/printa-garments/internal/storage/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Dispatch(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}

type fixture struct {
	store    *memory.Store
	orders   order.Service
	garments Service
	events   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	store := memory.New()
	rec := &recorder{}
	return &fixture{
		store:    store,
		orders:   order.NewService(store, rec, log),
		garments: NewService(store, rec, log, 0),
		events:   rec,
	}
}

func (f *fixture) createOrder(t *testing.T, items ...order.ItemRequest) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), order.CreateOrderRequest{
		BusinessID: uuid.NewString(),
		CustomerID: uuid.NewString(),
		Items:      items,
	})
	require.NoError(t, err)
	return o
}

func shirts(n int) order.ItemRequest {
	return order.ItemRequest{Name: "Shirt", Quantity: n, Price: decimal.NewFromInt(5)}
}

func (f *fixture) intake(t *testing.T, orderID uuid.UUID, token string) *ScanResult {
	t.Helper()
	res, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: orderID, Token: token})
	require.NoError(t, err)
	return res
}

func (f *fixture) process(t *testing.T, orderID uuid.UUID, token string) *ScanResult {
	t.Helper()
	res, err := f.garments.ReconcileProcessingScan(context.Background(), orderID, token)
	require.NoError(t, err)
	return res
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *domain.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

// assertScannedCount checks the maintained counter against the garments.
func (f *fixture) assertScannedCount(t *testing.T, id uuid.UUID) {
	t.Helper()
	gs, err := f.store.ListGarmentsByOrder(context.Background(), id)
	require.NoError(t, err)
	received := 0
	for _, g := range gs {
		if g.Status.Received() {
			received++
		}
	}
	assert.Equal(t, received, f.reload(t, id).ScannedCount)
}

func TestEndToEndShirtOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, shirts(2))

	res := f.intake(t, o.ID, "X1")
	assert.True(t, res.Created)
	assert.False(t, res.OrderTransitioned)
	assert.Equal(t, 1, res.Order.ScannedCount)
	assert.Equal(t, domain.OrderPending, res.Order.Status)
	assert.Equal(t, domain.GarmentInProgress, res.Garment.Status)
	assert.True(t, strings.HasPrefix(res.Garment.Description, "Shirt - "))

	res = f.intake(t, o.ID, "X2")
	assert.True(t, res.OrderTransitioned)
	assert.Equal(t, 2, res.Order.ScannedCount)
	assert.Equal(t, domain.OrderProcessing, res.Order.Status)

	res = f.process(t, o.ID, "X1")
	assert.Equal(t, domain.GarmentCompleted, res.Garment.Status)
	assert.NotNil(t, res.Garment.LastScannedAt)
	assert.False(t, res.OrderTransitioned)

	res = f.process(t, o.ID, "X2")
	assert.True(t, res.OrderTransitioned)
	assert.Equal(t, domain.OrderCleaned, res.Order.Status)

	done, err := f.orders.AssignRack(ctx, o.ID, "R5")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, done.Status)

	stored := f.reload(t, o.ID)
	assert.Equal(t, domain.OrderCompleted, stored.Status)
	assert.True(t, strings.HasSuffix(stored.AuditLog.String(), "Placed on rack: R5"))
	assert.Equal(t, "R5", stored.CurrentRack())
	assert.Equal(t, "R5", audit.CurrentRack(stored.AuditLog.String()))
	f.assertScannedCount(t, o.ID)

	assert.Equal(t, []string{
		"order.created",
		"garment.scanned",
		"garment.scanned", "order.status_changed",
		"garment.scanned",
		"garment.scanned", "order.status_changed",
		"order.status_changed", "order.rack_assigned",
	}, f.events.types())
}

func TestIntakeDuplicateScan(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(3))
	f.intake(t, o.ID, "X1")

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: " X1 "})
	assert.ErrorIs(t, err, domain.ErrDuplicateScan)

	stored := f.reload(t, o.ID)
	assert.Equal(t, 1, stored.ScannedCount)
	assert.Equal(t, domain.OrderPending, stored.Status)
	f.assertScannedCount(t, o.ID)
}

func TestIntakeRejectsEmptyToken(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(1))

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyToken)
}

func TestIntakeTransitionsExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(3))

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
		accepted    int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: fmt.Sprintf("T%d", i)})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrWrongPhase)
				return
			}
			accepted++
			if res.OrderTransitioned {
				transitions++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, 1, transitions)

	stored := f.reload(t, o.ID)
	assert.Equal(t, domain.OrderProcessing, stored.Status)
	assert.Equal(t, 3, stored.ScannedCount)
	changes := 0
	for _, e := range stored.AuditLog {
		if e.Kind == audit.KindStatusChange {
			changes++
		}
	}
	assert.Equal(t, 1, changes)
	f.assertScannedCount(t, o.ID)
}

func TestIntakeWrongPhase(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(1))
	f.intake(t, o.ID, "X1")

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: "X2"})
	var phase *domain.PhaseError
	require.ErrorAs(t, err, &phase)
	assert.Equal(t, domain.OrderPending, phase.Required)
	assert.Equal(t, domain.OrderProcessing, phase.Actual)
}

func TestIntakeCrossOrderConflict(t *testing.T) {
	f := newFixture(t)
	a := f.createOrder(t, shirts(2))
	b := f.createOrder(t, shirts(2))
	f.intake(t, a.ID, "X1")

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: b.ID, Token: "X1"})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, domain.ErrCrossOrderConflict)
	assert.Equal(t, a.ID, conflict.OwnerOrderID)

	assert.Equal(t, 0, f.reload(t, b.ID).ScannedCount)
	assert.Equal(t, 1, f.reload(t, a.ID).ScannedCount)
}

func TestIntakeUseAnywayMovesGarment(t *testing.T) {
	f := newFixture(t)
	a := f.createOrder(t, shirts(2))
	b := f.createOrder(t, shirts(2))
	f.intake(t, a.ID, "X1")

	res, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: b.ID, Token: "X1", UseAnyway: true})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, b.ID, res.Garment.OrderID)
	assert.Equal(t, b.Items[0].ID, res.Garment.OrderItemID)

	g, err := f.garments.GetByToken(context.Background(), "X1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, g.OrderID)

	storedA, storedB := f.reload(t, a.ID), f.reload(t, b.ID)
	assert.Equal(t, 0, storedA.ScannedCount)
	assert.Equal(t, 1, storedB.ScannedCount)
	assert.Contains(t, storedA.AuditLog.String(), "Garment moved to order "+b.ID.String()+": X1")
	assert.Contains(t, storedB.AuditLog.String(), "Garment moved from order "+a.ID.String()+": X1")
	f.assertScannedCount(t, a.ID)
	f.assertScannedCount(t, b.ID)
}

func TestIntakeUseAnywayLeavesProcessingOwnerAlone(t *testing.T) {
	f := newFixture(t)
	a := f.createOrder(t, shirts(1))
	b := f.createOrder(t, shirts(1))
	res := f.intake(t, a.ID, "X1")
	require.True(t, res.OrderTransitioned)

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: b.ID, Token: "X1", UseAnyway: true})
	var phase *domain.PhaseError
	require.ErrorAs(t, err, &phase)
	assert.Equal(t, domain.OrderProcessing, phase.Actual)

	storedA := f.reload(t, a.ID)
	assert.Equal(t, domain.OrderProcessing, storedA.Status)
	assert.Equal(t, 1, storedA.ScannedCount)
	assert.Equal(t, 0, f.reload(t, b.ID).ScannedCount)
	g, err := f.garments.GetByToken(context.Background(), "X1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, g.OrderID)

	// The owner can still finish its processing.
	done := f.process(t, a.ID, "X1")
	assert.Equal(t, domain.OrderCleaned, done.Order.Status)
}

func TestIntakeUseAnywayCannotStripUnfinishedGarment(t *testing.T) {
	f := newFixture(t)
	a := f.createOrder(t, shirts(2))
	b := f.createOrder(t, shirts(1))
	f.intake(t, a.ID, "X1")
	f.intake(t, a.ID, "X2")
	f.process(t, a.ID, "X1")

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: b.ID, Token: "X2", UseAnyway: true})
	assert.ErrorIs(t, err, domain.ErrWrongPhase)

	res := f.process(t, a.ID, "X2")
	assert.True(t, res.OrderTransitioned)
	assert.Equal(t, domain.OrderCleaned, res.Order.Status)
	f.assertScannedCount(t, a.ID)
}

func TestIntakeRejectsOverlongToken(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(1))

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: strings.Repeat("X", domain.MaxTokenLength+1)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: "X1\n[2020-01-01T00:00:00Z] Placed on rack: Z9"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, f.reload(t, o.ID).ScannedCount)

	res := f.intake(t, o.ID, strings.Repeat("X", domain.MaxTokenLength))
	assert.True(t, res.Created)
}

func TestIntakeDesignatedItem(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(1), order.ItemRequest{Name: "Suit", Quantity: 1, Price: decimal.NewFromInt(20)})

	res, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: "S1", ItemID: o.Items[1].ID})
	require.NoError(t, err)
	assert.Equal(t, o.Items[1].ID, res.Garment.OrderItemID)

	_, err = f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: "S2", ItemID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestIntakeOrderWithoutItems(t *testing.T) {
	f := newFixture(t)
	o := &domain.Order{ID: uuid.New(), Status: domain.OrderPending}
	require.NoError(t, f.store.CreateOrder(context.Background(), o))

	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: "X1"})
	assert.ErrorIs(t, err, domain.ErrNoItems)
}

func TestIntakeTakesInPreprintedLabel(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(2))

	labels, err := f.garments.GenerateBatchTokens(context.Background(), o.Items[0].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, f.reload(t, o.ID).ScannedCount)

	res := f.intake(t, o.ID, labels[0].QRCode)
	assert.False(t, res.Created)
	assert.Equal(t, labels[0].ID, res.Garment.ID)
	assert.Equal(t, labels[0].Description, res.Garment.Description)
	assert.Equal(t, domain.GarmentInProgress, res.Garment.Status)

	_, err = f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: o.ID, Token: labels[0].QRCode})
	assert.ErrorIs(t, err, domain.ErrDuplicateScan)

	res = f.intake(t, o.ID, labels[1].QRCode)
	assert.True(t, res.OrderTransitioned)
	f.assertScannedCount(t, o.ID)
}

func TestProcessingToggleBackBlocksCleaned(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(2))
	f.intake(t, o.ID, "X1")
	f.intake(t, o.ID, "X2")

	f.process(t, o.ID, "X1")
	res := f.process(t, o.ID, "X1")
	assert.Equal(t, domain.GarmentInProgress, res.Garment.Status)

	res = f.process(t, o.ID, "X2")
	assert.False(t, res.OrderTransitioned)
	assert.Equal(t, domain.OrderProcessing, f.reload(t, o.ID).Status)
	assert.Contains(t, f.reload(t, o.ID).AuditLog.String(), "Garment reopened: X1")

	res = f.process(t, o.ID, "X1")
	assert.True(t, res.OrderTransitioned)
	assert.Equal(t, domain.OrderCleaned, f.reload(t, o.ID).Status)
}

func TestProcessingUnknownGarment(t *testing.T) {
	f := newFixture(t)
	a := f.createOrder(t, shirts(1))
	b := f.createOrder(t, shirts(1))
	f.intake(t, a.ID, "A1")
	f.intake(t, b.ID, "B1")

	_, err := f.garments.ReconcileProcessingScan(context.Background(), a.ID, "B1")
	assert.ErrorIs(t, err, domain.ErrUnknownGarment)

	_, err = f.garments.ReconcileProcessingScan(context.Background(), a.ID, "NOPE")
	assert.ErrorIs(t, err, domain.ErrUnknownGarment)
}

func TestProcessingIgnoresLabelsNotTakenIn(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(1), order.ItemRequest{Name: "Suit", Quantity: 0})
	labels, err := f.garments.GenerateBatchTokens(context.Background(), o.Items[1].ID, 1)
	require.NoError(t, err)
	f.intake(t, o.ID, "X1")

	_, err = f.garments.ReconcileProcessingScan(context.Background(), o.ID, labels[0].QRCode)
	assert.ErrorIs(t, err, domain.ErrUnknownGarment)

	res := f.process(t, o.ID, "X1")
	assert.True(t, res.OrderTransitioned, "unreceived labels must not hold the order back")
}

func TestZeroGarmentOrderNeverCleans(t *testing.T) {
	f := newFixture(t)
	o := &domain.Order{ID: uuid.New(), Status: domain.OrderProcessing}
	require.NoError(t, f.store.CreateOrder(context.Background(), o))

	_, err := f.garments.ReconcileProcessingScan(context.Background(), o.ID, "X1")
	assert.ErrorIs(t, err, domain.ErrUnknownGarment)
	assert.Equal(t, domain.OrderProcessing, f.reload(t, o.ID).Status)
	assert.False(t, allCompleted(nil))
}

func TestProcessingWrongPhase(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(2))
	f.intake(t, o.ID, "X1")

	_, err := f.garments.ReconcileProcessingScan(context.Background(), o.ID, "X1")
	assert.ErrorIs(t, err, domain.ErrWrongPhase)
}

func TestGenerateBatchTokens(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, order.ItemRequest{Name: "Two-piece suit", Quantity: 5, Price: decimal.NewFromInt(30)})

	labels, err := f.garments.GenerateBatchTokens(context.Background(), o.Items[0].ID, 5)
	require.NoError(t, err)
	require.Len(t, labels, 5)

	seen := map[string]bool{}
	for _, g := range labels {
		assert.False(t, seen[g.QRCode], "duplicate token %s", g.QRCode)
		seen[g.QRCode] = true
		assert.Contains(t, g.QRCode, "-DC-")
		assert.Equal(t, domain.GarmentPending, g.Status)
	}

	byItem, err := f.garments.ListByItem(context.Background(), o.Items[0].ID)
	require.NoError(t, err)
	assert.Len(t, byItem, 5)
	assert.Contains(t, f.reload(t, o.ID).AuditLog.String(), "Tokens generated for Two-piece suit: 5")
}

func TestGenerateBatchTokensValidatesSize(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(1))

	_, err := f.garments.GenerateBatchTokens(context.Background(), o.Items[0].ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidBatchSize)
	_, err = f.garments.GenerateBatchTokens(context.Background(), o.Items[0].ID, MaxBatchSize+1)
	assert.ErrorIs(t, err, domain.ErrInvalidBatchSize)
	_, err = f.garments.GenerateBatchTokens(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

// saturatedStore reports every token as taken once limit tokens exist.
type saturatedStore struct {
	*memory.Store
	limit int
}

func (s *saturatedStore) WithTx(ctx context.Context, fn func(domain.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx domain.Tx) error {
		return fn(&saturatedTx{Tx: tx, limit: s.limit})
	})
}

type saturatedTx struct {
	domain.Tx
	limit    int
	inserted int
}

func (t *saturatedTx) TokenExists(ctx context.Context, token string) (bool, error) {
	if t.inserted >= t.limit {
		return true, nil
	}
	return t.Tx.TokenExists(ctx, token)
}

func (t *saturatedTx) InsertGarment(ctx context.Context, g *domain.Garment) error {
	if err := t.Tx.InsertGarment(ctx, g); err != nil {
		return err
	}
	t.inserted++
	return nil
}

func TestGenerateBatchTokensExhaustionRollsBack(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, shirts(5))
	log, _ := test.NewNullLogger()
	svc := NewService(&saturatedStore{Store: f.store, limit: 2}, nil, log, 3)

	_, err := svc.GenerateBatchTokens(context.Background(), o.Items[0].ID, 5)
	assert.ErrorIs(t, err, domain.ErrGenerationExhausted)

	byItem, err := f.store.ListGarmentsByItem(context.Background(), o.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, byItem)
	assert.Len(t, f.reload(t, o.ID).AuditLog, 1)
}

func TestScanOnMissingOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.garments.ReconcileIntakeScan(context.Background(), IntakeScan{OrderID: uuid.New(), Token: "X1"})
	assert.True(t, errors.Is(err, domain.ErrOrderNotFound))
}
