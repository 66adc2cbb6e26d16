package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/printa-garments/internal/modules/audit"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderProcessing, true},
		{OrderProcessing, OrderCleaned, true},
		{OrderCleaned, OrderCompleted, true},
		{OrderPending, OrderCancelled, true},
		{OrderCleaned, OrderCancelled, true},
		{OrderPending, OrderCleaned, false},
		{OrderProcessing, OrderPending, false},
		{OrderCompleted, OrderCancelled, false},
		{OrderCancelled, OrderPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestParseStatusIsCaseInsensitive(t *testing.T) {
	st, err := ParseOrderStatus(" processing ")
	require.NoError(t, err)
	assert.Equal(t, OrderProcessing, st)

	gs, err := ParseGarmentStatus("In_Progress")
	require.NoError(t, err)
	assert.Equal(t, GarmentInProgress, gs)

	_, err = ParseOrderStatus("DONE")
	assert.Error(t, err)
}

func TestTransitionToRecordsAuditEntry(t *testing.T) {
	o := &Order{ID: uuid.New(), Status: OrderPending}
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, o.TransitionTo(OrderProcessing, at))
	assert.Equal(t, OrderProcessing, o.Status)
	require.Len(t, o.Uncommitted(), 1)
	assert.Equal(t, audit.StatusChanged(at, "PENDING", "PROCESSING"), o.AuditLog[0])

	err := o.TransitionTo(OrderCompleted, at)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, OrderProcessing, o.Status)
	assert.Len(t, o.AuditLog, 1)
}

func TestIntakeItem(t *testing.T) {
	first := &OrderItem{ID: uuid.New(), Name: "Shirt", Quantity: 2}
	second := &OrderItem{ID: uuid.New(), Name: "Suit", Quantity: 1}
	o := &Order{ID: uuid.New(), Items: []*OrderItem{first, second}}

	it, err := o.IntakeItem(uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, it.ID)

	it, err = o.IntakeItem(second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, it.ID)

	_, err = o.IntakeItem(uuid.New())
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = (&Order{}).IntakeItem(uuid.Nil)
	assert.ErrorIs(t, err, ErrNoItems)
	assert.Equal(t, 3, o.ExpectedUnits())
}

func TestRecalculateTotal(t *testing.T) {
	o := &Order{Items: []*OrderItem{
		{Quantity: 2, Price: decimal.RequireFromString("3.50")},
		{Quantity: 1, Price: decimal.RequireFromString("12.25")},
	}}
	o.RecalculateTotal()
	assert.True(t, decimal.RequireFromString("19.25").Equal(o.Total), o.Total.String())
}

func TestCloneIsDeep(t *testing.T) {
	o := &Order{Items: []*OrderItem{{Name: "Shirt", Quantity: 1}}}
	o.Record(audit.OrderCreated(time.Now()))
	c := o.Clone()
	c.Items[0].Quantity = 5
	c.Record(audit.Note(time.Now(), "x"))
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Len(t, o.AuditLog, 1)
	assert.Len(t, c.Uncommitted(), 2)
}

func TestErrorTypesMatchSentinels(t *testing.T) {
	var err error = &ConflictError{Token: "X1", OwnerOrderID: uuid.New()}
	assert.ErrorIs(t, err, ErrCrossOrderConflict)

	err = &PhaseError{Op: "intake scan", Required: OrderPending, Actual: OrderCleaned}
	assert.ErrorIs(t, err, ErrWrongPhase)

	cause := errors.New("connection reset")
	err = &PersistenceError{Op: "save order", Err: cause}
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
}

func TestCategoryFromName(t *testing.T) {
	assert.Equal(t, CategoryDryClean, CategoryFromName("Two-piece Suit"))
	assert.Equal(t, CategoryWashFold, CategoryFromName("Wash & Fold (kg)"))
	assert.Equal(t, CategoryPress, CategoryFromName("Shirt press"))
	assert.Equal(t, CategoryAlteration, CategoryFromName("Hem trousers"))
	assert.Equal(t, CategoryOther, CategoryFromName("Shoes"))
	assert.Equal(t, "DC", CategoryDryClean.Code())
}
