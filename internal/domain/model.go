package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-garments/internal/modules/audit"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderCleaned    OrderStatus = "CLEANED"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// validTransitions defines the allowed order state machine.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderCleaned, OrderCancelled},
	OrderCleaned:    {OrderCompleted, OrderCancelled},
	OrderCompleted:  {},
	OrderCancelled:  {},
}

// CanTransition returns true if the transition from current to next is valid.
func CanTransition(current, next OrderStatus) bool {
	for _, s := range validTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// ParseOrderStatus accepts any letter case and returns the canonical status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("invalid order status %q", s)
	}
	return st, nil
}

// GarmentStatus represents the lifecycle state of one tracked garment.
type GarmentStatus string

const (
	GarmentPending    GarmentStatus = "PENDING" // label printed, item not yet received
	GarmentInProgress GarmentStatus = "IN_PROGRESS"
	GarmentCompleted  GarmentStatus = "COMPLETED"
)

// ParseGarmentStatus accepts any letter case and returns the canonical status.
func ParseGarmentStatus(s string) (GarmentStatus, error) {
	st := GarmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case GarmentPending, GarmentInProgress, GarmentCompleted:
		return st, nil
	}
	return "", fmt.Errorf("invalid garment status %q", s)
}

// Received reports whether the garment has been physically taken in.
func (s GarmentStatus) Received() bool {
	return s == GarmentInProgress || s == GarmentCompleted
}

// Order represents one customer drop-off.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	BusinessID    uuid.UUID       `json:"business_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Status        OrderStatus     `json:"status"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	ScannedCount  int             `json:"scanned_count"`
	Items         []*OrderItem    `json:"items"`
	AuditLog      audit.Log       `json:"audit_log"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// uncommitted holds events appended since the order was loaded.
	uncommitted []audit.Event
}

// OrderItem is one service line of an order.
type OrderItem struct {
	ID       uuid.UUID       `json:"id"`
	OrderID  uuid.UUID       `json:"order_id"`
	Name     string          `json:"name"`
	Category Category        `json:"category"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Garment tracks one physical unit by its scan token.
type Garment struct {
	ID            uuid.UUID     `json:"id"`
	OrderID       uuid.UUID     `json:"order_id"`
	OrderItemID   uuid.UUID     `json:"order_item_id"`
	QRCode        string        `json:"qr_code"`
	Description   string        `json:"description"`
	Status        GarmentStatus `json:"status"`
	LastScannedAt *time.Time    `json:"last_scanned_at,omitempty"`
	ImageRef      *string       `json:"image_ref,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ExpectedUnits is the number of physical units the order's items call for.
func (o *Order) ExpectedUnits() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Item returns the order's item with the given id.
func (o *Order) Item(id uuid.UUID) (*OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// IntakeItem picks the item newly received garments are attached to: the
// designated one when set, otherwise the first line of the order.
func (o *Order) IntakeItem(designated uuid.UUID) (*OrderItem, error) {
	if designated != uuid.Nil {
		it, ok := o.Item(designated)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not on order %s", ErrItemNotFound, designated, o.ID)
		}
		return it, nil
	}
	if len(o.Items) == 0 {
		return nil, ErrNoItems
	}
	return o.Items[0], nil
}

// RecalculateTotal sets Total to the sum of price × quantity over all items.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	o.Total = total
}

// Record appends an event to the order's history.
func (o *Order) Record(e audit.Event) {
	o.AuditLog = append(o.AuditLog, e)
	o.uncommitted = append(o.uncommitted, e)
}

// Uncommitted returns the events recorded since the order was loaded.
func (o *Order) Uncommitted() []audit.Event {
	return o.uncommitted
}

// MarkCommitted is called by stores once the uncommitted events are durable.
func (o *Order) MarkCommitted() {
	o.uncommitted = nil
}

// TransitionTo moves the order to next and records the status change in the
// same step, so a status never changes without its audit entry.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) error {
	if !CanTransition(o.Status, next) {
		return &TransitionError{From: o.Status, To: next}
	}
	prev := o.Status
	o.Status = next
	o.UpdatedAt = at
	o.Record(audit.StatusChanged(at, string(prev), string(next)))
	return nil
}

// CurrentRack is the rack derived from the order's history.
func (o *Order) CurrentRack() string {
	return o.AuditLog.CurrentRack()
}

// Clone returns a deep copy, uncommitted events included.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]*OrderItem, len(o.Items))
	for i, it := range o.Items {
		cp := *it
		c.Items[i] = &cp
	}
	c.AuditLog = append(audit.Log(nil), o.AuditLog...)
	c.uncommitted = append([]audit.Event(nil), o.uncommitted...)
	return &c
}

// Clone returns a deep copy.
func (g *Garment) Clone() *Garment {
	c := *g
	if g.LastScannedAt != nil {
		t := *g.LastScannedAt
		c.LastScannedAt = &t
	}
	if g.ImageRef != nil {
		s := *g.ImageRef
		c.ImageRef = &s
	}
	return &c
}
