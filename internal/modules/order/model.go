package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

// ItemRequest describes one service line of a new order.
type ItemRequest struct {
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"` // inferred from name when empty
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// CreateOrderRequest is the payload for opening a new drop-off order.
type CreateOrderRequest struct {
	BusinessID    string        `json:"business_id"`
	CustomerID    string        `json:"customer_id"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	Items         []ItemRequest `json:"items"`
}

// RackRequest is the payload for assigning or reassigning a rack.
type RackRequest struct {
	Rack string `json:"rack"`
}

// CancelRequest is the payload for cancelling an order.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// View is the read model returned by the API: the order plus its rendered
// history and the rack derived from it.
type View struct {
	*domain.Order
	ExpectedUnits int    `json:"expected_units"`
	CurrentRack   string `json:"current_rack"`
	History       string `json:"history"`
}

func NewView(o *domain.Order) View {
	return View{
		Order:         o,
		ExpectedUnits: o.ExpectedUnits(),
		CurrentRack:   o.CurrentRack(),
		History:       o.AuditLog.String(),
	}
}

func newOrder(businessID, customerID uuid.UUID, paymentMethod string, items []*domain.OrderItem, now time.Time) *domain.Order {
	o := &domain.Order{
		ID:            uuid.New(),
		BusinessID:    businessID,
		CustomerID:    customerID,
		Status:        domain.OrderPending,
		PaymentMethod: paymentMethod,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range items {
		it.OrderID = o.ID
	}
	o.RecalculateTotal()
	return o
}
