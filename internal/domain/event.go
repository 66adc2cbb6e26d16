package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a fact published after a change has been committed.
type Event interface {
	Type() string
}

// EventDispatcher delivers committed events to interested parties.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

type OrderCreated struct {
	OrderID    uuid.UUID `json:"order_id"`
	BusinessID uuid.UUID `json:"business_id"`
	Units      int       `json:"units"`
}

func (e OrderCreated) Type() string { return "order.created" }

type OrderStatusChanged struct {
	OrderID uuid.UUID   `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	At      time.Time   `json:"at"`
}

func (e OrderStatusChanged) Type() string { return "order.status_changed" }

type RackAssigned struct {
	OrderID    uuid.UUID `json:"order_id"`
	Rack       string    `json:"rack"`
	Reassigned bool      `json:"reassigned"`
}

func (e RackAssigned) Type() string { return "order.rack_assigned" }

type GarmentScanned struct {
	OrderID   uuid.UUID     `json:"order_id"`
	GarmentID uuid.UUID     `json:"garment_id"`
	Token     string        `json:"token"`
	Status    GarmentStatus `json:"status"`
}

func (e GarmentScanned) Type() string { return "garment.scanned" }

type QuantityAdjusted struct {
	OrderID     uuid.UUID `json:"order_id"`
	ItemID      uuid.UUID `json:"item_id"`
	OldQuantity int       `json:"old_quantity"`
	NewQuantity int       `json:"new_quantity"`
}

func (e QuantityAdjusted) Type() string { return "order_item.quantity_adjusted" }
