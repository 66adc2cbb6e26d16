package domain

import (
	"context"

	"github.com/google/uuid"
)

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	BusinessID uuid.UUID
	CustomerID uuid.UUID
	Status     OrderStatus
	Limit      int
}

// Store is the persistence port of the fulfilment core.
type Store interface {
	// CreateOrder persists a new order, its items and its recorded events atomically.
	CreateOrder(ctx context.Context, o *Order) error

	// GetOrder returns an order with its items and full history.
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context, f OrderFilter) ([]*Order, error)

	// GetItem returns a single order item.
	GetItem(ctx context.Context, id uuid.UUID) (*OrderItem, error)

	GetGarmentByToken(ctx context.Context, token string) (*Garment, error)
	ListGarmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*Garment, error)
	ListGarmentsByItem(ctx context.Context, itemID uuid.UUID) ([]*Garment, error)

	// WithTx runs fn in one transaction. If fn returns an error nothing fn
	// wrote is kept.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the unit of work handed to Store.WithTx.
type Tx interface {
	// LockOrders loads the given orders and holds them for exclusive write
	// until the transaction ends. Orders are returned in the requested order.
	LockOrders(ctx context.Context, ids ...uuid.UUID) ([]*Order, error)

	GetGarmentByToken(ctx context.Context, token string) (*Garment, error)
	ListGarmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*Garment, error)
	ListGarmentsByItem(ctx context.Context, itemID uuid.UUID) ([]*Garment, error)

	// TokenExists is the uniqueness oracle for scan tokens.
	TokenExists(ctx context.Context, token string) (bool, error)

	// InsertGarment returns ErrTokenTaken when the token is already
	// registered anywhere; the transaction stays usable in that case.
	InsertGarment(ctx context.Context, g *Garment) error
	UpdateGarment(ctx context.Context, g *Garment) error

	// SaveOrder writes status, counters, totals, item quantities and the
	// uncommitted events of a locked order. It fails with ErrOptimisticLock
	// when the stored version moved on, and bumps o.Version on success.
	SaveOrder(ctx context.Context, o *Order) error
}
