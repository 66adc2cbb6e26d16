package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/georgemunganga/printa-garments/internal/domain"
	"github.com/georgemunganga/printa-garments/internal/events"
	"github.com/georgemunganga/printa-garments/internal/modules/audit"
)

// Service defines the order lifecycle operations that are not driven by scans.
type Service interface {
	// CreateOrder validates the items, computes the total and persists a PENDING order.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error)

	// AssignRack places a CLEANED order on a rack, completing it.
	AssignRack(ctx context.Context, id uuid.UUID, rack string) (*domain.Order, error)

	// ReassignRack moves a COMPLETED order to another rack.
	ReassignRack(ctx context.Context, id uuid.UUID, rack string) (*domain.Order, error)

	// CurrentRack returns the rack derived from the order's history, or "unassigned".
	CurrentRack(ctx context.Context, id uuid.UUID) (string, error)

	// CancelOrder cancels any order that is not yet COMPLETED or CANCELLED.
	CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error)
}

type service struct {
	store  domain.Store
	events domain.EventDispatcher
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new order service.
func NewService(store domain.Store, dispatcher domain.EventDispatcher, log logrus.FieldLogger) Service {
	return &service{store: store, events: dispatcher, log: log, now: time.Now}
}

func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if req.BusinessID == "" {
		return nil, fmt.Errorf("%w: business_id is required", domain.ErrValidation)
	}
	businessID, err := uuid.Parse(req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid business_id", domain.ErrValidation)
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid customer_id", domain.ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrValidation)
	}

	var units int64
	items := make([]*domain.OrderItem, 0, len(req.Items))
	for i, ir := range req.Items {
		name := strings.TrimSpace(ir.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: items[%d].name is required", domain.ErrValidation, i)
		}
		if err := domain.CheckText(fmt.Sprintf("items[%d].name", i), name); err != nil {
			return nil, err
		}
		if err := domain.CheckQuantity(ir.Quantity); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		units += int64(ir.Quantity)
		if ir.Price.IsNegative() {
			return nil, fmt.Errorf("%w: items[%d].price cannot be negative", domain.ErrValidation, i)
		}
		category, err := domain.ParseCategory(ir.Category)
		if err != nil {
			return nil, fmt.Errorf("%w: items[%d]: %v", domain.ErrValidation, i, err)
		}
		if category == "" {
			category = domain.CategoryFromName(name)
		}
		items = append(items, &domain.OrderItem{
			ID:       uuid.New(),
			Name:     name,
			Category: category,
			Quantity: ir.Quantity,
			Price:    ir.Price,
		})
	}

	if units > domain.MaxQuantity {
		return nil, fmt.Errorf("%w: order calls for %d units", domain.ErrInvalidQuantity, units)
	}

	now := s.now().UTC()
	o := newOrder(businessID, customerID, strings.TrimSpace(req.PaymentMethod), items, now)
	o.Record(audit.OrderCreated(now))

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	s.log.WithFields(logrus.Fields{"order_id": o.ID, "units": o.ExpectedUnits()}).Info("order created")
	events.Dispatch(ctx, s.events, s.log, domain.OrderCreated{OrderID: o.ID, BusinessID: o.BusinessID, Units: o.ExpectedUnits()})
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *service) ListOrders(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	return s.store.ListOrders(ctx, f)
}

func (s *service) AssignRack(ctx context.Context, id uuid.UUID, rack string) (*domain.Order, error) {
	rack = strings.TrimSpace(rack)
	if rack == "" {
		return nil, domain.ErrRackRequired
	}
	if err := domain.CheckText("rack_id", rack); err != nil {
		return nil, err
	}
	o, err := s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		if o.Status != domain.OrderCleaned {
			return &domain.PhaseError{Op: "assign rack", Required: domain.OrderCleaned, Actual: o.Status}
		}
		if err := o.TransitionTo(domain.OrderCompleted, now); err != nil {
			return err
		}
		o.Record(audit.PlacedOnRack(now, rack))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": id, "rack": rack}).Info("order placed on rack")
	events.Dispatch(ctx, s.events, s.log,
		domain.OrderStatusChanged{OrderID: id, From: domain.OrderCleaned, To: domain.OrderCompleted, At: o.UpdatedAt},
		domain.RackAssigned{OrderID: id, Rack: rack},
	)
	return o, nil
}

func (s *service) ReassignRack(ctx context.Context, id uuid.UUID, rack string) (*domain.Order, error) {
	rack = strings.TrimSpace(rack)
	if rack == "" {
		return nil, domain.ErrRackRequired
	}
	if err := domain.CheckText("rack_id", rack); err != nil {
		return nil, err
	}
	o, err := s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		if o.Status != domain.OrderCompleted {
			return &domain.PhaseError{Op: "reassign rack", Required: domain.OrderCompleted, Actual: o.Status}
		}
		o.Record(audit.ReassignedOnRack(now, rack))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": id, "rack": rack}).Info("order reassigned on rack")
	events.Dispatch(ctx, s.events, s.log, domain.RackAssigned{OrderID: id, Rack: rack, Reassigned: true})
	return o, nil
}

func (s *service) CurrentRack(ctx context.Context, id uuid.UUID) (string, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return "", err
	}
	return o.CurrentRack(), nil
}

func (s *service) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if err := domain.CheckText("reason", reason); err != nil {
		return nil, err
	}
	var from domain.OrderStatus
	o, err := s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		from = o.Status
		if err := o.TransitionTo(domain.OrderCancelled, now); err != nil {
			return err
		}
		if reason != "" {
			o.Record(audit.Note(now, "Cancellation reason: "+reason))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": id, "from": from}).Info("order cancelled")
	events.Dispatch(ctx, s.events, s.log,
		domain.OrderStatusChanged{OrderID: id, From: from, To: domain.OrderCancelled, At: o.UpdatedAt})
	return o, nil
}

// mutate locks the order, applies fn and saves the result in one transaction.
func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(o *domain.Order, now time.Time) error) (*domain.Order, error) {
	var out *domain.Order
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		orders, err := tx.LockOrders(ctx, id)
		if err != nil {
			return err
		}
		o := orders[0]
		now := s.now().UTC()
		if err := fn(o, now); err != nil {
			return err
		}
		o.UpdatedAt = now
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
