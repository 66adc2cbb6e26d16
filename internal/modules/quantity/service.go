// Package quantity corrects item quantities after an order has been taken.
package quantity

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

type Service interface {
	// AdjustQuantity replaces the quantity of one item.
	AdjustQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*domain.Order, error)

	// AdjustAggregateQuantity spreads a new total across every item of the
	// order whose name matches service, in proportion to their current
	// quantities.
	AdjustAggregateQuantity(ctx context.Context, orderID uuid.UUID, service string, total int) (*domain.Order, error)
}

type service struct {
	store  domain.Store
	events domain.EventDispatcher
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewService(store domain.Store, dispatcher domain.EventDispatcher, log logrus.FieldLogger) Service {
	return &service{store: store, events: dispatcher, log: log, now: time.Now}
}

func (s *service) AdjustQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*domain.Order, error) {
	if err := domain.CheckQuantity(quantity); err != nil {
		return nil, err
	}
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return s.adjust(ctx, item.OrderID, func(o *domain.Order) (map[uuid.UUID]int, error) {
		if _, ok := o.Item(itemID); !ok {
			return nil, domain.ErrItemNotFound
		}
		return map[uuid.UUID]int{itemID: quantity}, nil
	})
}

func (s *service) AdjustAggregateQuantity(ctx context.Context, orderID uuid.UUID, serviceName string, total int) (*domain.Order, error) {
	if err := domain.CheckQuantity(total); err != nil {
		return nil, fmt.Errorf("aggregate total: %w", err)
	}
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return nil, fmt.Errorf("%w: service is required", domain.ErrValidation)
	}

	return s.adjust(ctx, orderID, func(o *domain.Order) (map[uuid.UUID]int, error) {
		var group []*domain.OrderItem
		for _, it := range o.Items {
			if strings.EqualFold(strings.TrimSpace(it.Name), serviceName) {
				group = append(group, it)
			}
		}
		if len(group) == 0 {
			return nil, fmt.Errorf("%w: no item named %q on order %s", domain.ErrItemNotFound, serviceName, o.ID)
		}
		current := make([]int, len(group))
		for i, it := range group {
			current[i] = it.Quantity
		}
		next, err := Redistribute(current, total)
		if err != nil {
			return nil, err
		}
		targets := make(map[uuid.UUID]int, len(group))
		for i, it := range group {
			targets[it.ID] = next[i]
		}
		return targets, nil
	})
}

// adjust locks the order, applies the target quantities returned by plan and
// saves it. Only items whose quantity actually changes are audited. A PENDING
// order whose expected units drop to what has already been scanned moves on to
// PROCESSING, as it would have on its last intake scan.
func (s *service) adjust(ctx context.Context, orderID uuid.UUID, plan func(o *domain.Order) (map[uuid.UUID]int, error)) (*domain.Order, error) {
	var (
		out     *domain.Order
		changes []domain.Event
	)
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		changes = nil
		orders, err := tx.LockOrders(ctx, orderID)
		if err != nil {
			return err
		}
		o := orders[0]
		if o.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", domain.ErrOrderClosed, o.ID, o.Status)
		}
		targets, err := plan(o)
		if err != nil {
			return err
		}

		var units int64
		for _, it := range o.Items {
			q := it.Quantity
			if next, ok := targets[it.ID]; ok {
				if err := domain.CheckQuantity(next); err != nil {
					return err
				}
				q = next
			}
			units += int64(q)
		}
		if units > domain.MaxQuantity {
			return fmt.Errorf("%w: order would call for %d units", domain.ErrInvalidQuantity, units)
		}

		now := s.now().UTC()
		for _, it := range o.Items {
			next, ok := targets[it.ID]
			if !ok || next == it.Quantity {
				continue
			}
			o.Record(audit.QuantityAdjusted(now, it.Name, it.Quantity, next))
			changes = append(changes, domain.QuantityAdjusted{OrderID: o.ID, ItemID: it.ID, OldQuantity: it.Quantity, NewQuantity: next})
			it.Quantity = next
		}
		out = o
		if len(changes) == 0 {
			return nil
		}

		o.RecalculateTotal()
		o.UpdatedAt = now
		if o.Status == domain.OrderPending && o.ScannedCount > 0 && o.ScannedCount >= o.ExpectedUnits() {
			if err := o.TransitionTo(domain.OrderProcessing, now); err != nil {
				return err
			}
			changes = append(changes, domain.OrderStatusChanged{OrderID: o.ID, From: domain.OrderPending, To: domain.OrderProcessing, At: now})
		}
		return tx.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	for _, e := range changes {
		if qa, ok := e.(domain.QuantityAdjusted); ok {
			s.log.WithFields(logrus.Fields{"order_id": qa.OrderID, "item_id": qa.ItemID, "from": qa.OldQuantity, "to": qa.NewQuantity}).
				Info("quantity adjusted")
		}
	}
	events.Dispatch(ctx, s.events, s.log, changes...)
	return out, nil
}
