// Package memory is an in-process implementation of domain.Store.
//
// Transactions take a per-order lock for every order they touch, so writers
// to the same order serialise while different orders proceed in parallel.
// Writes are applied immediately and undone if the transaction fails; reads of
// orders a transaction has not locked may observe another transaction's
// uncommitted writes.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]*domain.Order
	items    map[uuid.UUID]uuid.UUID // item id -> order id
	garments map[uuid.UUID]*domain.Garment
	byToken  map[string]uuid.UUID

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func New() *Store {
	return &Store{
		orders:   make(map[uuid.UUID]*domain.Order),
		items:    make(map[uuid.UUID]uuid.UUID),
		garments: make(map[uuid.UUID]*domain.Garment),
		byToken:  make(map[string]uuid.UUID),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return &domain.PersistenceError{Op: "create order", Err: errDuplicateID}
	}
	stored := o.Clone()
	stored.MarkCommitted()
	s.orders[o.ID] = stored
	for _, it := range o.Items {
		s.items[it.ID] = o.ID
	}
	o.MarkCommitted()
	return nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *Store) ListOrders(_ context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	s.mu.RLock()
	var out []*domain.Order
	for _, o := range s.orders {
		if f.BusinessID != uuid.Nil && o.BusinessID != f.BusinessID {
			continue
		}
		if f.CustomerID != uuid.Nil && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetItem(_ context.Context, id uuid.UUID) (*domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orderID, ok := s.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	it, _ := s.orders[orderID].Item(id)
	cp := *it
	return &cp, nil
}

func (s *Store) GetGarmentByToken(_ context.Context, token string) (*domain.Garment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.garmentByToken(token)
}

func (s *Store) ListGarmentsByOrder(_ context.Context, orderID uuid.UUID) ([]*domain.Garment, error) {
	return s.listGarments(func(g *domain.Garment) bool { return g.OrderID == orderID }), nil
}

func (s *Store) ListGarmentsByItem(_ context.Context, itemID uuid.UUID) ([]*domain.Garment, error) {
	return s.listGarments(func(g *domain.Garment) bool { return g.OrderItemID == itemID }), nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	t := &tx{store: s, held: make(map[uuid.UUID]*sync.Mutex)}
	defer t.release()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) garmentByToken(token string) (*domain.Garment, error) {
	id, ok := s.byToken[token]
	if !ok {
		return nil, domain.ErrGarmentNotFound
	}
	return s.garments[id].Clone(), nil
}

func (s *Store) listGarments(match func(*domain.Garment) bool) []*domain.Garment {
	s.mu.RLock()
	var out []*domain.Garment
	for _, g := range s.garments {
		if match(g) {
			out = append(out, g.Clone())
		}
	}
	s.mu.RUnlock()
	sortGarments(out)
	return out
}

// orderLock returns the lock of an existing order. Orders are never deleted,
// so a lock is only registered once its order is known to exist.
func (s *Store) orderLock(id uuid.UUID) (*sync.Mutex, bool) {
	s.mu.RLock()
	_, exists := s.orders[id]
	s.mu.RUnlock()
	if !exists {
		return nil, false
	}

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l, true
}

func sortGarments(gs []*domain.Garment) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return strings.Compare(gs[i].QRCode, gs[j].QRCode) < 0
		}
		return gs[i].CreatedAt.Before(gs[j].CreatedAt)
	})
}
