package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

var errDuplicateID = errors.New("duplicate id")

type tx struct {
	store *Store
	held  map[uuid.UUID]*sync.Mutex
	undo  []func()
}

// LockOrders acquires order locks in id order so that two transactions
// locking overlapping sets cannot deadlock.
func (t *tx) LockOrders(_ context.Context, ids ...uuid.UUID) ([]*domain.Order, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	for _, id := range sorted {
		if _, ok := t.held[id]; ok {
			continue
		}
		l, ok := t.store.orderLock(id)
		if !ok {
			return nil, domain.ErrOrderNotFound
		}
		l.Lock()
		t.held[id] = l
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make([]*domain.Order, len(ids))
	for i, id := range ids {
		o, ok := t.store.orders[id]
		if !ok {
			return nil, domain.ErrOrderNotFound
		}
		out[i] = o.Clone()
	}
	return out, nil
}

func (t *tx) GetGarmentByToken(_ context.Context, token string) (*domain.Garment, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.garmentByToken(token)
}

func (t *tx) ListGarmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Garment, error) {
	return t.store.ListGarmentsByOrder(ctx, orderID)
}

func (t *tx) ListGarmentsByItem(ctx context.Context, itemID uuid.UUID) ([]*domain.Garment, error) {
	return t.store.ListGarmentsByItem(ctx, itemID)
}

func (t *tx) TokenExists(_ context.Context, token string) (bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	_, ok := t.store.byToken[token]
	return ok, nil
}

func (t *tx) InsertGarment(_ context.Context, g *domain.Garment) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byToken[g.QRCode]; taken {
		return domain.ErrTokenTaken
	}
	if _, ok := s.garments[g.ID]; ok {
		return &domain.PersistenceError{Op: "insert garment", Err: errDuplicateID}
	}
	s.garments[g.ID] = g.Clone()
	s.byToken[g.QRCode] = g.ID
	t.undo = append(t.undo, func() {
		delete(s.garments, g.ID)
		delete(s.byToken, g.QRCode)
	})
	return nil
}

func (t *tx) UpdateGarment(_ context.Context, g *domain.Garment) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.garments[g.ID]
	if !ok {
		return domain.ErrGarmentNotFound
	}
	s.garments[g.ID] = g.Clone()
	t.undo = append(t.undo, func() { s.garments[g.ID] = prev })
	return nil
}

func (t *tx) SaveOrder(_ context.Context, o *domain.Order) error {
	if _, ok := t.held[o.ID]; !ok {
		return &domain.PersistenceError{Op: "save order", Err: errors.New("order not locked by this transaction")}
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.orders[o.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if prev.Version != o.Version {
		return domain.ErrOptimisticLock
	}
	o.Version++
	stored := o.Clone()
	stored.MarkCommitted()
	s.orders[o.ID] = stored
	t.undo = append(t.undo, func() { s.orders[o.ID] = prev })
	o.MarkCommitted()
	return nil
}

func (t *tx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) release() {
	for id, l := range t.held {
		l.Unlock()
		delete(t.held, id)
	}
}
