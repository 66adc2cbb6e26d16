package garment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/georgemunganga/printa-garments/internal/domain"
	"github.com/georgemunganga/printa-garments/internal/events"
	"github.com/georgemunganga/printa-garments/internal/modules/audit"
	"github.com/georgemunganga/printa-garments/internal/modules/identifier"
)

// maxOwnerRetries bounds how often an intake scan restarts because the token
// changed hands between the lookup and the lock.
const maxOwnerRetries = 3

var errOwnerChanged = errors.New("garment owner changed during scan")

// Service reconciles physical scans against orders and their garments.
type Service interface {
	// ReconcileIntakeScan registers or takes in a garment at drop-off and moves
	// the order to PROCESSING once every expected unit has been received.
	ReconcileIntakeScan(ctx context.Context, scan IntakeScan) (*ScanResult, error)

	// ReconcileProcessingScan toggles a received garment between IN_PROGRESS and
	// COMPLETED and moves the order to CLEANED once every garment is complete.
	ReconcileProcessingScan(ctx context.Context, orderID uuid.UUID, token string) (*ScanResult, error)

	// GenerateBatchTokens pre-registers count labelled garments for an item.
	// Either every token is registered or none is.
	GenerateBatchTokens(ctx context.Context, itemID uuid.UUID, count int) ([]*domain.Garment, error)

	GetByToken(ctx context.Context, token string) (*domain.Garment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Garment, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*domain.Garment, error)
}

type service struct {
	store       domain.Store
	events      domain.EventDispatcher
	log         logrus.FieldLogger
	maxAttempts int
	now         func() time.Time
}

// NewService creates a garment registry. maxAttempts bounds token generation
// retries; <= 0 means identifier.DefaultMaxAttempts.
func NewService(store domain.Store, dispatcher domain.EventDispatcher, log logrus.FieldLogger, maxAttempts int) Service {
	return &service{store: store, events: dispatcher, log: log, maxAttempts: maxAttempts, now: time.Now}
}

func (s *service) ReconcileIntakeScan(ctx context.Context, scan IntakeScan) (*ScanResult, error) {
	scan.Token = strings.TrimSpace(scan.Token)
	if err := domain.CheckToken(scan.Token); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxOwnerRetries; attempt++ {
		owner := uuid.Nil
		g, err := s.store.GetGarmentByToken(ctx, scan.Token)
		switch {
		case err == nil:
			owner = g.OrderID
		case !errors.Is(err, domain.ErrGarmentNotFound):
			return nil, err
		}

		res, evs, err := s.intake(ctx, scan, owner)
		if errors.Is(err, errOwnerChanged) {
			s.log.WithFields(logrus.Fields{"order_id": scan.OrderID, "token": scan.Token, "attempt": attempt}).
				Debug("token owner changed, retrying intake")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logScan("intake", res)
		events.Dispatch(ctx, s.events, s.log, evs...)
		return res, nil
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrOptimisticLock, errOwnerChanged)
}

// intake runs one attempt of an intake scan. owner is the order the token was
// registered to before the transaction started (uuid.Nil when unknown); both
// orders are locked and errOwnerChanged is returned if that no longer holds.
func (s *service) intake(ctx context.Context, scan IntakeScan, owner uuid.UUID) (*ScanResult, []domain.Event, error) {
	var (
		res *ScanResult
		evs []domain.Event
	)
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		ids := []uuid.UUID{scan.OrderID}
		if owner != uuid.Nil && owner != scan.OrderID {
			ids = append(ids, owner)
		}
		orders, err := tx.LockOrders(ctx, ids...)
		if err != nil {
			return err
		}
		o := orders[0]
		if o.Status != domain.OrderPending {
			return &domain.PhaseError{Op: "intake scan", Required: domain.OrderPending, Actual: o.Status}
		}

		g, err := tx.GetGarmentByToken(ctx, scan.Token)
		switch {
		case errors.Is(err, domain.ErrGarmentNotFound):
			g = nil
		case err != nil:
			return err
		}
		if current := ownerOf(g); current != owner {
			return errOwnerChanged
		}

		now := s.now().UTC()
		res = &ScanResult{Order: o}
		switch {
		case g == nil:
			// Any unknown token is accepted for any order. Restricting intake to
			// pre-generated labels is a business decision still open.
			item, err := o.IntakeItem(scan.ItemID)
			if err != nil {
				return err
			}
			g = &domain.Garment{
				ID:            uuid.New(),
				OrderID:       o.ID,
				OrderItemID:   item.ID,
				QRCode:        scan.Token,
				Description:   fmt.Sprintf("%s - %s", item.Name, now.Format("2006-01-02 15:04:05")),
				Status:        domain.GarmentInProgress,
				LastScannedAt: &now,
				CreatedAt:     now,
			}
			if err := tx.InsertGarment(ctx, g); err != nil {
				if errors.Is(err, domain.ErrTokenTaken) {
					return errOwnerChanged
				}
				return err
			}
			res.Created = true

		case g.OrderID == o.ID:
			if g.Status.Received() {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateScan, scan.Token)
			}
			g.Status = domain.GarmentInProgress
			g.LastScannedAt = &now
			if err := tx.UpdateGarment(ctx, g); err != nil {
				return err
			}

		default:
			if !scan.UseAnyway {
				return &domain.ConflictError{Token: scan.Token, GarmentID: g.ID, OwnerOrderID: g.OrderID}
			}
			prev := orders[1]
			// Garments only leave an order that is still in intake.
			if prev.Status != domain.OrderPending {
				return &domain.PhaseError{Op: "move garment from order " + prev.ID.String(), Required: domain.OrderPending, Actual: prev.Status}
			}
			item, err := o.IntakeItem(scan.ItemID)
			if err != nil {
				return err
			}
			if g.Status.Received() {
				prev.ScannedCount--
			}
			g.OrderID = o.ID
			g.OrderItemID = item.ID
			g.Status = domain.GarmentInProgress
			g.LastScannedAt = &now
			if err := tx.UpdateGarment(ctx, g); err != nil {
				return err
			}
			prev.UpdatedAt = now
			prev.Record(audit.GarmentMovedOut(now, scan.Token, o.ID.String()))
			o.Record(audit.GarmentMovedIn(now, scan.Token, prev.ID.String()))
			if err := tx.SaveOrder(ctx, prev); err != nil {
				return err
			}
			res.Moved = true
		}

		o.ScannedCount++
		o.UpdatedAt = now
		o.Record(audit.GarmentReceived(now, scan.Token))
		evs = append(evs, domain.GarmentScanned{OrderID: o.ID, GarmentID: g.ID, Token: g.QRCode, Status: g.Status})
		if o.ScannedCount >= o.ExpectedUnits() {
			if err := o.TransitionTo(domain.OrderProcessing, now); err != nil {
				return err
			}
			res.OrderTransitioned = true
			evs = append(evs, domain.OrderStatusChanged{OrderID: o.ID, From: domain.OrderPending, To: domain.OrderProcessing, At: now})
		}
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		res.Garment = g
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, evs, nil
}

func (s *service) ReconcileProcessingScan(ctx context.Context, orderID uuid.UUID, token string) (*ScanResult, error) {
	token = strings.TrimSpace(token)
	if err := domain.CheckToken(token); err != nil {
		return nil, err
	}

	var (
		res *ScanResult
		evs []domain.Event
	)
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		orders, err := tx.LockOrders(ctx, orderID)
		if err != nil {
			return err
		}
		o := orders[0]
		if o.Status != domain.OrderProcessing {
			return &domain.PhaseError{Op: "processing scan", Required: domain.OrderProcessing, Actual: o.Status}
		}

		garments, err := tx.ListGarmentsByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		var g *domain.Garment
		for _, c := range garments {
			if c.QRCode == token && c.Status.Received() {
				g = c
				break
			}
		}
		if g == nil {
			return fmt.Errorf("%w: %s", domain.ErrUnknownGarment, token)
		}

		now := s.now().UTC()
		res = &ScanResult{Order: o, Garment: g}
		g.LastScannedAt = &now
		o.UpdatedAt = now
		if g.Status == domain.GarmentCompleted {
			g.Status = domain.GarmentInProgress
			o.Record(audit.GarmentReopened(now, token))
		} else {
			g.Status = domain.GarmentCompleted
			o.Record(audit.GarmentCompleted(now, token))
			if allCompleted(garments) {
				if err := o.TransitionTo(domain.OrderCleaned, now); err != nil {
					return err
				}
				res.OrderTransitioned = true
				evs = append(evs, domain.OrderStatusChanged{OrderID: o.ID, From: domain.OrderProcessing, To: domain.OrderCleaned, At: now})
			}
		}
		evs = append([]domain.Event{domain.GarmentScanned{OrderID: o.ID, GarmentID: g.ID, Token: token, Status: g.Status}}, evs...)

		if err := tx.UpdateGarment(ctx, g); err != nil {
			return err
		}
		return tx.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logScan("processing", res)
	events.Dispatch(ctx, s.events, s.log, evs...)
	return res, nil
}

func (s *service) GenerateBatchTokens(ctx context.Context, itemID uuid.UUID, count int) ([]*domain.Garment, error) {
	if count < 1 || count > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", domain.ErrInvalidBatchSize, count, MaxBatchSize)
	}
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var out []*domain.Garment
	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		orders, err := tx.LockOrders(ctx, item.OrderID)
		if err != nil {
			return err
		}
		o := orders[0]
		if o.Status != domain.OrderPending {
			return &domain.PhaseError{Op: "generate tokens", Required: domain.OrderPending, Actual: o.Status}
		}
		it, ok := o.Item(itemID)
		if !ok {
			return domain.ErrItemNotFound
		}
		existing, err := tx.ListGarmentsByItem(ctx, itemID)
		if err != nil {
			return err
		}

		gen := identifier.NewGenerator(identifier.OracleFunc(tx.TokenExists), s.maxAttempts)
		tenant := strings.ReplaceAll(o.BusinessID.String(), "-", "")
		svc := it.Category.Code()
		if it.Category == "" {
			svc = it.Name
		}
		now := s.now().UTC()

		out = make([]*domain.Garment, 0, count)
		for i := 0; i < count; i++ {
			seq := len(existing) + i + 1
			g := &domain.Garment{
				ID:          uuid.New(),
				OrderID:     o.ID,
				OrderItemID: it.ID,
				Description: fmt.Sprintf("%s #%d", it.Name, seq),
				Status:      domain.GarmentPending,
				CreatedAt:   now,
			}
			_, err := gen.Claim(ctx, tenant, svc, seq, func(token string) error {
				g.QRCode = token
				return tx.InsertGarment(ctx, g)
			})
			if err != nil {
				return fmt.Errorf("token %d of %d for %s: %w", i+1, count, it.Name, err)
			}
			out = append(out, g)
		}

		o.UpdatedAt = now
		o.Record(audit.TokensGenerated(now, it.Name, count))
		return tx.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": item.OrderID, "item_id": itemID, "count": count}).Info("scan tokens generated")
	return out, nil
}

func (s *service) GetByToken(ctx context.Context, token string) (*domain.Garment, error) {
	token = strings.TrimSpace(token)
	if err := domain.CheckToken(token); err != nil {
		return nil, err
	}
	return s.store.GetGarmentByToken(ctx, token)
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Garment, error) {
	return s.store.ListGarmentsByOrder(ctx, orderID)
}

func (s *service) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*domain.Garment, error) {
	return s.store.ListGarmentsByItem(ctx, itemID)
}

func (s *service) logScan(phase string, res *ScanResult) {
	entry := s.log.WithFields(logrus.Fields{
		"phase":    phase,
		"order_id": res.Order.ID,
		"token":    res.Garment.QRCode,
		"status":   res.Garment.Status,
	})
	if res.OrderTransitioned {
		entry.WithField("to", res.Order.Status).Info("garment scanned, order status changed")
		return
	}
	entry.Info("garment scanned")
}

func ownerOf(g *domain.Garment) uuid.UUID {
	if g == nil {
		return uuid.Nil
	}
	return g.OrderID
}

// allCompleted reports whether the order has at least one received garment
// and every received garment is COMPLETED. Garments still waiting for intake
// are ignored.
func allCompleted(garments []*domain.Garment) bool {
	received := 0
	for _, g := range garments {
		if !g.Status.Received() {
			continue
		}
		received++
		if g.Status != domain.GarmentCompleted {
			return false
		}
	}
	return received > 0
}
