// Package postgres implements domain.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

const (
	orderColumns   = `id, business_id, customer_id, status, total, payment_method, scanned_count, version, created_at, updated_at`
	itemColumns    = `id, order_id, name, category, quantity, price`
	garmentColumns = `id, order_id, order_item_id, qr_code, description, status, last_scanned_at, image_ref, created_at`
)

type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// CreateOrder inserts the order, its items and its initial history inside a
// single transaction.
func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistence("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
		  (id, business_id, customer_id, status, total, payment_method, scanned_count, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.BusinessID, o.CustomerID, o.Status, o.Total, o.PaymentMethod,
		o.ScannedCount, o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return persistence("insert order", err)
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, name, category, quantity, price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, o.ID, i, it.Name, string(it.Category), it.Quantity, it.Price)
		if err != nil {
			return persistence("insert order_item", err)
		}
	}

	if err := insertEvents(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistence("commit", err)
	}
	o.MarkCommitted()
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, s.db, &row, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, persistence("get order", err)
	}
	return hydrate(ctx, s.db, row)
}

func (s *Store) ListOrders(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.BusinessID != uuid.Nil {
		args = append(args, f.BusinessID)
		where = append(where, fmt.Sprintf("business_id=$%d", len(args)))
	}
	if f.CustomerID != uuid.Nil {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []orderRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, persistence("list orders", err)
	}
	out := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := hydrate(ctx, s.db, row)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*domain.OrderItem, error) {
	var row itemRow
	err := sqlx.GetContext(ctx, s.db, &row, `SELECT `+itemColumns+` FROM order_items WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, persistence("get order_item", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetGarmentByToken(ctx context.Context, token string) (*domain.Garment, error) {
	return getGarmentByToken(ctx, s.db, token)
}

func (s *Store) ListGarmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Garment, error) {
	return listGarments(ctx, s.db, "order_id", orderID)
}

func (s *Store) ListGarmentsByItem(ctx context.Context, itemID uuid.UUID) ([]*domain.Garment, error) {
	return listGarments(ctx, s.db, "order_item_id", itemID)
}

// WithTx runs fn inside a database transaction and commits when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(domain.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistence("begin", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistence("commit", err)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func hydrate(ctx context.Context, q sqlx.QueryerContext, row orderRow) (*domain.Order, error) {
	o, err := row.toDomain()
	if err != nil {
		return nil, persistence("decode order", err)
	}

	var items []itemRow
	if err := sqlx.SelectContext(ctx, q, &items,
		`SELECT `+itemColumns+` FROM order_items WHERE order_id=$1 ORDER BY position`, o.ID); err != nil {
		return nil, persistence("list order_items", err)
	}
	for _, it := range items {
		o.Items = append(o.Items, it.toDomain())
	}

	var events []eventRow
	if err := sqlx.SelectContext(ctx, q, &events,
		`SELECT order_id, seq, at, kind, payload FROM order_events WHERE order_id=$1 ORDER BY seq`, o.ID); err != nil {
		return nil, persistence("list order_events", err)
	}
	for _, ev := range events {
		e, err := ev.toDomain()
		if err != nil {
			return nil, persistence("decode order_event", err)
		}
		o.AuditLog = append(o.AuditLog, e)
	}
	return o, nil
}

// insertEvents appends the order's uncommitted events after the ones already
// stored. Sequence numbers continue from the committed part of the log.
func insertEvents(ctx context.Context, ex sqlx.ExecerContext, o *domain.Order) error {
	pending := o.Uncommitted()
	base := len(o.AuditLog) - len(pending)
	for i, e := range pending {
		row, err := newEventRow(o.ID, base+i+1, e)
		if err != nil {
			return persistence("encode order_event", err)
		}
		_, err = ex.ExecContext(ctx,
			`INSERT INTO order_events (order_id, seq, at, kind, payload) VALUES ($1,$2,$3,$4,$5)`,
			row.OrderID, row.Seq, row.At, row.Kind, row.Payload)
		if err != nil {
			return persistence("insert order_event", err)
		}
	}
	return nil
}

func getGarmentByToken(ctx context.Context, q sqlx.QueryerContext, token string) (*domain.Garment, error) {
	var row garmentRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+garmentColumns+` FROM garments WHERE qr_code=$1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGarmentNotFound
	}
	if err != nil {
		return nil, persistence("get garment", err)
	}
	g, err := row.toDomain()
	if err != nil {
		return nil, persistence("decode garment", err)
	}
	return g, nil
}

func listGarments(ctx context.Context, q sqlx.QueryerContext, column string, id uuid.UUID) ([]*domain.Garment, error) {
	var rows []garmentRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+garmentColumns+` FROM garments WHERE `+column+`=$1 ORDER BY created_at, qr_code`, id)
	if err != nil {
		return nil, persistence("list garments", err)
	}
	gs, err := toGarments(rows)
	if err != nil {
		return nil, persistence("decode garment", err)
	}
	return gs, nil
}

func persistence(op string, err error) error {
	return &domain.PersistenceError{Op: op, Err: errors.WithStack(err)}
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
