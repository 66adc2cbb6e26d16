package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

type pgTx struct{ tx *sqlx.Tx }

// LockOrders takes row locks in primary-key order, so two transactions
// locking the same pair of orders cannot deadlock.
func (t *pgTx) LockOrders(ctx context.Context, ids ...uuid.UUID) ([]*domain.Order, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	var rows []orderRow
	err := sqlx.SelectContext(ctx, t.tx, &rows,
		`SELECT `+orderColumns+` FROM orders WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`,
		pq.Array(keys))
	if err != nil {
		return nil, persistence("lock orders", err)
	}

	byID := make(map[uuid.UUID]orderRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]*domain.Order, len(ids))
	for i, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, domain.ErrOrderNotFound
		}
		o, err := hydrate(ctx, t.tx, r)
		if err != nil {
			return nil, err
		}
		out[i] = o
	}
	return out, nil
}

func (t *pgTx) GetGarmentByToken(ctx context.Context, token string) (*domain.Garment, error) {
	return getGarmentByToken(ctx, t.tx, token)
}

func (t *pgTx) ListGarmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Garment, error) {
	return listGarments(ctx, t.tx, "order_id", orderID)
}

func (t *pgTx) ListGarmentsByItem(ctx context.Context, itemID uuid.UUID) ([]*domain.Garment, error) {
	return listGarments(ctx, t.tx, "order_item_id", itemID)
}

func (t *pgTx) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, t.tx, &exists, `SELECT EXISTS(SELECT 1 FROM garments WHERE qr_code=$1)`, token)
	if err != nil {
		return false, persistence("check token", err)
	}
	return exists, nil
}

// InsertGarment runs inside a savepoint so a lost race on the qr_code unique
// index leaves the surrounding transaction usable for the next candidate.
func (t *pgTx) InsertGarment(ctx context.Context, g *domain.Garment) error {
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT garment_insert`); err != nil {
		return persistence("savepoint", err)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO garments
		  (id, order_id, order_item_id, qr_code, description, status, last_scanned_at, image_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		g.ID, g.OrderID, g.OrderItemID, g.QRCode, g.Description, string(g.Status),
		g.LastScannedAt, g.ImageRef, g.CreatedAt)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT garment_insert`); rbErr != nil {
			return persistence("rollback savepoint", rbErr)
		}
		if isUniqueViolation(err) {
			return domain.ErrTokenTaken
		}
		return persistence("insert garment", err)
	}
	if _, err := t.tx.ExecContext(ctx, `RELEASE SAVEPOINT garment_insert`); err != nil {
		return persistence("release savepoint", err)
	}
	return nil
}

func (t *pgTx) UpdateGarment(ctx context.Context, g *domain.Garment) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE garments
		SET order_id=$1, order_item_id=$2, description=$3, status=$4, last_scanned_at=$5, image_ref=$6
		WHERE id=$7`,
		g.OrderID, g.OrderItemID, g.Description, string(g.Status), g.LastScannedAt, g.ImageRef, g.ID)
	if err != nil {
		return persistence("update garment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrGarmentNotFound
	}
	return nil
}

const updateOrderSQL = `
	UPDATE orders
	SET status=$1, total=$2, payment_method=$3, scanned_count=$4, updated_at=$5, version=version+1
	WHERE id=$6 AND version=$7`

// updateOrderArgs binds updateOrderSQL. updated_at comes from the order, which
// the services stamp with their own clock.
func updateOrderArgs(o *domain.Order) []interface{} {
	return []interface{}{string(o.Status), o.Total, o.PaymentMethod, o.ScannedCount, o.UpdatedAt, o.ID, o.Version}
}

// SaveOrder writes the mutable columns of the order and its items, guarded by
// the version the order was loaded with, then appends the new history.
func (t *pgTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	res, err := t.tx.ExecContext(ctx, updateOrderSQL, updateOrderArgs(o)...)
	if err != nil {
		return persistence("update order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("update order", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}

	for _, it := range o.Items {
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE order_items SET quantity=$1 WHERE id=$2 AND order_id=$3`,
			it.Quantity, it.ID, o.ID); err != nil {
			return persistence("update order_item", err)
		}
	}

	if err := insertEvents(ctx, t.tx, o); err != nil {
		return err
	}
	o.Version++
	o.MarkCommitted()
	return nil
}
