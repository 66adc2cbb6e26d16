package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-garments/internal/domain"
	"github.com/georgemunganga/printa-garments/internal/modules/audit"
)

type orderRow struct {
	ID            uuid.UUID       `db:"id"`
	BusinessID    uuid.UUID       `db:"business_id"`
	CustomerID    uuid.UUID       `db:"customer_id"`
	Status        string          `db:"status"`
	Total         decimal.Decimal `db:"total"`
	PaymentMethod string          `db:"payment_method"`
	ScannedCount  int             `db:"scanned_count"`
	Version       int             `db:"version"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r orderRow) toDomain() (*domain.Order, error) {
	status, err := domain.ParseOrderStatus(r.Status)
	if err != nil {
		return nil, err
	}
	return &domain.Order{
		ID:            r.ID,
		BusinessID:    r.BusinessID,
		CustomerID:    r.CustomerID,
		Status:        status,
		Total:         r.Total,
		PaymentMethod: r.PaymentMethod,
		ScannedCount:  r.ScannedCount,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

type itemRow struct {
	ID       uuid.UUID       `db:"id"`
	OrderID  uuid.UUID       `db:"order_id"`
	Name     string          `db:"name"`
	Category string          `db:"category"`
	Quantity int             `db:"quantity"`
	Price    decimal.Decimal `db:"price"`
}

func (r itemRow) toDomain() *domain.OrderItem {
	category, err := domain.ParseCategory(r.Category)
	if err != nil || category == "" {
		category = domain.CategoryFromName(r.Name)
	}
	return &domain.OrderItem{
		ID:       r.ID,
		OrderID:  r.OrderID,
		Name:     r.Name,
		Category: category,
		Quantity: r.Quantity,
		Price:    r.Price,
	}
}

type eventRow struct {
	OrderID uuid.UUID `db:"order_id"`
	Seq     int       `db:"seq"`
	At      time.Time `db:"at"`
	Kind    string    `db:"kind"`
	Payload []byte    `db:"payload"`
}

func newEventRow(orderID uuid.UUID, seq int, e audit.Event) (eventRow, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return eventRow{}, err
	}
	return eventRow{OrderID: orderID, Seq: seq, At: e.At, Kind: string(e.Kind), Payload: payload}, nil
}

func (r eventRow) toDomain() (audit.Event, error) {
	var e audit.Event
	if err := json.Unmarshal(r.Payload, &e); err != nil {
		return audit.Event{}, err
	}
	e.At = r.At
	e.Kind = audit.Kind(r.Kind)
	return e, nil
}

type garmentRow struct {
	ID            uuid.UUID  `db:"id"`
	OrderID       uuid.UUID  `db:"order_id"`
	OrderItemID   uuid.UUID  `db:"order_item_id"`
	QRCode        string     `db:"qr_code"`
	Description   string     `db:"description"`
	Status        string     `db:"status"`
	LastScannedAt *time.Time `db:"last_scanned_at"`
	ImageRef      *string    `db:"image_ref"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r garmentRow) toDomain() (*domain.Garment, error) {
	status, err := domain.ParseGarmentStatus(r.Status)
	if err != nil {
		return nil, err
	}
	return &domain.Garment{
		ID:            r.ID,
		OrderID:       r.OrderID,
		OrderItemID:   r.OrderItemID,
		QRCode:        r.QRCode,
		Description:   r.Description,
		Status:        status,
		LastScannedAt: r.LastScannedAt,
		ImageRef:      r.ImageRef,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func toGarments(rows []garmentRow) ([]*domain.Garment, error) {
	out := make([]*domain.Garment, 0, len(rows))
	for _, r := range rows {
		g, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
