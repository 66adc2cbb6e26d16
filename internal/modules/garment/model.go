package garment

import (
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

// MaxBatchSize caps how many labels one batch request may print.
const MaxBatchSize = 500

// IntakeScan is a drop-off scan against a PENDING order.
type IntakeScan struct {
	OrderID uuid.UUID
	Token   string
	// ItemID designates the item new garments are attached to. uuid.Nil means
	// the first item of the order.
	ItemID uuid.UUID
	// UseAnyway confirms a token that is registered to another order; the
	// garment is moved to this order.
	UseAnyway bool
}

// ScanResult reports what a scan changed.
type ScanResult struct {
	Garment           *domain.Garment `json:"garment"`
	Order             *domain.Order   `json:"order"`
	Created           bool            `json:"created"`
	Moved             bool            `json:"moved"`
	OrderTransitioned bool            `json:"order_transitioned"`
}

// IntakeScanRequest is the HTTP payload for an intake scan.
type IntakeScanRequest struct {
	Token     string `json:"token"`
	ItemID    string `json:"item_id,omitempty"`
	UseAnyway bool   `json:"use_anyway,omitempty"`
}

// ProcessingScanRequest is the HTTP payload for a processing scan.
type ProcessingScanRequest struct {
	Token string `json:"token"`
}

// BatchRequest is the HTTP payload for pre-printing labels.
type BatchRequest struct {
	Count int `json:"count"`
}
