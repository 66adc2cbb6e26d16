package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrGarmentNotFound = errors.New("garment not found")
	ErrNoItems         = errors.New("order has no items")
	ErrOptimisticLock  = errors.New("order has been modified by another transaction")
	ErrTokenTaken      = errors.New("scan token already registered")
	ErrEmptyToken      = errors.New("scan token is required")
	ErrRackRequired    = errors.New("rack id is required")
	ErrValidation      = errors.New("invalid request")
	ErrOrderClosed     = errors.New("order is completed or cancelled")
	ErrUnauthorized    = errors.New("missing or invalid staff token")

	// Scan reconciliation.
	ErrDuplicateScan      = errors.New("garment already scanned for this order")
	ErrCrossOrderConflict = errors.New("scan token belongs to another order")
	ErrUnknownGarment     = errors.New("no received garment with this token on the order")
	ErrWrongPhase         = errors.New("order is not in the required status for this operation")

	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidQuantity     = errors.New("quantity cannot be negative")
	ErrInvalidBatchSize    = errors.New("batch size out of range")
	ErrGenerationExhausted = errors.New("could not generate a unique scan token")
	ErrPersistence         = errors.New("persistence failure")
)

// ConflictError is returned when an intake scan hits a token registered to
// another order. It matches ErrCrossOrderConflict with errors.Is.
type ConflictError struct {
	Token        string
	GarmentID    uuid.UUID
	OwnerOrderID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scan token %s belongs to order %s", e.Token, e.OwnerOrderID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrCrossOrderConflict }

// TransitionError reports a rejected status change. It matches
// ErrInvalidTransition with errors.Is.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// PhaseError reports an operation attempted while the order is in the wrong
// status. It matches ErrWrongPhase with errors.Is.
type PhaseError struct {
	Op       string
	Required OrderStatus
	Actual   OrderStatus
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s requires order status %s (current: %s)", e.Op, e.Required, e.Actual)
}

func (e *PhaseError) Is(target error) bool { return target == ErrWrongPhase }

// PersistenceError wraps a storage failure. It matches ErrPersistence with
// errors.Is and unwraps to the driver error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
