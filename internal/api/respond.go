// Package api holds the JSON helpers shared by the HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error        string     `json:"error"`
	Code         string     `json:"code"`
	OwnerOrderID *uuid.UUID `json:"owner_order_id,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, "INVALID_REQUEST"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{domain.ErrItemNotFound, http.StatusNotFound, "ITEM_NOT_FOUND"},
	{domain.ErrGarmentNotFound, http.StatusNotFound, "GARMENT_NOT_FOUND"},
	{domain.ErrDuplicateScan, http.StatusConflict, "DUPLICATE_SCAN"},
	{domain.ErrCrossOrderConflict, http.StatusConflict, "CROSS_ORDER_CONFLICT"},
	{domain.ErrWrongPhase, http.StatusConflict, "WRONG_PHASE"},
	{domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrOrderClosed, http.StatusConflict, "ORDER_CLOSED"},
	{domain.ErrOptimisticLock, http.StatusConflict, "CONCURRENT_UPDATE"},
	{domain.ErrUnknownGarment, http.StatusUnprocessableEntity, "UNKNOWN_GARMENT"},
	{domain.ErrEmptyToken, http.StatusUnprocessableEntity, "EMPTY_TOKEN"},
	{domain.ErrRackRequired, http.StatusUnprocessableEntity, "RACK_REQUIRED"},
	{domain.ErrNoItems, http.StatusUnprocessableEntity, "NO_ITEMS"},
	{domain.ErrInvalidQuantity, http.StatusUnprocessableEntity, "INVALID_QUANTITY"},
	{domain.ErrInvalidBatchSize, http.StatusUnprocessableEntity, "INVALID_BATCH_SIZE"},
	{domain.ErrGenerationExhausted, http.StatusServiceUnavailable, "GENERATION_EXHAUSTED"},
	{domain.ErrPersistence, http.StatusServiceUnavailable, "PERSISTENCE_ERROR"},
}

// Respond writes body as JSON with the given status.
func Respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Error maps err onto a status code and writes it.
func Error(w http.ResponseWriter, err error) {
	status, body := http.StatusInternalServerError, ErrorBody{Error: err.Error(), Code: "INTERNAL"}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			status, body.Code = m.status, m.code
			break
		}
	}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		owner := conflict.OwnerOrderID
		body.OwnerOrderID = &owner
	}
	Respond(w, status, body)
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

// UUIDParam parses the named chi URL parameter.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	return ParseUUID(name, chi.URLParam(r, name))
}

// ParseUUID parses s, naming field in the error.
func ParseUUID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", domain.ErrValidation, field)
	}
	return id, nil
}

// OptionalUUID is ParseUUID that maps "" to uuid.Nil.
func OptionalUUID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return ParseUUID(field, s)
}
