package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-garments/internal/api"
	"github.com/georgemunganga/printa-garments/internal/domain"
)

// Handler exposes order HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/orders", h.createOrder)             // POST /api/v1/orders
	r.Get("/api/v1/orders", h.listOrders)               // GET  /api/v1/orders?business_id=&customer_id=&status=&limit=
	r.Get("/api/v1/orders/{id}", h.getOrder)            // GET  /api/v1/orders/{id}
	r.Get("/api/v1/orders/{id}/rack", h.currentRack)    // GET  /api/v1/orders/{id}/rack
	r.Post("/api/v1/orders/{id}/rack", h.assignRack)    // POST /api/v1/orders/{id}/rack
	r.Put("/api/v1/orders/{id}/rack", h.reassignRack)   // PUT  /api/v1/orders/{id}/rack
	r.Post("/api/v1/orders/{id}/cancel", h.cancelOrder) // POST /api/v1/orders/{id}/cancel
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}
	o, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusCreated, NewView(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f   domain.OrderFilter
		err error
	)
	if f.BusinessID, err = api.OptionalUUID("business_id", q.Get("business_id")); err != nil {
		api.Error(w, err)
		return
	}
	if f.CustomerID, err = api.OptionalUUID("customer_id", q.Get("customer_id")); err != nil {
		api.Error(w, err)
		return
	}
	if s := q.Get("status"); s != "" {
		if f.Status, err = domain.ParseOrderStatus(s); err != nil {
			api.Error(w, fmt.Errorf("%w: %v", domain.ErrValidation, err))
			return
		}
	}
	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			api.Error(w, fmt.Errorf("%w: invalid limit", domain.ErrValidation))
			return
		}
	}

	orders, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		api.Error(w, err)
		return
	}
	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, NewView(o))
	}
	api.Respond(w, http.StatusOK, views)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, NewView(o))
}

func (h *Handler) currentRack(w http.ResponseWriter, r *http.Request) {
	id, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	rack, err := h.service.CurrentRack(r.Context(), id)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, RackRequest{Rack: rack})
}

func (h *Handler) assignRack(w http.ResponseWriter, r *http.Request) {
	h.rack(w, r, h.service.AssignRack)
}

func (h *Handler) reassignRack(w http.ResponseWriter, r *http.Request) {
	h.rack(w, r, h.service.ReassignRack)
}

func (h *Handler) rack(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID, rack string) (*domain.Order, error)) {
	id, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	var req RackRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}
	o, err := op(r.Context(), id, req.Rack)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, NewView(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	var req CancelRequest
	if err := api.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, err)
		return
	}
	o, err := h.service.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, NewView(o))
}
