package quantity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/printa-garments/internal/api"
	"github.com/georgemunganga/printa-garments/internal/modules/order"
)

// Handler exposes quantity adjustment endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Put("/api/v1/items/{id}/quantity", h.adjust)             // PUT /api/v1/items/{id}/quantity
	r.Put("/api/v1/orders/{id}/quantities", h.adjustAggregate) // PUT /api/v1/orders/{id}/quantities
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	itemID, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	var req AdjustRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}
	o, err := h.service.AdjustQuantity(r.Context(), itemID, req.Quantity)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, order.NewView(o))
}

func (h *Handler) adjustAggregate(w http.ResponseWriter, r *http.Request) {
	orderID, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	var req AggregateRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}
	o, err := h.service.AdjustAggregateQuantity(r.Context(), orderID, req.Service, req.Total)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, order.NewView(o))
}
