package garment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/printa-garments/internal/api"
)

// Handler exposes scan and garment HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/orders/{id}/intake-scans", h.intakeScan)         // POST /api/v1/orders/{id}/intake-scans
	r.Post("/api/v1/orders/{id}/processing-scans", h.processingScan) // POST /api/v1/orders/{id}/processing-scans
	r.Get("/api/v1/orders/{id}/garments", h.listByOrder)             // GET  /api/v1/orders/{id}/garments
	r.Post("/api/v1/items/{id}/tokens", h.generateTokens)            // POST /api/v1/items/{id}/tokens
	r.Get("/api/v1/items/{id}/garments", h.listByItem)               // GET  /api/v1/items/{id}/garments
	r.Get("/api/v1/garments/{token}", h.getByToken)                  // GET  /api/v1/garments/{token}
}

func (h *Handler) intakeScan(w http.ResponseWriter, r *http.Request) {
	orderID, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	var req IntakeScanRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}
	itemID, err := api.OptionalUUID("item_id", req.ItemID)
	if err != nil {
		api.Error(w, err)
		return
	}
	res, err := h.service.ReconcileIntakeScan(r.Context(), IntakeScan{
		OrderID:   orderID,
		Token:     req.Token,
		ItemID:    itemID,
		UseAnyway: req.UseAnyway,
	})
	if err != nil {
		api.Error(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	api.Respond(w, status, res)
}

func (h *Handler) processingScan(w http.ResponseWriter, r *http.Request) {
	orderID, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	var req ProcessingScanRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}
	res, err := h.service.ReconcileProcessingScan(r.Context(), orderID, req.Token)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, res)
}

func (h *Handler) generateTokens(w http.ResponseWriter, r *http.Request) {
	itemID, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	var req BatchRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, err)
		return
	}
	garments, err := h.service.GenerateBatchTokens(r.Context(), itemID, req.Count)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusCreated, garments)
}

func (h *Handler) listByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	garments, err := h.service.ListByOrder(r.Context(), orderID)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, garments)
}

func (h *Handler) listByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := api.UUIDParam(r, "id")
	if err != nil {
		api.Error(w, err)
		return
	}
	garments, err := h.service.ListByItem(r.Context(), itemID)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, garments)
}

func (h *Handler) getByToken(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.GetByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Respond(w, http.StatusOK, g)
}
