package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/internal/stock/service"
	"github.com/resicare/resicare-backend/pkg/httputil"
	"github.com/resicare/resicare-backend/pkg/logger"
)

// LotHandler handles lot ledger endpoints
type LotHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(svc *service.StockService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		service: svc,
		logger:  log,
	}
}

// List lists lots, filterable by item and state
func (h *LotHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.LotFilter{
		StockItemID: optionalQuery(r, "stock_item_id"),
		State:       optionalQuery(r, "estado"),
	}

	lots, err := h.service.ListLots(r.Context(), filter)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Receive receives a lot into stock
func (h *LotHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req service.ReceiveLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	lot, err := h.service.ReceiveLot(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, lot)
}

// Update corrects a lot's quantity or metadata
func (h *LotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	lot, err := h.service.UpdateLot(r.Context(), id, &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Delete removes a lot
func (h *LotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteLot(r.Context(), id); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}
