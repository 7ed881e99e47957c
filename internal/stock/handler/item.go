package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/internal/stock/service"
	"github.com/resicare/resicare-backend/pkg/httputil"
	"github.com/resicare/resicare-backend/pkg/logger"
)

// ItemHandler handles stock catalog endpoints
type ItemHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.StockService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// List lists catalog items, filterable by ownership, owner patient and
// active flag
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ItemFilter{
		Ownership:      optionalQuery(r, "propiedad"),
		OwnerPatientID: optionalQuery(r, "paciente_id"),
		Active:         optionalBoolQuery(r, "activo"),
		Kind:           optionalQuery(r, "tipo"),
	}

	items, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Get gets an item with its lots
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates a catalog entry
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	item, err := h.service.CreateItem(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, item)
}

// Update updates a catalog entry
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), id, &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// LowStock lists items at or below minimum stock
func (h *ItemHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLowStock(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// NearExpiry lists items with lots expiring soon
func (h *ItemHandler) NearExpiry(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListNearExpiry(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

func optionalQuery(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}

func optionalBoolQuery(r *http.Request, name string) *bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	default:
		return nil
	}
}
