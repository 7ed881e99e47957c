package handler

import (
	"net/http"
	"time"

	"github.com/resicare/resicare-backend/internal/stock/service"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/httputil"
	"github.com/resicare/resicare-backend/pkg/logger"
)

// AdministrationHandler handles medication administration endpoints
type AdministrationHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewAdministrationHandler creates a new administration handler
func NewAdministrationHandler(svc *service.StockService, log *logger.Logger) *AdministrationHandler {
	return &AdministrationHandler{
		service: svc,
		logger:  log,
	}
}

// Create runs one administration attempt for a prescription
func (h *AdministrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.AdministerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	result, err := h.service.Administer(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, result)
}

// List lists administration events, either for one prescription or for one
// patient over a date range. The patient range defaults to the last 30 days.
func (h *AdministrationHandler) List(w http.ResponseWriter, r *http.Request) {
	if prescriptionID := r.URL.Query().Get("prescripcion_id"); prescriptionID != "" {
		events, err := h.service.ListAdministrations(r.Context(), prescriptionID)
		if err != nil {
			httputil.Error(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, events)
		return
	}

	patientID := r.URL.Query().Get("paciente_id")
	if patientID == "" {
		httputil.Error(w, r, errors.BadRequest("prescripcion_id or paciente_id is required"))
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v, err := optionalDateQuery(r, "desde"); err != nil {
		httputil.Error(w, r, err)
		return
	} else if v != nil {
		from = *v
	}
	if v, err := optionalDateQuery(r, "hasta"); err != nil {
		httputil.Error(w, r, err)
		return
	} else if v != nil {
		to = *v
	}

	events, err := h.service.ListAdministrationsByPatient(r.Context(), patientID, from, to)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, events)
}
