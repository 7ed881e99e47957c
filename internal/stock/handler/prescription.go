package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/resicare/resicare-backend/internal/stock/service"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/httputil"
	"github.com/resicare/resicare-backend/pkg/logger"
)

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	service *service.PrescriptionService
	logger  *logger.Logger
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(svc *service.PrescriptionService, log *logger.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		service: svc,
		logger:  log,
	}
}

// Create registers a prescription, with stock auto-linking
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePrescriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	rx, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, rx)
}

// Get gets a prescription by ID
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rx, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rx)
}

// ListByPatient lists a patient's prescriptions
func (h *PrescriptionHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID := r.URL.Query().Get("paciente_id")
	if patientID == "" {
		httputil.Error(w, r, errors.BadRequest("paciente_id is required"))
		return
	}
	activeOnly := r.URL.Query().Get("activo") == "true"

	rxs, err := h.service.ListByPatient(r.Context(), patientID, activeOnly)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rxs)
}

// Update updates a prescription
func (h *PrescriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdatePrescriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	rx, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rx)
}

// Audit runs the stock consistency audit across all prescriptions
func (h *PrescriptionHandler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.AuditAll(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
