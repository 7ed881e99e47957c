package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/internal/stock/service"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/httputil"
	"github.com/resicare/resicare-backend/pkg/logger"
)

// MovementHandler handles movement journal and reporting endpoints
type MovementHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(svc *service.StockService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		service: svc,
		logger:  log,
	}
}

// List queries the movement journal
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.MovementFilter{
		StockItemID: optionalQuery(r, "stock_item_id"),
		PatientID:   optionalQuery(r, "paciente_id"),
		Kind:        optionalQuery(r, "tipo"),
	}

	from, err := optionalDateQuery(r, "desde")
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	filter.From = from

	to, err := optionalDateQuery(r, "hasta")
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	filter.To = to

	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}

// Consumption builds the aggregate consumption report. Defaults to the last
// 30 days when no range is given.
func (h *MovementHandler) Consumption(w http.ResponseWriter, r *http.Request) {
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

	report, err := h.service.Consumption(r.Context(), from, to)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// AuditTrail lists forensic audit entries
func (h *MovementHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, r, errors.BadRequest("limit must be an integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.service.ListAuditTrail(r.Context(), optionalQuery(r, "stock_item_id"), limit)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

func optionalDateQuery(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t, err = time.Parse("2006-01-02", v)
		if err != nil {
			return nil, errors.BadRequest(name + " must be an RFC 3339 timestamp or a date")
		}
	}
	return &t, nil
}
