package handler

import (
	"net/http"

	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/httputil"
	"github.com/resicare/resicare-backend/pkg/messaging"
)

// HealthHandler reports service health
type HealthHandler struct {
	db  *database.DB
	rmq *messaging.RabbitMQ
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, rmq *messaging.RabbitMQ) *HealthHandler {
	return &HealthHandler{
		db:  db,
		rmq: rmq,
	}
}

// Check returns the health of the service and its dependencies
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	dbHealth := h.db.Health(r.Context())

	status := http.StatusOK
	overall := "up"
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
		overall = "down"
	}

	body := map[string]interface{}{
		"status":   overall,
		"database": dbHealth,
	}

	if h.rmq != nil {
		rmqHealth := h.rmq.Health()
		body["rabbitmq"] = rmqHealth
		// Messaging is best-effort; a down broker degrades but does not
		// fail the service
		if rmqHealth["status"] != "up" && overall == "up" {
			body["status"] = "degraded"
		}
	}

	httputil.JSON(w, status, body)
}
