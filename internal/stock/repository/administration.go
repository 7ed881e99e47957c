package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/resicare/resicare-backend/pkg/database"
)

// Administration outcomes
const (
	OutcomeAdministered = "administered"
	OutcomeRefused      = "refused"
	OutcomeSuspended    = "suspended"
	OutcomeError        = "error"
)

// AdministrationEvent records a single administration of a prescription.
// StockTouched is false for insurance-funded prescriptions and for
// non-administered outcomes, where no lot was consumed.
type AdministrationEvent struct {
	ID             string    `db:"id" json:"id"`
	PrescriptionID string    `db:"prescription_id" json:"prescription_id"`
	PatientID      string    `db:"patient_id" json:"patient_id"`
	Outcome        string    `db:"outcome" json:"outcome"`
	Quantity       int       `db:"quantity" json:"quantity"`
	LotID          *string   `db:"lot_id" json:"lot_id,omitempty"`
	StockTouched   bool      `db:"stock_touched" json:"stock_touched"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	ActorID        string    `db:"actor_id" json:"actor_id"`
	AdministeredAt time.Time `db:"administered_at" json:"administered_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// AdministrationRepository handles administration event persistence
type AdministrationRepository struct {
	db *database.DB
}

// NewAdministrationRepository creates a new administration repository
func NewAdministrationRepository(db *database.DB) *AdministrationRepository {
	return &AdministrationRepository{db: db}
}

// Create records an administration event inside the caller's transaction
func (r *AdministrationRepository) Create(ctx context.Context, q database.Queryer, ev *AdministrationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	query := `
		INSERT INTO administration_events (
			id, prescription_id, patient_id, outcome, quantity,
			lot_id, stock_touched, notes, actor_id, administered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := q.QueryRowxContext(ctx, query,
		ev.ID, ev.PrescriptionID, ev.PatientID, ev.Outcome, ev.Quantity,
		ev.LotID, ev.StockTouched, ev.Notes, ev.ActorID, ev.AdministeredAt,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// ListByPrescription lists events for one prescription, newest first
func (r *AdministrationRepository) ListByPrescription(ctx context.Context, prescriptionID string) ([]*AdministrationEvent, error) {
	var events []*AdministrationEvent
	query := `
		SELECT * FROM administration_events
		WHERE prescription_id = $1
		ORDER BY administered_at DESC
	`
	if err := r.db.SelectContext(ctx, &events, query, prescriptionID); err != nil {
		return nil, err
	}
	return events, nil
}

// ListByPatient lists events for one patient over a date range
func (r *AdministrationRepository) ListByPatient(ctx context.Context, patientID string, from, to time.Time) ([]*AdministrationEvent, error) {
	var events []*AdministrationEvent
	query := `
		SELECT * FROM administration_events
		WHERE patient_id = $1 AND administered_at >= $2 AND administered_at <= $3
		ORDER BY administered_at DESC
	`
	if err := r.db.SelectContext(ctx, &events, query, patientID, from, to); err != nil {
		return nil, err
	}
	return events, nil
}
