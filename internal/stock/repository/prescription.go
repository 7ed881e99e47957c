package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/errors"
)

// Payment origins
const (
	PaymentInsurance = "insurance"
	PaymentFacility  = "facility"
	PaymentPatient   = "patient"
)

// Prescription represents a patient's medication prescription
type Prescription struct {
	ID            string    `db:"id" json:"id"`
	PatientID     string    `db:"patient_id" json:"patient_id"`
	Name          string    `db:"name" json:"name"`
	Dosage        *string   `db:"dosage" json:"dosage,omitempty"`
	PaymentOrigin string    `db:"payment_origin" json:"payment_origin"`
	StockItemID   *string   `db:"stock_item_id" json:"stock_item_id,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PrescriptionRepository handles prescription persistence
type PrescriptionRepository struct {
	db *database.DB
}

// NewPrescriptionRepository creates a new prescription repository
func NewPrescriptionRepository(db *database.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

// Create creates a new prescription
func (r *PrescriptionRepository) Create(ctx context.Context, rx *Prescription) error {
	if rx.ID == "" {
		rx.ID = uuid.New().String()
	}

	query := `
		INSERT INTO prescriptions (
			id, patient_id, name, dosage, payment_origin, stock_item_id, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		rx.ID, rx.PatientID, rx.Name, rx.Dosage, rx.PaymentOrigin, rx.StockItemID, rx.Active,
	).Scan(&rx.CreatedAt, &rx.UpdatedAt)
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID gets a prescription by ID
func (r *PrescriptionRepository) GetByID(ctx context.Context, id string) (*Prescription, error) {
	var rx Prescription
	query := `SELECT * FROM prescriptions WHERE id = $1`
	if err := r.db.GetContext(ctx, &rx, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("prescription")
		}
		return nil, err
	}
	return &rx, nil
}

// ListByPatient lists a patient's prescriptions
func (r *PrescriptionRepository) ListByPatient(ctx context.Context, patientID string, activeOnly bool) ([]*Prescription, error) {
	var rxs []*Prescription
	query := `
		SELECT * FROM prescriptions
		WHERE patient_id = $1 AND ($2 = false OR active = true)
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &rxs, query, patientID, activeOnly); err != nil {
		return nil, err
	}
	return rxs, nil
}

// ListAll lists every prescription, used by the consistency audit
func (r *PrescriptionRepository) ListAll(ctx context.Context) ([]*Prescription, error) {
	var rxs []*Prescription
	query := `SELECT * FROM prescriptions ORDER BY patient_id, created_at`
	if err := r.db.SelectContext(ctx, &rxs, query); err != nil {
		return nil, err
	}
	return rxs, nil
}

// Update updates a prescription
func (r *PrescriptionRepository) Update(ctx context.Context, rx *Prescription) error {
	query := `
		UPDATE prescriptions SET
			name = $2, dosage = $3, payment_origin = $4,
			stock_item_id = $5, active = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		rx.ID, rx.Name, rx.Dosage, rx.PaymentOrigin, rx.StockItemID, rx.Active,
	)
	if err != nil {
		return database.MapPQError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("prescription")
	}

	return nil
}

// Link attaches a stock item to a prescription
func (r *PrescriptionRepository) Link(ctx context.Context, prescriptionID, stockItemID string) error {
	query := `UPDATE prescriptions SET stock_item_id = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, prescriptionID, stockItemID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("prescription")
	}

	return nil
}
