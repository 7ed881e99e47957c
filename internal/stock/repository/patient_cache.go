package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/errors"
)

// Patient is a local read-only copy of resident identity, kept current by
// consuming resident events from the care-management system.
type Patient struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	RoomCode  *string   `db:"room_code" json:"room_code,omitempty"`
	Active    bool      `db:"active" json:"active"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PatientCacheRepository handles the local patient identity cache
type PatientCacheRepository struct {
	db *database.DB
}

// NewPatientCacheRepository creates a new patient cache repository
func NewPatientCacheRepository(db *database.DB) *PatientCacheRepository {
	return &PatientCacheRepository{db: db}
}

// Upsert inserts or updates a cached patient
func (r *PatientCacheRepository) Upsert(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patient_cache (id, name, room_code, active, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			room_code = EXCLUDED.room_code,
			active = EXCLUDED.active,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.RoomCode, p.Active)
	return err
}

// GetByID gets a cached patient by ID
func (r *PatientCacheRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	query := `SELECT * FROM patient_cache WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("patient")
		}
		return nil, err
	}
	return &p, nil
}

// Deactivate marks a cached patient as inactive
func (r *PatientCacheRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE patient_cache SET active = false, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("patient")
	}

	return nil
}
