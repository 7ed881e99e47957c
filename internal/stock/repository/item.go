package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Item kinds
const (
	KindMedication = "medication"
	KindSupply     = "supply"
)

// Item ownership
const (
	OwnershipFacility = "facility"
	OwnershipPatient  = "patient"
)

// StockItem represents a trackable catalog item
type StockItem struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Kind             string          `db:"kind" json:"kind"`
	BaseUnit         string          `db:"base_unit" json:"base_unit"`
	PresentationUnit *string         `db:"presentation_unit" json:"presentation_unit,omitempty"`
	ConversionFactor *int            `db:"conversion_factor" json:"conversion_factor,omitempty"`
	CurrentStock     int             `db:"current_stock" json:"current_stock"`
	MinStock         int             `db:"min_stock" json:"min_stock"`
	MaxStock         *int            `db:"max_stock" json:"max_stock,omitempty"`
	Ownership        string          `db:"ownership" json:"ownership"`
	OwnerPatientID   *string         `db:"owner_patient_id" json:"owner_patient_id,omitempty"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	Active           bool            `db:"active" json:"active"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ItemFilter narrows catalog listings
type ItemFilter struct {
	Ownership      *string
	OwnerPatientID *string
	Active         *bool
	Kind           *string
}

// ItemRepository handles stock item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new stock item
func (r *ItemRepository) Create(ctx context.Context, item *StockItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_items (
			id, name, kind, base_unit, presentation_unit, conversion_factor,
			current_stock, min_stock, max_stock, ownership, owner_patient_id,
			unit_price, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		item.ID, item.Name, item.Kind, item.BaseUnit, item.PresentationUnit,
		item.ConversionFactor, item.CurrentStock, item.MinStock, item.MaxStock,
		item.Ownership, item.OwnerPatientID, item.UnitPrice, item.Active,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID gets a stock item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*StockItem, error) {
	var item StockItem
	query := `SELECT * FROM stock_items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock item")
		}
		return nil, err
	}
	return &item, nil
}

// GetForUpdate locks the item row for the duration of the surrounding
// transaction. This is the serialization point for all stock-affecting
// operations on one item.
func (r *ItemRepository) GetForUpdate(ctx context.Context, q database.Queryer, id string) (*StockItem, error) {
	var item StockItem
	query := `SELECT * FROM stock_items WHERE id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock item")
		}
		return nil, err
	}
	return &item, nil
}

// List lists stock items matching the filter
func (r *ItemRepository) List(ctx context.Context, filter ItemFilter) ([]*StockItem, error) {
	var items []*StockItem
	query := `
		SELECT * FROM stock_items
		WHERE ($1::text IS NULL OR ownership = $1)
		AND ($2::text IS NULL OR owner_patient_id = $2)
		AND ($3::boolean IS NULL OR active = $3)
		AND ($4::text IS NULL OR kind = $4)
		ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &items, query,
		filter.Ownership, filter.OwnerPatientID, filter.Active, filter.Kind,
	); err != nil {
		return nil, err
	}
	return items, nil
}

// Update updates a stock item's catalog fields
func (r *ItemRepository) Update(ctx context.Context, item *StockItem) error {
	query := `
		UPDATE stock_items SET
			name = $2, kind = $3, base_unit = $4, presentation_unit = $5,
			conversion_factor = $6, min_stock = $7, max_stock = $8,
			ownership = $9, owner_patient_id = $10, unit_price = $11,
			active = $12, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		item.ID, item.Name, item.Kind, item.BaseUnit, item.PresentationUnit,
		item.ConversionFactor, item.MinStock, item.MaxStock, item.Ownership,
		item.OwnerPatientID, item.UnitPrice, item.Active,
	)
	if err != nil {
		return database.MapPQError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("stock item")
	}

	return nil
}

// SetCurrentStock writes the recomputed aggregate. The value is a cache of
// the sum over active lots, never authoritative on its own.
func (r *ItemRepository) SetCurrentStock(ctx context.Context, q database.Queryer, id string, total int) error {
	query := `UPDATE stock_items SET current_stock = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id, total)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("stock item")
	}

	return nil
}

// ListLowStock lists active items at or below their minimum stock
func (r *ItemRepository) ListLowStock(ctx context.Context) ([]*StockItem, error) {
	var items []*StockItem
	query := `
		SELECT * FROM stock_items
		WHERE active = true AND current_stock <= min_stock
		ORDER BY current_stock - min_stock, name
	`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}
	return items, nil
}

// ListNearExpiry lists active items that have at least one active lot
// expiring within the given number of days
func (r *ItemRepository) ListNearExpiry(ctx context.Context, withinDays int) ([]*StockItem, error) {
	var items []*StockItem
	query := `
		SELECT DISTINCT i.* FROM stock_items i
		JOIN stock_lots l ON l.stock_item_id = i.id
		WHERE i.active = true AND l.state = 'active'
		AND l.expiration_date >= NOW()
		AND l.expiration_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY i.name
	`
	if err := r.db.SelectContext(ctx, &items, query, withinDays); err != nil {
		return nil, err
	}
	return items, nil
}

// FindByNameAndOwnership finds an active item by exact name and ownership,
// used by prescription auto-linking. ownerPatientID is only consulted for
// patient-owned items.
func (r *ItemRepository) FindByNameAndOwnership(ctx context.Context, name, ownership string, ownerPatientID *string) (*StockItem, error) {
	var item StockItem
	query := `
		SELECT * FROM stock_items
		WHERE active = true AND LOWER(name) = LOWER($1) AND ownership = $2
		AND ($3::text IS NULL OR owner_patient_id = $3)
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &item, query, name, ownership, ownerPatientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock item")
		}
		return nil, err
	}
	return &item, nil
}
