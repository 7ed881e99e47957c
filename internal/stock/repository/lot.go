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

// Lot states, derived from quantity and expiration. Never set independently.
const (
	LotStateActive   = "active"
	LotStateExpired  = "expired"
	LotStateDepleted = "depleted"
)

// StockLot represents a dated, quantity-bounded batch of a stock item
type StockLot struct {
	ID              string              `db:"id" json:"id"`
	StockItemID     string              `db:"stock_item_id" json:"stock_item_id"`
	LotNumber       string              `db:"lot_number" json:"lot_number"`
	ExpirationDate  time.Time           `db:"expiration_date" json:"expiration_date"`
	InitialQuantity int                 `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int                 `db:"current_quantity" json:"current_quantity"`
	PurchasePrice   decimal.NullDecimal `db:"purchase_price" json:"purchase_price,omitempty"`
	State           string              `db:"state" json:"state"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// LotFilter narrows lot listings
type LotFilter struct {
	StockItemID *string
	State       *string
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create creates a new lot inside the caller's transaction
func (r *LotRepository) Create(ctx context.Context, q database.Queryer, lot *StockLot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_lots (
			id, stock_item_id, lot_number, expiration_date,
			initial_quantity, current_quantity, purchase_price, state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := q.QueryRowxContext(ctx, query,
		lot.ID, lot.StockItemID, lot.LotNumber, lot.ExpirationDate,
		lot.InitialQuantity, lot.CurrentQuantity, lot.PurchasePrice, lot.State,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*StockLot, error) {
	var lot StockLot
	query := `SELECT * FROM stock_lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// GetForUpdate locks a lot row inside the caller's transaction
func (r *LotRepository) GetForUpdate(ctx context.Context, q database.Queryer, id string) (*StockLot, error) {
	var lot StockLot
	query := `SELECT * FROM stock_lots WHERE id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// List lists lots matching the filter, soonest-expiring first. This ordering
// is the basis for FIFO consumption.
func (r *LotRepository) List(ctx context.Context, filter LotFilter) ([]*StockLot, error) {
	var lots []*StockLot
	query := `
		SELECT * FROM stock_lots
		WHERE ($1::text IS NULL OR stock_item_id = $1)
		AND ($2::text IS NULL OR state = $2)
		ORDER BY expiration_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, filter.StockItemID, filter.State); err != nil {
		return nil, err
	}
	return lots, nil
}

// Update updates a lot's correctable fields inside the caller's transaction
func (r *LotRepository) Update(ctx context.Context, q database.Queryer, lot *StockLot) error {
	query := `
		UPDATE stock_lots SET
			lot_number = $2, expiration_date = $3, current_quantity = $4,
			purchase_price = $5, state = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := q.ExecContext(ctx, query,
		lot.ID, lot.LotNumber, lot.ExpirationDate, lot.CurrentQuantity,
		lot.PurchasePrice, lot.State,
	)
	if err != nil {
		return database.MapPQError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}

// Delete removes a lot inside the caller's transaction
func (r *LotRepository) Delete(ctx context.Context, q database.Queryer, id string) error {
	query := `DELETE FROM stock_lots WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}

// RefreshStates re-derives the state of every lot of an item from its
// quantity and expiration date: depleted if empty, else expired if past
// date, else active.
func (r *LotRepository) RefreshStates(ctx context.Context, q database.Queryer, stockItemID string) error {
	query := `
		UPDATE stock_lots SET
			state = CASE
				WHEN current_quantity = 0 THEN 'depleted'
				WHEN expiration_date < NOW() THEN 'expired'
				ELSE 'active'
			END,
			updated_at = NOW()
		WHERE stock_item_id = $1
	`
	_, err := q.ExecContext(ctx, query, stockItemID)
	return err
}

// SumActive sums the current quantity over an item's active lots
func (r *LotRepository) SumActive(ctx context.Context, q database.Queryer, stockItemID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(current_quantity) FROM stock_lots WHERE stock_item_id = $1 AND state = 'active'`
	if err := q.GetContext(ctx, &total, query, stockItemID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// SelectForConsumption picks the soonest-expiring active lot that can cover
// the requested quantity, locking it for the surrounding transaction.
// Returns NotFound when no lot qualifies; the caller decides how to surface
// that (no lots, all too small and all expired look the same here).
func (r *LotRepository) SelectForConsumption(ctx context.Context, q database.Queryer, stockItemID string, quantity int) (*StockLot, error) {
	var lot StockLot
	query := `
		SELECT * FROM stock_lots
		WHERE stock_item_id = $1 AND state = 'active'
		AND current_quantity >= $2 AND expiration_date >= NOW()
		ORDER BY expiration_date
		LIMIT 1
		FOR UPDATE
	`
	if err := q.GetContext(ctx, &lot, query, stockItemID, quantity); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// Consume decrements a lot's quantity and re-derives its state. The guard in
// the WHERE clause makes overcommit impossible even if the in-memory check
// was raced.
func (r *LotRepository) Consume(ctx context.Context, q database.Queryer, lot *StockLot, quantity int) error {
	query := `
		UPDATE stock_lots SET
			current_quantity = current_quantity - $2,
			state = CASE
				WHEN current_quantity - $2 = 0 THEN 'depleted'
				WHEN expiration_date < NOW() THEN 'expired'
				ELSE 'active'
			END,
			updated_at = NOW()
		WHERE id = $1 AND current_quantity >= $2
		RETURNING current_quantity, state, updated_at
	`

	err := q.QueryRowxContext(ctx, query, lot.ID, quantity).
		Scan(&lot.CurrentQuantity, &lot.State, &lot.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.InsufficientQuantity(lot.LotNumber)
		}
		return err
	}
	return nil
}
