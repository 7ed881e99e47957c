package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/shopspring/decimal"
)

// Movement kinds
const (
	MovementEntry      = "entry"
	MovementExit       = "exit"
	MovementAdjustment = "adjustment"
)

// StockMovement is one immutable ledger entry. Movements are never edited or
// deleted; corrections are made via new offsetting movements.
type StockMovement struct {
	ID          string          `db:"id" json:"id"`
	StockItemID string          `db:"stock_item_id" json:"stock_item_id"`
	LotID       *string         `db:"lot_id" json:"lot_id,omitempty"`
	Kind        string          `db:"kind" json:"kind"`
	Quantity    int             `db:"quantity" json:"quantity"`
	StockBefore int             `db:"stock_before" json:"stock_before"`
	StockAfter  int             `db:"stock_after" json:"stock_after"`
	Reason      string          `db:"reason" json:"reason"`
	PatientID   *string         `db:"patient_id" json:"patient_id,omitempty"`
	ActorID     string          `db:"actor_id" json:"actor_id"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// MovementFilter narrows journal queries
type MovementFilter struct {
	StockItemID *string
	PatientID   *string
	Kind        *string
	From        *time.Time
	To          *time.Time
}

// ConsumptionRow is one line of the aggregate consumption report
type ConsumptionRow struct {
	StockItemID   string          `db:"stock_item_id" json:"stock_item_id"`
	ItemName      string          `db:"item_name" json:"item_name"`
	TotalQuantity int             `db:"total_quantity" json:"total_quantity"`
	TotalCost     decimal.Decimal `db:"total_cost" json:"total_cost"`
	Movements     int             `db:"movements" json:"movements"`
}

// MovementRepository handles the append-only movement journal
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Record appends a movement inside the caller's transaction. Pure append,
// no business validation beyond the schema's required fields.
func (r *MovementRepository) Record(ctx context.Context, q database.Queryer, m *StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (
			id, stock_item_id, lot_id, kind, quantity,
			stock_before, stock_after, reason, patient_id, actor_id, total_cost
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := q.QueryRowxContext(ctx, query,
		m.ID, m.StockItemID, m.LotID, m.Kind, m.Quantity,
		m.StockBefore, m.StockAfter, m.Reason, m.PatientID, m.ActorID, m.TotalCost,
	).Scan(&m.CreatedAt)
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// List lists movements matching the filter, newest first
func (r *MovementRepository) List(ctx context.Context, filter MovementFilter) ([]*StockMovement, error) {
	var movements []*StockMovement
	query := `
		SELECT * FROM stock_movements
		WHERE ($1::text IS NULL OR stock_item_id = $1)
		AND ($2::text IS NULL OR patient_id = $2)
		AND ($3::text IS NULL OR kind = $3)
		AND ($4::timestamptz IS NULL OR created_at >= $4)
		AND ($5::timestamptz IS NULL OR created_at <= $5)
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &movements, query,
		filter.StockItemID, filter.PatientID, filter.Kind, filter.From, filter.To,
	); err != nil {
		return nil, err
	}
	return movements, nil
}

// AggregateConsumption sums exit quantity and cost per item over a date range
func (r *MovementRepository) AggregateConsumption(ctx context.Context, from, to time.Time) ([]*ConsumptionRow, error) {
	var rows []*ConsumptionRow
	query := `
		SELECT m.stock_item_id, i.name AS item_name,
			SUM(m.quantity) AS total_quantity,
			SUM(m.total_cost) AS total_cost,
			COUNT(*) AS movements
		FROM stock_movements m
		JOIN stock_items i ON i.id = m.stock_item_id
		WHERE m.kind = 'exit' AND m.created_at >= $1 AND m.created_at <= $2
		GROUP BY m.stock_item_id, i.name
		ORDER BY total_cost DESC
	`
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, err
	}
	return rows, nil
}
