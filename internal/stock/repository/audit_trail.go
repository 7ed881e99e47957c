package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/resicare/resicare-backend/pkg/database"
)

// StockAuditLog is a forensic record of one mutating stock operation,
// written independently of the primary data mutation.
type StockAuditLog struct {
	ID          string          `db:"id" json:"id"`
	StockItemID *string         `db:"stock_item_id" json:"stock_item_id,omitempty"`
	Action      string          `db:"action" json:"action"`
	ActorID     string          `db:"actor_id" json:"actor_id"`
	Before      json.RawMessage `db:"before" json:"before,omitempty"`
	After       json.RawMessage `db:"after" json:"after,omitempty"`
	Reason      *string         `db:"reason" json:"reason,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// AuditTrailRepository handles stock audit log persistence
type AuditTrailRepository struct {
	db *database.DB
}

// NewAuditTrailRepository creates a new audit trail repository
func NewAuditTrailRepository(db *database.DB) *AuditTrailRepository {
	return &AuditTrailRepository{db: db}
}

// Record appends an audit log entry
func (r *AuditTrailRepository) Record(ctx context.Context, entry *StockAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_audit_logs (
			id, stock_item_id, action, actor_id, before, after, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.StockItemID, entry.Action, entry.ActorID,
		entry.Before, entry.After, entry.Reason,
	).Scan(&entry.CreatedAt)
}

// List lists audit entries, newest first, optionally filtered by item
func (r *AuditTrailRepository) List(ctx context.Context, stockItemID *string, limit int) ([]*StockAuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []*StockAuditLog
	query := `
		SELECT * FROM stock_audit_logs
		WHERE ($1::text IS NULL OR stock_item_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &entries, query, stockItemID, limit); err != nil {
		return nil, err
	}
	return entries, nil
}
