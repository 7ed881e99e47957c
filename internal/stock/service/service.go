package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/resicare/resicare-backend/internal/stock/events"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/actor"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/logger"
)

// StockService handles the stock consistency engine: catalog, lot ledger,
// movement journal, reconciliation and the administration workflow.
type StockService struct {
	db             *database.DB
	itemRepo       *repository.ItemRepository
	lotRepo        *repository.LotRepository
	movementRepo   *repository.MovementRepository
	rxRepo         *repository.PrescriptionRepository
	adminRepo      *repository.AdministrationRepository
	auditRepo      *repository.AuditTrailRepository
	publisher      *events.StockEventPublisher
	logger         *logger.Logger
	nearExpiryDays int
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	lotRepo *repository.LotRepository,
	movementRepo *repository.MovementRepository,
	rxRepo *repository.PrescriptionRepository,
	adminRepo *repository.AdministrationRepository,
	auditRepo *repository.AuditTrailRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
	nearExpiryDays int,
) *StockService {
	if nearExpiryDays <= 0 {
		nearExpiryDays = 30
	}

	return &StockService{
		db:             db,
		itemRepo:       itemRepo,
		lotRepo:        lotRepo,
		movementRepo:   movementRepo,
		rxRepo:         rxRepo,
		adminRepo:      adminRepo,
		auditRepo:      auditRepo,
		publisher:      publisher,
		logger:         log,
		nearExpiryDays: nearExpiryDays,
	}
}

// recompute re-derives lot states and resyncs the item's cached aggregate
// from the sum of its active lots. It is the single resync point invoked at
// the end of every lot-mutating transaction.
func (s *StockService) recompute(ctx context.Context, tx *sqlx.Tx, stockItemID string) (int, error) {
	if err := s.lotRepo.RefreshStates(ctx, tx, stockItemID); err != nil {
		return 0, err
	}

	total, err := s.lotRepo.SumActive(ctx, tx, stockItemID)
	if err != nil {
		return 0, err
	}

	if err := s.itemRepo.SetCurrentStock(ctx, tx, stockItemID, total); err != nil {
		return 0, err
	}

	return total, nil
}

// Recompute resyncs one item's aggregate stock and returns the new total
func (s *StockService) Recompute(ctx context.Context, stockItemID string) (int, error) {
	var total int
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.itemRepo.GetForUpdate(ctx, tx, stockItemID); err != nil {
			return err
		}
		var err error
		total, err = s.recompute(ctx, tx, stockItemID)
		return err
	})
	return total, err
}

// IsLowStock reports whether the item's cached stock is at or below minimum
func IsLowStock(item *repository.StockItem) bool {
	return item.CurrentStock <= item.MinStock
}

// audit writes a forensic audit entry outside the primary transaction.
// Audit failures are logged, never surfaced.
func (s *StockService) audit(ctx context.Context, stockItemID *string, action string, before, after interface{}, reason *string) {
	entry := &repository.StockAuditLog{
		StockItemID: stockItemID,
		Action:      action,
		ActorID:     actor.IDFromContext(ctx),
		Reason:      reason,
	}

	if before != nil {
		if raw, err := json.Marshal(before); err == nil {
			entry.Before = raw
		}
	}
	if after != nil {
		if raw, err := json.Marshal(after); err == nil {
			entry.After = raw
		}
	}

	if err := s.auditRepo.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to write stock audit entry")
	}
}

// notifyThresholds fires best-effort notifications after a committed stock
// mutation: low stock on the item and near expiry on the given lot.
func (s *StockService) notifyThresholds(ctx context.Context, item *repository.StockItem, lot *repository.StockLot) {
	if IsLowStock(item) {
		s.publisher.PublishStockLow(ctx, item)
	}

	if lot != nil && lot.State == repository.LotStateActive {
		daysLeft := int(time.Until(lot.ExpirationDate).Hours() / 24)
		if daysLeft >= 0 && daysLeft <= s.nearExpiryDays {
			s.publisher.PublishLotExpiring(ctx, item, lot, daysLeft)
		}
	}
}
