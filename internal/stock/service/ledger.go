package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/internal/stock/units"
	"github.com/resicare/resicare-backend/pkg/actor"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Receipt units
const (
	UnitBase         = "base"
	UnitPresentation = "presentation"
)

// ReceiveLotRequest receives a purchased lot into stock
type ReceiveLotRequest struct {
	StockItemID    string           `json:"stock_item_id" validate:"required,uuid"`
	LotNumber      string           `json:"lot_number" validate:"required,min=1,max=100"`
	ExpirationDate time.Time        `json:"expiration_date" validate:"required"`
	Quantity       int              `json:"quantity" validate:"required,gt=0"`
	Unit           string           `json:"unit" validate:"required,oneof=base presentation"`
	PurchasePrice  *decimal.Decimal `json:"purchase_price,omitempty"`
}

// UpdateLotRequest corrects a lot after a manual stocktake
type UpdateLotRequest struct {
	LotNumber       *string          `json:"lot_number,omitempty"`
	ExpirationDate  *time.Time       `json:"expiration_date,omitempty"`
	CurrentQuantity *int             `json:"current_quantity,omitempty" validate:"omitempty,gte=0"`
	PurchasePrice   *decimal.Decimal `json:"purchase_price,omitempty"`
	Reason          *string          `json:"reason,omitempty"`
}

// ReceiveLot creates a lot, resyncs the item total and appends an entry
// movement, all in one transaction on the item's lock.
func (s *StockService) ReceiveLot(ctx context.Context, req *ReceiveLotRequest) (*repository.StockLot, error) {
	if !req.ExpirationDate.After(time.Now()) {
		return nil, errors.Validation(map[string]string{
			"expiration_date": "must be in the future",
		})
	}

	var (
		lot         repository.StockLot
		movement    repository.StockMovement
		item        *repository.StockItem
		maxExceeded bool
	)

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		item, err = s.itemRepo.GetForUpdate(ctx, tx, req.StockItemID)
		if err != nil {
			return err
		}

		quantity := req.Quantity
		if req.Unit == UnitPresentation {
			if item.ConversionFactor == nil {
				return errors.Validation(map[string]string{
					"unit": "item has no presentation unit configured",
				})
			}
			quantity = units.ToBase(req.Quantity, item.ConversionFactor)
		}

		before, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}

		lot = repository.StockLot{
			StockItemID:     item.ID,
			LotNumber:       req.LotNumber,
			ExpirationDate:  req.ExpirationDate,
			InitialQuantity: quantity,
			CurrentQuantity: quantity,
			State:           repository.LotStateActive,
		}
		if req.PurchasePrice != nil {
			lot.PurchasePrice = decimal.NewNullDecimal(*req.PurchasePrice)
		}
		if err := s.lotRepo.Create(ctx, tx, &lot); err != nil {
			return err
		}

		after, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		item.CurrentStock = after

		totalCost := decimal.Zero
		if req.PurchasePrice != nil {
			totalCost = req.PurchasePrice.Mul(decimal.NewFromInt(int64(quantity)))
		}

		movement = repository.StockMovement{
			StockItemID: item.ID,
			LotID:       &lot.ID,
			Kind:        repository.MovementEntry,
			Quantity:    quantity,
			StockBefore: before,
			StockAfter:  after,
			Reason:      "lot received",
			ActorID:     actor.IDFromContext(ctx),
			TotalCost:   totalCost,
		}
		if err := s.movementRepo.Record(ctx, tx, &movement); err != nil {
			return err
		}

		// Receipts above max stock are flagged, not rejected
		if item.MaxStock != nil && after > *item.MaxStock {
			maxExceeded = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &item.ID, "lot_received", nil, &lot, nil)
	if maxExceeded {
		s.logger.Warn().
			Str("stock_item_id", item.ID).
			Int("current_stock", item.CurrentStock).
			Int("max_stock", *item.MaxStock).
			Msg("stock above configured maximum after receipt")
		s.audit(ctx, &item.ID, "max_stock_exceeded", nil, item, nil)
	}
	s.publisher.PublishMovementRecorded(ctx, &movement)
	s.notifyThresholds(ctx, item, &lot)

	return &lot, nil
}

// GetLot gets a lot by ID
func (s *StockService) GetLot(ctx context.Context, id string) (*repository.StockLot, error) {
	return s.lotRepo.GetByID(ctx, id)
}

// ListLots lists lots, soonest-expiring first
func (s *StockService) ListLots(ctx context.Context, filter repository.LotFilter) ([]*repository.StockLot, error) {
	return s.lotRepo.List(ctx, filter)
}

// UpdateLot corrects a lot's quantity or metadata. A quantity change appends
// an adjustment movement and resyncs the item total.
func (s *StockService) UpdateLot(ctx context.Context, id string, req *UpdateLotRequest) (*repository.StockLot, error) {
	existing, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		lot      *repository.StockLot
		movement *repository.StockMovement
		item     *repository.StockItem
	)

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// Item lock first, always: this is the per-item serialization order
		item, err = s.itemRepo.GetForUpdate(ctx, tx, existing.StockItemID)
		if err != nil {
			return err
		}

		lot, err = s.lotRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		before, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}

		previousQuantity := lot.CurrentQuantity
		if req.LotNumber != nil {
			lot.LotNumber = *req.LotNumber
		}
		if req.ExpirationDate != nil {
			lot.ExpirationDate = *req.ExpirationDate
		}
		if req.PurchasePrice != nil {
			lot.PurchasePrice = decimal.NewNullDecimal(*req.PurchasePrice)
		}
		if req.CurrentQuantity != nil {
			if *req.CurrentQuantity > lot.InitialQuantity {
				return errors.Validation(map[string]string{
					"current_quantity": "must not exceed the lot's initial quantity",
				})
			}
			lot.CurrentQuantity = *req.CurrentQuantity
		}

		if err := s.lotRepo.Update(ctx, tx, lot); err != nil {
			return err
		}

		after, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		item.CurrentStock = after

		if req.CurrentQuantity != nil && *req.CurrentQuantity != previousQuantity {
			delta := *req.CurrentQuantity - previousQuantity
			if delta < 0 {
				delta = -delta
			}

			reason := "stocktake correction"
			if req.Reason != nil {
				reason = *req.Reason
			}

			movement = &repository.StockMovement{
				StockItemID: item.ID,
				LotID:       &lot.ID,
				Kind:        repository.MovementAdjustment,
				Quantity:    delta,
				StockBefore: before,
				StockAfter:  after,
				Reason:      reason,
				ActorID:     actor.IDFromContext(ctx),
				TotalCost:   decimal.Zero,
			}
			if err := s.movementRepo.Record(ctx, tx, movement); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &item.ID, "lot_corrected", existing, lot, req.Reason)
	if movement != nil {
		s.publisher.PublishMovementRecorded(ctx, movement)
	}
	s.notifyThresholds(ctx, item, lot)

	return lot, nil
}

// DeleteLot removes a lot and resyncs the item total. Removal of a lot that
// still held units is journaled as an adjustment.
func (s *StockService) DeleteLot(ctx context.Context, id string) error {
	existing, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var (
		movement *repository.StockMovement
		item     *repository.StockItem
	)

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err = s.itemRepo.GetForUpdate(ctx, tx, existing.StockItemID)
		if err != nil {
			return err
		}

		lot, err := s.lotRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		before, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}

		if err := s.lotRepo.Delete(ctx, tx, id); err != nil {
			return err
		}

		after, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		item.CurrentStock = after

		if lot.CurrentQuantity > 0 {
			movement = &repository.StockMovement{
				StockItemID: item.ID,
				Kind:        repository.MovementAdjustment,
				Quantity:    lot.CurrentQuantity,
				StockBefore: before,
				StockAfter:  after,
				Reason:      "lot removed",
				ActorID:     actor.IDFromContext(ctx),
				TotalCost:   decimal.Zero,
			}
			if err := s.movementRepo.Record(ctx, tx, movement); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &item.ID, "lot_deleted", existing, nil, nil)
	if movement != nil {
		s.publisher.PublishMovementRecorded(ctx, movement)
	}
	s.notifyThresholds(ctx, item, nil)

	return nil
}
