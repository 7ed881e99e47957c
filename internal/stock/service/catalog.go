package service

import (
	"context"
	"time"

	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/internal/stock/units"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// CreateItemRequest creates a catalog entry. A nonzero initial stock
// auto-creates an initial lot, which requires an expiration date.
type CreateItemRequest struct {
	Name              string          `json:"name" validate:"required,min=2,max=200"`
	Kind              string          `json:"kind" validate:"required,oneof=medication supply"`
	BaseUnit          string          `json:"base_unit" validate:"required,min=1,max=50"`
	PresentationUnit  *string         `json:"presentation_unit,omitempty"`
	ConversionFactor  *int            `json:"conversion_factor,omitempty"`
	MinStock          int             `json:"min_stock" validate:"gte=0"`
	MaxStock          *int            `json:"max_stock,omitempty"`
	Ownership         string          `json:"ownership" validate:"required,oneof=facility patient"`
	OwnerPatientID    *string         `json:"owner_patient_id,omitempty" validate:"omitempty,uuid"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	InitialStock      int             `json:"initial_stock" validate:"gte=0"`
	InitialLotNumber  *string         `json:"initial_lot_number,omitempty"`
	InitialExpiration *time.Time      `json:"initial_expiration,omitempty"`
}

// UpdateItemRequest updates a catalog entry. Stock totals are not updatable
// here; they only move through the lot ledger.
type UpdateItemRequest struct {
	Name             string          `json:"name" validate:"required,min=2,max=200"`
	Kind             string          `json:"kind" validate:"required,oneof=medication supply"`
	BaseUnit         string          `json:"base_unit" validate:"required,min=1,max=50"`
	PresentationUnit *string         `json:"presentation_unit,omitempty"`
	ConversionFactor *int            `json:"conversion_factor,omitempty"`
	MinStock         int             `json:"min_stock" validate:"gte=0"`
	MaxStock         *int            `json:"max_stock,omitempty"`
	Ownership        string          `json:"ownership" validate:"required,oneof=facility patient"`
	OwnerPatientID   *string         `json:"owner_patient_id,omitempty" validate:"omitempty,uuid"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Active           *bool           `json:"active,omitempty"`
}

// ItemDetail is a catalog item enriched with its lots and derived flags
type ItemDetail struct {
	*repository.StockItem
	Lots         []*repository.StockLot `json:"lots,omitempty"`
	Presentation *units.Presentation    `json:"presentation,omitempty"`
	LowStock     bool                   `json:"low_stock"`
}

// validateItemConfig checks the cross-field catalog rules shared by create
// and update
func validateItemConfig(presentationUnit *string, conversionFactor *int, minStock int, maxStock *int, ownership string, ownerPatientID *string) error {
	details := make(map[string]string)

	if !units.ValidConfiguration(presentationUnit, conversionFactor) {
		details["conversion_factor"] = "a presentation unit requires a conversion factor of at least 2"
	}
	if maxStock != nil && *maxStock < minStock {
		details["max_stock"] = "must be greater than or equal to min_stock"
	}
	if ownership == repository.OwnershipPatient && ownerPatientID == nil {
		details["owner_patient_id"] = "required for patient-owned items"
	}
	if ownership == repository.OwnershipFacility && ownerPatientID != nil {
		details["owner_patient_id"] = "must not be set for facility-owned items"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// CreateItem creates a catalog entry and, when initial stock is given,
// receives the initial lot through the regular lot ledger path.
func (s *StockService) CreateItem(ctx context.Context, req *CreateItemRequest) (*ItemDetail, error) {
	if err := validateItemConfig(req.PresentationUnit, req.ConversionFactor, req.MinStock, req.MaxStock, req.Ownership, req.OwnerPatientID); err != nil {
		return nil, err
	}
	if req.InitialStock > 0 {
		if req.InitialExpiration == nil {
			return nil, errors.Validation(map[string]string{
				"initial_expiration": "required when initial_stock is set",
			})
		}
		if !req.InitialExpiration.After(time.Now()) {
			return nil, errors.Validation(map[string]string{
				"initial_expiration": "must be in the future",
			})
		}
	}

	item := &repository.StockItem{
		Name:             req.Name,
		Kind:             req.Kind,
		BaseUnit:         req.BaseUnit,
		PresentationUnit: req.PresentationUnit,
		ConversionFactor: req.ConversionFactor,
		CurrentStock:     0,
		MinStock:         req.MinStock,
		MaxStock:         req.MaxStock,
		Ownership:        req.Ownership,
		OwnerPatientID:   req.OwnerPatientID,
		UnitPrice:        req.UnitPrice,
		Active:           true,
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.audit(ctx, &item.ID, "item_created", nil, item, nil)

	if req.InitialStock > 0 {
		lotNumber := "initial"
		if req.InitialLotNumber != nil {
			lotNumber = *req.InitialLotNumber
		}

		if _, err := s.ReceiveLot(ctx, &ReceiveLotRequest{
			StockItemID:    item.ID,
			LotNumber:      lotNumber,
			ExpirationDate: *req.InitialExpiration,
			Quantity:       req.InitialStock,
			Unit:           UnitBase,
		}); err != nil {
			return nil, err
		}
	}

	return s.GetItem(ctx, item.ID)
}

// GetItem gets an item with its lots and derived flags
func (s *StockService) GetItem(ctx context.Context, id string) (*ItemDetail, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lots, err := s.lotRepo.List(ctx, repository.LotFilter{StockItemID: &item.ID})
	if err != nil {
		return nil, err
	}

	return s.enrichItem(item, lots), nil
}

// ListItems lists catalog items matching the filter
func (s *StockService) ListItems(ctx context.Context, filter repository.ItemFilter) ([]*ItemDetail, error) {
	items, err := s.itemRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := make([]*ItemDetail, len(items))
	for i, item := range items {
		result[i] = s.enrichItem(item, nil)
	}
	return result, nil
}

// UpdateItem updates a catalog entry. An ownership change is sensitive and
// is always audit-logged with the before and after state.
func (s *StockService) UpdateItem(ctx context.Context, id string, req *UpdateItemRequest) (*ItemDetail, error) {
	if err := validateItemConfig(req.PresentationUnit, req.ConversionFactor, req.MinStock, req.MaxStock, req.Ownership, req.OwnerPatientID); err != nil {
		return nil, err
	}

	existing, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ownershipChanged := existing.Ownership != req.Ownership ||
		!strPtrEqual(existing.OwnerPatientID, req.OwnerPatientID)

	updated := *existing
	updated.Name = req.Name
	updated.Kind = req.Kind
	updated.BaseUnit = req.BaseUnit
	updated.PresentationUnit = req.PresentationUnit
	updated.ConversionFactor = req.ConversionFactor
	updated.MinStock = req.MinStock
	updated.MaxStock = req.MaxStock
	updated.Ownership = req.Ownership
	updated.OwnerPatientID = req.OwnerPatientID
	updated.UnitPrice = req.UnitPrice
	if req.Active != nil {
		updated.Active = *req.Active
	}

	if err := s.itemRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	if ownershipChanged {
		s.logger.Warn().
			Str("stock_item_id", id).
			Str("from", existing.Ownership).
			Str("to", updated.Ownership).
			Msg("stock item ownership changed")
		s.audit(ctx, &id, "ownership_changed", existing, &updated, nil)
	} else {
		s.audit(ctx, &id, "item_updated", existing, &updated, nil)
	}

	return s.GetItem(ctx, id)
}

// ListLowStock lists active items at or below their minimum stock
func (s *StockService) ListLowStock(ctx context.Context) ([]*ItemDetail, error) {
	items, err := s.itemRepo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*ItemDetail, len(items))
	for i, item := range items {
		result[i] = s.enrichItem(item, nil)
	}
	return result, nil
}

// ListNearExpiry lists items with at least one active lot expiring soon
func (s *StockService) ListNearExpiry(ctx context.Context) ([]*ItemDetail, error) {
	items, err := s.itemRepo.ListNearExpiry(ctx, s.nearExpiryDays)
	if err != nil {
		return nil, err
	}

	result := make([]*ItemDetail, len(items))
	for i, item := range items {
		lots, err := s.lotRepo.List(ctx, repository.LotFilter{StockItemID: &item.ID})
		if err != nil {
			return nil, err
		}
		result[i] = s.enrichItem(item, lots)
	}
	return result, nil
}

func (s *StockService) enrichItem(item *repository.StockItem, lots []*repository.StockLot) *ItemDetail {
	detail := &ItemDetail{
		StockItem: item,
		Lots:      lots,
		LowStock:  IsLowStock(item),
	}

	if item.PresentationUnit != nil {
		p := units.ToPresentation(item.CurrentStock, item.ConversionFactor)
		detail.Presentation = &p
	}

	return detail
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
