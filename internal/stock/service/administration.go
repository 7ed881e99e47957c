package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/actor"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// AdministerRequest drives one administration attempt for a prescription
type AdministerRequest struct {
	PrescriptionID string     `json:"prescription_id" validate:"required,uuid"`
	Outcome        string     `json:"outcome" validate:"required,oneof=administered refused suspended error"`
	Quantity       int        `json:"quantity" validate:"omitempty,gt=0"`
	AdministeredAt *time.Time `json:"administered_at,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// AdministrationResult is the outcome of one administration attempt
type AdministrationResult struct {
	Event        *repository.AdministrationEvent `json:"event"`
	StockTouched bool                            `json:"stock_touched"`
	Lot          *repository.StockLot            `json:"lot,omitempty"`
	StockAfter   *int                            `json:"stock_after,omitempty"`
}

// ownershipInconsistency checks the payment-origin/ownership/owner-patient
// triple between a prescription and its linked stock item. Returns an empty
// string when consistent, otherwise the specific diagnostic reason.
func ownershipInconsistency(rx *repository.Prescription, item *repository.StockItem) string {
	switch rx.PaymentOrigin {
	case repository.PaymentFacility:
		if item.Ownership != repository.OwnershipFacility {
			return "facility-funded prescription is linked to a patient-owned stock item"
		}
	case repository.PaymentPatient:
		if item.Ownership != repository.OwnershipPatient {
			return "patient-funded prescription is linked to a facility-owned stock item"
		}
		if item.OwnerPatientID == nil {
			return "patient-owned stock item has no owner patient"
		}
		if *item.OwnerPatientID != rx.PatientID {
			return "stock item is owned by a different patient"
		}
	}
	return ""
}

// Administer runs one administration attempt: validate the prescription
// linkage, select the soonest-expiring lot that can cover the quantity,
// consume it, resync the item total and journal the exit. Everything from
// validation through recording commits or rolls back as one transaction.
func (s *StockService) Administer(ctx context.Context, req *AdministerRequest) (*AdministrationResult, error) {
	rx, err := s.rxRepo.GetByID(ctx, req.PrescriptionID)
	if err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	administeredAt := time.Now()
	if req.AdministeredAt != nil {
		administeredAt = *req.AdministeredAt
	}

	event := &repository.AdministrationEvent{
		PrescriptionID: rx.ID,
		PatientID:      rx.PatientID,
		Outcome:        req.Outcome,
		Quantity:       quantity,
		Notes:          req.Notes,
		ActorID:        actor.IDFromContext(ctx),
		AdministeredAt: administeredAt,
	}

	// A refused, suspended or errored administration never touches stock
	if req.Outcome != repository.OutcomeAdministered {
		if err := s.adminRepo.Create(ctx, s.db, event); err != nil {
			return nil, err
		}
		return &AdministrationResult{Event: event}, nil
	}

	// Insurance-funded medication bypasses facility stock entirely
	if rx.PaymentOrigin == repository.PaymentInsurance {
		event.StockTouched = false
		if event.Notes == nil {
			marker := "no stock interaction (insurance-funded)"
			event.Notes = &marker
		}
		if err := s.adminRepo.Create(ctx, s.db, event); err != nil {
			return nil, err
		}
		return &AdministrationResult{Event: event}, nil
	}

	if rx.StockItemID == nil {
		return nil, errors.NotLinkedToStock()
	}

	var (
		item     *repository.StockItem
		lot      *repository.StockLot
		movement repository.StockMovement
	)

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err = s.itemRepo.GetForUpdate(ctx, tx, *rx.StockItemID)
		if err != nil {
			return err
		}

		if reason := ownershipInconsistency(rx, item); reason != "" {
			return errors.OwnershipMismatch(reason)
		}

		before, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}

		lot, err = s.lotRepo.SelectForConsumption(ctx, tx, item.ID, quantity)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return errors.InsufficientStock(item.Name)
			}
			return err
		}

		if err := s.lotRepo.Consume(ctx, tx, lot, quantity); err != nil {
			return err
		}

		after, err := s.recompute(ctx, tx, item.ID)
		if err != nil {
			return err
		}

		// The sum-of-lots invariant must hold exactly; a mismatch is a bug,
		// not a business condition, and aborts the whole attempt
		if after != before-quantity {
			s.logger.Invariant().
				Str("stock_item_id", item.ID).
				Int("stock_before", before).
				Int("stock_after", after).
				Int("quantity", quantity).
				Msg("stock total diverged from sum of active lots during administration")
			return errors.Internal("stock reconciliation mismatch")
		}
		item.CurrentStock = after

		totalCost := decimal.Zero
		if lot.PurchasePrice.Valid {
			totalCost = lot.PurchasePrice.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
		}

		movement = repository.StockMovement{
			StockItemID: item.ID,
			LotID:       &lot.ID,
			Kind:        repository.MovementExit,
			Quantity:    quantity,
			StockBefore: before,
			StockAfter:  after,
			Reason:      "patient administration",
			PatientID:   &rx.PatientID,
			ActorID:     actor.IDFromContext(ctx),
			TotalCost:   totalCost,
		}
		if err := s.movementRepo.Record(ctx, tx, &movement); err != nil {
			return err
		}

		event.StockTouched = true
		event.LotID = &lot.ID
		return s.adminRepo.Create(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &item.ID, "administration", nil, event, nil)
	s.publisher.PublishMovementRecorded(ctx, &movement)
	s.notifyThresholds(ctx, item, nil)

	stockAfter := item.CurrentStock
	return &AdministrationResult{
		Event:        event,
		StockTouched: true,
		Lot:          lot,
		StockAfter:   &stockAfter,
	}, nil
}

// ListAdministrations lists administration events for a prescription
func (s *StockService) ListAdministrations(ctx context.Context, prescriptionID string) ([]*repository.AdministrationEvent, error) {
	return s.adminRepo.ListByPrescription(ctx, prescriptionID)
}

// ListAdministrationsByPatient lists a patient's administration events over
// a date range, across all of their prescriptions
func (s *StockService) ListAdministrationsByPatient(ctx context.Context, patientID string, from, to time.Time) ([]*repository.AdministrationEvent, error) {
	return s.adminRepo.ListByPatient(ctx, patientID, from, to)
}
