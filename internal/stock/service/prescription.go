package service

import (
	"context"

	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// PrescriptionService handles prescription registration and the linkage
// between prescriptions and stock items.
type PrescriptionService struct {
	rxRepo      *repository.PrescriptionRepository
	itemRepo    *repository.ItemRepository
	patientRepo *repository.PatientCacheRepository
	logger      *logger.Logger
}

// NewPrescriptionService creates a new prescription service
func NewPrescriptionService(
	rxRepo *repository.PrescriptionRepository,
	itemRepo *repository.ItemRepository,
	patientRepo *repository.PatientCacheRepository,
	log *logger.Logger,
) *PrescriptionService {
	return &PrescriptionService{
		rxRepo:      rxRepo,
		itemRepo:    itemRepo,
		patientRepo: patientRepo,
		logger:      log,
	}
}

// CreatePrescriptionRequest registers a medication prescription
type CreatePrescriptionRequest struct {
	PatientID     string  `json:"patient_id" validate:"required,uuid"`
	Name          string  `json:"name" validate:"required,min=2,max=200"`
	Dosage        *string `json:"dosage,omitempty"`
	PaymentOrigin string  `json:"payment_origin" validate:"required,oneof=insurance facility patient"`
	StockItemID   *string `json:"stock_item_id,omitempty" validate:"omitempty,uuid"`
}

// UpdatePrescriptionRequest updates a prescription
type UpdatePrescriptionRequest struct {
	Name          string  `json:"name" validate:"required,min=2,max=200"`
	Dosage        *string `json:"dosage,omitempty"`
	PaymentOrigin string  `json:"payment_origin" validate:"required,oneof=insurance facility patient"`
	StockItemID   *string `json:"stock_item_id,omitempty" validate:"omitempty,uuid"`
	Active        *bool   `json:"active,omitempty"`
}

// Create registers a prescription. Stock-funded prescriptions without an
// explicit stock item go through auto-linking: an existing matching item is
// linked, a patient-funded medication with no match gets a zero-stock
// patient-owned item provisioned, a facility-funded one is left unlinked
// and flagged by the consistency audit.
func (s *PrescriptionService) Create(ctx context.Context, req *CreatePrescriptionRequest) (*repository.Prescription, error) {
	if _, err := s.patientRepo.GetByID(ctx, req.PatientID); err != nil {
		// The patient cache is eventually consistent; a miss is not fatal
		s.logger.Warn().Str("patient_id", req.PatientID).Msg("patient not found in local cache")
	}

	rx := &repository.Prescription{
		PatientID:     req.PatientID,
		Name:          req.Name,
		Dosage:        req.Dosage,
		PaymentOrigin: req.PaymentOrigin,
		StockItemID:   req.StockItemID,
		Active:        true,
	}

	if req.StockItemID != nil {
		item, err := s.itemRepo.GetByID(ctx, *req.StockItemID)
		if err != nil {
			return nil, err
		}
		if reason := ownershipInconsistency(rx, item); reason != "" {
			return nil, errors.OwnershipMismatch(reason)
		}
	} else if req.PaymentOrigin != repository.PaymentInsurance {
		itemID, err := s.autoLink(ctx, rx)
		if err != nil {
			return nil, err
		}
		rx.StockItemID = itemID
	}

	if err := s.rxRepo.Create(ctx, rx); err != nil {
		return nil, err
	}

	return rx, nil
}

// autoLink searches for an active stock item matching the prescription by
// name and ownership, provisioning one for patient-funded medications.
func (s *PrescriptionService) autoLink(ctx context.Context, rx *repository.Prescription) (*string, error) {
	ownership := repository.OwnershipFacility
	var ownerPatientID *string
	if rx.PaymentOrigin == repository.PaymentPatient {
		ownership = repository.OwnershipPatient
		ownerPatientID = &rx.PatientID
	}

	item, err := s.itemRepo.FindByNameAndOwnership(ctx, rx.Name, ownership, ownerPatientID)
	if err == nil {
		s.logger.Info().
			Str("patient_id", rx.PatientID).
			Str("stock_item_id", item.ID).
			Msg("prescription auto-linked to existing stock item")
		return &item.ID, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if rx.PaymentOrigin == repository.PaymentFacility {
		// Soft-pending state: left unlinked, surfaced by the audit
		s.logger.Warn().
			Str("patient_id", rx.PatientID).
			Str("name", rx.Name).
			Msg("facility-funded prescription left unlinked, no matching stock item")
		return nil, nil
	}

	provisioned := &repository.StockItem{
		Name:           rx.Name,
		Kind:           repository.KindMedication,
		BaseUnit:       "unit",
		CurrentStock:   0,
		MinStock:       0,
		Ownership:      repository.OwnershipPatient,
		OwnerPatientID: &rx.PatientID,
		UnitPrice:      decimal.Zero,
		Active:         true,
	}
	if err := s.itemRepo.Create(ctx, provisioned); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", rx.PatientID).
		Str("stock_item_id", provisioned.ID).
		Msg("auto-provisioned patient-owned stock item for prescription")
	return &provisioned.ID, nil
}

// Get gets a prescription by ID
func (s *PrescriptionService) Get(ctx context.Context, id string) (*repository.Prescription, error) {
	return s.rxRepo.GetByID(ctx, id)
}

// ListByPatient lists a patient's prescriptions
func (s *PrescriptionService) ListByPatient(ctx context.Context, patientID string, activeOnly bool) ([]*repository.Prescription, error) {
	return s.rxRepo.ListByPatient(ctx, patientID, activeOnly)
}

// Update updates a prescription, re-validating any explicit stock linkage
func (s *PrescriptionService) Update(ctx context.Context, id string, req *UpdatePrescriptionRequest) (*repository.Prescription, error) {
	rx, err := s.rxRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rx.Name = req.Name
	rx.Dosage = req.Dosage
	rx.PaymentOrigin = req.PaymentOrigin
	rx.StockItemID = req.StockItemID
	if req.Active != nil {
		rx.Active = *req.Active
	}

	if rx.StockItemID != nil {
		item, err := s.itemRepo.GetByID(ctx, *rx.StockItemID)
		if err != nil {
			return nil, err
		}
		if reason := ownershipInconsistency(rx, item); reason != "" {
			return nil, errors.OwnershipMismatch(reason)
		}
	}

	if err := s.rxRepo.Update(ctx, rx); err != nil {
		return nil, err
	}

	return rx, nil
}
