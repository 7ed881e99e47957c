package service

import (
	"context"
	"time"

	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/errors"
)

// Audit buckets. Every prescription lands in exactly one.
const (
	AuditCorrect      = "correct"
	AuditUnlinked     = "unlinked"
	AuditNoStock      = "no_stock"
	AuditLowStock     = "low_stock"
	AuditInconsistent = "inconsistent"
)

// AuditEntry is one prescription's place in the consistency report
type AuditEntry struct {
	PrescriptionID string  `json:"prescription_id"`
	PatientID      string  `json:"patient_id"`
	PatientName    *string `json:"patient_name,omitempty"`
	Name           string  `json:"name"`
	PaymentOrigin  string  `json:"payment_origin"`
	StockItemID    *string `json:"stock_item_id,omitempty"`
	CurrentStock   *int    `json:"current_stock,omitempty"`
	Status         string  `json:"status"`
	Suggestion     string  `json:"suggestion"`
}

// AuditReport buckets every prescription by its stock consistency state
type AuditReport struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	Total        int           `json:"total"`
	Correct      []*AuditEntry `json:"correct"`
	Unlinked     []*AuditEntry `json:"unlinked"`
	NoStock      []*AuditEntry `json:"no_stock"`
	LowStock     []*AuditEntry `json:"low_stock"`
	Inconsistent []*AuditEntry `json:"inconsistent"`
}

// AuditAll iterates every prescription and buckets it by the consistency of
// its stock linkage. Read-only and side-effect-free; aggregates may be
// slightly stale since no locks are taken.
func (s *PrescriptionService) AuditAll(ctx context.Context) (*AuditReport, error) {
	rxs, err := s.rxRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		GeneratedAt:  time.Now().UTC(),
		Total:        len(rxs),
		Correct:      []*AuditEntry{},
		Unlinked:     []*AuditEntry{},
		NoStock:      []*AuditEntry{},
		LowStock:     []*AuditEntry{},
		Inconsistent: []*AuditEntry{},
	}

	for _, rx := range rxs {
		entry := &AuditEntry{
			PrescriptionID: rx.ID,
			PatientID:      rx.PatientID,
			Name:           rx.Name,
			PaymentOrigin:  rx.PaymentOrigin,
			StockItemID:    rx.StockItemID,
		}
		if p, err := s.patientRepo.GetByID(ctx, rx.PatientID); err == nil {
			entry.PatientName = &p.Name
		}

		s.bucket(ctx, rx, entry)

		switch entry.Status {
		case AuditCorrect:
			report.Correct = append(report.Correct, entry)
		case AuditUnlinked:
			report.Unlinked = append(report.Unlinked, entry)
		case AuditNoStock:
			report.NoStock = append(report.NoStock, entry)
		case AuditLowStock:
			report.LowStock = append(report.LowStock, entry)
		case AuditInconsistent:
			report.Inconsistent = append(report.Inconsistent, entry)
		}
	}

	return report, nil
}

func (s *PrescriptionService) bucket(ctx context.Context, rx *repository.Prescription, entry *AuditEntry) {
	if rx.PaymentOrigin == repository.PaymentInsurance {
		entry.Status = AuditCorrect
		entry.Suggestion = "insurance-funded, no stock linkage expected"
		return
	}

	if rx.StockItemID == nil {
		entry.Status = AuditUnlinked
		entry.Suggestion = "link the prescription to a stock item or receive matching stock"
		return
	}

	item, err := s.itemRepo.GetByID(ctx, *rx.StockItemID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			entry.Status = AuditInconsistent
			entry.Suggestion = "linked stock item no longer exists, relink the prescription"
			return
		}
		s.logger.Error().Err(err).Str("prescription_id", rx.ID).Msg("failed to load stock item during audit")
		entry.Status = AuditInconsistent
		entry.Suggestion = "stock item could not be loaded, retry the audit"
		return
	}

	entry.CurrentStock = &item.CurrentStock

	if reason := ownershipInconsistency(rx, item); reason != "" {
		entry.Status = AuditInconsistent
		entry.Suggestion = reason + ", correct the linkage or the item ownership"
		return
	}

	switch {
	case item.CurrentStock <= 0:
		entry.Status = AuditNoStock
		entry.Suggestion = "stock is exhausted, receive a new lot before the next administration"
	case item.CurrentStock <= item.MinStock:
		entry.Status = AuditLowStock
		entry.Suggestion = "stock is at or below the configured minimum, plan a restock"
	default:
		entry.Status = AuditCorrect
		entry.Suggestion = "stock linkage is consistent"
	}
}
