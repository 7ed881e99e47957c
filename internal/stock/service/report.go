package service

import (
	"context"
	"time"

	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/shopspring/decimal"
)

// ConsumptionReport aggregates exit movements per item over a date range
type ConsumptionReport struct {
	From       time.Time                    `json:"from"`
	To         time.Time                    `json:"to"`
	Items      []*repository.ConsumptionRow `json:"items"`
	TotalCost  decimal.Decimal              `json:"total_cost"`
	TotalUnits int                          `json:"total_units"`
}

// ListMovements queries the movement journal
func (s *StockService) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]*repository.StockMovement, error) {
	return s.movementRepo.List(ctx, filter)
}

// Consumption builds the aggregate consumption report for a date range
func (s *StockService) Consumption(ctx context.Context, from, to time.Time) (*ConsumptionReport, error) {
	rows, err := s.movementRepo.AggregateConsumption(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &ConsumptionReport{
		From:      from,
		To:        to,
		Items:     rows,
		TotalCost: decimal.Zero,
	}
	for _, row := range rows {
		report.TotalCost = report.TotalCost.Add(row.TotalCost)
		report.TotalUnits += row.TotalQuantity
	}

	return report, nil
}

// ListAuditTrail lists forensic audit entries, newest first
func (s *StockService) ListAuditTrail(ctx context.Context, stockItemID *string, limit int) ([]*repository.StockAuditLog, error) {
	return s.auditRepo.List(ctx, stockItemID, limit)
}
