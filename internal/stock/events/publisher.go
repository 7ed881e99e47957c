package events

import (
	"context"

	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/logger"
	"github.com/resicare/resicare-backend/pkg/messaging"
)

// StockEventPublisher publishes stock-related events for the notification
// sink. Publishing is fire-and-forget: failures are logged, never surfaced
// to the caller.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockLow publishes a low stock event
func (p *StockEventPublisher) PublishStockLow(ctx context.Context, item *repository.StockItem) {
	if p == nil {
		return
	}

	data := messaging.StockLowEvent{
		StockItemID:  item.ID,
		ItemName:     item.Name,
		CurrentStock: item.CurrentStock,
		MinStock:     item.MinStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockLow, data); err != nil {
		p.logger.Error().Err(err).Str("stock_item_id", item.ID).Msg("failed to publish low stock event")
	}
}

// PublishLotExpiring publishes a near-expiry event for a lot
func (p *StockEventPublisher) PublishLotExpiring(ctx context.Context, item *repository.StockItem, lot *repository.StockLot, daysLeft int) {
	if p == nil {
		return
	}

	data := messaging.StockLotExpiringEvent{
		StockItemID: item.ID,
		ItemName:    item.Name,
		LotID:       lot.ID,
		LotNumber:   lot.LotNumber,
		Expiration:  lot.ExpirationDate,
		DaysLeft:    daysLeft,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockLotExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot expiring event")
	}
}

// PublishMovementRecorded publishes a movement recorded event
func (p *StockEventPublisher) PublishMovementRecorded(ctx context.Context, m *repository.StockMovement) {
	if p == nil {
		return
	}

	patientID := ""
	if m.PatientID != nil {
		patientID = *m.PatientID
	}

	data := messaging.StockMovementEvent{
		MovementID:  m.ID,
		StockItemID: m.StockItemID,
		Kind:        m.Kind,
		Quantity:    m.Quantity,
		StockAfter:  m.StockAfter,
		ActorID:     m.ActorID,
		PatientID:   patientID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockMovement, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", m.ID).Msg("failed to publish movement event")
	}
}
