package consumers

import (
	"context"

	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/logger"
	"github.com/resicare/resicare-backend/pkg/messaging"
)

// PatientEventConsumer keeps the local patient cache in sync with resident
// events from the care-management system.
type PatientEventConsumer struct {
	consumer    *messaging.Consumer
	patientRepo *repository.PatientCacheRepository
	logger      *logger.Logger
}

// NewPatientEventConsumer creates a new patient event consumer
func NewPatientEventConsumer(rmq *messaging.RabbitMQ, patientRepo *repository.PatientCacheRepository, log *logger.Logger) (*PatientEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.resident-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeResidentEvents, "resident.#"); err != nil {
		return nil, err
	}

	c := &PatientEventConsumer{
		consumer:    consumer,
		patientRepo: patientRepo,
		logger:      log,
	}

	consumer.RegisterHandler(messaging.EventResidentCreated, c.handleResidentCreated)
	consumer.RegisterHandler(messaging.EventResidentUpdated, c.handleResidentUpdated)
	consumer.RegisterHandler(messaging.EventResidentDeactivated, c.handleResidentDeactivated)

	return c, nil
}

// Start starts consuming messages
func (c *PatientEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *PatientEventConsumer) handleResidentCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.ResidentCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("patient_id", data.ResidentID).
		Str("name", data.Name).
		Msg("received resident created event")

	patient := &repository.Patient{
		ID:     data.ResidentID,
		Name:   data.Name,
		Active: true,
	}
	if data.RoomCode != "" {
		patient.RoomCode = &data.RoomCode
	}

	return c.patientRepo.Upsert(ctx, patient)
}

func (c *PatientEventConsumer) handleResidentUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.ResidentUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("patient_id", data.ResidentID).
		Msg("received resident updated event")

	existing, _ := c.patientRepo.GetByID(ctx, data.ResidentID)
	if existing == nil {
		return nil
	}

	if name, ok := data.Fields["name"].(string); ok {
		existing.Name = name
	}
	if room, ok := data.Fields["room_code"].(string); ok {
		existing.RoomCode = &room
	}

	return c.patientRepo.Upsert(ctx, existing)
}

func (c *PatientEventConsumer) handleResidentDeactivated(ctx context.Context, event *messaging.Event) error {
	var data messaging.ResidentDeactivatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("patient_id", data.ResidentID).
		Msg("received resident deactivated event")

	return c.patientRepo.Deactivate(ctx, data.ResidentID)
}
