package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Resident events, published by the care-management system and
	// consumed here to keep the local patient identity cache current
	EventResidentCreated     = "resident.created"
	EventResidentUpdated     = "resident.updated"
	EventResidentDeactivated = "resident.deactivated"

	// Stock events, published by this service for the notification sink
	EventStockLow          = "stock.item.low"
	EventStockLotExpiring  = "stock.lot.expiring"
	EventStockMovement     = "stock.movement.recorded"
)

// Exchange names
const (
	ExchangeResidentEvents = "resident.events"
	ExchangeStockEvents    = "stock.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Resident events

// ResidentCreatedEvent is published when a resident is admitted
type ResidentCreatedEvent struct {
	ResidentID string `json:"resident_id"`
	Name       string `json:"name"`
	RoomCode   string `json:"room_code,omitempty"`
}

// ResidentUpdatedEvent is published when a resident's record changes
type ResidentUpdatedEvent struct {
	ResidentID string         `json:"resident_id"`
	Fields     map[string]any `json:"fields"` // Changed fields
}

// ResidentDeactivatedEvent is published when a resident leaves the facility
type ResidentDeactivatedEvent struct {
	ResidentID string `json:"resident_id"`
	Reason     string `json:"reason,omitempty"`
}

// Stock events

// StockLowEvent notifies that an item's stock fell to or below its minimum
type StockLowEvent struct {
	StockItemID  string `json:"stock_item_id"`
	ItemName     string `json:"item_name"`
	CurrentStock int    `json:"current_stock"`
	MinStock     int    `json:"min_stock"`
}

// StockLotExpiringEvent notifies that an active lot is near its expiration
type StockLotExpiringEvent struct {
	StockItemID string    `json:"stock_item_id"`
	ItemName    string    `json:"item_name"`
	LotID       string    `json:"lot_id"`
	LotNumber   string    `json:"lot_number"`
	Expiration  time.Time `json:"expiration"`
	DaysLeft    int       `json:"days_left"`
}

// StockMovementEvent notifies that a movement was appended to the journal
type StockMovementEvent struct {
	MovementID  string `json:"movement_id"`
	StockItemID string `json:"stock_item_id"`
	Kind        string `json:"kind"`
	Quantity    int    `json:"quantity"`
	StockAfter  int    `json:"stock_after"`
	ActorID     string `json:"actor_id"`
	PatientID   string `json:"patient_id,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
