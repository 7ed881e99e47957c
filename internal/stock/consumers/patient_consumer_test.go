package consumers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/logger"
	"github.com/resicare/resicare-backend/pkg/messaging"
	"github.com/resicare/resicare-backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) (*PatientEventConsumer, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromDB(mockDB.DB, log)

	// Handlers are exercised directly, no broker involved
	c := &PatientEventConsumer{
		patientRepo: repository.NewPatientCacheRepository(db),
		logger:      log,
	}
	return c, mockDB
}

func residentEvent(t *testing.T, eventType string, data interface{}) *messaging.Event {
	event, err := messaging.NewEvent(eventType, "care-management", "", data)
	require.NoError(t, err)
	return event
}

func TestHandleResidentCreated(t *testing.T) {
	c, mockDB := newTestConsumer(t)

	mockDB.ExpectExec("INSERT INTO patient_cache").
		WithArgs("patient-1", "Carmen Ruiz", "A-12", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := residentEvent(t, messaging.EventResidentCreated, messaging.ResidentCreatedEvent{
		ResidentID: "patient-1",
		Name:       "Carmen Ruiz",
		RoomCode:   "A-12",
	})
	require.NoError(t, c.handleResidentCreated(context.Background(), event))

	mockDB.ExpectationsWereMet(t)
}

func TestHandleResidentUpdatedAppliesChangedFields(t *testing.T) {
	c, mockDB := newTestConsumer(t)

	mockDB.ExpectQuery("SELECT * FROM patient_cache WHERE id = $1").
		WithArgs("patient-1").
		WillReturnRows(testutil.MockRows("id", "name", "room_code", "active", "updated_at").
			AddRow("patient-1", "Carmen Ruiz", "A-12", true, time.Now()))

	mockDB.ExpectExec("INSERT INTO patient_cache").
		WithArgs("patient-1", "Carmen Ruiz", "B-03", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := residentEvent(t, messaging.EventResidentUpdated, messaging.ResidentUpdatedEvent{
		ResidentID: "patient-1",
		Fields:     map[string]any{"room_code": "B-03"},
	})
	require.NoError(t, c.handleResidentUpdated(context.Background(), event))

	mockDB.ExpectationsWereMet(t)
}

func TestHandleResidentUpdatedUnknownResident(t *testing.T) {
	c, mockDB := newTestConsumer(t)

	mockDB.ExpectQuery("SELECT * FROM patient_cache WHERE id = $1").
		WithArgs("patient-9").
		WillReturnError(sql.ErrNoRows)

	// An update for a resident never seen is dropped, not an error
	event := residentEvent(t, messaging.EventResidentUpdated, messaging.ResidentUpdatedEvent{
		ResidentID: "patient-9",
		Fields:     map[string]any{"name": "Unknown"},
	})
	require.NoError(t, c.handleResidentUpdated(context.Background(), event))

	mockDB.ExpectationsWereMet(t)
}

func TestHandleResidentDeactivated(t *testing.T) {
	c, mockDB := newTestConsumer(t)

	mockDB.ExpectExec("UPDATE patient_cache SET active = false").
		WithArgs("patient-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := residentEvent(t, messaging.EventResidentDeactivated, messaging.ResidentDeactivatedEvent{
		ResidentID: "patient-1",
		Reason:     "discharged",
	})
	require.NoError(t, c.handleResidentDeactivated(context.Background(), event))

	mockDB.ExpectationsWereMet(t)
}
