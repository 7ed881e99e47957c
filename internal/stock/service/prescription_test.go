package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/logger"
	"github.com/resicare/resicare-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPatientID = "0a6f3f60-0000-4000-8000-000000000001"

func newTestPrescriptionService(t *testing.T) (*PrescriptionService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromDB(mockDB.DB, log)

	svc := NewPrescriptionService(
		repository.NewPrescriptionRepository(db),
		repository.NewItemRepository(db),
		repository.NewPatientCacheRepository(db),
		log,
	)
	return svc, mockDB
}

func expectPatientLookup(mockDB *testutil.MockDB, patientID string) {
	mockDB.ExpectQuery("SELECT * FROM patient_cache WHERE id = $1").
		WithArgs(patientID).
		WillReturnRows(testutil.MockRows("id", "name", "room_code", "active", "updated_at").
			AddRow(patientID, "Carmen Ruiz", "A-12", true, time.Now()))
}

func expectPrescriptionInsert(mockDB *testutil.MockDB) {
	mockDB.ExpectQuery("INSERT INTO prescriptions").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now(), time.Now()))
}

func TestCreatePrescriptionAutoLinksExistingItem(t *testing.T) {
	svc, mockDB := newTestPrescriptionService(t)

	expectPatientLookup(mockDB, testPatientID)

	mockDB.ExpectQuery("SELECT * FROM stock_items").
		WithArgs("Paracetamol 500mg", repository.OwnershipFacility, nil).
		WillReturnRows(facilityItemRow("item-1", 60, 10))

	expectPrescriptionInsert(mockDB)

	rx, err := svc.Create(context.Background(), &CreatePrescriptionRequest{
		PatientID:     testPatientID,
		Name:          "Paracetamol 500mg",
		PaymentOrigin: repository.PaymentFacility,
	})
	require.NoError(t, err)

	require.NotNil(t, rx.StockItemID)
	assert.Equal(t, "item-1", *rx.StockItemID)

	mockDB.ExpectationsWereMet(t)
}

func TestCreatePrescriptionAutoProvisionsPatientItem(t *testing.T) {
	svc, mockDB := newTestPrescriptionService(t)

	expectPatientLookup(mockDB, testPatientID)

	mockDB.ExpectQuery("SELECT * FROM stock_items").
		WithArgs("Insulin Lantus", repository.OwnershipPatient, testPatientID).
		WillReturnError(sql.ErrNoRows)

	// A patient-funded medication with no match gets a zero-stock
	// patient-owned item provisioned
	mockDB.ExpectQuery("INSERT INTO stock_items").
		WithArgs(testutil.AnyUUID{}, "Insulin Lantus", repository.KindMedication, "unit",
			nil, nil, 0, 0, nil, repository.OwnershipPatient, testPatientID,
			sqlmock.AnyArg(), true).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now(), time.Now()))

	expectPrescriptionInsert(mockDB)

	rx, err := svc.Create(context.Background(), &CreatePrescriptionRequest{
		PatientID:     testPatientID,
		Name:          "Insulin Lantus",
		PaymentOrigin: repository.PaymentPatient,
	})
	require.NoError(t, err)
	require.NotNil(t, rx.StockItemID)

	mockDB.ExpectationsWereMet(t)
}

func TestCreatePrescriptionFacilityLeftUnlinked(t *testing.T) {
	svc, mockDB := newTestPrescriptionService(t)

	expectPatientLookup(mockDB, testPatientID)

	mockDB.ExpectQuery("SELECT * FROM stock_items").
		WithArgs("Omeprazol 20mg", repository.OwnershipFacility, nil).
		WillReturnError(sql.ErrNoRows)

	// No auto-provisioning for facility-funded: left unlinked for the audit
	expectPrescriptionInsert(mockDB)

	rx, err := svc.Create(context.Background(), &CreatePrescriptionRequest{
		PatientID:     testPatientID,
		Name:          "Omeprazol 20mg",
		PaymentOrigin: repository.PaymentFacility,
	})
	require.NoError(t, err)
	assert.Nil(t, rx.StockItemID)

	mockDB.ExpectationsWereMet(t)
}

func TestCreatePrescriptionInsuranceSkipsLinking(t *testing.T) {
	svc, mockDB := newTestPrescriptionService(t)

	expectPatientLookup(mockDB, testPatientID)
	expectPrescriptionInsert(mockDB)

	rx, err := svc.Create(context.Background(), &CreatePrescriptionRequest{
		PatientID:     testPatientID,
		Name:          "Eliquis 5mg",
		PaymentOrigin: repository.PaymentInsurance,
	})
	require.NoError(t, err)
	assert.Nil(t, rx.StockItemID)

	mockDB.ExpectationsWereMet(t)
}

func TestCreatePrescriptionRejectsInconsistentLink(t *testing.T) {
	svc, mockDB := newTestPrescriptionService(t)

	itemID := "item-1"

	expectPatientLookup(mockDB, testPatientID)

	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(facilityItemRow(itemID, 60, 10))

	_, err := svc.Create(context.Background(), &CreatePrescriptionRequest{
		PatientID:     testPatientID,
		Name:          "Paracetamol 500mg",
		PaymentOrigin: repository.PaymentPatient,
		StockItemID:   &itemID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOwnershipMismatch))

	mockDB.ExpectationsWereMet(t)
}
