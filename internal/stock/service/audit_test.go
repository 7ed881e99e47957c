package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditAllBucketsEveryPrescription(t *testing.T) {
	svc, mockDB := newTestPrescriptionService(t)

	goneID := "item-gone"
	emptyID := "item-empty"
	facilityID := "item-facility"
	lowID := "item-low"

	rows := testutil.MockRows(prescriptionColumns()...)
	addRx := func(id, paymentOrigin string, stockItemID *string) {
		rows.AddRow(id, testPatientID, "Paracetamol 500mg", nil, paymentOrigin,
			stockItemID, true, time.Now(), time.Now())
	}
	addRx("rx-1", repository.PaymentInsurance, nil)
	addRx("rx-2", repository.PaymentFacility, nil)
	addRx("rx-3", repository.PaymentFacility, &goneID)
	addRx("rx-4", repository.PaymentFacility, &emptyID)
	addRx("rx-5", repository.PaymentPatient, &facilityID)
	addRx("rx-6", repository.PaymentFacility, &lowID)

	mockDB.ExpectQuery("SELECT * FROM prescriptions ORDER BY").
		WillReturnRows(rows)

	patientMiss := func() {
		mockDB.ExpectQuery("SELECT * FROM patient_cache WHERE id = $1").
			WithArgs(testPatientID).
			WillReturnError(sql.ErrNoRows)
	}
	expectItem := func(id string, result *sqlmock.Rows) {
		mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1").
			WithArgs(id).
			WillReturnRows(result)
	}

	// rx-1: insurance, no stock lookup
	expectPatientLookup(mockDB, testPatientID)

	// rx-2: facility-funded but never linked
	patientMiss()

	// rx-3: linked item was deleted
	patientMiss()
	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1").
		WithArgs(goneID).
		WillReturnError(sql.ErrNoRows)

	// rx-4: linked, stock exhausted
	patientMiss()
	expectItem(emptyID, facilityItemRow(emptyID, 0, 10))

	// rx-5: patient-funded prescription on a facility-owned item
	patientMiss()
	expectItem(facilityID, facilityItemRow(facilityID, 60, 10))

	// rx-6: linked, stock at the minimum
	patientMiss()
	expectItem(lowID, facilityItemRow(lowID, 5, 10))

	report, err := svc.AuditAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, report.Total)
	require.Len(t, report.Correct, 1)
	require.Len(t, report.Unlinked, 1)
	require.Len(t, report.NoStock, 1)
	require.Len(t, report.LowStock, 1)
	require.Len(t, report.Inconsistent, 2)

	assert.Equal(t, "rx-1", report.Correct[0].PrescriptionID)
	require.NotNil(t, report.Correct[0].PatientName)
	assert.Equal(t, "Carmen Ruiz", *report.Correct[0].PatientName)

	assert.Equal(t, "rx-2", report.Unlinked[0].PrescriptionID)
	assert.Contains(t, report.Unlinked[0].Suggestion, "link the prescription")

	assert.Equal(t, "rx-3", report.Inconsistent[0].PrescriptionID)
	assert.Contains(t, report.Inconsistent[0].Suggestion, "no longer exists")

	assert.Equal(t, "rx-4", report.NoStock[0].PrescriptionID)
	require.NotNil(t, report.NoStock[0].CurrentStock)
	assert.Equal(t, 0, *report.NoStock[0].CurrentStock)

	assert.Equal(t, "rx-5", report.Inconsistent[1].PrescriptionID)
	assert.Contains(t, report.Inconsistent[1].Suggestion, "facility-owned stock item")

	assert.Equal(t, "rx-6", report.LowStock[0].PrescriptionID)

	mockDB.ExpectationsWereMet(t)
}

func TestAuditAllEmpty(t *testing.T) {
	svc, mockDB := newTestPrescriptionService(t)

	mockDB.ExpectQuery("SELECT * FROM prescriptions ORDER BY").
		WillReturnRows(testutil.MockRows(prescriptionColumns()...))

	report, err := svc.AuditAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Correct)
	assert.Empty(t, report.Inconsistent)

	mockDB.ExpectationsWereMet(t)
}
