package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateItemValidation(t *testing.T) {
	blister := "blister"
	one := 1
	five := 5
	patientID := "0a6f3f60-0000-4000-8000-000000000001"

	tests := []struct {
		name  string
		req   *CreateItemRequest
		field string
	}{
		{
			"presentation unit without factor",
			&CreateItemRequest{
				Name: "Paracetamol 500mg", Kind: repository.KindMedication,
				BaseUnit: "tablet", Ownership: repository.OwnershipFacility,
				PresentationUnit: &blister,
			},
			"conversion_factor",
		},
		{
			"conversion factor below minimum",
			&CreateItemRequest{
				Name: "Paracetamol 500mg", Kind: repository.KindMedication,
				BaseUnit: "tablet", Ownership: repository.OwnershipFacility,
				PresentationUnit: &blister, ConversionFactor: &one,
			},
			"conversion_factor",
		},
		{
			"max stock below min stock",
			&CreateItemRequest{
				Name: "Gauze", Kind: repository.KindSupply,
				BaseUnit: "unit", Ownership: repository.OwnershipFacility,
				MinStock: 10, MaxStock: &five,
			},
			"max_stock",
		},
		{
			"patient owned without owner",
			&CreateItemRequest{
				Name: "Insulin", Kind: repository.KindMedication,
				BaseUnit: "ml", Ownership: repository.OwnershipPatient,
			},
			"owner_patient_id",
		},
		{
			"facility owned with owner",
			&CreateItemRequest{
				Name: "Gauze", Kind: repository.KindSupply,
				BaseUnit: "unit", Ownership: repository.OwnershipFacility,
				OwnerPatientID: &patientID,
			},
			"owner_patient_id",
		},
		{
			"initial stock without expiration",
			&CreateItemRequest{
				Name: "Paracetamol 500mg", Kind: repository.KindMedication,
				BaseUnit: "tablet", Ownership: repository.OwnershipFacility,
				InitialStock: 20,
			},
			"initial_expiration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mockDB := newTestService(t)

			_, err := svc.CreateItem(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Details, tt.field)

			// Rejected before any mutation
			mockDB.ExpectationsWereMet(t)
		})
	}
}

func TestUpdateItemAuditsOwnershipChange(t *testing.T) {
	svc, mockDB := newTestService(t)

	itemID := "item-1"
	patientID := "0a6f3f60-0000-4000-8000-000000000001"

	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(facilityItemRow(itemID, 60, 10))

	mockDB.ExpectExec("UPDATE stock_items SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Ownership changes are sensitive and always leave an audit entry
	mockDB.ExpectQuery("INSERT INTO stock_audit_logs").
		WithArgs(testutil.AnyUUID{}, itemID, "ownership_changed", "system",
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(facilityItemRow(itemID, 60, 10))
	mockDB.ExpectQuery("SELECT * FROM stock_lots").
		WillReturnRows(testutil.MockRows(lotColumns()...))

	_, err := svc.UpdateItem(context.Background(), itemID, &UpdateItemRequest{
		Name:           "Paracetamol 500mg",
		Kind:           repository.KindMedication,
		BaseUnit:       "tablet",
		MinStock:       10,
		Ownership:      repository.OwnershipPatient,
		OwnerPatientID: &patientID,
	})
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestIsLowStock(t *testing.T) {
	item := &repository.StockItem{CurrentStock: 8, MinStock: 10}
	assert.True(t, IsLowStock(item))

	item.CurrentStock = 13
	assert.False(t, IsLowStock(item))

	// Boundary: at the minimum is still low
	item.CurrentStock = 10
	assert.True(t, IsLowStock(item))
}
