package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blisterItemRow(id string, currentStock, minStock int, maxStock interface{}) *sqlmock.Rows {
	return testutil.MockRows(itemColumns()...).AddRow(
		id, "Paracetamol 500mg", repository.KindMedication, "tablet", "blister", 20,
		currentStock, minStock, maxStock, repository.OwnershipFacility, nil,
		"0.15", true, time.Now(), time.Now(),
	)
}

func TestReceiveLotConvertsPresentationUnits(t *testing.T) {
	svc, mockDB := newTestService(t)

	itemID := "item-1"

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1 FOR UPDATE").
		WithArgs(itemID).
		WillReturnRows(blisterItemRow(itemID, 0, 10, nil))

	expectRecompute(mockDB, itemID, 0)

	// 2 blisters at factor 20 persist as 40 tablets
	mockDB.ExpectQuery("INSERT INTO stock_lots").
		WithArgs(testutil.AnyUUID{}, itemID, "LOT-A", testutil.AnyTime{}, 40, 40,
			sqlmock.AnyArg(), repository.LotStateActive).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now(), time.Now()))

	expectRecompute(mockDB, itemID, 40)

	mockDB.ExpectQuery("INSERT INTO stock_movements").
		WithArgs(testutil.AnyUUID{}, itemID, testutil.AnyUUID{}, repository.MovementEntry,
			40, 0, 40, "lot received", nil, "system", sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	mockDB.ExpectCommit()

	mockDB.ExpectQuery("INSERT INTO stock_audit_logs").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	price := decimal.RequireFromString("0.10")
	lot, err := svc.ReceiveLot(context.Background(), &ReceiveLotRequest{
		StockItemID:    itemID,
		LotNumber:      "LOT-A",
		ExpirationDate: time.Now().AddDate(0, 0, 10),
		Quantity:       2,
		Unit:           UnitPresentation,
		PurchasePrice:  &price,
	})
	require.NoError(t, err)

	assert.Equal(t, 40, lot.InitialQuantity)
	assert.Equal(t, 40, lot.CurrentQuantity)
	assert.Equal(t, repository.LotStateActive, lot.State)

	mockDB.ExpectationsWereMet(t)
}

func TestReceiveLotRejectsPastExpiration(t *testing.T) {
	svc, mockDB := newTestService(t)

	_, err := svc.ReceiveLot(context.Background(), &ReceiveLotRequest{
		StockItemID:    "item-1",
		LotNumber:      "LOT-A",
		ExpirationDate: time.Now().AddDate(0, 0, -1),
		Quantity:       10,
		Unit:           UnitBase,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "expiration_date")

	// Rejected before any mutation
	mockDB.ExpectationsWereMet(t)
}

func TestReceiveLotRejectsPresentationWithoutFactor(t *testing.T) {
	svc, mockDB := newTestService(t)

	itemID := "item-1"

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1 FOR UPDATE").
		WithArgs(itemID).
		WillReturnRows(facilityItemRow(itemID, 0, 10))
	mockDB.ExpectRollback()

	_, err := svc.ReceiveLot(context.Background(), &ReceiveLotRequest{
		StockItemID:    itemID,
		LotNumber:      "LOT-A",
		ExpirationDate: time.Now().AddDate(0, 0, 10),
		Quantity:       2,
		Unit:           UnitPresentation,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}

func TestReceiveLotFlagsMaxStockExceeded(t *testing.T) {
	svc, mockDB := newTestService(t)

	itemID := "item-1"

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1 FOR UPDATE").
		WithArgs(itemID).
		WillReturnRows(blisterItemRow(itemID, 0, 10, 30))

	expectRecompute(mockDB, itemID, 0)

	mockDB.ExpectQuery("INSERT INTO stock_lots").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now(), time.Now()))

	expectRecompute(mockDB, itemID, 40)

	mockDB.ExpectQuery("INSERT INTO stock_movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	// The receipt commits: exceeding max stock is flagged, not rejected
	mockDB.ExpectCommit()

	mockDB.ExpectQuery("INSERT INTO stock_audit_logs").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO stock_audit_logs").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	lot, err := svc.ReceiveLot(context.Background(), &ReceiveLotRequest{
		StockItemID:    itemID,
		LotNumber:      "LOT-A",
		ExpirationDate: time.Now().AddDate(0, 0, 60),
		Quantity:       40,
		Unit:           UnitBase,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, lot.CurrentQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestUpdateLotRejectsQuantityAboveInitial(t *testing.T) {
	svc, mockDB := newTestService(t)

	itemID := "item-1"
	expiry := time.Now().AddDate(0, 0, 30)

	lotRow := func() *sqlmock.Rows {
		return testutil.MockRows(lotColumns()...).AddRow(
			"lot-a", itemID, "LOT-A", expiry, 40, 35, "0.10",
			repository.LotStateActive, time.Now(), time.Now(),
		)
	}

	mockDB.ExpectQuery("SELECT * FROM stock_lots WHERE id = $1").
		WithArgs("lot-a").
		WillReturnRows(lotRow())

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1 FOR UPDATE").
		WithArgs(itemID).
		WillReturnRows(facilityItemRow(itemID, 35, 10))
	mockDB.ExpectQuery("SELECT * FROM stock_lots WHERE id = $1 FOR UPDATE").
		WithArgs("lot-a").
		WillReturnRows(lotRow())

	expectRecompute(mockDB, itemID, 35)
	mockDB.ExpectRollback()

	over := 50
	_, err := svc.UpdateLot(context.Background(), "lot-a", &UpdateLotRequest{
		CurrentQuantity: &over,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "current_quantity")

	mockDB.ExpectationsWereMet(t)
}
