package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/logger"
	"github.com/resicare/resicare-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*database.DB, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	return database.NewFromDB(mockDB.DB, logger.New("test", "test")), mockDB
}

func lotColumns() []string {
	return []string{
		"id", "stock_item_id", "lot_number", "expiration_date",
		"initial_quantity", "current_quantity", "purchase_price", "state",
		"created_at", "updated_at",
	}
}

func TestLotConsume(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	lot := &StockLot{
		ID:              "a3e8e1f0-0000-4000-8000-000000000001",
		LotNumber:       "LOT-0001",
		CurrentQuantity: 40,
		State:           LotStateActive,
	}

	mockDB.ExpectQuery("UPDATE stock_lots SET").
		WithArgs(lot.ID, 5).
		WillReturnRows(testutil.MockRows("current_quantity", "state", "updated_at").
			AddRow(35, LotStateActive, time.Now()))

	err := repo.Consume(context.Background(), db, lot, 5)
	require.NoError(t, err)
	assert.Equal(t, 35, lot.CurrentQuantity)
	assert.Equal(t, LotStateActive, lot.State)

	mockDB.ExpectationsWereMet(t)
}

func TestLotConsumeInsufficientQuantity(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	lot := &StockLot{
		ID:              "a3e8e1f0-0000-4000-8000-000000000002",
		LotNumber:       "LOT-0002",
		CurrentQuantity: 3,
		State:           LotStateActive,
	}

	// The guard in the WHERE clause matches no row
	mockDB.ExpectQuery("UPDATE stock_lots SET").
		WithArgs(lot.ID, 5).
		WillReturnError(sql.ErrNoRows)

	err := repo.Consume(context.Background(), db, lot, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))
	assert.Equal(t, 3, lot.CurrentQuantity, "failed consume must not change the quantity")

	mockDB.ExpectationsWereMet(t)
}

func TestLotSelectForConsumption(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	soonest := time.Now().AddDate(0, 0, 10)
	mockDB.ExpectQuery("SELECT * FROM stock_lots").
		WithArgs("item-1", 5).
		WillReturnRows(testutil.MockRows(lotColumns()...).AddRow(
			"lot-a", "item-1", "LOT-A", soonest, 40, 40, "4.50",
			LotStateActive, time.Now(), time.Now(),
		))

	lot, err := repo.SelectForConsumption(context.Background(), db, "item-1", 5)
	require.NoError(t, err)
	assert.Equal(t, "lot-a", lot.ID)
	assert.Equal(t, 40, lot.CurrentQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestLotSelectForConsumptionNoneMatch(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	mockDB.ExpectQuery("SELECT * FROM stock_lots").
		WithArgs("item-1", 99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SelectForConsumption(context.Background(), db, "item-1", 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestLotSumActive(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	mockDB.ExpectQuery("SELECT SUM(current_quantity) FROM stock_lots").
		WithArgs("item-1").
		WillReturnRows(testutil.MockRows("sum").AddRow(60))

	total, err := repo.SumActive(context.Background(), db, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 60, total)

	mockDB.ExpectationsWereMet(t)
}

func TestLotSumActiveNoLots(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	// SUM over zero rows is NULL
	mockDB.ExpectQuery("SELECT SUM(current_quantity) FROM stock_lots").
		WithArgs("item-1").
		WillReturnRows(testutil.MockRows("sum").AddRow(nil))

	total, err := repo.SumActive(context.Background(), db, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	mockDB.ExpectationsWereMet(t)
}

func TestLotRefreshStates(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	mockDB.ExpectExec("UPDATE stock_lots SET").
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.RefreshStates(context.Background(), db, "item-1")
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestLotUpdateNotFound(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewLotRepository(db)

	lot := &StockLot{ID: "missing", LotNumber: "LOT-X", ExpirationDate: time.Now()}

	mockDB.ExpectExec("UPDATE stock_lots SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), db, lot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}
