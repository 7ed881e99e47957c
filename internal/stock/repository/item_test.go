package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resicare/resicare-backend/pkg/errors"
	"github.com/resicare/resicare-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemColumns() []string {
	return []string{
		"id", "name", "kind", "base_unit", "presentation_unit", "conversion_factor",
		"current_stock", "min_stock", "max_stock", "ownership", "owner_patient_id",
		"unit_price", "active", "created_at", "updated_at",
	}
}

func itemRow(id, name string, currentStock, minStock int) *sqlmock.Rows {
	return testutil.MockRows(itemColumns()...).AddRow(
		id, name, KindMedication, "tablet", nil, nil,
		currentStock, minStock, nil, OwnershipFacility, nil,
		"0.15", true, time.Now(), time.Now(),
	)
}

func TestItemGetByID(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewItemRepository(db)

	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1").
		WithArgs("item-1").
		WillReturnRows(itemRow("item-1", "Paracetamol 500mg", 60, 10))

	item, err := repo.GetByID(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg", item.Name)
	assert.Equal(t, 60, item.CurrentStock)

	mockDB.ExpectationsWereMet(t)
}

func TestItemGetByIDNotFound(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewItemRepository(db)

	mockDB.ExpectQuery("SELECT * FROM stock_items WHERE id = $1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestItemSetCurrentStock(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewItemRepository(db)

	mockDB.ExpectExec("UPDATE stock_items SET current_stock = $2").
		WithArgs("item-1", 55).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetCurrentStock(context.Background(), db, "item-1", 55)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestItemSetCurrentStockNotFound(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewItemRepository(db)

	mockDB.ExpectExec("UPDATE stock_items SET current_stock = $2").
		WithArgs("missing", 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetCurrentStock(context.Background(), db, "missing", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestItemFindByNameAndOwnership(t *testing.T) {
	db, mockDB := newTestDB(t)
	repo := NewItemRepository(db)

	mockDB.ExpectQuery("SELECT * FROM stock_items").
		WithArgs("Paracetamol 500mg", OwnershipFacility, nil).
		WillReturnRows(itemRow("item-1", "Paracetamol 500mg", 60, 10))

	item, err := repo.FindByNameAndOwnership(context.Background(), "Paracetamol 500mg", OwnershipFacility, nil)
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)

	mockDB.ExpectationsWereMet(t)
}
