package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StockItemFixture represents test stock item data
type StockItemFixture struct {
	ID           string
	Name         string
	Kind         string
	Ownership    string
	PatientID    *string
	UnitName     string
	CurrentStock int
	MinStock     int
	MaxStock     *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LotFixture represents test stock lot data
type LotFixture struct {
	ID              string
	StockItemID     string
	LotNumber       string
	InitialQuantity int
	CurrentQuantity int
	ExpirationDate  time.Time
	PurchasePrice   string
	State           string
	CreatedAt       time.Time
}

// PrescriptionFixture represents test prescription data
type PrescriptionFixture struct {
	ID            string
	PatientID     string
	MedicationID  string
	Name          string
	PaymentOrigin string
	StockItemID   *string
	Active        bool
	CreatedAt     time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// StockItem creates a stock item fixture with defaults
func (f *FixtureFactory) StockItem(opts ...func(*StockItemFixture)) StockItemFixture {
	seq := f.nextSeq()

	item := StockItemFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Paracetamol %d mg", 500+seq),
		Kind:         "medication",
		Ownership:    "facility",
		UnitName:     "tablet",
		CurrentStock: 0,
		MinStock:     10,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithOwnership sets the item ownership and optional patient
func WithOwnership(ownership string, patientID *string) func(*StockItemFixture) {
	return func(i *StockItemFixture) {
		i.Ownership = ownership
		i.PatientID = patientID
	}
}

// WithStock sets the cached stock level
func WithStock(current, min int) func(*StockItemFixture) {
	return func(i *StockItemFixture) {
		i.CurrentStock = current
		i.MinStock = min
	}
}

// Lot creates a lot fixture with defaults, belonging to the given item
func (f *FixtureFactory) Lot(stockItemID string, opts ...func(*LotFixture)) LotFixture {
	seq := f.nextSeq()

	lot := LotFixture{
		ID:              uuid.New().String(),
		StockItemID:     stockItemID,
		LotNumber:       fmt.Sprintf("LOT-%04d", seq),
		InitialQuantity: 30,
		CurrentQuantity: 30,
		ExpirationDate:  time.Now().AddDate(1, 0, 0),
		PurchasePrice:   "4.50",
		State:           "active",
		CreatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(&lot)
	}

	return lot
}

// WithQuantity sets the lot's initial and current quantities
func WithQuantity(initial, current int) func(*LotFixture) {
	return func(l *LotFixture) {
		l.InitialQuantity = initial
		l.CurrentQuantity = current
	}
}

// WithExpiration sets the lot's expiration date
func WithExpiration(date time.Time) func(*LotFixture) {
	return func(l *LotFixture) {
		l.ExpirationDate = date
	}
}

// Prescription creates a prescription fixture with defaults
func (f *FixtureFactory) Prescription(patientID string, opts ...func(*PrescriptionFixture)) PrescriptionFixture {
	seq := f.nextSeq()

	rx := PrescriptionFixture{
		ID:            uuid.New().String(),
		PatientID:     patientID,
		MedicationID:  uuid.New().String(),
		Name:          fmt.Sprintf("Medication %d", seq),
		PaymentOrigin: "facility",
		Active:        true,
		CreatedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(&rx)
	}

	return rx
}

// WithPaymentOrigin sets the prescription's payment origin
func WithPaymentOrigin(origin string) func(*PrescriptionFixture) {
	return func(r *PrescriptionFixture) {
		r.PaymentOrigin = origin
	}
}

// LinkedTo links the prescription to a stock item
func LinkedTo(stockItemID string) func(*PrescriptionFixture) {
	return func(r *PrescriptionFixture) {
		r.StockItemID = &stockItemID
	}
}
