package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BarcodeType distinguishes charging barcodes from admin cards.
type BarcodeType string

const (
	BarcodeTypePayment BarcodeType = "payment"
	BarcodeTypeAdmin   BarcodeType = "admin"
)

// MaxCodeLength mirrors the width of the barcodes.code column.
const MaxCodeLength = 50

var (
	ErrBlankCode          = errors.New("models: barcode code is blank")
	ErrCodeTooLong        = errors.New("models: barcode code is too long")
	ErrUnknownBarcodeType = errors.New("models: unknown barcode type")
	ErrNonPositiveAmount  = errors.New("models: payment amount must be positive")
	ErrAdminAmount        = errors.New("models: admin barcode must not carry an amount")
)

// Valid reports whether t is one of the known barcode types.
func (t BarcodeType) Valid() bool {
	return t == BarcodeTypePayment || t == BarcodeTypeAdmin
}

// Barcode is a printed code bound to one user. Payment barcodes carry the price
// charged per scan; admin barcodes carry nothing.
type Barcode struct {
	ID        uuid.UUID           `json:"id"`
	Code      string              `json:"code"`
	UserID    uuid.UUID           `json:"user_id"`
	Type      BarcodeType         `json:"type"`
	Amount    decimal.NullDecimal `json:"amount"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewPaymentBarcode builds an unsaved payment barcode.
func NewPaymentBarcode(userID uuid.UUID, code string, amount decimal.Decimal) Barcode {
	return Barcode{
		ID:     uuid.New(),
		Code:   strings.TrimSpace(code),
		UserID: userID,
		Type:   BarcodeTypePayment,
		Amount: decimal.NewNullDecimal(amount),
	}
}

// NewAdminBarcode builds an unsaved admin barcode.
func NewAdminBarcode(userID uuid.UUID, code string) Barcode {
	return Barcode{
		ID:     uuid.New(),
		Code:   strings.TrimSpace(code),
		UserID: userID,
		Type:   BarcodeTypeAdmin,
	}
}

// Validate enforces the code and amount rules for the barcode's type.
func (b Barcode) Validate() error {
	code := strings.TrimSpace(b.Code)
	if code == "" {
		return ErrBlankCode
	}
	if len(code) > MaxCodeLength {
		return ErrCodeTooLong
	}
	switch b.Type {
	case BarcodeTypePayment:
		if !b.Amount.Valid || !b.Amount.Decimal.IsPositive() {
			return ErrNonPositiveAmount
		}
	case BarcodeTypeAdmin:
		if b.Amount.Valid {
			return ErrAdminAmount
		}
	default:
		return ErrUnknownBarcodeType
	}
	return nil
}

// Charge is the amount a scan of this barcode adds to a session total.
func (b Barcode) Charge() decimal.Decimal {
	if b.Type != BarcodeTypePayment || !b.Amount.Valid {
		return decimal.Zero
	}
	return b.Amount.Decimal
}

// NewScan records a read of this barcode at the given instant.
func (b Barcode) NewScan(at time.Time) Scan {
	scan := Scan{
		ID:        uuid.New(),
		BarcodeID: b.ID,
		ScanTime:  at,
	}
	if b.Type == BarcodeTypePayment {
		scan.Amount = b.Amount
	}
	return scan
}
