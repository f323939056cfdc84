package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a user settled their tab.
type PaymentMethod string

const (
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOther        PaymentMethod = "other"
)

var (
	ErrUnknownPaymentMethod = errors.New("models: unknown payment method")
	ErrNonPositivePayment   = errors.New("models: payment amount must be positive")
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPayPal, PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is money a user paid towards their balance. RecordedBy is the admin who
// entered it, or nil when the user recorded it themselves.
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RecordedBy *uuid.UUID      `json:"recorded_by,omitempty"`
}

// Validate checks amount and method.
func (p Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return ErrNonPositivePayment
	}
	if !p.Method.Valid() {
		return ErrUnknownPaymentMethod
	}
	return nil
}
