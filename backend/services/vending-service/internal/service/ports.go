package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"snackbox/backend/services/vending-service/internal/models"
)

// SessionStore persists sessions and their scans. Lookups return repository sentinel
// errors when nothing matches.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) (*models.Session, error)
	AppendScan(ctx context.Context, sessionID uuid.UUID, scan models.Scan) (*models.Session, error)
	CloseSession(ctx context.Context, sessionID uuid.UUID, endTime time.Time) (bool, error)
	FindActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	FindSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error)
	ListActiveSessions(ctx context.Context) ([]models.Session, error)
	TotalSpent(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// BarcodeStore persists barcodes.
type BarcodeStore interface {
	CreateBarcode(ctx context.Context, barcode *models.Barcode) error
	FindBarcode(ctx context.Context, id uuid.UUID) (*models.Barcode, error)
	FindBarcodeByCode(ctx context.Context, code string) (*models.Barcode, error)
	ListBarcodesByUser(ctx context.Context, userID uuid.UUID) ([]models.Barcode, error)
	DeleteBarcode(ctx context.Context, id uuid.UUID) (bool, error)
}

// PaymentStore persists payments.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error)
	TotalPaid(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Listener observes session lifecycle events. It is called while the session is still
// locked, so events of one session arrive in mutation order; it must not call back into
// the Coordinator. Errors are logged and otherwise ignored.
type Listener interface {
	OnSessionEvent(ctx context.Context, event models.SessionEvent) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event models.SessionEvent) error

// OnSessionEvent calls f.
func (f ListenerFunc) OnSessionEvent(ctx context.Context, event models.SessionEvent) error {
	return f(ctx, event)
}
