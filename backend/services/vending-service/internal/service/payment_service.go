package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
)

// PaymentInput describes a payment to record.
type PaymentInput struct {
	UserID     uuid.UUID
	Amount     decimal.Decimal
	Method     models.PaymentMethod
	Reference  string
	Notes      string
	RecordedBy *uuid.UUID
}

// Balance is what a user paid against what their sessions cost.
type Balance struct {
	UserID  uuid.UUID       `json:"user_id"`
	Paid    decimal.Decimal `json:"paid"`
	Spent   decimal.Decimal `json:"spent"`
	Balance decimal.Decimal `json:"balance"`
}

// PaymentService records payments and computes balances.
type PaymentService struct {
	payments PaymentStore
	sessions SessionStore
	users    UserStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentService builds PaymentService.
func NewPaymentService(payments PaymentStore, sessions SessionStore, users UserStore, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		payments: payments,
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// Record stores a payment. When RecordedBy is set it must name an admin.
func (s *PaymentService) Record(ctx context.Context, input PaymentInput) (*models.Payment, error) {
	payment := &models.Payment{
		ID:         uuid.New(),
		UserID:     input.UserID,
		Amount:     input.Amount,
		Method:     input.Method,
		Reference:  strings.TrimSpace(input.Reference),
		Notes:      strings.TrimSpace(input.Notes),
		Timestamp:  s.now().UTC(),
		RecordedBy: input.RecordedBy,
	}
	if err := payment.Validate(); err != nil {
		return nil, validationError(err)
	}

	if input.RecordedBy != nil {
		admin, err := s.users.FindUser(ctx, *input.RecordedBy)
		if err != nil {
			return nil, classify("find recorder", err)
		}
		if !admin.IsAdmin {
			return nil, validationError(ErrNotAdmin)
		}
	}

	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, classify("create payment", err)
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("user_id", payment.UserID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("method", string(payment.Method)),
	)
	return payment, nil
}

// ListRecent returns the user's last payments, most recent first.
func (s *PaymentService) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	payments, err := s.payments.ListPaymentsByUser(ctx, userID, limit)
	if err != nil {
		return nil, classify("list payments", err)
	}
	return payments, nil
}

// Balance returns total paid minus the totals of all the user's sessions.
func (s *PaymentService) Balance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return nil, classify("find user", err)
	}
	paid, err := s.payments.TotalPaid(ctx, userID)
	if err != nil {
		return nil, classify("total paid", err)
	}
	spent, err := s.sessions.TotalSpent(ctx, userID)
	if err != nil {
		return nil, classify("total spent", err)
	}
	return &Balance{
		UserID:  userID,
		Paid:    paid,
		Spent:   spent,
		Balance: paid.Sub(spent),
	}, nil
}
