package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	libdb "snackbox/backend/libs/db"
	"snackbox/backend/services/vending-service/internal/models"
)

// PaymentRepository persists payments towards user balances.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository returns repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment inserts a payment.
func (r *PaymentRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	const query = `
		INSERT INTO payments (id, user_id, amount, method, reference, notes, timestamp, recorded_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`
	var recordedBy any
	if p.RecordedBy != nil {
		recordedBy = *p.RecordedBy
	}
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.Amount,
		string(p.Method),
		p.Reference,
		p.Notes,
		p.Timestamp,
		recordedBy,
	)
	if libdb.IsForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ListPaymentsByUser returns the last N payments of user, most recent first.
func (r *PaymentRepository) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const query = `
		SELECT id, user_id, amount, method, COALESCE(reference, ''), COALESCE(notes, ''), timestamp, recorded_by
		FROM payments
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var (
			p          models.Payment
			method     string
			recordedBy uuid.NullUUID
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &method, &p.Reference, &p.Notes, &p.Timestamp, &recordedBy); err != nil {
			return nil, err
		}
		p.Method = models.PaymentMethod(method)
		if recordedBy.Valid {
			id := recordedBy.UUID
			p.RecordedBy = &id
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// TotalPaid sums all payments of user.
func (r *PaymentRepository) TotalPaid(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
