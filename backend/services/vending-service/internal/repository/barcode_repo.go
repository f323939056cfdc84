package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	libdb "snackbox/backend/libs/db"
	"snackbox/backend/services/vending-service/internal/models"
)

const barcodeColumns = `id, code, user_id, type, amount, created_at, updated_at`

// BarcodeRepository persists printed barcodes.
type BarcodeRepository struct {
	db *sql.DB
}

// NewBarcodeRepository returns repository.
func NewBarcodeRepository(db *sql.DB) *BarcodeRepository {
	return &BarcodeRepository{db: db}
}

// CreateBarcode inserts a barcode.
func (r *BarcodeRepository) CreateBarcode(ctx context.Context, barcode *models.Barcode) error {
	const query = `
		INSERT INTO barcodes (id, code, user_id, type, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		barcode.ID,
		barcode.Code,
		barcode.UserID,
		string(barcode.Type),
		barcode.Amount,
	).Scan(&barcode.CreatedAt, &barcode.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case libdb.IsUniqueViolation(err, barcodesCodeKey):
		return ErrDuplicateCode
	case libdb.IsForeignKeyViolation(err):
		return ErrUserNotFound
	}
	return fmt.Errorf("insert barcode: %w", err)
}

// FindBarcode returns the barcode with id or ErrBarcodeNotFound.
func (r *BarcodeRepository) FindBarcode(ctx context.Context, id uuid.UUID) (*models.Barcode, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+barcodeColumns+` FROM barcodes WHERE id = $1`, id)
	b, err := scanBarcode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBarcodeNotFound
	}
	return b, err
}

// FindBarcodeByCode returns the barcode with code or ErrBarcodeNotFound.
func (r *BarcodeRepository) FindBarcodeByCode(ctx context.Context, code string) (*models.Barcode, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+barcodeColumns+` FROM barcodes WHERE code = $1`, code)
	b, err := scanBarcode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBarcodeNotFound
	}
	return b, err
}

// ListBarcodesByUser returns the user's barcodes, newest first.
func (r *BarcodeRepository) ListBarcodesByUser(ctx context.Context, userID uuid.UUID) ([]models.Barcode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+barcodeColumns+` FROM barcodes WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var barcodes []models.Barcode
	for rows.Next() {
		b, err := scanBarcode(rows)
		if err != nil {
			return nil, err
		}
		barcodes = append(barcodes, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return barcodes, nil
}

// DeleteBarcode removes a barcode. It reports false if none matched.
func (r *BarcodeRepository) DeleteBarcode(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM barcodes WHERE id = $1`, id)
	if libdb.IsForeignKeyViolation(err) {
		return false, ErrBarcodeInUse
	}
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanBarcode(row rowScanner) (*models.Barcode, error) {
	var (
		b       models.Barcode
		rawType string
	)
	if err := row.Scan(&b.ID, &b.Code, &b.UserID, &rawType, &b.Amount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Type = models.BarcodeType(rawType)
	return &b, nil
}
