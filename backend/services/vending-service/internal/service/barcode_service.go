package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
)

// BarcodeService manages the printed barcodes users scan at the kiosk.
type BarcodeService struct {
	barcodes BarcodeStore
	users    UserStore
	logger   *zap.Logger
}

// NewBarcodeService builds BarcodeService.
func NewBarcodeService(barcodes BarcodeStore, users UserStore, logger *zap.Logger) *BarcodeService {
	return &BarcodeService{barcodes: barcodes, users: users, logger: logger}
}

// Scan resolves a raw code to its barcode.
func (s *BarcodeService) Scan(ctx context.Context, code string) (*models.Barcode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationError(models.ErrBlankCode)
	}
	barcode, err := s.barcodes.FindBarcodeByCode(ctx, code)
	if err != nil {
		return nil, classify("find barcode", err)
	}
	return barcode, nil
}

// CreatePaymentBarcode registers a code charging amount per scan to userID.
func (s *BarcodeService) CreatePaymentBarcode(ctx context.Context, userID uuid.UUID, code string, amount decimal.Decimal) (*models.Barcode, error) {
	barcode := models.NewPaymentBarcode(userID, code, amount)
	return s.create(ctx, &barcode)
}

// CreateAdminBarcode registers an admin card. The owner must be an admin.
func (s *BarcodeService) CreateAdminBarcode(ctx context.Context, userID uuid.UUID, code string) (*models.Barcode, error) {
	barcode := models.NewAdminBarcode(userID, code)
	return s.create(ctx, &barcode)
}

func (s *BarcodeService) create(ctx context.Context, barcode *models.Barcode) (*models.Barcode, error) {
	if err := barcode.Validate(); err != nil {
		return nil, validationError(err)
	}

	owner, err := s.users.FindUser(ctx, barcode.UserID)
	if err != nil {
		return nil, classify("find user", err)
	}
	if barcode.Type == models.BarcodeTypeAdmin && !owner.IsAdmin {
		return nil, validationError(ErrNotAdmin)
	}

	if err := s.barcodes.CreateBarcode(ctx, barcode); err != nil {
		return nil, classify("create barcode", err)
	}

	s.logger.Info("barcode created",
		zap.String("barcode_id", barcode.ID.String()),
		zap.String("user_id", barcode.UserID.String()),
		zap.String("type", string(barcode.Type)),
	)
	return barcode, nil
}

// ListByUser returns the user's barcodes.
func (s *BarcodeService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Barcode, error) {
	barcodes, err := s.barcodes.ListBarcodesByUser(ctx, userID)
	if err != nil {
		return nil, classify("list barcodes", err)
	}
	return barcodes, nil
}

// Delete removes a barcode and reports whether it existed. Barcodes with recorded
// scans cannot be deleted.
func (s *BarcodeService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := s.barcodes.DeleteBarcode(ctx, id)
	if err != nil {
		return false, classify("delete barcode", err)
	}
	if deleted {
		s.logger.Info("barcode deleted", zap.String("barcode_id", id.String()))
	}
	return deleted, nil
}
