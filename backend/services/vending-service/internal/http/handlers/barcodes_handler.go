package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
	"snackbox/backend/services/vending-service/internal/service"
)

// BarcodesHandler serves barcode registration.
type BarcodesHandler struct {
	svc    *service.BarcodeService
	logger *zap.Logger
}

// NewBarcodesHandler builds handler set.
func NewBarcodesHandler(svc *service.BarcodeService, logger *zap.Logger) *BarcodesHandler {
	return &BarcodesHandler{svc: svc, logger: logger}
}

// HandleCreate handles POST /barcodes.
func (h *BarcodesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID           `json:"user_id"`
		Code   string              `json:"code"`
		Type   models.BarcodeType  `json:"type"`
		Amount decimal.NullDecimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		barcode *models.Barcode
		err     error
	)
	switch req.Type {
	case models.BarcodeTypePayment:
		if !req.Amount.Valid {
			writeError(w, http.StatusBadRequest, "amount is required for payment barcodes")
			return
		}
		barcode, err = h.svc.CreatePaymentBarcode(r.Context(), req.UserID, req.Code, req.Amount.Decimal)
	case models.BarcodeTypeAdmin:
		if req.Amount.Valid {
			writeError(w, http.StatusBadRequest, "admin barcodes carry no amount")
			return
		}
		barcode, err = h.svc.CreateAdminBarcode(r.Context(), req.UserID, req.Code)
	default:
		writeError(w, http.StatusBadRequest, "type must be payment or admin")
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "create barcode")
		return
	}
	writeJSON(w, http.StatusCreated, barcode)
}

// HandleList handles GET /barcodes?user_id=.
func (h *BarcodesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	barcodes, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "list barcodes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"barcodes": barcodes,
	})
}

// HandleDelete handles DELETE /barcodes?id=.
func (h *BarcodesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := queryUUID(w, r, "id")
	if !ok {
		return
	}
	deleted, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "delete barcode")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "barcode not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
