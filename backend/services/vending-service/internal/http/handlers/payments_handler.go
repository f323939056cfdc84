package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
	"snackbox/backend/services/vending-service/internal/service"
)

// PaymentsHandler serves payments and balances.
type PaymentsHandler struct {
	svc    *service.PaymentService
	logger *zap.Logger
}

// NewPaymentsHandler builds handler set.
func NewPaymentsHandler(svc *service.PaymentService, logger *zap.Logger) *PaymentsHandler {
	return &PaymentsHandler{svc: svc, logger: logger}
}

// HandleRecord handles POST /payments.
func (h *PaymentsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     uuid.UUID            `json:"user_id"`
		Amount     decimal.Decimal      `json:"amount"`
		Method     models.PaymentMethod `json:"method"`
		Reference  string               `json:"reference"`
		Notes      string               `json:"notes"`
		RecordedBy *uuid.UUID           `json:"recorded_by"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := h.svc.Record(r.Context(), service.PaymentInput{
		UserID:     req.UserID,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		Notes:      req.Notes,
		RecordedBy: req.RecordedBy,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "record payment")
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// HandleList handles GET /payments?user_id=&limit=.
func (h *PaymentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	payments, err := h.svc.ListRecent(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list payments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
	})
}

// HandleBalance handles GET /payments/balance?user_id=.
func (h *PaymentsHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	balance, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "compute balance")
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
