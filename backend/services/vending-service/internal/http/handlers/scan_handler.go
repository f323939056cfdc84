package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
	"snackbox/backend/services/vending-service/internal/service"
)

type scanResponse struct {
	Session          *models.Session `json:"session"`
	BarcodeType      string          `json:"barcode_type"`
	UserName         string          `json:"user_name"`
	AdminMode        bool            `json:"admin_mode"`
	RemainingSeconds float64         `json:"remaining_seconds"`
}

// NewScanHandler returns POST /scans handler.
func NewScanHandler(coord *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Code string `json:"code"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Code = strings.TrimSpace(req.Code)
		if req.Code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}

		res, err := coord.ScanCode(r.Context(), req.Code)
		if err != nil {
			writeServiceError(w, logger, err, "process scan")
			return
		}

		left, _ := coord.RemainingTime(res.Session.ID)
		writeJSON(w, http.StatusOK, scanResponse{
			Session:          res.Session,
			BarcodeType:      string(res.Barcode.Type),
			UserName:         res.User.Name,
			AdminMode:        res.AdminMode(),
			RemainingSeconds: left.Seconds(),
		})
	}
}
