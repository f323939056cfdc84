package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/service"
)

// UsersHandler serves user management.
type UsersHandler struct {
	svc    *service.UserService
	logger *zap.Logger
}

// NewUsersHandler builds handler set.
func NewUsersHandler(svc *service.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{svc: svc, logger: logger}
}

// HandleCreate handles POST /users.
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		IsAdmin bool   `json:"is_admin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.Create(r.Context(), req.Name, req.Email, req.IsAdmin)
	if err != nil {
		writeServiceError(w, h.logger, err, "create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleList handles GET /users.
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
	})
}
