package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
	"snackbox/backend/services/vending-service/internal/repository"
	"snackbox/backend/services/vending-service/internal/service"
)

type env struct {
	store    *repository.MemoryStore
	coord    *service.Coordinator
	users    *UsersHandler
	barcodes *BarcodesHandler
	payments *PaymentsHandler
	sessions *SessionsHandler
	scan     http.HandlerFunc
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	coord, err := service.NewCoordinator(store, store, store, time.Hour, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Shutdown(context.Background()) })

	return &env{
		store:    store,
		coord:    coord,
		users:    NewUsersHandler(service.NewUserService(store, logger), logger),
		barcodes: NewBarcodesHandler(service.NewBarcodeService(store, store, logger), logger),
		payments: NewPaymentsHandler(service.NewPaymentService(store, store, store, logger), logger),
		sessions: NewSessionsHandler(coord, nil, logger),
		scan:     NewScanHandler(coord, logger),
	}
}

func do(t *testing.T, h http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (e *env) createUser(t *testing.T, name string, admin bool) models.User {
	t.Helper()
	rec := do(t, e.users.HandleCreate, http.MethodPost, "/users", map[string]interface{}{
		"name": name, "email": name + "@example.com", "is_admin": admin,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.User](t, rec)
}

func (e *env) createBarcode(t *testing.T, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, e.barcodes.HandleCreate, http.MethodPost, "/barcodes", body)
}

func TestScanFlow(t *testing.T) {
	e := newEnv(t)
	ada := e.createUser(t, "ada", false)
	root := e.createUser(t, "root", true)

	rec := e.createBarcode(t, map[string]interface{}{"user_id": ada.ID, "code": "P-1", "type": "payment", "amount": "2.50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.createBarcode(t, map[string]interface{}{"user_id": root.ID, "code": "A-1", "type": "admin"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, e.scan, http.MethodPost, "/scans", map[string]string{"code": "P-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[scanResponse](t, rec)
	assert.False(t, first.AdminMode)
	assert.Equal(t, "ada", first.UserName)
	assert.True(t, first.Session.TotalAmount.Equal(decimal.RequireFromString("2.5")))
	assert.InDelta(t, time.Hour.Seconds(), first.RemainingSeconds, 5)

	rec = do(t, e.scan, http.MethodPost, "/scans", map[string]string{"code": "P-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[scanResponse](t, rec).Session.TotalAmount.Equal(decimal.NewFromInt(5)))

	rec = do(t, e.sessions.HandleActive, http.MethodGet, "/sessions/active?user_id="+ada.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.Session.ID, decode[models.Session](t, rec).ID)

	rec = do(t, e.sessions.HandleRemaining, http.MethodGet, "/sessions/remaining?session_id="+first.Session.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e.scan, http.MethodPost, "/scans", map[string]string{"code": "A-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	adminScan := decode[scanResponse](t, rec)
	assert.True(t, adminScan.AdminMode)
	assert.Equal(t, "admin", adminScan.BarcodeType)

	rec = do(t, e.sessions.HandleActive, http.MethodGet, "/sessions/active?user_id="+ada.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e.sessions.HandleRemaining, http.MethodGet, "/sessions/remaining?session_id="+first.Session.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e.sessions.HandleEnd, http.MethodPost, "/sessions/end?session_id="+adminScan.Session.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"ended": true}, decode[map[string]bool](t, rec))

	rec = do(t, e.sessions.HandleEnd, http.MethodPost, "/sessions/end?session_id="+adminScan.Session.ID.String(), nil)
	assert.Equal(t, map[string]bool{"ended": false}, decode[map[string]bool](t, rec))

	rec = do(t, e.sessions.HandleRecent, http.MethodGet, "/sessions/recent?user_id="+ada.ID.String()+"&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recent := decode[map[string][]models.Session](t, rec)
	require.Len(t, recent["sessions"], 1)
	assert.Len(t, recent["sessions"][0].Scans, 2)
}

func TestScanErrors(t *testing.T) {
	e := newEnv(t)

	rec := do(t, e.scan, http.MethodPost, "/scans", map[string]string{"code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "barcode not found", decode[map[string]string](t, rec)["error"])

	rec = do(t, e.scan, http.MethodPost, "/scans", map[string]string{"code": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e.scan, http.MethodPost, "/scans", map[string]string{"barcode": "P-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestSessionQueryValidation(t *testing.T) {
	e := newEnv(t)

	rec := do(t, e.sessions.HandleActive, http.MethodGet, "/sessions/active", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e.sessions.HandleEnd, http.MethodPost, "/sessions/end?session_id=42", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e.sessions.HandleRecent, http.MethodGet, "/sessions/recent?user_id="+uuid.NewString()+"&limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e.sessions.HandleLive, http.MethodGet, "/sessions/live", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestBarcodeAndUserErrors(t *testing.T) {
	e := newEnv(t)
	ada := e.createUser(t, "ada", false)

	rec := do(t, e.users.HandleCreate, http.MethodPost, "/users", map[string]interface{}{"name": "Ada", "email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.createBarcode(t, map[string]interface{}{"user_id": ada.ID, "code": "A-1", "type": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user is not an admin", decode[map[string]string](t, rec)["error"])

	rec = e.createBarcode(t, map[string]interface{}{"user_id": ada.ID, "code": "P-1", "type": "payment"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.createBarcode(t, map[string]interface{}{"user_id": ada.ID, "code": "P-1", "type": "coupon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.createBarcode(t, map[string]interface{}{"user_id": uuid.New(), "code": "P-1", "type": "payment", "amount": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.createBarcode(t, map[string]interface{}{"user_id": ada.ID, "code": "P-1", "type": "payment", "amount": 1.2})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Barcode](t, rec)

	rec = do(t, e.barcodes.HandleList, http.MethodGet, "/barcodes?user_id="+ada.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]models.Barcode](t, rec)["barcodes"], 1)

	rec = do(t, e.barcodes.HandleDelete, http.MethodDelete, "/barcodes?id="+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, e.barcodes.HandleDelete, http.MethodDelete, "/barcodes?id="+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e.users.HandleList, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]models.User](t, rec)["users"], 1)
}

func TestPaymentsAndBalance(t *testing.T) {
	e := newEnv(t)
	ada := e.createUser(t, "ada", false)
	root := e.createUser(t, "root", true)

	rec := do(t, e.payments.HandleRecord, http.MethodPost, "/payments", map[string]interface{}{
		"user_id": ada.ID, "amount": "20", "method": "cash", "recorded_by": root.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, e.payments.HandleRecord, http.MethodPost, "/payments", map[string]interface{}{
		"user_id": ada.ID, "amount": "0", "method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.createBarcode(t, map[string]interface{}{"user_id": ada.ID, "code": "P-1", "type": "payment", "amount": "3.75"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, http.StatusOK, do(t, e.scan, http.MethodPost, "/scans", map[string]string{"code": "P-1"}).Code)

	rec = do(t, e.payments.HandleBalance, http.MethodGet, "/payments/balance?user_id="+ada.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[service.Balance](t, rec)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("16.25")), balance.Balance.String())

	rec = do(t, e.payments.HandleList, http.MethodGet, "/payments?user_id="+ada.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]models.Payment](t, rec)["payments"], 1)
}

func TestHealthHandler(t *testing.T) {
	rec := do(t, NewHealthHandler(nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, NewHealthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["postgres"])
}

func TestCauseMessage(t *testing.T) {
	assert.Equal(t, "barcode code is blank", causeMessage(errors.Join(service.ErrValidation, models.ErrBlankCode)))
	assert.Equal(t, "session not found", causeMessage(errors.Join(service.ErrNotFound, repository.ErrSessionNotFound)))
}
