package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
	"snackbox/backend/services/vending-service/internal/repository"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewUserService(store, zap.NewNop())

	ada, err := svc.Create(ctx, "  Ada ", "ADA@Example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "Ada", ada.Name)
	assert.Equal(t, "ada@example.com", ada.Email)
	assert.True(t, ada.IsAdmin)

	_, err = svc.Create(ctx, "Ada Two", "ada@example.com", false)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	_, err = svc.Create(ctx, "", "x@example.com", false)
	assert.ErrorIs(t, err, models.ErrBlankName)

	_, err = svc.Create(ctx, "Bob", "bob", false)
	assert.ErrorIs(t, err, models.ErrInvalidEmail)

	got, err := svc.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.Email, got.Email)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestBarcodeService(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	users := NewUserService(store, zap.NewNop())
	svc := NewBarcodeService(store, store, zap.NewNop())

	admin, err := users.Create(ctx, "Root", "root@example.com", true)
	require.NoError(t, err)
	ada, err := users.Create(ctx, "Ada", "ada@example.com", false)
	require.NoError(t, err)

	pay, err := svc.CreatePaymentBarcode(ctx, ada.ID, " P-100 ", decimal.RequireFromString("1.50"))
	require.NoError(t, err)
	assert.Equal(t, "P-100", pay.Code)

	t.Run("validation", func(t *testing.T) {
		_, err := svc.CreatePaymentBarcode(ctx, ada.ID, "P-0", decimal.Zero)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, models.ErrNonPositiveAmount)

		_, err = svc.CreateAdminBarcode(ctx, ada.ID, "A-ada")
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, ErrNotAdmin)

		_, err = svc.CreatePaymentBarcode(ctx, ada.ID, "P-100", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, repository.ErrDuplicateCode)

		_, err = svc.CreateAdminBarcode(ctx, uuid.New(), "A-ghost")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = svc.Scan(ctx, " ")
		assert.ErrorIs(t, err, models.ErrBlankCode)
	})

	card, err := svc.CreateAdminBarcode(ctx, admin.ID, "A-root")
	require.NoError(t, err)
	assert.False(t, card.Amount.Valid)

	found, err := svc.Scan(ctx, "P-100")
	require.NoError(t, err)
	assert.Equal(t, pay.ID, found.ID)

	_, err = svc.Scan(ctx, "P-404")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.ListByUser(ctx, ada.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	t.Run("scanned barcodes cannot be deleted", func(t *testing.T) {
		coord, err := NewCoordinator(store, store, store, time.Hour, zap.NewNop())
		require.NoError(t, err)
		defer coord.timers.CancelAll()

		_, err = coord.ProcessScan(ctx, *card)
		require.NoError(t, err)

		_, err = svc.Delete(ctx, card.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	deleted, err := svc.Delete(ctx, pay.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, pay.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPaymentServiceBalance(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	users := NewUserService(store, zap.NewNop())
	svc := NewPaymentService(store, store, store, zap.NewNop())

	admin, err := users.Create(ctx, "Root", "root@example.com", true)
	require.NoError(t, err)
	ada, err := users.Create(ctx, "Ada", "ada@example.com", false)
	require.NoError(t, err)

	_, err = svc.Record(ctx, PaymentInput{UserID: ada.ID, Amount: decimal.NewFromInt(10), Method: models.PaymentMethodCash, RecordedBy: &admin.ID})
	require.NoError(t, err)
	_, err = svc.Record(ctx, PaymentInput{UserID: ada.ID, Amount: decimal.RequireFromString("2.5"), Method: models.PaymentMethodPayPal, Reference: " tx-1 "})
	require.NoError(t, err)

	t.Run("rejects", func(t *testing.T) {
		_, err := svc.Record(ctx, PaymentInput{UserID: ada.ID, Amount: decimal.NewFromInt(-1), Method: models.PaymentMethodCash})
		assert.ErrorIs(t, err, models.ErrNonPositivePayment)

		_, err = svc.Record(ctx, PaymentInput{UserID: ada.ID, Amount: decimal.NewFromInt(1), Method: "iou"})
		assert.ErrorIs(t, err, models.ErrUnknownPaymentMethod)

		_, err = svc.Record(ctx, PaymentInput{UserID: admin.ID, Amount: decimal.NewFromInt(1), Method: models.PaymentMethodCash, RecordedBy: &ada.ID})
		assert.ErrorIs(t, err, ErrNotAdmin)

		_, err = svc.Record(ctx, PaymentInput{UserID: uuid.New(), Amount: decimal.NewFromInt(1), Method: models.PaymentMethodCash})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	snack := models.NewPaymentBarcode(ada.ID, "P-1", decimal.RequireFromString("4.25"))
	require.NoError(t, store.CreateBarcode(ctx, &snack))
	coord, err := NewCoordinator(store, store, store, time.Hour, zap.NewNop())
	require.NoError(t, err)
	defer coord.timers.CancelAll()
	_, err = coord.ProcessScan(ctx, snack)
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, ada.ID)
	require.NoError(t, err)
	assert.True(t, balance.Paid.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, balance.Spent.Equal(decimal.RequireFromString("4.25")))
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("8.25")))

	recent, err := svc.ListRecent(ctx, ada.ID, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "tx-1", recent[0].Reference)

	_, err = svc.Balance(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{repository.ErrSessionNotFound, ErrNotFound},
		{repository.ErrBarcodeNotFound, ErrNotFound},
		{repository.ErrSessionNotActive, ErrInvalidState},
		{repository.ErrActiveSessionExists, ErrInvalidState},
		{repository.ErrDuplicateCode, ErrValidation},
		{models.ErrScanBeforeStart, ErrValidation},
		{errors.New("boom"), ErrStorage},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			err := classify("op", tt.err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify("op", nil))
	already := errors.Join(ErrNotFound, repository.ErrUserNotFound)
	assert.Same(t, already, classify("op", already))
}
