package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snackbox/backend/services/vending-service/internal/models"
)

func openSession(userID uuid.UUID) models.Session {
	return models.NewSession(userID, time.Now().UTC())
}

func closedSession(userID uuid.UUID) models.Session {
	s := openSession(userID)
	s.Close(time.Now().UTC())
	return s
}

func TestDecide(t *testing.T) {
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	alicePays := models.NewPaymentBarcode(alice, "A-PAY", decimal.RequireFromString("2.50"))
	aliceAdmin := models.NewAdminBarcode(alice, "A-ADM")

	t.Run("owner with active session extends", func(t *testing.T) {
		s := openSession(alice)
		other := openSession(bob)

		d := Decide(alicePays, &s, []models.Session{s, other})
		assert.Equal(t, Extend, d.Action)
		require.NotNil(t, d.Target)
		assert.Equal(t, s.ID, d.Target.ID)
		assert.Empty(t, d.Close)
	})

	t.Run("admin barcode extends too", func(t *testing.T) {
		s := openSession(alice)
		d := Decide(aliceAdmin, &s, nil)
		assert.Equal(t, Extend, d.Action)
	})

	t.Run("no sessions opens", func(t *testing.T) {
		d := Decide(alicePays, nil, nil)
		assert.Equal(t, Open, d.Action)
		assert.Nil(t, d.Target)
		assert.Empty(t, d.Close)
	})

	t.Run("other users sessions are closed before opening", func(t *testing.T) {
		b, c := openSession(bob), openSession(carol)
		d := Decide(alicePays, nil, []models.Session{b, closedSession(carol), c, b})
		assert.Equal(t, Open, d.Action)
		assert.Equal(t, []uuid.UUID{b.ID, c.ID}, d.Close)
	})

	t.Run("closed active argument is treated as none", func(t *testing.T) {
		s := closedSession(alice)
		d := Decide(alicePays, &s, nil)
		assert.Equal(t, Open, d.Action)
	})

	t.Run("session of another owner is closed not extended", func(t *testing.T) {
		s := openSession(bob)
		d := Decide(alicePays, &s, []models.Session{s})
		assert.Equal(t, Open, d.Action)
		assert.Equal(t, []uuid.UUID{s.ID}, d.Close)
	})
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, NoActiveSession, StateOf(nil))
	s := openSession(uuid.New())
	assert.Equal(t, ActiveSession, StateOf(&s))
	s.Close(time.Now().UTC())
	assert.Equal(t, NoActiveSession, StateOf(&s))
	assert.Equal(t, "active_session", ActiveSession.String())
	assert.Equal(t, "open", Open.String())
}
