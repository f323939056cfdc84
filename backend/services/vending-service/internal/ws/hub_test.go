package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snackbox/backend/services/vending-service/internal/models"
)

func startServer(t *testing.T, origins []string) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	srv := NewServer(ctx, hub, origins, time.Second, time.Second, zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestHubBroadcastsSessionEvents(t *testing.T) {
	hub, url := startServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	session := models.NewSession(uuid.New(), time.Now().UTC())
	require.NoError(t, hub.OnSessionEvent(context.Background(), models.SessionEvent{
		Type:    models.SessionOpened,
		Session: session,
		At:      session.StartTime,
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.SessionEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.SessionOpened, got.Type)
	assert.Equal(t, session.ID, got.Session.ID)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.OnSessionEvent(context.Background(), models.SessionEvent{Type: models.SessionClosed}))
	assert.Zero(t, hub.Broadcast([]byte("x")))
}

func TestServerRejectsForeignOrigin(t *testing.T) {
	hub, url := startServer(t, []string{"http://kiosk.local"})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.Len())

	header = http.Header{"Origin": []string{"http://KIOSK.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
