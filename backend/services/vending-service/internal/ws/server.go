package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP connections to session event streams.
type Server struct {
	ctx          context.Context
	hub          *Hub
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server. Connections end when ctx is done. An empty origins list
// accepts any origin.
func NewServer(ctx context.Context, hub *Hub, origins []string, writeTimeout, ping time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		ctx:          ctx,
		hub:          hub,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: ping,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(origins),
		},
	}
}

// HandleWS is HTTP handler for /ws/sessions endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connection := NewConnection(conn, s.writeTimeout, s.pingInterval, s.logger, func(id uuid.UUID) {
		s.hub.Remove(id)
		s.logger.Info("subscriber disconnected", zap.String("conn_id", id.String()))
	})
	s.hub.Add(connection)

	go connection.Start(s.ctx)
	s.logger.Info("subscriber connected",
		zap.String("conn_id", connection.ID().String()),
		zap.String("remote", r.RemoteAddr),
	)
}

func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
