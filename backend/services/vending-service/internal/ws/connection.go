package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 16
	readLimit    = 4096
	pingInterval = 30 * time.Second
)

// Connection is one subscribed display. It only receives; anything the client sends
// is read and dropped so control frames are processed.
type Connection struct {
	id           uuid.UUID
	ws           *websocket.Conn
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	onClose      func(id uuid.UUID)

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewConnection builds connection wrapper.
func NewConnection(ws *websocket.Conn, writeTimeout, ping time.Duration, logger *zap.Logger, onClose func(uuid.UUID)) *Connection {
	if ping <= 0 {
		ping = pingInterval
	}
	return &Connection{
		id:           uuid.New(),
		ws:           ws,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: ping,
		onClose:      onClose,
		send:         make(chan []byte, sendBuffer),
	}
}

// ID returns identifier.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// Start launches the write pump and blocks in the read pump until the peer goes away
// or ctx ends.
func (c *Connection) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.writePump(ctx)
	c.readPump()
}

func (c *Connection) readPump() {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("subscriber read closed", zap.String("conn_id", c.id.String()), zap.Error(err))
			return
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			_ = c.ws.Close()
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("subscriber write failed", zap.String("conn_id", c.id.String()), zap.Error(err))
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

// Send enqueues a message for writing. Slow subscribers lose messages rather than
// holding up the sender.
func (c *Connection) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("dropping outgoing message, buffer full", zap.String("conn_id", c.id.String()))
		return false
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()

	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c.id)
	}
}
