package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 5 * time.Second
	closeAckWindow      = 2 * time.Second
)

// WSConn adapts a gorilla WebSocket connection to Conn. gorilla allows one
// concurrent writer, so data frames, pings and the close frame share mu.
type WSConn struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewWSConn wraps conn. A non-positive writeTimeout uses the default.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) *WSConn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WSConn{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (c *WSConn) ID() string { return c.id }

// Send writes payload as a single text frame.
func (c *WSConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Ping writes a ping control frame.
func (c *WSConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close sends a normal-closure frame and closes the socket. Safe to call
// more than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeAckWindow),
		)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
