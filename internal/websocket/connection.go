package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteBuffer  = 64
	defaultWriteTimeout = 5 * time.Second
)

// Connection is one client session: the socket plus the client identity
// derived from the transport origin. All outbound frames funnel through
// a single writer goroutine so the owning read loop, history replay, and
// concurrent fan-out goroutines never interleave writes on the socket.
type Connection struct {
	id       uuid.UUID
	identity string

	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	writeTimeout time.Duration
}

// NewConnection wraps an upgraded socket. identity is the self-asserted
// transport-level origin (remote host), not an authenticated principal.
func NewConnection(conn *websocket.Conn, identity string, buffer int, writeTimeout time.Duration) *Connection {
	if buffer <= 0 {
		buffer = defaultWriteBuffer
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.New(),
		identity:     identity,
		conn:         conn,
		writeCh:      make(chan []byte, buffer),
		ctx:          ctx,
		cancel:       cancel,
		writeTimeout: writeTimeout,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.cancel()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// The peer is gone; unblock pending senders.
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues one text frame for delivery. Returns ErrConnectionClosed
// once the peer has disconnected and ErrWriteTimeout when the writer
// cannot drain the queue in time; both are per-recipient conditions the
// caller recovers from locally.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	}
}

// SendJSON marshals v and queues it as one frame.
func (c *Connection) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// SendNotice queues a plain-text frame. Notices are deliberately not
// JSON so clients tell them apart from the message schema.
func (c *Connection) SendNotice(text string) error {
	return c.Send([]byte(text))
}

// Close tears the session down. Safe to call from any goroutine and
// from multiple cleanup paths; only the first call acts.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the session is finished, however it ended.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// ID uniquely names this session even when one host opens several.
func (c *Connection) ID() uuid.UUID { return c.id }

// Identity returns the rate-limiting identity of the peer.
func (c *Connection) Identity() string { return c.identity }
