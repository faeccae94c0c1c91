// Package ws carries the push channel: the per-connection wrapper, the
// broadcast fan-out and the request dispatcher.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quizhub/internal/metrics"
	"quizhub/pkg/types"
)

// Connection wraps one websocket attachment. Its id is assigned per
// connection attempt and dies with the attachment; the durable client id
// lives in the registry, not here. All writes go through a single writer
// goroutine, which both serializes access to the socket and preserves the
// order of frames queued by one server-side execution.
type Connection struct {
	id      string
	conn    *websocket.Conn
	writeCh chan []byte

	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps conn and starts its writer goroutine.
func NewConnection(id string, conn *websocket.Conn, writeTimeout time.Duration, sendBuffer int) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           id,
		conn:         conn,
		writeCh:      make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

// ID returns the ephemeral connection id.
func (c *Connection) ID() string { return c.id }

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			metrics.MessagesSent.Inc()
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteFrame queues a frame for delivery. Delivery is fire-and-forget:
// a full queue or a closed connection drops the frame and reports an
// error to the caller, who may log it but must not retry.
func (c *Connection) WriteFrame(f *types.Frame) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// Close tears the attachment down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection is torn down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }
