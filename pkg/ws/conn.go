package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dmitrymomot/ridekit/pkg/presence"
)

// conn adapts a websocket connection to presence.Conn. Outbound events go
// through a buffered channel drained by a single write loop; a full buffer
// fails the send so the presence manager drops only this connection.
type conn struct {
	id     uuid.UUID
	sock   *websocket.Conn
	send   chan presence.Event
	ctx    context.Context
	cancel context.CancelFunc

	writeTimeout time.Duration

	closeOnce sync.Once
}

func newConn(sock *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		id:           uuid.New(),
		sock:         sock,
		send:         make(chan presence.Event, sendBuffer),
		ctx:          ctx,
		cancel:       cancel,
		writeTimeout: writeTimeout,
	}

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

func (c *conn) ID() uuid.UUID { return c.id }

// Send queues the event for the write loop. It never blocks: a full buffer
// means the consumer cannot keep up and the error tells the presence
// manager to close this connection.
func (c *conn) Send(event presence.Event) error {
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *conn) Close(reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.sock.Close(websocket.StatusNormalClosure, reason)
	})
	return err
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case event := <-c.send:
			writeCtx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
			err := wsjson.Write(writeCtx, c.sock, event)
			cancel()
			if err != nil {
				// The read loop notices the broken socket and unregisters.
				_ = c.Close("write failed")
				return
			}
		}
	}
}

func (c *conn) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := c.sock.Ping(pingCtx)
			cancel()
			if err != nil {
				_ = c.Close("ping failed")
				return
			}
		}
	}
}
