// Package ws is the realtime transport boundary: one authenticated
// WebSocket session per Client, with the engine behind it.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/runtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// Connection lifecycle states. Closed is terminal; no transition
// re-enters Connecting.
const (
	StateConnecting int32 = iota
	StateAuthenticated
	StateActive
	StateClosed
)

var _ contract.Connection = (*Client)(nil)

// Client is one live transport session. The send channel is the bounded
// per-connection buffer: the engine enqueues into it without blocking,
// and the write pump drains it in order, so per-room order survives all
// the way to the socket.
type Client struct {
	id     uuid.UUID
	user   domain.User
	conn   *websocket.Conn
	engine *runtime.Engine
	log    *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
}

func NewClient(conn *websocket.Conn, user domain.User,
	engine *runtime.Engine, log *slog.Logger, bufferSize int) *Client {
	c := &Client{
		id:     uuid.New(),
		user:   user,
		conn:   conn,
		engine: engine,
		log:    log,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
	c.state.Store(StateAuthenticated)
	return c
}

func (c *Client) ID() uuid.UUID {
	return c.id
}

func (c *Client) User() domain.User {
	return c.user
}

// Consume enqueues one event for the write pump. It never blocks: a
// closed client or a full buffer reports ErrConnectionGone, and the
// engine treats that as a disconnect. The send channel is never closed,
// so Consume is safe concurrently with Close.
func (c *Client) Consume(_ context.Context, e event.DomainEvent) error {
	buf, err := encodeEvent(e)
	if err != nil {
		return err
	}
	if buf == nil {
		return nil
	}

	select {
	case <-c.done:
		return errors.ErrConnectionGone
	case c.send <- buf:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", errors.ErrConnectionGone)
	}
}

// Close marks the session terminal and wakes both pumps. Idempotent and
// safe from any goroutine, including mid-broadcast.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(StateClosed)
		c.log.Debug("closing connection",
			"conn_id", c.id, "user_id", c.user.ID, "reason", reason)
		close(c.done)
	})
}

func (c *Client) State() int32 {
	return c.state.Load()
}

// readPump consumes inbound frames until the transport dies. It owns the
// final cleanup: leaving every room, closing the session, closing the
// socket.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.engine.Disconnect(c)
		c.Close("read loop ended")
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", "conn_id", c.id, "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.log.Debug("invalid frame", "conn_id", c.id, "error", err)
			continue
		}
		c.dispatch(ctx, in)
	}
}

// dispatch routes one inbound event. Errors go back to this client only;
// they never affect other connections.
func (c *Client) dispatch(ctx context.Context, in inbound) {
	roomID := domain.RoomID(in.RoomID)
	switch in.Type {
	case eventJoin:
		if err := c.engine.Join(ctx, c, roomID); err != nil {
			c.reportError(in.RoomID, err)
			return
		}
		c.state.CompareAndSwap(StateAuthenticated, StateActive)
	case eventLeave:
		c.engine.Leave(c, roomID)
	case eventSend:
		if _, err := c.engine.Send(ctx, c, roomID, in.Body); err != nil {
			c.reportError(in.RoomID, err)
		}
	default:
		c.log.Debug("unknown event type", "conn_id", c.id, "type", in.Type)
	}
}

// reportError enqueues an error frame, best effort.
func (c *Client) reportError(roomID int64, err error) {
	buf := encodeError(roomID, err)
	if buf == nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- buf:
	default:
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. It exits when the session closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case buf := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				c.log.Debug("websocket write failed", "conn_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
