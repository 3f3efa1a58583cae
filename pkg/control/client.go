package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	pingInterval  = 54 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	readLimit     = 4096
	sendQueueSize = 64

	commandRate  = 10
	commandBurst = 20
)

// Client is one connected WebSocket peer.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	remote  string
	send    chan []byte
	limiter *rate.Limiter
	dropped atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		remote:  conn.RemoteAddr().String(),
		send:    make(chan []byte, sendQueueSize),
		limiter: rate.NewLimiter(rate.Limit(commandRate), commandBurst),
		done:    make(chan struct{}),
	}
}

// ID identifies the client in logs.
func (c *Client) ID() string { return c.id }

// Send queues v for this client only.
func (c *Client) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode message", "error", err)
		return
	}
	if !c.enqueue(data) {
		slog.Warn("Client send queue full, message dropped", "remote", c.remote)
	}
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Close disconnects the client. The write pump sends a close frame and
// closes the connection, which ends the read pump.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump handles incoming messages until the connection fails.
func (c *Client) readPump(ctx context.Context, handle func(context.Context, *Client, Command)) {
	defer func() {
		c.hub.unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket error", "remote", c.remote, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			slog.Warn("Client exceeded command rate, message dropped", "remote", c.remote)
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("Malformed WebSocket message", "remote", c.remote, "error", err)
			continue
		}
		handle(ctx, c, cmd)
	}
}

// writePump sends queued messages and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Write error", "remote", c.remote, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
