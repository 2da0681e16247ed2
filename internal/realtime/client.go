package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neboloop/wikirace/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var (
	ErrClientSendBufferFull = errors.New("client send buffer full")
	ErrClientClosed         = errors.New("client connection closed")
)

// Client is one websocket connection.
type Client struct {
	ID string

	conn   *websocket.Conn
	hub    *Hub
	out    chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	closedMu sync.RWMutex
	closed   bool
}

func newClient(conn *websocket.Conn, hub *Hub, id string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     id,
		conn:   conn,
		hub:    hub,
		out:    make(chan []byte, 64),
		ctx:    ctx,
		cancel: cancel,
	}
}

// readPump handles client requests until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.cancel()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warnf("[Realtime] read error from %s: %v", c.ID, err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			logging.Debugf("[Realtime] bad frame from %s: %v", c.ID, err)
			continue
		}
		c.handleFrame(&frame)
	}
}

// writePump writes queued frames and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleFrame(frame *Frame) {
	switch {
	case frame.Type == "ping":
		c.SendFrame(&Frame{Type: "pong", ID: frame.ID})
	case frame.Type == "req" && frame.Method == MethodRace:
		go c.replyState(frame.ID)
	default:
		c.SendFrame(&Frame{Type: "res", ID: frame.ID, Error: "unknown request"})
	}
}

func (c *Client) replyState(id string) {
	if c.hub.state == nil {
		c.SendFrame(&Frame{Type: "res", ID: id, Error: "state unavailable"})
		return
	}
	payload, err := c.hub.state(c.ctx)
	if err != nil {
		c.SendFrame(&Frame{Type: "res", ID: id, Error: err.Error()})
		return
	}
	c.SendFrame(&Frame{Type: "res", ID: id, OK: true, Payload: payload})
}

// SendFrame queues a frame for the client.
func (c *Client) SendFrame(frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.send(data)
}

func (c *Client) send(data []byte) error {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		return ErrClientSendBufferFull
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return
	}
	c.closed = true
	close(c.out)
	c.closedMu.Unlock()

	c.cancel()
}
