// Package realtime pushes race snapshots to browser clients over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/middleware"
)

// Frame is the envelope for every websocket message.
type Frame struct {
	Type    string `json:"type"`              // req, res, event
	ID      string `json:"id,omitempty"`      // request/response correlation ID
	Method  string `json:"method,omitempty"`  // for requests and events
	OK      bool   `json:"ok,omitempty"`      // response success
	Payload any    `json:"payload,omitempty"` // response or event data
	Error   string `json:"error,omitempty"`
}

// Event methods pushed to clients.
const (
	MethodRace = "race"
)

// StateFunc returns the payload sent to a client when it connects and when it
// asks for the current state.
type StateFunc func(ctx context.Context) (any, error)

// Hub fans race events out to every connected client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	state StateFunc

	upgrader websocket.Upgrader
}

// NewHub creates a hub. allowedOrigins limits browser origins; empty allows
// requests without an Origin header and localhost only.
func NewHub(state StateFunc, allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 1),
		unregister: make(chan *Client, 1),
		done:       make(chan struct{}),
		state:      state,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(r.Header.Get("Origin"), allowedOrigins)
			},
		},
	}
}

// Run processes registrations until ctx is cancelled, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, c := range h.clients {
				c.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.addClient(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	h.mu.Lock()
	if existing, ok := h.clients[c.ID]; ok {
		existing.Close()
	}
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	logging.Infof("[Realtime] client connected: %s (%d total)", c.ID, n)

	if h.state == nil {
		return
	}
	// Initial state is fetched off the loop; the game session may be busy.
	go func() {
		payload, err := h.state(ctx)
		if err != nil {
			logging.Warnf("[Realtime] initial state for %s: %v", c.ID, err)
			return
		}
		if err := c.SendFrame(&Frame{Type: "event", Method: MethodRace, Payload: payload}); err != nil {
			logging.Warnf("[Realtime] send initial state to %s: %v", c.ID, err)
		}
	}()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.clients[c.ID]; ok && existing == c {
		delete(h.clients, c.ID)
		c.Close()
		logging.Infof("[Realtime] client disconnected: %s", c.ID)
	}
}

// Broadcast sends frame to every client. Slow clients drop the frame rather
// than block the caller.
func (h *Hub) Broadcast(frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logging.Errorf("[Realtime] marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if err := c.send(data); err != nil {
			logging.Debugf("[Realtime] drop frame for %s: %v", c.ID, err)
		}
	}
}

// BroadcastEvent is Broadcast for an event frame.
func (h *Hub) BroadcastEvent(method string, payload any) {
	h.Broadcast(&Frame{Type: "event", Method: method, Payload: payload})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Errorf("[Realtime] upgrade: %v", err)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "client-" + uuid.New().String()[:8]
	}

	c := newClient(conn, h, clientID)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
