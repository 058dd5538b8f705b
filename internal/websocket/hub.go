package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Event is the frame pushed to clients.
type Event struct {
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
	SentAt time.Time   `json:"sent_at"`
}

// Owned is implemented by payloads that belong to a single user. Only that
// user and loan managers receive them.
type Owned interface {
	Owner() string
}

type message struct {
	owner   string
	payload []byte
}

// Client represents a single connected WebSocket client
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	caller authz.Caller
	send   chan []byte
}

func (c *Client) wants(m message) bool {
	if m.owner == "" || authz.HasPermission(c.caller, authz.ManageLoans) {
		return true
	}
	return c.caller.ID.String() == m.owner
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

// NewHub builds a hub. An empty origins list accepts any origin.
func NewHub(log *zap.Logger, origins []string) *Hub {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("websocket client connected", zap.String("user_id", client.caller.ID.String()))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("websocket client disconnected", zap.String("user_id", client.caller.ID.String()))
			}
			h.mu.Unlock()
		case m := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(m) {
					continue
				}
				select {
				case client.send <- m.payload:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for every interested client. It never blocks the
// caller; events are dropped when the queue is full.
func (h *Hub) Publish(event string, data interface{}) {
	payload, err := json.Marshal(Event{Type: event, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		h.log.Warn("failed to encode websocket event", zap.String("event", event), zap.Error(err))
		return
	}
	m := message{payload: payload}
	if o, ok := data.(Owned); ok {
		m.owner = o.Owner()
	}
	select {
	case h.broadcast <- m:
	default:
		h.log.Warn("websocket broadcast queue full, dropping event", zap.String("event", event))
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump only watches for disconnects; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs authenticates the peer and upgrades the connection. Browsers cannot
// set headers on a websocket handshake, so the access token comes from the
// token query parameter or the access_token cookie.
func ServeWs(hub *Hub, auth service.AuthService, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = c.Cookie("access_token")
	}
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	caller, err := auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		hub.log.Debug("websocket connection rejected", zap.Error(err))
		c.AbortWithStatus(apperr.HTTPStatus(err))
		return
	}
	if !caller.IsActive {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: hub, conn: conn, caller: caller, send: make(chan []byte, sendBuffer)}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
