package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be shorter than pongWait
	maxMessageSize = 512
	sendQueueSize  = 256
)

// HubConfig controls which event categories the hub fans out and which
// origins may open a connection.
type HubConfig struct {
	BroadcastAnonymizations bool
	BroadcastSystem         bool
	BroadcastConnections    bool
	AllowedOrigins          []string
}

// HubStats is a snapshot of hub activity counters.
type HubStats struct {
	TotalConnections  int64
	ActiveConnections int64
	EventsSent        int64
	EventsBroadcast   int64
	LastConnectedAt   time.Time
	LastBroadcastAt   time.Time
}

// Hub fans anonymization and status events out to connected clients.
// Events carry aggregate counts only; document text never passes through.
type Hub struct {
	config   *HubConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	events     chan Event

	mu      sync.RWMutex
	clients map[*Client]struct{}
	stats   HubStats
}

func NewHub(config *HubConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		config:     config,
		logger:     logger.With(zap.String("component", "websocket")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Event, sendQueueSize),
		clients:    make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

// originAllowed checks the Origin header against AllowedOrigins. A "*"
// entry admits any origin; an empty list admits none.
func (h *Hub) originAllowed(r *http.Request) bool {
	if h.config == nil {
		return false
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run processes registrations and event fan-out until the process exits.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.dropClient(c)
		case ev := <-h.events:
			h.fanOut(ev, nil)
		}
	}
}

// BroadcastEvent queues an event for fan-out. Events of a category that
// is disabled in the config are dropped, as are events that would block
// the queue.
func (h *Hub) BroadcastEvent(ev Event) {
	if !h.categoryEnabled(ev.Type) {
		return
	}
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("Event queue full, dropping event", zap.String("event_type", string(ev.Type)))
	}
}

func (h *Hub) categoryEnabled(t EventType) bool {
	if h.config == nil {
		return false
	}
	switch t {
	case EventTypeAnonymization:
		return h.config.BroadcastAnonymizations
	case EventTypeSystemStatus:
		return h.config.BroadcastSystem
	case EventTypeConnection:
		return h.config.BroadcastConnections
	}
	return false
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.stats.TotalConnections++
	h.stats.ActiveConnections = int64(len(h.clients))
	h.stats.LastConnectedAt = time.Now()
	active := h.stats.ActiveConnections
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("client_id", c.ID),
		zap.String("client_ip", c.IP),
		zap.Int64("active_connections", active),
	)
	if h.categoryEnabled(EventTypeConnection) {
		h.fanOut(connectionEvent("connected", c), c)
	}
}

func (h *Hub) dropClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.stats.ActiveConnections = int64(len(h.clients))
	active := h.stats.ActiveConnections
	h.mu.Unlock()

	h.logger.Info("Client disconnected",
		zap.String("client_id", c.ID),
		zap.Int64("active_connections", active),
	)
	if h.categoryEnabled(EventTypeConnection) {
		h.fanOut(connectionEvent("disconnected", c), nil)
	}
}

// fanOut delivers an event to every subscribed client except skip.
// Clients whose send queue is full are disconnected rather than letting
// one slow reader stall the hub.
func (h *Hub) fanOut(ev Event, skip *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.EventsBroadcast++
	h.stats.LastBroadcastAt = time.Now()

	for c := range h.clients {
		if c == skip || !c.wants(ev.Type) {
			continue
		}
		select {
		case c.send <- ev:
			h.stats.EventsSent++
		default:
			h.logger.Warn("Client send queue full, dropping connection", zap.String("client_id", c.ID))
			delete(h.clients, c)
			close(c.send)
			h.stats.ActiveConnections = int64(len(h.clients))
		}
	}
}

// wants reports whether the client's subscription covers the event type.
// Clients with no subscription receive everything.
func (c *Client) wants(t EventType) bool {
	if c.subscription == nil {
		return true
	}
	for _, sub := range c.subscription.Events {
		if sub == t {
			return true
		}
	}
	return false
}

func connectionEvent(action string, c *Client) Event {
	return Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:   action,
			ClientID: c.ID,
			ClientIP: c.IP,
		},
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		ID:          fmt.Sprintf("client_%d", time.Now().UnixNano()),
		conn:        conn,
		send:        make(chan Event, sendQueueSize),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
	}

	h.register <- c
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, open := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.logger.Error("WebSocket write failed",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *Client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read failed",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
			}
			return
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) handleMessage(c *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return
		}
		var sub SubscriptionRequest
		if err := json.Unmarshal(raw, &sub); err != nil {
			return
		}
		c.subscription = &sub
		h.logger.Debug("Client subscription updated",
			zap.String("client_id", c.ID),
			zap.Int("event_types", len(sub.Events)),
		)
	case "ping":
		pong := Event{Type: "pong", Timestamp: time.Now()}
		select {
		case c.send <- pong:
		default:
		}
	}
}

// GetStats returns a snapshot of the hub counters.
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
