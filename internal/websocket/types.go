package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeAnonymization is emitted after each anonymization call
	EventTypeAnonymization EventType = "anonymization"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// AnonymizationEvent carries the aggregate outcome of one anonymization.
// It deliberately holds counts only: the anonymized document and the
// entity values it contained never leave the engine through this channel.
type AnonymizationEvent struct {
	RequestID    string         `json:"request_id"`
	Operation    string         `json:"operation"`
	EntityCount  int            `json:"entity_count"`
	Breakdown    map[string]int `json:"entity_breakdown"`
	Language     string         `json:"language,omitempty"`
	ProcessingMS float64        `json:"processing_ms"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalEntities    int64  `json:"total_entities"`
	RecognizerReady  bool   `json:"recognizer_ready"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client is one connected WebSocket peer.
type Client struct {
	ID           string
	conn         *websocket.Conn
	send         chan Event
	subscription *SubscriptionRequest
	ConnectedAt  time.Time
	IP           string
	UserAgent    string
}
