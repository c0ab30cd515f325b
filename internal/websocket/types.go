package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDocumentProcessed is sent after a document has been pseudonymized
	EventTypeDocumentProcessed EventType = "document_processed"
	// EventTypeSynthesisCompleted is sent after a training-data batch was generated
	EventTypeSynthesisCompleted EventType = "synthesis_completed"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DocumentEvent describes a processed document. It carries counts only.
type DocumentEvent struct {
	SessionID       string         `json:"session_id"`
	DocumentID      string         `json:"document_id,omitempty"`
	Characters      int            `json:"characters"`
	Entities        int            `json:"entities"`
	EntitiesByType  map[string]int `json:"entities_by_type"`
	PatternMatches  int            `json:"pattern_matches"`
	Correspondences int            `json:"correspondences"`
	ProcessingMS    float64        `json:"processing_ms"`
}

// SynthesisEvent describes a finished generation run
type SynthesisEvent struct {
	Templates    int     `json:"templates"`
	Requested    int     `json:"requested"`
	Accepted     int     `json:"accepted"`
	Rejected     int     `json:"rejected"`
	ProcessingMS float64 `json:"processing_ms"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalDocuments   int64  `json:"total_documents"`
	ActiveSessions   int    `json:"active_sessions"`
	ActiveRules      int    `json:"active_rules"`
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
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows document events
type EventFilter struct {
	SessionIDs  []string `json:"session_ids,omitempty"`
	MinEntities int      `json:"min_entities,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	pong         chan struct{}
	mu           sync.Mutex
	subscription *SubscriptionRequest
	lastPing     time.Time
}

// Subscription returns the client's current subscription, nil for all events
func (c *Client) Subscription() *SubscriptionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscription
}

// Subscribe replaces the client's subscription
func (c *Client) Subscribe(s *SubscriptionRequest) {
	c.mu.Lock()
	c.subscription = s
	c.mu.Unlock()
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// LastPing returns when the client last answered a ping or sent one
func (c *Client) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}
